// Package httpapi is the thin stdlib net/http facade serving emitted
// artifacts and run status, grounded on
// crazy1-2345-crazy_xray_checker/web.go's bare http.ServeMux + JSON
// handler shape (no web framework — the teacher does not use one here,
// and neither does this package).
package httpapi

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kyson-dev/subsync/internal/applog"
	"github.com/kyson-dev/subsync/internal/paths"
	"github.com/kyson-dev/subsync/internal/syncstate"
)

// Server serves the output directory's artifacts plus a small status API.
type Server struct {
	Paths      paths.Paths
	Log        *applog.Logger
	GHProxyBase string // when set, "/gh-proxy/<path>" redirects (302) to this base + "/<path>"
}

// NewServer builds a Server over p, logging through log.
func NewServer(p paths.Paths, log *applog.Logger) *Server {
	return &Server{Paths: p, Log: log}
}

// Handler builds the full route table and sets
// "Access-Control-Allow-Origin: *" on every response.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/groups/", s.handleGroup)
	mux.HandleFunc("/mihomo", s.serveFile("mihomo.yaml", "text/yaml"))
	mux.HandleFunc("/clash", s.serveFile("clash.yaml", "text/yaml"))
	mux.HandleFunc("/surge", s.serveFile("surge.conf", "text/plain"))
	mux.HandleFunc("/singbox", s.serveFile("singbox.json", "application/json"))
	mux.HandleFunc("/v2ray", s.serveFile("v2ray.json", "application/json"))
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/gh-proxy/", s.handleGHProxy)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		mux.ServeHTTP(w, r)
	})
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/groups/")
	name = strings.TrimSuffix(name, ".txt")
	if name == "" || strings.Contains(name, "..") {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(s.Paths.OutputDir, "groups", name+".txt")
	http.ServeFile(w, r, path)
}

func (s *Server) serveFile(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		http.ServeFile(w, r, filepath.Join(s.Paths.OutputDir, name))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := syncstate.Load(s.Paths.StateFile)
	if err != nil {
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, err := os.Stat(s.Paths.OutputDir)
	ok := err == nil
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": ok})
}

func (s *Server) handleGHProxy(w http.ResponseWriter, r *http.Request) {
	if s.GHProxyBase == "" {
		http.Error(w, "gh-proxy not configured", http.StatusServiceUnavailable)
		return
	}
	target := strings.TrimPrefix(r.URL.Path, "/gh-proxy/")
	http.Redirect(w, r, strings.TrimRight(s.GHProxyBase, "/")+"/"+target, http.StatusFound)
}
