package syncrun

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyson-dev/subsync/internal/appconfig"
	"github.com/kyson-dev/subsync/internal/applog"
	"github.com/kyson-dev/subsync/internal/classify"
	"github.com/kyson-dev/subsync/internal/paths"
	"github.com/kyson-dev/subsync/internal/syncevent"
)

func TestOrchestratorRunEndToEnd(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("vless://11111111-2222-3333-4444-555555555555@" + host + ":" + portStr + "?encryption=none#Test%20US%20Node\n"))
	}))
	defer srv.Close()

	home := t.TempDir()
	paths.ResetForTest()
	p, err := paths.Resolve(home)
	require.NoError(t, err)

	require.NoError(t, SaveSources(p.SourcesFile, []Source{{URL: srv.URL, Enabled: true}}))

	maps := classify.NewMaps(classify.DefaultCountries, classify.DefaultServiceTags)
	orch := New(p, appconfig.Config{RegionShortlist: []string{"US", "XX"}}, applog.Discard(), syncevent.NopSink{}, maps, nil)

	status, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalNodes)

	_, statErr := os.Stat(filepath.Join(p.OutputDir, "mihomo.yaml"))
	assert.NoError(t, statErr)
}
