package decoder

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kyson-dev/subsync/internal/node"
)

// vmessPayload mirrors the loose "vmess://" base64-JSON envelope. Fields
// are read defensively since producers disagree on types (port and aid
// are sometimes strings, sometimes numbers).
type vmessPayload struct {
	V    interface{} `json:"v"`
	PS   string      `json:"ps"`
	Add  string      `json:"add"`
	Port interface{} `json:"port"`
	ID   string      `json:"id"`
	Aid  interface{} `json:"aid"`
	Scy  string      `json:"scy"`
	Net  string      `json:"net"`
	Type string      `json:"type"`
	Host string      `json:"host"`
	Path string      `json:"path"`
	TLS  string      `json:"tls"`
	SNI  string      `json:"sni"`
	ALPN string      `json:"alpn"`
	FP   string      `json:"fp"`
}

func decodeVMess(rest string) (node.Node, error) {
	raw, err := decodeBase64Loose(rest)
	if err != nil {
		return node.Node{}, newParseError("vmess", "invalid base64 envelope", err)
	}
	var p vmessPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return node.Node{}, newParseError("vmess", "invalid json envelope", err)
	}
	port := toInt(p.Port)
	if port == 0 {
		return node.Node{}, newParseError("vmess", "missing port", nil)
	}
	n := node.Node{
		Protocol: node.VMess,
		Server:   p.Add,
		Port:     port,
		Settings: node.Settings{
			UUID:       p.ID,
			AlterID:    toInt(p.Aid),
			Encryption: firstNonEmpty(p.Scy, "auto"),
			Transport:  firstNonEmpty(p.Net, "tcp"),
			WSPath:     p.Path,
			WSHost:     p.Host,
			TLS:        p.TLS == "tls",
			SNI:        firstNonEmpty(p.SNI, p.Host),
			Fingerprint: p.FP,
		},
	}
	if p.ALPN != "" {
		n.Settings.ALPN = strings.Split(p.ALPN, ",")
	}
	if n.Settings.Transport == "grpc" {
		n.Settings.GRPCService = p.Path
	}
	n.RawDisplayName = p.PS
	n.DisplayName = firstNonEmpty(p.PS, node.DefaultDisplayName(node.VMess, p.Add, port))
	n.Raw = "vmess://" + rest
	if !n.Valid() {
		return node.Node{}, newParseError("vmess", "invalid server or port", nil)
	}
	return n, nil
}

func encodeVMess(n node.Node) (string, error) {
	p := vmessPayload{
		V:    "2",
		PS:   firstNonEmpty(n.RawDisplayName, n.DisplayName),
		Add:  n.Server,
		Port: strconv.Itoa(n.Port),
		ID:   n.Settings.UUID,
		Aid:  strconv.Itoa(n.Settings.AlterID),
		Scy:  firstNonEmpty(n.Settings.Encryption, "auto"),
		Net:  firstNonEmpty(n.Settings.Transport, "tcp"),
		Host: n.Settings.WSHost,
		Path: n.Settings.WSPath,
		SNI:  n.Settings.SNI,
		FP:   n.Settings.Fingerprint,
	}
	if n.Settings.TLS {
		p.TLS = "tls"
	}
	if n.Settings.GRPCService != "" {
		p.Path = n.Settings.GRPCService
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return "vmess://" + base64.StdEncoding.EncodeToString(raw), nil
}

func decodeBase64Loose(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	if raw, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	if raw, err := base64.URLEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

func toInt(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func base64RawURLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
