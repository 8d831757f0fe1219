package decoder

import (
	"net/url"
	"strconv"

	"github.com/kyson-dev/subsync/internal/node"
)

// decodeVLess parses "vless://<uuid>@<host>:<port>?params#remark".
func decodeVLess(rest string) (node.Node, error) {
	u, err := url.Parse("vless://" + rest)
	if err != nil {
		return node.Node{}, newParseError("vless", "invalid uri", err)
	}
	port, _ := strconv.Atoi(u.Port())
	if port == 0 {
		return node.Node{}, newParseError("vless", "missing port", nil)
	}
	q := u.Query()
	n := node.Node{
		Protocol: node.VLess,
		Server:   u.Hostname(),
		Port:     port,
		Settings: node.Settings{
			UUID:             u.User.Username(),
			Flow:             q.Get("flow"),
			Encryption:       firstNonEmpty(q.Get("encryption"), "none"),
			Transport:        firstNonEmpty(q.Get("type"), "tcp"),
			WSPath:           q.Get("path"),
			WSHost:           q.Get("host"),
			GRPCService:      q.Get("serviceName"),
			TLS:              q.Get("security") == "tls" || q.Get("security") == "reality",
			SNI:              q.Get("sni"),
			Fingerprint:      q.Get("fp"),
			RealityPublicKey: q.Get("pbk"),
			RealityShortID:   q.Get("sid"),
		},
	}
	n.RawDisplayName = u.Fragment
	n.DisplayName = firstNonEmpty(u.Fragment, node.DefaultDisplayName(node.VLess, n.Server, port))
	n.Raw = "vless://" + rest
	if !n.Valid() {
		return node.Node{}, newParseError("vless", "invalid server or port", nil)
	}
	return n, nil
}

func encodeVLess(n node.Node) (string, error) {
	q := url.Values{}
	if n.Settings.Flow != "" {
		q.Set("flow", n.Settings.Flow)
	}
	q.Set("encryption", firstNonEmpty(n.Settings.Encryption, "none"))
	if n.Settings.Transport != "" && n.Settings.Transport != "tcp" {
		q.Set("type", n.Settings.Transport)
	}
	if n.Settings.WSPath != "" {
		q.Set("path", n.Settings.WSPath)
	}
	if n.Settings.WSHost != "" {
		q.Set("host", n.Settings.WSHost)
	}
	if n.Settings.GRPCService != "" {
		q.Set("serviceName", n.Settings.GRPCService)
	}
	if n.Settings.RealityPublicKey != "" {
		q.Set("security", "reality")
		q.Set("pbk", n.Settings.RealityPublicKey)
		q.Set("sid", n.Settings.RealityShortID)
	} else if n.Settings.TLS {
		q.Set("security", "tls")
	}
	if n.Settings.SNI != "" {
		q.Set("sni", n.Settings.SNI)
	}
	if n.Settings.Fingerprint != "" {
		q.Set("fp", n.Settings.Fingerprint)
	}
	u := url.URL{
		Scheme:   "vless",
		User:     node.UserInfo(n.Settings.UUID),
		Host:     n.Server + ":" + strconv.Itoa(n.Port),
		RawQuery: q.Encode(),
		Fragment: firstNonEmpty(n.RawDisplayName, n.DisplayName),
	}
	return u.String(), nil
}
