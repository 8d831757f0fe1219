package decoder

import (
	"net/url"
	"strconv"

	"github.com/kyson-dev/subsync/internal/node"
)

// decodeHysteria2 parses "hysteria2://<password>@<host>:<port>?params#remark".
func decodeHysteria2(rest string) (node.Node, error) {
	fixed := preEscapeUserinfo(rest)
	u, err := url.Parse("hysteria2://" + fixed)
	if err != nil {
		return node.Node{}, newParseError("hysteria2", "invalid uri", err)
	}
	port, _ := strconv.Atoi(u.Port())
	if port == 0 {
		return node.Node{}, newParseError("hysteria2", "missing port", nil)
	}
	q := u.Query()
	n := node.Node{
		Protocol: node.Hysteria2,
		Server:   u.Hostname(),
		Port:     port,
		Settings: node.Settings{
			Password: u.User.Username(),
			TLS:      true,
			SNI:      q.Get("sni"),
			Insecure: q.Get("insecure") == "1",
			Up:       q.Get("up"),
			Down:     q.Get("down"),
			Obfs:     q.Get("obfs"),
			ObfsParam: q.Get("obfs-password"),
		},
	}
	n.RawDisplayName = u.Fragment
	n.DisplayName = firstNonEmpty(u.Fragment, node.DefaultDisplayName(node.Hysteria2, n.Server, port))
	n.Raw = "hysteria2://" + rest
	if !n.Valid() {
		return node.Node{}, newParseError("hysteria2", "invalid server or port", nil)
	}
	return n, nil
}

func encodeHysteria2(n node.Node) (string, error) {
	q := url.Values{}
	if n.Settings.SNI != "" {
		q.Set("sni", n.Settings.SNI)
	}
	if n.Settings.Insecure {
		q.Set("insecure", "1")
	}
	if n.Settings.Up != "" {
		q.Set("up", n.Settings.Up)
	}
	if n.Settings.Down != "" {
		q.Set("down", n.Settings.Down)
	}
	if n.Settings.Obfs != "" {
		q.Set("obfs", n.Settings.Obfs)
		q.Set("obfs-password", n.Settings.ObfsParam)
	}
	u := url.URL{
		Scheme:   "hysteria2",
		User:     node.UserInfo(n.Settings.Password),
		Host:     n.Server + ":" + strconv.Itoa(n.Port),
		RawQuery: q.Encode(),
		Fragment: firstNonEmpty(n.RawDisplayName, n.DisplayName),
	}
	return u.String(), nil
}
