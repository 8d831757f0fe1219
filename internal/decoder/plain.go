package decoder

import (
	"net/url"
	"strconv"

	"github.com/kyson-dev/subsync/internal/node"
)

// decodePlain handles bare http/https/socks5 proxy links of the shape
// "scheme://[user:pass@]host:port#remark".
func decodePlain(proto node.Protocol, rest string) (node.Node, error) {
	fixed := preEscapeUserinfo(rest)
	u, err := url.Parse(string(proto) + "://" + fixed)
	if err != nil {
		return node.Node{}, newParseError(string(proto), "invalid uri", err)
	}
	port, _ := strconv.Atoi(u.Port())
	if port == 0 {
		return node.Node{}, newParseError(string(proto), "missing port", nil)
	}
	settings := node.Settings{}
	if u.User != nil {
		settings.Username = u.User.Username()
		settings.Password, _ = u.User.Password()
	}
	if proto == node.HTTPS {
		settings.TLS = true
	}
	n := node.Node{
		Protocol: proto,
		Server:   u.Hostname(),
		Port:     port,
		Settings: settings,
	}
	n.RawDisplayName = u.Fragment
	n.DisplayName = firstNonEmpty(u.Fragment, node.DefaultDisplayName(proto, n.Server, port))
	n.Raw = string(proto) + "://" + rest
	if !n.Valid() {
		return node.Node{}, newParseError(string(proto), "invalid server or port", nil)
	}
	return n, nil
}

func encodePlain(n node.Node) (string, error) {
	u := url.URL{
		Scheme:   string(n.Protocol),
		Host:     n.Server + ":" + strconv.Itoa(n.Port),
		Fragment: firstNonEmpty(n.RawDisplayName, n.DisplayName),
	}
	if n.Settings.Username != "" {
		if n.Settings.Password != "" {
			u.User = url.UserPassword(n.Settings.Username, n.Settings.Password)
		} else {
			u.User = url.User(n.Settings.Username)
		}
	}
	return u.String(), nil
}
