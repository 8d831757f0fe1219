package decoder

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/kyson-dev/subsync/internal/node"
)

// decodeTrojan parses "trojan://<password>@<host>:<port>?params#remark".
// Passwords frequently contain unescaped special characters ("@", "#") in
// the wild; we pre-escape the userinfo segment before handing the URI to
// net/url so a literal "@" in the password does not get mistaken for the
// authority separator.
func decodeTrojan(rest string) (node.Node, error) {
	fixed := preEscapeUserinfo(rest)
	u, err := url.Parse("trojan://" + fixed)
	if err != nil {
		return node.Node{}, newParseError("trojan", "invalid uri", err)
	}
	port, _ := strconv.Atoi(u.Port())
	if port == 0 {
		return node.Node{}, newParseError("trojan", "missing port", nil)
	}
	q := u.Query()
	password := u.User.Username()
	n := node.Node{
		Protocol: node.Trojan,
		Server:   u.Hostname(),
		Port:     port,
		Settings: node.Settings{
			Password:    password,
			TLS:         true,
			SNI:         firstNonEmpty(q.Get("sni"), q.Get("peer")),
			Insecure:    q.Get("allowInsecure") == "1" || q.Get("insecure") == "1",
			Transport:   firstNonEmpty(q.Get("type"), "tcp"),
			WSPath:      q.Get("path"),
			WSHost:      q.Get("host"),
			Fingerprint: q.Get("fp"),
		},
	}
	n.RawDisplayName = u.Fragment
	n.DisplayName = firstNonEmpty(u.Fragment, node.DefaultDisplayName(node.Trojan, n.Server, port))
	n.Raw = "trojan://" + rest
	if !n.Valid() {
		return node.Node{}, newParseError("trojan", "invalid server or port", nil)
	}
	return n, nil
}

// preEscapeUserinfo percent-encodes any "@" appearing before the LAST "@"
// in the authority segment, since that last one is the real userinfo
// separator and everything before it belongs to the password.
func preEscapeUserinfo(rest string) string {
	end := len(rest)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		end = i
	}
	authority := rest[:end]
	last := strings.LastIndexByte(authority, '@')
	if last < 0 {
		return rest
	}
	head := authority[:last]
	head = strings.ReplaceAll(head, "@", "%40")
	return head + authority[last:] + rest[end:]
}

func encodeTrojan(n node.Node) (string, error) {
	q := url.Values{}
	if n.Settings.SNI != "" {
		q.Set("sni", n.Settings.SNI)
	}
	if n.Settings.Insecure {
		q.Set("allowInsecure", "1")
	}
	if n.Settings.Transport != "" && n.Settings.Transport != "tcp" {
		q.Set("type", n.Settings.Transport)
	}
	if n.Settings.WSPath != "" {
		q.Set("path", n.Settings.WSPath)
	}
	if n.Settings.WSHost != "" {
		q.Set("host", n.Settings.WSHost)
	}
	u := url.URL{
		Scheme:   "trojan",
		User:     node.UserInfo(n.Settings.Password),
		Host:     n.Server + ":" + strconv.Itoa(n.Port),
		RawQuery: q.Encode(),
		Fragment: firstNonEmpty(n.RawDisplayName, n.DisplayName),
	}
	return u.String(), nil
}
