package decoder

import (
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"

	"github.com/kyson-dev/subsync/internal/node"
)

// decodeShadowsocks handles both SIP002 ("ss://base64(method:pass)@host:port?..#remark"
// and "ss://method:pass@host:port#remark") and the legacy fully-base64-encoded
// shape ("ss://base64(method:pass@host:port)#remark").
func decodeShadowsocks(rest string) (node.Node, error) {
	fragIdx := strings.IndexByte(rest, '#')
	remark := ""
	body := rest
	if fragIdx >= 0 {
		body = rest[:fragIdx]
		if f, err := url.QueryUnescape(rest[fragIdx+1:]); err == nil {
			remark = f
		} else {
			remark = rest[fragIdx+1:]
		}
	}

	if !strings.Contains(body, "@") {
		// legacy: entire body (minus query) is base64.
		queryIdx := strings.IndexByte(body, '?')
		enc := body
		if queryIdx >= 0 {
			enc = body[:queryIdx]
		}
		raw, err := decodeBase64Loose(enc)
		if err != nil {
			return node.Node{}, newParseError("ss", "invalid legacy base64", err)
		}
		return finishShadowsocks(string(raw), remark, rest)
	}

	at := strings.LastIndexByte(body, '@')
	userinfo := body[:at]
	hostpart := body[at+1:]
	if dec, err := decodeBase64Loose(userinfo); err == nil && strings.Contains(string(dec), ":") {
		userinfo = string(dec)
	} else if unesc, err := url.QueryUnescape(userinfo); err == nil {
		userinfo = unesc
	}
	return finishShadowsocks(userinfo+"@"+hostpart, remark, rest)
}

func finishShadowsocks(plain, remark, rawURI string) (node.Node, error) {
	at := strings.LastIndexByte(plain, '@')
	if at < 0 {
		return node.Node{}, newParseError("ss", "missing @ separator", nil)
	}
	cred := plain[:at]
	hostport := plain[at+1:]
	if q := strings.IndexByte(hostport, '?'); q >= 0 {
		hostport = hostport[:q]
	}
	colon := strings.IndexByte(cred, ':')
	if colon < 0 {
		return node.Node{}, newParseError("ss", "missing method:password separator", nil)
	}
	method := cred[:colon]
	password := cred[colon+1:]

	host, portStr, err := splitHostPort(hostport)
	if err != nil {
		return node.Node{}, newParseError("ss", "invalid host:port", err)
	}
	port, _ := strconv.Atoi(portStr)

	n := node.Node{
		Protocol: node.Shadowsocks,
		Server:   host,
		Port:     port,
		Settings: node.Settings{
			Method:   method,
			Password: password,
		},
	}
	n.RawDisplayName = remark
	n.DisplayName = firstNonEmpty(remark, node.DefaultDisplayName(node.Shadowsocks, host, port))
	n.Raw = "ss://" + rawURI
	if !n.Valid() {
		return node.Node{}, newParseError("ss", "invalid server or port", nil)
	}
	return n, nil
}

func splitHostPort(hostport string) (string, string, error) {
	i := strings.LastIndexByte(hostport, ':')
	if i < 0 {
		return "", "", newParseError("", "no port", nil)
	}
	return hostport[:i], hostport[i+1:], nil
}

func encodeShadowsocks(n node.Node) (string, error) {
	userinfo := base64.RawURLEncoding.EncodeToString([]byte(n.Settings.Method + ":" + n.Settings.Password))
	u := url.URL{
		Scheme:   "ss",
		Host:     n.Server + ":" + strconv.Itoa(n.Port),
		Fragment: firstNonEmpty(n.RawDisplayName, n.DisplayName),
	}
	return "ss://" + userinfo + "@" + u.Host + fragmentSuffix(u.Fragment), nil
}

func fragmentSuffix(frag string) string {
	if frag == "" {
		return ""
	}
	return "#" + url.PathEscape(frag)
}
