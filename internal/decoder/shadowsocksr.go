package decoder

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/kyson-dev/subsync/internal/node"
)

// decodeShadowsocksR parses the colon-delimited SSR envelope:
//
//	base64(host:port:protocol:method:obfs:base64(password)/?query)
//
// where query carries obfsparam/protoparam/remarks, each itself base64.
func decodeShadowsocksR(rest string) (node.Node, error) {
	content := rest
	if idx := strings.IndexByte(content, '#'); idx > 0 {
		content = content[:idx]
	}
	raw, err := decodeBase64Loose(content)
	if err != nil {
		return node.Node{}, newParseError("ssr", "invalid base64 envelope", err)
	}
	decoded := string(raw)
	parts := strings.SplitN(decoded, "/?", 2)
	fields := strings.Split(parts[0], ":")
	if len(fields) < 6 {
		return node.Node{}, newParseError("ssr", "malformed field list", nil)
	}
	n := len(fields)
	server := strings.Join(fields[:n-5], ":")
	port, _ := strconv.Atoi(fields[n-5])
	protocol := fields[n-4]
	method := fields[n-3]
	obfs := fields[n-2]
	password := string(decodeBase64URLSafeLoose(fields[n-1]))

	settings := node.Settings{
		Method:   method,
		Password: password,
		Protocol: protocol,
		Obfs:     obfs,
	}
	remark := ""
	if len(parts) == 2 {
		q, err := url.ParseQuery(parts[1])
		if err == nil {
			if v := q.Get("obfsparam"); v != "" {
				settings.ObfsParam = string(decodeBase64URLSafeLoose(v))
			}
			if v := q.Get("protoparam"); v != "" {
				settings.ProtoParam = string(decodeBase64URLSafeLoose(v))
			}
			if v := q.Get("remarks"); v != "" {
				remark = string(decodeBase64URLSafeLoose(v))
			}
		}
	}

	nd := node.Node{
		Protocol: node.ShadowsocksR,
		Server:   server,
		Port:     port,
		Settings: settings,
	}
	nd.RawDisplayName = remark
	nd.DisplayName = firstNonEmpty(remark, node.DefaultDisplayName(node.ShadowsocksR, server, port))
	nd.Raw = "ssr://" + rest
	if !nd.Valid() {
		return node.Node{}, newParseError("ssr", "invalid server or port", nil)
	}
	return nd, nil
}

func decodeBase64URLSafeLoose(s string) []byte {
	raw, err := decodeBase64Loose(s)
	if err != nil {
		return []byte(s)
	}
	return raw
}

func encodeShadowsocksR(n node.Node) (string, error) {
	fields := []string{
		n.Server,
		strconv.Itoa(n.Port),
		n.Settings.Protocol,
		n.Settings.Method,
		n.Settings.Obfs,
		base64RawURLEncode([]byte(n.Settings.Password)),
	}
	body := strings.Join(fields, ":")
	q := url.Values{}
	if n.Settings.ObfsParam != "" {
		q.Set("obfsparam", base64RawURLEncode([]byte(n.Settings.ObfsParam)))
	}
	if n.Settings.ProtoParam != "" {
		q.Set("protoparam", base64RawURLEncode([]byte(n.Settings.ProtoParam)))
	}
	remark := firstNonEmpty(n.RawDisplayName, n.DisplayName)
	if remark != "" {
		q.Set("remarks", base64RawURLEncode([]byte(remark)))
	}
	if len(q) > 0 {
		body += "/?" + q.Encode()
	}
	return "ssr://" + base64RawURLEncode([]byte(body)), nil
}
