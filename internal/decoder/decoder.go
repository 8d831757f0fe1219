// Package decoder converts between proxy share-link URIs (and Clash-style
// container records) and the canonical node.Node model.
//
// Each wire format lives in its own file, grounded on the parsing shapes
// found in internal/subscription/parse.go of the teacher repo, generalized
// away from sing-box's option.Outbound toward node.Node.
package decoder

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kyson-dev/subsync/internal/node"
)

// ParseError wraps a decode failure with the scheme that produced it.
type ParseError struct {
	Scheme string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decoder: %s: %s: %v", e.Scheme, e.Reason, e.Err)
	}
	return fmt.Sprintf("decoder: %s: %s", e.Scheme, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(scheme, reason string, err error) error {
	return &ParseError{Scheme: scheme, Reason: reason, Err: err}
}

// Decode dispatches a single share-link URI to its protocol-specific
// decoder based on the URI scheme. It returns an error wrapping *ParseError
// for any malformed or unrecognized link.
func Decode(uri string) (node.Node, error) {
	scheme, rest, ok := splitScheme(uri)
	if !ok {
		return node.Node{}, newParseError("", "missing scheme", nil)
	}
	var (
		n   node.Node
		err error
	)
	switch scheme {
	case "vmess":
		n, err = decodeVMess(rest)
	case "vless":
		n, err = decodeVLess(rest)
	case "ss":
		n, err = decodeShadowsocks(rest)
	case "ssr":
		n, err = decodeShadowsocksR(rest)
	case "trojan":
		n, err = decodeTrojan(rest)
	case "hysteria2", "hy2":
		n, err = decodeHysteria2(rest)
	case "http":
		n, err = decodePlain(node.HTTP, rest)
	case "https":
		n, err = decodePlain(node.HTTPS, rest)
	case "socks5", "socks":
		n, err = decodePlain(node.SOCKS5, rest)
	default:
		return node.Node{}, newParseError(scheme, "unsupported scheme", nil)
	}
	if err != nil {
		return node.Node{}, err
	}
	n.ID = uuid.NewString()
	return n, nil
}

// Encode renders n back into its canonical share-link form. It is the
// inverse of Decode and is used by the Emitter's per-group URI lists when
// a node has no cached Raw representation.
func Encode(n node.Node) (string, error) {
	switch n.Protocol {
	case node.VMess:
		return encodeVMess(n)
	case node.VLess:
		return encodeVLess(n)
	case node.Shadowsocks:
		return encodeShadowsocks(n)
	case node.ShadowsocksR:
		return encodeShadowsocksR(n)
	case node.Trojan:
		return encodeTrojan(n)
	case node.Hysteria2:
		return encodeHysteria2(n)
	case node.HTTP, node.HTTPS, node.SOCKS5:
		return encodePlain(n)
	default:
		return "", newParseError(string(n.Protocol), "unsupported protocol for encode", nil)
	}
}

func splitScheme(uri string) (scheme, rest string, ok bool) {
	for i := 0; i < len(uri); i++ {
		switch uri[i] {
		case ':':
			if i+2 < len(uri) && uri[i+1] == '/' && uri[i+2] == '/' {
				return uri[:i], uri[i+3:], true
			}
			return uri[:i], uri[i+1:], true
		case '/', '?', '#':
			return "", "", false
		}
	}
	return "", "", false
}
