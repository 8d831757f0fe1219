// Package node defines the canonical proxy node model every decoder,
// prober, classifier and emitter in this repository operates on.
package node

import (
	"fmt"
	"net/url"
	"time"
)

// Protocol is one of the wire protocols this system understands.
type Protocol string

const (
	VMess         Protocol = "vmess"
	VLess         Protocol = "vless"
	Shadowsocks   Protocol = "shadowsocks"
	ShadowsocksR  Protocol = "shadowsocksr"
	Trojan        Protocol = "trojan"
	Hysteria2     Protocol = "hysteria2"
	HTTP          Protocol = "http"
	HTTPS         Protocol = "https"
	SOCKS5        Protocol = "socks5"
	ProtocolUnset Protocol = ""
)

// Known reports whether p is one of the protocols this system can parse,
// probe and emit.
func (p Protocol) Known() bool {
	switch p {
	case VMess, VLess, Shadowsocks, ShadowsocksR, Trojan, Hysteria2, HTTP, HTTPS, SOCKS5:
		return true
	}
	return false
}

// Settings is the protocol-discriminated record attached to a Node.
// Only the fields relevant to Protocol are populated; the rest are zero.
type Settings struct {
	// vmess / vless
	UUID      string `json:"uuid,omitempty"`
	AlterID   int    `json:"alter_id,omitempty"`
	Flow      string `json:"flow,omitempty"`
	Encryption string `json:"encryption,omitempty"`

	// shadowsocks / shadowsocksr
	Method   string `json:"method,omitempty"`
	Password string `json:"password,omitempty"`
	Protocol string `json:"protocol,omitempty"` // ssr protocol
	Obfs     string `json:"obfs,omitempty"`
	ObfsParam string `json:"obfs_param,omitempty"`
	ProtoParam string `json:"proto_param,omitempty"`

	// trojan / hysteria2
	Insecure bool `json:"insecure,omitempty"`
	Up       string `json:"up,omitempty"`
	Down     string `json:"down,omitempty"`

	// http/https/socks5 auth
	Username string `json:"username,omitempty"`

	// transport, shared by several protocols
	Transport    string            `json:"transport,omitempty"` // tcp, ws, grpc, httpupgrade
	WSPath       string            `json:"ws_path,omitempty"`
	WSHost       string            `json:"ws_host,omitempty"`
	GRPCService  string            `json:"grpc_service,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`

	// tls
	TLS         bool   `json:"tls,omitempty"`
	SNI         string `json:"sni,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	ALPN        []string `json:"alpn,omitempty"`

	// reality (vless)
	RealityPublicKey string `json:"reality_public_key,omitempty"`
	RealityShortID   string `json:"reality_short_id,omitempty"`
}

// Geo is the result of an IP Locator lookup.
type Geo struct {
	CountryCode string    `json:"country_code"`
	CountryName string    `json:"country_name"`
	City        string    `json:"city,omitempty"`
	Org         string    `json:"org,omitempty"`
	ASN         string    `json:"asn,omitempty"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// Probe is the outcome of the most recent reachability/latency check.
type Probe struct {
	Status    string    `json:"status"` // "up" or "down"
	LatencyMs int64     `json:"latency_ms,omitempty"`
	Error     string    `json:"error,omitempty"`
	ProbedAt  time.Time `json:"probed_at"`

	// LocationMismatch and ActualGeo are populated only when the prober
	// was asked to verify location: the server's IP was re-resolved via
	// the IP Locator and its country disagreed with the node's existing
	// Geo. ActualGeo carries the freshly-resolved answer.
	LocationMismatch bool `json:"location_mismatch,omitempty"`
	ActualGeo        *Geo `json:"actual_geo,omitempty"`
}

const (
	StatusUp   = "up"
	StatusDown = "down"
)

// Node is the canonical, protocol-agnostic proxy record. It is immutable
// after classification except for DisplayName (renamed by the Namer) and
// Geo (corrected after a probe-time location mismatch).
type Node struct {
	ID              string    `json:"id"`
	Protocol        Protocol  `json:"protocol"`
	DisplayName     string    `json:"display_name"`
	RawDisplayName  string    `json:"raw_display_name,omitempty"`
	Server          string    `json:"server"`
	Port            int       `json:"port"`
	Settings        Settings  `json:"settings"`
	SourceTag       string    `json:"source_tag,omitempty"`
	Geo             *Geo      `json:"geo,omitempty"`
	ProbeResult     *Probe    `json:"probe,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	Raw             string    `json:"raw,omitempty"`
}

// FingerprintKey is the deduplication key: (server, port, protocol).
type FingerprintKey struct {
	Server   string
	Port     int
	Protocol Protocol
}

// Key returns n's fingerprint.
func (n Node) Key() FingerprintKey {
	return FingerprintKey{Server: n.Server, Port: n.Port, Protocol: n.Protocol}
}

// Valid reports whether n satisfies the §3 invariant: server is non-empty,
// the port is in range, and the protocol is known. Nodes failing this are
// discarded at parse time by the caller.
func (n Node) Valid() bool {
	return n.Server != "" && n.Port >= 1 && n.Port <= 65535 && n.Protocol.Known()
}

// DefaultDisplayName returns the fallback name used when a decoder has no
// remark to work with: "{PROTOCOL} {server}:{port}".
func DefaultDisplayName(proto Protocol, server string, port int) string {
	return fmt.Sprintf("%s %s:%d", protoLabel(proto), server, port)
}

func protoLabel(p Protocol) string {
	switch p {
	case VMess:
		return "VMESS"
	case VLess:
		return "VLESS"
	case Shadowsocks:
		return "SS"
	case ShadowsocksR:
		return "SSR"
	case Trojan:
		return "TROJAN"
	case Hysteria2:
		return "HY2"
	case HTTP:
		return "HTTP"
	case HTTPS:
		return "HTTPS"
	case SOCKS5:
		return "SOCKS5"
	default:
		return string(p)
	}
}

// UserInfo builds the userinfo component for share-link encoders that
// embed a single credential (password or UUID) in the URI authority,
// shared by the vless/trojan/hysteria2 encoders.
func UserInfo(user string) *url.Userinfo {
	return url.User(user)
}
