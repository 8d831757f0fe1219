package decoder

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kyson-dev/subsync/internal/node"
)

// ClashProxy converts a single Clash/Mihomo "proxies:" list entry (already
// decoded from YAML/JSON into a generic map) into a canonical Node. It is
// grounded on the teacher's clashProxyToNode switch over proxy "type",
// generalized from sing-box's option.Outbound to node.Node.
func ClashProxy(m map[string]interface{}) (node.Node, error) {
	typ, _ := m["type"].(string)
	name, _ := m["name"].(string)
	server, _ := m["server"].(string)
	port := readInt(m["port"])

	var n node.Node
	switch typ {
	case "vmess":
		n = node.Node{
			Protocol: node.VMess,
			Server:   server,
			Port:     port,
			Settings: node.Settings{
				UUID:       readString(m["uuid"]),
				AlterID:    readInt(m["alterId"]),
				Encryption: firstNonEmpty(readString(m["cipher"]), "auto"),
				Transport:  firstNonEmpty(readString(m["network"]), "tcp"),
				TLS:        readBool(m["tls"]),
				SNI:        readString(m["servername"]),
			},
		}
		applyClashTransport(&n.Settings, m)
	case "vless":
		n = node.Node{
			Protocol: node.VLess,
			Server:   server,
			Port:     port,
			Settings: node.Settings{
				UUID:             readString(m["uuid"]),
				Flow:             readString(m["flow"]),
				Encryption:       "none",
				Transport:        firstNonEmpty(readString(m["network"]), "tcp"),
				TLS:              readBool(m["tls"]),
				SNI:              readString(m["servername"]),
				RealityPublicKey: readNestedString(m, "reality-opts", "public-key"),
				RealityShortID:   readNestedString(m, "reality-opts", "short-id"),
			},
		}
		applyClashTransport(&n.Settings, m)
	case "trojan":
		n = node.Node{
			Protocol: node.Trojan,
			Server:   server,
			Port:     port,
			Settings: node.Settings{
				Password: readString(m["password"]),
				TLS:      true,
				SNI:      readString(m["sni"]),
				Insecure: readBool(m["skip-cert-verify"]),
				Transport: firstNonEmpty(readString(m["network"]), "tcp"),
			},
		}
		applyClashTransport(&n.Settings, m)
	case "ss", "shadowsocks":
		n = node.Node{
			Protocol: node.Shadowsocks,
			Server:   server,
			Port:     port,
			Settings: node.Settings{
				Method:   readString(m["cipher"]),
				Password: readString(m["password"]),
			},
		}
	case "ssr", "shadowsocksr":
		n = node.Node{
			Protocol: node.ShadowsocksR,
			Server:   server,
			Port:     port,
			Settings: node.Settings{
				Method:     readString(m["cipher"]),
				Password:   readString(m["password"]),
				Protocol:   readString(m["protocol"]),
				Obfs:       readString(m["obfs"]),
				ObfsParam:  readString(m["obfs-param"]),
				ProtoParam: readString(m["protocol-param"]),
			},
		}
	case "hysteria2", "hy2":
		n = node.Node{
			Protocol: node.Hysteria2,
			Server:   server,
			Port:     port,
			Settings: node.Settings{
				Password: firstNonEmpty(readString(m["password"]), readString(m["auth"])),
				TLS:      true,
				SNI:      readString(m["sni"]),
				Insecure: readBool(m["skip-cert-verify"]),
				Up:       readString(m["up"]),
				Down:     readString(m["down"]),
				Obfs:     readNestedString(m, "obfs", "type"),
			},
		}
	case "http":
		tls := readBool(m["tls"])
		proto := node.HTTP
		if tls {
			proto = node.HTTPS
		}
		n = node.Node{
			Protocol: proto,
			Server:   server,
			Port:     port,
			Settings: node.Settings{
				Username: readString(m["username"]),
				Password: readString(m["password"]),
				TLS:      tls,
			},
		}
	case "socks5":
		n = node.Node{
			Protocol: node.SOCKS5,
			Server:   server,
			Port:     port,
			Settings: node.Settings{
				Username: readString(m["username"]),
				Password: readString(m["password"]),
			},
		}
	default:
		return node.Node{}, newParseError(typ, "unsupported clash proxy type", nil)
	}

	n.RawDisplayName = name
	n.DisplayName = firstNonEmpty(name, node.DefaultDisplayName(n.Protocol, server, port))
	if !n.Valid() {
		return node.Node{}, newParseError(typ, fmt.Sprintf("invalid server/port for %q", name), nil)
	}
	n.ID = uuid.NewString()
	return n, nil
}

func applyClashTransport(s *node.Settings, m map[string]interface{}) {
	switch s.Transport {
	case "ws":
		s.WSPath = readNestedString(m, "ws-opts", "path")
		if wsOpts := readNestedMap(m, "ws-opts"); wsOpts != nil {
			if h := readNestedMap(wsOpts, "headers"); h != nil {
				s.WSHost = readString(h["Host"])
			}
		}
	case "grpc":
		s.GRPCService = readNestedString(m, "grpc-opts", "grpc-service-name")
	}
}

func readString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func readInt(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		var n int
		fmt.Sscanf(t, "%d", &n)
		return n
	default:
		return 0
	}
}

func readBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func readNestedMap(m map[string]interface{}, key string) map[string]interface{} {
	v, ok := m[key]
	if !ok {
		return nil
	}
	nested, _ := v.(map[string]interface{})
	if nested != nil {
		return nested
	}
	if generic, ok := v.(map[interface{}]interface{}); ok {
		out := make(map[string]interface{}, len(generic))
		for k, val := range generic {
			if ks, ok := k.(string); ok {
				out[ks] = val
			}
		}
		return out
	}
	return nil
}

func readNestedString(m map[string]interface{}, key, field string) string {
	nested := readNestedMap(m, key)
	if nested == nil {
		return ""
	}
	return readString(nested[field])
}
