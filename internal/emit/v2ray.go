package emit

import (
	"encoding/json"
	"os"

	"github.com/kyson-dev/subsync/internal/group"
	"github.com/kyson-dev/subsync/internal/node"
)

type v2rayOutbound struct {
	Tag      string                 `json:"tag"`
	Protocol string                 `json:"protocol"`
	Settings map[string]interface{} `json:"settings"`
	StreamSettings map[string]interface{} `json:"streamSettings,omitempty"`
}

type v2rayConfig struct {
	Outbounds []v2rayOutbound `json:"outbounds"`
}

func v2rayOutboundFrom(n node.Node) v2rayOutbound {
	tag := firstNonEmpty(n.DisplayName, n.Server)
	out := v2rayOutbound{Tag: tag}
	switch n.Protocol {
	case node.VMess:
		out.Protocol = "vmess"
		out.Settings = map[string]interface{}{
			"vnext": []map[string]interface{}{{
				"address": n.Server,
				"port":    n.Port,
				"users": []map[string]interface{}{{
					"id":       n.Settings.UUID,
					"alterId":  n.Settings.AlterID,
					"security": firstNonEmpty(n.Settings.Encryption, "auto"),
				}},
			}},
		}
	case node.VLess:
		out.Protocol = "vless"
		out.Settings = map[string]interface{}{
			"vnext": []map[string]interface{}{{
				"address": n.Server,
				"port":    n.Port,
				"users": []map[string]interface{}{{
					"id":         n.Settings.UUID,
					"flow":       n.Settings.Flow,
					"encryption": "none",
				}},
			}},
		}
	case node.Trojan:
		out.Protocol = "trojan"
		out.Settings = map[string]interface{}{
			"servers": []map[string]interface{}{{
				"address":  n.Server,
				"port":     n.Port,
				"password": n.Settings.Password,
			}},
		}
	case node.Shadowsocks:
		out.Protocol = "shadowsocks"
		out.Settings = map[string]interface{}{
			"servers": []map[string]interface{}{{
				"address":  n.Server,
				"port":     n.Port,
				"method":   n.Settings.Method,
				"password": n.Settings.Password,
			}},
		}
	case node.HTTP, node.HTTPS:
		out.Protocol = "http"
		server := map[string]interface{}{"address": n.Server, "port": n.Port}
		if n.Settings.Username != "" {
			server["users"] = []map[string]interface{}{{"user": n.Settings.Username, "pass": n.Settings.Password}}
		}
		out.Settings = map[string]interface{}{"servers": []map[string]interface{}{server}}
	case node.SOCKS5:
		out.Protocol = "socks"
		server := map[string]interface{}{"address": n.Server, "port": n.Port}
		if n.Settings.Username != "" {
			server["users"] = []map[string]interface{}{{"user": n.Settings.Username, "pass": n.Settings.Password}}
		}
		out.Settings = map[string]interface{}{"servers": []map[string]interface{}{server}}
	default:
		out.Protocol = string(n.Protocol)
		out.Settings = map[string]interface{}{}
	}

	if n.Settings.TLS {
		out.StreamSettings = map[string]interface{}{
			"security": "tls",
			"tlsSettings": map[string]interface{}{
				"serverName":         n.Settings.SNI,
				"allowInsecure":      n.Settings.Insecure,
			},
		}
	}
	if n.Settings.Transport == "ws" {
		if out.StreamSettings == nil {
			out.StreamSettings = map[string]interface{}{}
		}
		out.StreamSettings["network"] = "ws"
		out.StreamSettings["wsSettings"] = map[string]interface{}{
			"path":    n.Settings.WSPath,
			"headers": map[string]interface{}{"Host": n.Settings.WSHost},
		}
	}
	return out
}

// WriteV2Ray renders every node across all groups as flat V2Ray JSON
// outbounds at path (V2Ray has no native grouping concept, so groups are
// flattened; the Emitter's group URI lists remain the authoritative
// per-group artifact).
func WriteV2Ray(path string, groups []group.Group) error {
	cfg := v2rayConfig{}
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, n := range g.Nodes {
			tag := firstNonEmpty(n.DisplayName, n.Server)
			if seen[tag] {
				continue
			}
			seen[tag] = true
			cfg.Outbounds = append(cfg.Outbounds, v2rayOutboundFrom(n))
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
