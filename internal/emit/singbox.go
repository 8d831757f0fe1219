package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sagernet/sing-box/include"
	"github.com/sagernet/sing-box/option"
	singboxjson "github.com/sagernet/sing/common/json"

	"github.com/kyson-dev/subsync/internal/group"
	"github.com/kyson-dev/subsync/internal/node"
)

// nodeOutboundMap renders a node.Node into the loose map shape sing-box's
// JSON decoder accepts for an outbound, the inverse of the teacher's
// clashProxyToNode: here we go from our canonical model to sing-box's
// option.Outbound rather than from Clash's.
func nodeOutboundMap(tag string, n node.Node) map[string]interface{} {
	base := map[string]interface{}{
		"tag":         tag,
		"server":      n.Server,
		"server_port": n.Port,
	}
	switch n.Protocol {
	case node.VMess:
		base["type"] = "vmess"
		base["uuid"] = n.Settings.UUID
		base["alter_id"] = n.Settings.AlterID
		base["security"] = firstNonEmpty(n.Settings.Encryption, "auto")
		applyTransportMap(base, n.Settings)
		applyTLSMap(base, n.Settings)
	case node.VLess:
		base["type"] = "vless"
		base["uuid"] = n.Settings.UUID
		if n.Settings.Flow != "" {
			base["flow"] = n.Settings.Flow
		}
		applyTransportMap(base, n.Settings)
		applyTLSMap(base, n.Settings)
		if n.Settings.RealityPublicKey != "" {
			tlsMap, _ := base["tls"].(map[string]interface{})
			if tlsMap == nil {
				tlsMap = map[string]interface{}{"enabled": true}
				base["tls"] = tlsMap
			}
			tlsMap["reality"] = map[string]interface{}{
				"enabled":    true,
				"public_key": n.Settings.RealityPublicKey,
				"short_id":   n.Settings.RealityShortID,
			}
		}
	case node.Shadowsocks:
		base["type"] = "shadowsocks"
		base["method"] = n.Settings.Method
		base["password"] = n.Settings.Password
	case node.ShadowsocksR:
		// sing-box dropped native SSR support; emit as shadowsocks with a
		// plugin-style annotation so the config stays self-documenting,
		// matching this repository's stance that SSR endpoints are legacy.
		base["type"] = "shadowsocks"
		base["method"] = n.Settings.Method
		base["password"] = n.Settings.Password
		base["plugin"] = "shadowsocksr"
		base["plugin_opts"] = fmt.Sprintf("protocol=%s;obfs=%s", n.Settings.Protocol, n.Settings.Obfs)
	case node.Trojan:
		base["type"] = "trojan"
		base["password"] = n.Settings.Password
		applyTransportMap(base, n.Settings)
		applyTLSMap(base, n.Settings)
	case node.Hysteria2:
		base["type"] = "hysteria2"
		base["password"] = n.Settings.Password
		if n.Settings.Up != "" {
			base["up_mbps"] = parseMbps(n.Settings.Up)
		}
		if n.Settings.Down != "" {
			base["down_mbps"] = parseMbps(n.Settings.Down)
		}
		if n.Settings.Obfs != "" {
			base["obfs"] = map[string]interface{}{
				"type":     n.Settings.Obfs,
				"password": n.Settings.ObfsParam,
			}
		}
		applyTLSMap(base, n.Settings)
	case node.HTTP, node.HTTPS:
		base["type"] = "http"
		if n.Settings.Username != "" {
			base["username"] = n.Settings.Username
			base["password"] = n.Settings.Password
		}
		if n.Protocol == node.HTTPS {
			applyTLSMap(base, n.Settings)
		}
	case node.SOCKS5:
		base["type"] = "socks"
		base["version"] = "5"
		if n.Settings.Username != "" {
			base["username"] = n.Settings.Username
			base["password"] = n.Settings.Password
		}
	}
	return base
}

func applyTransportMap(base map[string]interface{}, s node.Settings) {
	switch s.Transport {
	case "ws":
		base["transport"] = map[string]interface{}{
			"type": "ws",
			"path": s.WSPath,
			"headers": map[string]interface{}{
				"Host": s.WSHost,
			},
		}
	case "grpc":
		base["transport"] = map[string]interface{}{
			"type":         "grpc",
			"service_name": s.GRPCService,
		}
	case "httpupgrade":
		base["transport"] = map[string]interface{}{
			"type": "httpupgrade",
			"path": s.WSPath,
			"host": s.WSHost,
		}
	}
}

func applyTLSMap(base map[string]interface{}, s node.Settings) {
	if !s.TLS {
		return
	}
	tls := map[string]interface{}{
		"enabled":     true,
		"insecure":    s.Insecure,
		"server_name": s.SNI,
	}
	if len(s.ALPN) > 0 {
		tls["alpn"] = s.ALPN
	}
	if s.Fingerprint != "" {
		tls["utls"] = map[string]interface{}{
			"enabled":     true,
			"fingerprint": s.Fingerprint,
		}
	}
	base["tls"] = tls
}

func parseMbps(s string) int {
	var n int
	fmt.Sscanf(s, "%d", &n)
	return n
}

// BuildSingBoxOptions assembles a complete sing-box option.Options value
// from the emitted groups: every node as its own outbound, one selector
// plus one "auto-<group>" urltest per group, a direct/block pair, and a
// "proxy" selector over the groups. Grounded on the teacher's OutboundModule.Apply/
// SubscriptionModule.Apply, generalized to our group model and applied
// via the same applyMapToOutbound json round-trip idiom.
func BuildSingBoxOptions(groups []group.Group, allNodes []node.Node) (*option.Options, error) {
	opts := &option.Options{}
	used := make(map[string]bool)
	tagFor := make(map[node.FingerprintKey]string, len(allNodes))

	for _, n := range allNodes {
		tag := uniqueTag(firstNonEmpty(n.DisplayName, n.Server), n.SourceTag, used)
		tagFor[n.Key()] = tag
		out, err := applyMapToOutbound(nodeOutboundMap(tag, n))
		if err != nil {
			return nil, fmt.Errorf("emit: building outbound %q: %w", tag, err)
		}
		opts.Outbounds = append(opts.Outbounds, out)
	}

	var allTags []string
	for _, g := range groups {
		var groupTags []string
		for _, n := range g.Nodes {
			if tag, ok := tagFor[n.Key()]; ok {
				groupTags = append(groupTags, tag)
				allTags = append(allTags, tag)
			}
		}
		selector, err := applyMapToOutbound(map[string]interface{}{
			"type":      "selector",
			"tag":       g.Name,
			"outbounds": append([]string{"auto-" + g.Name}, groupTags...),
			"default":   "auto-" + g.Name,
		})
		if err != nil {
			return nil, err
		}
		auto, err := applyMapToOutbound(map[string]interface{}{
			"type":      "urltest",
			"tag":       "auto-" + g.Name,
			"outbounds": groupTags,
			"url":       g.URLTestURL,
			"interval":  g.Interval,
			"tolerance": g.Tolerance,
		})
		if err != nil {
			return nil, err
		}
		opts.Outbounds = append(opts.Outbounds, selector, auto)
	}

	direct, _ := applyMapToOutbound(map[string]interface{}{"type": "direct", "tag": "direct"})
	block, _ := applyMapToOutbound(map[string]interface{}{"type": "block", "tag": "block"})
	proxySelector, _ := applyMapToOutbound(map[string]interface{}{
		"type":      "selector",
		"tag":       "proxy",
		"outbounds": append([]string{"direct"}, groupTagNames(groups)...),
		"default":   firstGroupName(groups, "direct"),
	})
	opts.Outbounds = append(opts.Outbounds, direct, block, proxySelector)

	return opts, nil
}

func groupTagNames(groups []group.Group) []string {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.Name)
	}
	return names
}

func firstGroupName(groups []group.Group, fallback string) string {
	if len(groups) == 0 {
		return fallback
	}
	return groups[0].Name
}

func uniqueTag(baseName, source string, used map[string]bool) string {
	base := baseName
	if base == "" {
		base = "node"
	}
	tag := base
	if reservedSingBoxTags[tag] || used[tag] {
		tag = base + " (" + source + ")"
	}
	if reservedSingBoxTags[tag] || used[tag] {
		for i := 2; ; i++ {
			candidate := fmt.Sprintf("%s (%s) #%d", base, source, i)
			if !reservedSingBoxTags[candidate] && !used[candidate] {
				tag = candidate
				break
			}
		}
	}
	used[tag] = true
	return tag
}

var reservedSingBoxTags = map[string]bool{
	"direct": true,
	"block":  true,
	"proxy":  true,
	"auto":   true,
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func applyMapToOutbound(m map[string]interface{}) (option.Outbound, error) {
	var out option.Outbound
	data, err := singboxjson.Marshal(m)
	if err != nil {
		return out, err
	}
	ctx := include.Context(context.Background())
	if err := singboxjson.UnmarshalContext(ctx, data, &out); err != nil {
		return out, err
	}
	return out, nil
}

// WriteSingBox marshals opts via sing-box's own encoder (matching the
// teacher's saveToFile pretty-print step) and writes it to path.
func WriteSingBox(path string, opts *option.Options) error {
	data, err := singboxjson.Marshal(opts)
	if err != nil {
		return fmt.Errorf("emit: marshal sing-box config: %w", err)
	}
	var pretty interface{}
	if err := json.Unmarshal(data, &pretty); err != nil {
		return fmt.Errorf("emit: unmarshal for pretty print: %w", err)
	}
	data, err = json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
