package emit

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kyson-dev/subsync/internal/group"
	"github.com/kyson-dev/subsync/internal/node"
)

type mihomoProxy map[string]interface{}

// mihomoProxyFrom is the inverse of decoder.ClashProxy: it renders a
// node.Node back into a Mihomo/Clash "proxies:" entry.
func mihomoProxyFrom(n node.Node) mihomoProxy {
	p := mihomoProxy{
		"name":   firstNonEmpty(n.DisplayName, n.Server),
		"server": n.Server,
		"port":   n.Port,
	}
	switch n.Protocol {
	case node.VMess:
		p["type"] = "vmess"
		p["uuid"] = n.Settings.UUID
		p["alterId"] = n.Settings.AlterID
		p["cipher"] = firstNonEmpty(n.Settings.Encryption, "auto")
		p["tls"] = n.Settings.TLS
		p["network"] = firstNonEmpty(n.Settings.Transport, "tcp")
		applyMihomoTransport(p, n.Settings)
	case node.VLess:
		p["type"] = "vless"
		p["uuid"] = n.Settings.UUID
		p["tls"] = n.Settings.TLS
		p["network"] = firstNonEmpty(n.Settings.Transport, "tcp")
		p["flow"] = n.Settings.Flow
		p["servername"] = n.Settings.SNI
		applyMihomoTransport(p, n.Settings)
		if n.Settings.RealityPublicKey != "" {
			p["reality-opts"] = map[string]interface{}{
				"public-key": n.Settings.RealityPublicKey,
				"short-id":   n.Settings.RealityShortID,
			}
		}
	case node.Trojan:
		p["type"] = "trojan"
		p["password"] = n.Settings.Password
		p["sni"] = n.Settings.SNI
		p["skip-cert-verify"] = n.Settings.Insecure
		p["network"] = firstNonEmpty(n.Settings.Transport, "tcp")
		applyMihomoTransport(p, n.Settings)
	case node.Shadowsocks:
		p["type"] = "ss"
		p["cipher"] = n.Settings.Method
		p["password"] = n.Settings.Password
	case node.ShadowsocksR:
		p["type"] = "ssr"
		p["cipher"] = n.Settings.Method
		p["password"] = n.Settings.Password
		p["protocol"] = n.Settings.Protocol
		p["obfs"] = n.Settings.Obfs
		p["obfs-param"] = n.Settings.ObfsParam
		p["protocol-param"] = n.Settings.ProtoParam
	case node.Hysteria2:
		p["type"] = "hysteria2"
		p["password"] = n.Settings.Password
		p["sni"] = n.Settings.SNI
		p["skip-cert-verify"] = n.Settings.Insecure
		p["up"] = n.Settings.Up
		p["down"] = n.Settings.Down
	case node.HTTP, node.HTTPS:
		p["type"] = "http"
		p["tls"] = n.Protocol == node.HTTPS
		if n.Settings.Username != "" {
			p["username"] = n.Settings.Username
			p["password"] = n.Settings.Password
		}
	case node.SOCKS5:
		p["type"] = "socks5"
		if n.Settings.Username != "" {
			p["username"] = n.Settings.Username
			p["password"] = n.Settings.Password
		}
	}
	return p
}

func applyMihomoTransport(p mihomoProxy, s node.Settings) {
	switch s.Transport {
	case "ws":
		p["ws-opts"] = map[string]interface{}{
			"path":    s.WSPath,
			"headers": map[string]interface{}{"Host": s.WSHost},
		}
	case "grpc":
		p["grpc-opts"] = map[string]interface{}{"grpc-service-name": s.GRPCService}
	}
}

type mihomoDocument struct {
	Proxies      []mihomoProxy            `yaml:"proxies"`
	ProxyGroups  []mihomoProxyGroup       `yaml:"proxy-groups"`
	Rules        []string                 `yaml:"rules"`
}

type mihomoProxyGroup struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Proxies   []string `yaml:"proxies"`
	URL       string   `yaml:"url,omitempty"`
	Interval  string   `yaml:"interval,omitempty"`
	Tolerance int      `yaml:"tolerance,omitempty"`
}

// WriteMihomo renders groups into a Mihomo/Clash YAML config at path.
func WriteMihomo(path string, groups []group.Group) error {
	doc := mihomoDocument{}
	seen := make(map[string]bool)
	var proxyNames []string

	for _, g := range groups {
		var names []string
		for _, n := range g.Nodes {
			name := firstNonEmpty(n.DisplayName, n.Server)
			if seen[name] {
				continue
			}
			seen[name] = true
			doc.Proxies = append(doc.Proxies, mihomoProxyFrom(n))
			names = append(names, name)
			proxyNames = append(proxyNames, name)
		}
		doc.ProxyGroups = append(doc.ProxyGroups, mihomoProxyGroup{
			Name:      g.Name,
			Type:      "url-test",
			Proxies:   names,
			URL:       g.URLTestURL,
			Interval:  g.Interval,
			Tolerance: g.Tolerance,
		})
	}

	doc.ProxyGroups = append([]mihomoProxyGroup{{
		Name:    "Proxy",
		Type:    "select",
		Proxies: append(groupNames(groups), "DIRECT"),
	}}, doc.ProxyGroups...)
	doc.Rules = []string{"MATCH,Proxy"}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func groupNames(groups []group.Group) []string {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.Name)
	}
	return names
}
