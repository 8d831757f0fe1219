package emit

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kyson-dev/subsync/internal/group"
	"github.com/kyson-dev/subsync/internal/node"
)

// surgeProxyLine renders a node into Surge's "name = type, host, port,
// key=value, ..." ini-like proxy line. Grounded on the bracket-KV shape
// other_examples' ParseBracketKVProxies parses, run here in the reverse
// direction (map/struct to line, not line to map).
func surgeProxyLine(n node.Node) (string, bool) {
	name := firstNonEmpty(n.DisplayName, n.Server)
	var parts []string
	switch n.Protocol {
	case node.VMess:
		parts = []string{
			"vmess", n.Server, strconv.Itoa(n.Port),
			"username=" + n.Settings.UUID,
			"tls=" + boolStr(n.Settings.TLS),
		}
		if n.Settings.Transport == "ws" {
			parts = append(parts, "ws=true", "ws-path="+n.Settings.WSPath)
		}
	case node.Trojan:
		parts = []string{
			"trojan", n.Server, strconv.Itoa(n.Port),
			"password=" + n.Settings.Password,
			"sni=" + n.Settings.SNI,
			"skip-cert-verify=" + boolStr(n.Settings.Insecure),
		}
	case node.Shadowsocks:
		parts = []string{
			"ss", n.Server, strconv.Itoa(n.Port),
			"encrypt-method=" + n.Settings.Method,
			"password=" + n.Settings.Password,
		}
	case node.HTTP, node.HTTPS:
		parts = []string{"http", n.Server, strconv.Itoa(n.Port)}
		if n.Settings.Username != "" {
			parts = append(parts, "username="+n.Settings.Username, "password="+n.Settings.Password)
		}
		if n.Protocol == node.HTTPS {
			parts = append(parts, "tls=true")
		}
	case node.SOCKS5:
		parts = []string{"socks5", n.Server, strconv.Itoa(n.Port)}
		if n.Settings.Username != "" {
			parts = append(parts, "username="+n.Settings.Username, "password="+n.Settings.Password)
		}
	default:
		// vless/hysteria2/ssr have no first-class Surge proxy type; skip.
		return "", false
	}
	return fmt.Sprintf("%s = %s", name, strings.Join(parts, ", ")), true
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// WriteSurge renders groups into a Surge .conf at path: a [Proxy]
// section, one [Proxy Group] url-test line per group, and a minimal
// catch-all [Rule] section.
func WriteSurge(path string, groups []group.Group) error {
	var sb strings.Builder
	sb.WriteString("[Proxy]\n")
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, n := range g.Nodes {
			name := firstNonEmpty(n.DisplayName, n.Server)
			if seen[name] {
				continue
			}
			line, ok := surgeProxyLine(n)
			if !ok {
				continue
			}
			seen[name] = true
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}

	sb.WriteString("\n[Proxy Group]\n")
	var allGroupNames []string
	for _, g := range groups {
		var names []string
		for _, n := range g.Nodes {
			name := firstNonEmpty(n.DisplayName, n.Server)
			if seen[name] {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			continue
		}
		allGroupNames = append(allGroupNames, g.Name)
		fmt.Fprintf(&sb, "%s = url-test, %s, url=%s, interval=%s\n",
			g.Name, strings.Join(names, ", "), g.URLTestURL, strings.TrimSuffix(g.Interval, "s"))
	}
	fmt.Fprintf(&sb, "Proxy = select, %s, DIRECT\n", strings.Join(allGroupNames, ", "))

	sb.WriteString("\n[Rule]\nFINAL,Proxy\n")

	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
