// Package parser detects a subscription payload's wire format and parses
// it into canonical nodes, generalizing the teacher's
// internal/subscription/parse.go cascade away from sing-box outbound
// options toward node.Node.
package parser

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kyson-dev/subsync/internal/decoder"
	"github.com/kyson-dev/subsync/internal/node"
)

// Format is one of the payload shapes Detect can recognize.
type Format string

const (
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatURIList Format = "uri_list"
	FormatBase64  Format = "base64"
	FormatUnknown Format = "unknown"
)

var uriSchemeRe = regexp.MustCompile(`(?:vmess|vless|ss|ssr|trojan|hysteria2|hy2|http|https|socks5|socks)://`)

// Detect classifies raw subscription content by precedence: YAML container
// markers, then JSON, then a plain URI list (2+ scheme occurrences), then a
// base64 envelope (recursed once), falling back to "unknown".
func Detect(content []byte) Format {
	text := strings.TrimSpace(string(content))
	if text == "" {
		return FormatUnknown
	}
	if looksLikeYAML(text) {
		return FormatYAML
	}
	if looksLikeJSON(text) {
		return FormatJSON
	}
	if len(uriSchemeRe.FindAllStringIndex(text, -1)) >= 2 {
		return FormatURIList
	}
	if looksLikeBase64(text) {
		return FormatBase64
	}
	return FormatUnknown
}

func looksLikeYAML(text string) bool {
	for _, marker := range []string{"proxies:", "rules:", "proxy-groups:"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	firstLine := strings.SplitN(text, "\n", 2)[0]
	return strings.HasPrefix(strings.TrimSpace(firstLine), "- ")
}

func looksLikeJSON(text string) bool {
	return strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[")
}

func looksLikeBase64(text string) bool {
	compact := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, text)
	if len(compact) < 8 {
		return false
	}
	for _, r := range compact {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '+' || r == '/' || r == '=' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// Parse decodes content according to format, returning every node it could
// recover. Nodes that fail an individual decoder are skipped, not fatal;
// the caller sees only the survivors.
func Parse(content []byte, format Format) ([]node.Node, error) {
	switch format {
	case FormatYAML:
		return parseYAML(content)
	case FormatJSON:
		return parseJSONContainer(content)
	case FormatURIList:
		return parseURIList(content)
	case FormatBase64:
		return parseBase64Envelope(content)
	default:
		return nil, nil
	}
}

// ParseAuto runs Detect then Parse. If the detected format yields
// nothing, it tries the remaining formats in the fixed order YAML
// (lenient), JSON, URI list, base64 envelope, and returns the first
// non-empty result.
func ParseAuto(content []byte) ([]node.Node, error) {
	format := Detect(content)
	nodes, err := Parse(content, format)
	if err != nil {
		return nil, err
	}
	if len(nodes) > 0 {
		return nodes, nil
	}
	for _, fallback := range []Format{FormatYAML, FormatJSON, FormatURIList, FormatBase64} {
		if fallback == format {
			continue
		}
		if more, ferr := Parse(content, fallback); ferr == nil && len(more) > 0 {
			return more, nil
		}
	}
	return nodes, nil
}

func parseYAML(content []byte) ([]node.Node, error) {
	var doc struct {
		Proxies        []map[string]interface{}            `yaml:"proxies"`
		ProxyProviders map[string]map[string]interface{}    `yaml:"proxy-providers"`
		ProxyProvider  map[string]map[string]interface{}    `yaml:"proxy-provider"`
	}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, nil
	}
	records := append([]map[string]interface{}{}, doc.Proxies...)
	records = append(records, proxiesFromProviders(doc.ProxyProviders)...)
	records = append(records, proxiesFromProviders(doc.ProxyProvider)...)

	var out []node.Node
	for _, p := range records {
		n, err := decoder.ClashProxy(normalizeYAMLMap(p))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// proxiesFromProviders extracts the nested "proxies:" list inline proxy
// providers carry (Clash/Mihomo also support a remote "url:"-fetched
// provider, which has no inline node list to recover here).
func proxiesFromProviders(providers map[string]map[string]interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, provider := range providers {
		raw, ok := provider["proxies"]
		if !ok {
			continue
		}
		list, ok := raw.([]interface{})
		if !ok {
			continue
		}
		for _, item := range list {
			if m, ok := normalizeYAMLValue(item).(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

// normalizeYAMLMap recursively converts map[interface{}]interface{} nodes
// (as yaml.v3 can still emit for nested nodes) into map[string]interface{}.
func normalizeYAMLMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = normalizeYAMLValue(v)
	}
	return out
}

func normalizeYAMLValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return normalizeYAMLMap(t)
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if ks, ok := k.(string); ok {
				out[ks] = normalizeYAMLValue(val)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeYAMLValue(val)
		}
		return out
	default:
		return v
	}
}

func parseJSONContainer(content []byte) ([]node.Node, error) {
	var doc struct {
		Proxies []map[string]interface{} `json:"proxies"`
		Servers []map[string]interface{} `json:"servers"`
	}
	if err := json.Unmarshal(content, &doc); err != nil {
		// might be a bare JSON array of proxy records.
		var arr []map[string]interface{}
		if err2 := json.Unmarshal(content, &arr); err2 != nil {
			return nil, nil
		}
		doc.Proxies = arr
	}
	records := doc.Proxies
	if len(records) == 0 {
		records = doc.Servers
	}
	var out []node.Node
	for _, p := range records {
		n, err := decoder.ClashProxy(p)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func parseURIList(content []byte) ([]node.Node, error) {
	var out []node.Node
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !uriSchemeRe.MatchString(line) {
			continue
		}
		n, err := decoder.Decode(line)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func parseBase64Envelope(content []byte) ([]node.Node, error) {
	raw, err := decodeAnyBase64(strings.TrimSpace(string(content)))
	if err != nil {
		return nil, nil
	}
	inner := Detect(raw)
	if inner == FormatBase64 {
		// avoid infinite recursion: only unwrap the envelope once.
		return nil, nil
	}
	return Parse(raw, inner)
}

func decodeAnyBase64(s string) ([]byte, error) {
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	if raw, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	if raw, err := base64.URLEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
