// Package classify assigns country/service tags to nodes by matching
// their raw display name against declarative lookup tables, then renames
// and renumbers them, grounded on the teacher's declarative
// ConfigModule-table pattern (internal/config/tags.go's reserved-tag map)
// generalized from outbound tags to display names.
package classify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kyson-dev/subsync/internal/node"
)

// CountryEntry maps a country's aliases (names, flag emoji, ISO codes) to
// its canonical code and display name.
type CountryEntry struct {
	Code    string
	Name    string
	Flag    string
	Aliases []string
}

// ServiceTagEntry recognizes a streaming/service marker in a node's name.
type ServiceTagEntry struct {
	Tag     string
	Aliases []string
}

// Maps bundles the three declarative lookup tables and their precomputed
// alternation regexes.
type Maps struct {
	Countries    []CountryEntry
	countryRegex []*regexp.Regexp // parallel to Countries

	ServiceTags []ServiceTagEntry
	serviceRegex []*regexp.Regexp // parallel to ServiceTags

	ProtocolLabels map[node.Protocol]string
}

// NewMaps precompiles the alternation regexes for countries and service
// tags once, so repeated classification passes avoid recompiling.
func NewMaps(countries []CountryEntry, services []ServiceTagEntry) *Maps {
	m := &Maps{
		Countries:   countries,
		ServiceTags: services,
		ProtocolLabels: map[node.Protocol]string{
			node.VMess:        "VMess",
			node.VLess:        "VLess",
			node.Shadowsocks:  "SS",
			node.ShadowsocksR: "SSR",
			node.Trojan:       "Trojan",
			node.Hysteria2:    "Hysteria2",
			node.HTTP:         "HTTP",
			node.HTTPS:        "HTTPS",
			node.SOCKS5:       "SOCKS5",
		},
	}
	for _, c := range countries {
		m.countryRegex = append(m.countryRegex, compileAlternation(c.Aliases))
	}
	for _, s := range services {
		m.serviceRegex = append(m.serviceRegex, compileAlternation(s.Aliases))
	}
	return m
}

func compileAlternation(aliases []string) *regexp.Regexp {
	escaped := make([]string, len(aliases))
	for i, a := range aliases {
		escaped[i] = regexp.QuoteMeta(a)
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(escaped, "|") + `)`)
}

// MatchCountry returns the first CountryEntry whose alias set matches
// text, or nil.
func (m *Maps) MatchCountry(text string) *CountryEntry {
	for i, re := range m.countryRegex {
		if re.MatchString(text) {
			return &m.Countries[i]
		}
	}
	return nil
}

// MatchServiceTags returns every ServiceTagEntry whose alias set matches
// text — a node can carry more than one service tag.
func (m *Maps) MatchServiceTags(text string) []string {
	var tags []string
	for i, re := range m.serviceRegex {
		if re.MatchString(text) {
			tags = append(tags, m.ServiceTags[i].Tag)
		}
	}
	return tags
}

// Classify annotates each node with a country (via Geo, falling back to
// name matching) and service tags, without renaming it. Renaming is a
// separate step (see Namer) so filtering can happen in between.
func Classify(nodes []node.Node, m *Maps) []node.Node {
	out := make([]node.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n
		text := firstNonEmptyStr(n.RawDisplayName, n.DisplayName)
		if entry := m.MatchCountry(text); entry != nil && (n.Geo == nil || n.Geo.CountryCode == "") {
			out[i].Geo = &node.Geo{CountryCode: entry.Code, CountryName: entry.Name}
		}
		out[i].Tags = append(append([]string{}, n.Tags...), m.MatchServiceTags(text)...)
	}
	return out
}

func firstNonEmptyStr(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Namer renders a node's final DisplayName from its classification,
// renumbering nodes by their position in the post-filter list passed to
// Rename so the emitted list reads "🇺🇸 US VMess 01", "🇺🇸 US Trojan 02",
// etc., per the template {country} {protocol} {tags} {number}.
type Namer struct {
	Maps *Maps
}

// Rename renumbers and renames every node in nodes, returning a new
// slice in the same order as the input. The number is a monotonic
// two-digit index within nodes, regardless of any number present in the
// original remark. RawDisplayName is left untouched here: the decoders
// set it to the source remark, and CorrectLocation fills it only while it
// is still empty, so it keeps the original name across renames.
func (nm *Namer) Rename(nodes []node.Node) []node.Node {
	out := make([]node.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].DisplayName = renderName(nm.Maps, n, i+1)
	}
	return out
}

func renderName(m *Maps, n node.Node, number int) string {
	country := countryOf(n)
	protoLabel := m.ProtocolLabels[n.Protocol]
	if protoLabel == "" {
		protoLabel = string(n.Protocol)
	}
	parts := []string{fmt.Sprintf("%s %s", FlagForCode(country), country), protoLabel}
	if len(n.Tags) > 0 {
		parts = append(parts, strings.Join(n.Tags, " "))
	}
	return fmt.Sprintf("%s %02d", strings.Join(parts, " "), number)
}

// FlagForCode renders the regional-indicator flag emoji for a two-letter
// ISO country code algorithmically, so it covers every code the IP
// Locator can return, not just the curated CountryMap entries. Unknown
// or malformed codes fall back to the generic white-flag glyph.
func FlagForCode(code string) string {
	code = strings.ToUpper(code)
	if len(code) != 2 {
		return "🏳"
	}
	runes := make([]rune, 0, 2)
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return "🏳"
		}
		runes = append(runes, 0x1F1E6+(c-'A'))
	}
	return string(runes)
}

// CorrectLocation applies the §4.7 flag-swap correction: it swaps the
// leading flag in the node's DisplayName for the one implied by corrected,
// preserves the pre-correction name under RawDisplayName (only on the
// first correction, so repeated corrections don't stack), and updates Geo.
// Used when the prober's optional location verification finds the
// advertised country disagrees with the one resolved from the node's IP.
func CorrectLocation(n node.Node, corrected node.Geo) node.Node {
	out := n
	if out.RawDisplayName == "" {
		out.RawDisplayName = out.DisplayName
	}
	out.DisplayName = swapLeadingFlag(out.DisplayName, FlagForCode(corrected.CountryCode))
	out.Geo = &corrected
	return out
}

// swapLeadingFlag replaces a leading regional-indicator flag emoji (if
// any) with newFlag, otherwise prepends it.
func swapLeadingFlag(name, newFlag string) string {
	runes := []rune(name)
	if len(runes) >= 2 && isRegionalIndicator(runes[0]) && isRegionalIndicator(runes[1]) {
		rest := strings.TrimLeft(string(runes[2:]), " ")
		return newFlag + " " + rest
	}
	return newFlag + " " + name
}

func isRegionalIndicator(r rune) bool {
	return r >= 0x1F1E6 && r <= 0x1F1FF
}

// SortByCountry orders nodes by country code then protocol. The
// Orchestrator sorts with it before renumbering, so the nodes of one
// country sit together in the numbered list.
func SortByCountry(nodes []node.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		ci, cj := countryOf(nodes[i]), countryOf(nodes[j])
		if ci != cj {
			return ci < cj
		}
		return nodes[i].Protocol < nodes[j].Protocol
	})
}

func countryOf(n node.Node) string {
	if n.Geo != nil {
		return n.Geo.CountryCode
	}
	return "XX"
}
