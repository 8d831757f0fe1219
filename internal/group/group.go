// Package group arranges classified nodes into named groups: one per
// region, a catch-all "Others" group for countries outside the
// configured shortlist, one per recognized service tag, and declarative
// meta-groups that union other groups' membership — grounded on the
// teacher's ConfigBuilder/BuildContext pattern (internal/config/builder.go),
// generalized from sing-box outbound-selector assembly to named node
// groups.
package group

import (
	"sort"

	"github.com/kyson-dev/subsync/internal/classify"
	"github.com/kyson-dev/subsync/internal/node"
)

// Group is a named, ordered collection of nodes plus url-test settings
// the Emitter turns into a selector/urltest outbound pair.
type Group struct {
	Name        string
	Nodes       []node.Node
	URLTestURL  string
	Interval    string
	Tolerance   int
}

// The Default* url-test settings match the teacher's default health-check
// outbound configuration.
const (
	DefaultURLTestURL  = "http://www.gstatic.com/generate_204"
	DefaultInterval    = "300s"
	DefaultTolerance   = 150
)

// MetaGroup declares a group whose membership is the set union of the
// named component groups' nodes, deduplicated by fingerprint.
type MetaGroup struct {
	Name       string
	Components []string // names of groups (regional/service/Others) to union
}

// Context carries the inputs a Builder needs to assemble every group
// tier in one pass.
type Context struct {
	Nodes          []node.Node
	RegionShortlist []string // country codes that get their own regional group
	ServiceTags    []string  // service tags (in display order) that get their own group
	MetaGroups     []MetaGroup
	OthersName     string
}

// Build assembles regional groups, the Others catch-all, service groups,
// and meta-groups, in that order.
func Build(ctx Context) []Group {
	othersName := ctx.OthersName
	if othersName == "" {
		othersName = "Others"
	}

	shortlisted := make(map[string]bool, len(ctx.RegionShortlist))
	for _, code := range ctx.RegionShortlist {
		shortlisted[code] = true
	}

	regional := make(map[string][]node.Node)
	var others []node.Node
	for _, n := range ctx.Nodes {
		code := countryCode(n)
		if shortlisted[code] {
			regional[code] = append(regional[code], n)
		} else {
			others = append(others, n)
		}
	}

	var groups []Group
	for _, code := range ctx.RegionShortlist {
		groups = append(groups, newGroup(regionGroupName(code, ctx.Nodes), regional[code]))
	}
	if len(others) > 0 {
		groups = append(groups, newGroup(othersName, others))
	}

	for _, tag := range ctx.ServiceTags {
		var members []node.Node
		for _, n := range ctx.Nodes {
			if hasTag(n, tag) {
				members = append(members, n)
			}
		}
		if len(members) > 0 {
			groups = append(groups, newGroup(tag, members))
		}
	}

	byName := make(map[string]Group, len(groups))
	for _, g := range groups {
		byName[g.Name] = g
	}
	for _, mg := range ctx.MetaGroups {
		groups = append(groups, buildMetaGroup(mg, byName))
	}

	return groups
}

func newGroup(name string, nodes []node.Node) Group {
	return Group{
		Name:       name,
		Nodes:      nodes,
		URLTestURL: DefaultURLTestURL,
		Interval:   DefaultInterval,
		Tolerance:  DefaultTolerance,
	}
}

func buildMetaGroup(mg MetaGroup, byName map[string]Group) Group {
	seen := make(map[node.FingerprintKey]bool)
	var members []node.Node
	for _, compName := range mg.Components {
		comp, ok := byName[compName]
		if !ok {
			continue
		}
		for _, n := range comp.Nodes {
			key := n.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			members = append(members, n)
		}
	}
	return newGroup(mg.Name, members)
}

func countryCode(n node.Node) string {
	if n.Geo != nil && n.Geo.CountryCode != "" {
		return n.Geo.CountryCode
	}
	return "XX"
}

func hasTag(n node.Node, tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// regionGroupName renders "<flag> <country-name>节点" for a regional
// group, falling back to the bare code when no node carries a resolved
// country name.
func regionGroupName(code string, nodes []node.Node) string {
	name := code
	for _, n := range nodes {
		if n.Geo != nil && n.Geo.CountryCode == code && n.Geo.CountryName != "" {
			name = n.Geo.CountryName
			break
		}
	}
	return classify.FlagForCode(code) + " " + name + "节点"
}

// SortGroups returns groups in a stable, user-facing order: alphabetical
// by name, used when the Emitter lists groups for a proxy-groups stanza.
func SortGroups(groups []Group) []Group {
	out := append([]Group{}, groups...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
