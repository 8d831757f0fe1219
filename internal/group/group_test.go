package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyson-dev/subsync/internal/node"
)

func TestBuildPutsUnlistedCountriesInOthers(t *testing.T) {
	nodes := []node.Node{
		{Server: "a", Port: 1, Protocol: node.VMess, Geo: &node.Geo{CountryCode: "US", CountryName: "United States"}},
		{Server: "b", Port: 2, Protocol: node.VMess, Geo: &node.Geo{CountryCode: "ZZ", CountryName: "Nowhere"}},
	}
	groups := Build(Context{
		Nodes:           nodes,
		RegionShortlist: []string{"US"},
		OthersName:      "Others",
	})
	require.Len(t, groups, 2)
	names := map[string]int{}
	for _, g := range groups {
		names[g.Name] = len(g.Nodes)
	}
	assert.Equal(t, 1, names["🇺🇸 United States节点"])
	assert.Equal(t, 1, names["Others"])
}

func TestMetaGroupUnionsComponents(t *testing.T) {
	nodes := []node.Node{
		{Server: "a", Port: 1, Protocol: node.VMess, Geo: &node.Geo{CountryCode: "US", CountryName: "United States"}, Tags: []string{"Netflix"}},
		{Server: "b", Port: 2, Protocol: node.VMess, Geo: &node.Geo{CountryCode: "JP", CountryName: "Japan"}},
	}
	groups := Build(Context{
		Nodes:           nodes,
		RegionShortlist: []string{"US", "JP"},
		ServiceTags:     []string{"Netflix"},
		MetaGroups: []MetaGroup{
			{Name: "All Streaming", Components: []string{"Netflix", "🇺🇸 United States节点"}},
		},
	})
	var meta Group
	for _, g := range groups {
		if g.Name == "All Streaming" {
			meta = g
		}
	}
	assert.Len(t, meta.Nodes, 1) // both components reference the same US/Netflix node
}
