package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kyson-dev/subsync/internal/node"
)

func TestClassifyMatchesCountryFromName(t *testing.T) {
	m := NewMaps(DefaultCountries, DefaultServiceTags)
	nodes := []node.Node{
		{RawDisplayName: "🇺🇸 US Node 01 Netflix", Protocol: node.VMess},
	}
	out := Classify(nodes, m)
	assert := assert.New(t)
	assert.Equal("US", out[0].Geo.CountryCode)
	assert.Contains(out[0].Tags, "Netflix")
}

func TestNamerNumbersWithinPostFilterList(t *testing.T) {
	m := NewMaps(DefaultCountries, DefaultServiceTags)
	namer := &Namer{Maps: m}
	nodes := []node.Node{
		{Protocol: node.VMess, Geo: &node.Geo{CountryCode: "US", CountryName: "United States"}},
		{Protocol: node.VMess, Geo: &node.Geo{CountryCode: "US", CountryName: "United States"}},
		{Protocol: node.Trojan, Geo: &node.Geo{CountryCode: "US", CountryName: "United States"}},
	}
	out := namer.Rename(nodes)
	assert.Equal(t, "🇺🇸 US VMess 01", out[0].DisplayName)
	assert.Equal(t, "🇺🇸 US VMess 02", out[1].DisplayName)
	assert.Equal(t, "🇺🇸 US Trojan 03", out[2].DisplayName)
	for _, n := range out {
		assert.Regexp(t, ` 0[1-9]$`, n.DisplayName)
	}
}

func TestCorrectLocationSwapsFlagAndPreservesRaw(t *testing.T) {
	n := node.Node{DisplayName: "🇺🇸 US VMess 01", Geo: &node.Geo{CountryCode: "US"}}
	corrected := CorrectLocation(n, node.Geo{CountryCode: "JP", CountryName: "Japan"})
	assert.Equal(t, "🇯🇵 US VMess 01", corrected.DisplayName)
	assert.Equal(t, "🇺🇸 US VMess 01", corrected.RawDisplayName)
	assert.Equal(t, "JP", corrected.Geo.CountryCode)
}
