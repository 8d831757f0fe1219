package emit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyson-dev/subsync/internal/group"
	"github.com/kyson-dev/subsync/internal/node"
)

func sampleGroups() ([]group.Group, []node.Node) {
	nodes := []node.Node{
		{
			Protocol:    node.VMess,
			Server:      "1.2.3.4",
			Port:        443,
			DisplayName: "US 01",
			Raw:         "vmess://eyJ2IjoiMiJ9",
			Settings:    node.Settings{UUID: "uuid", Encryption: "auto", Transport: "tcp"},
		},
		{
			Protocol:    node.Trojan,
			Server:      "5.6.7.8",
			Port:        443,
			DisplayName: "US 02",
			Settings:    node.Settings{Password: "pw", TLS: true, SNI: "example.com"},
		},
	}
	groups := []group.Group{
		{Name: "United States", Nodes: nodes, URLTestURL: group.DefaultURLTestURL, Interval: group.DefaultInterval, Tolerance: group.DefaultTolerance},
	}
	return groups, nodes
}

func TestWriteGroupURIListsNoTrailingBlankLine(t *testing.T) {
	dir := t.TempDir()
	groups, _ := sampleGroups()
	require.NoError(t, WriteGroupURILists(dir, groups))

	data, err := os.ReadFile(filepath.Join(dir, "groups", "United States.txt"))
	require.NoError(t, err)
	content := string(data)
	assert.NotEmpty(t, content)
	assert.NotEqual(t, byte('\n'), content[len(content)-1])
}

func TestWriteMihomoProducesValidYAML(t *testing.T) {
	dir := t.TempDir()
	groups, _ := sampleGroups()
	path := filepath.Join(dir, "mihomo.yaml")
	require.NoError(t, WriteMihomo(path, groups))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "proxies:")
}

func TestWriteSurgeSkipsUnsupportedProtocols(t *testing.T) {
	dir := t.TempDir()
	groups, _ := sampleGroups()
	groups[0].Nodes = append(groups[0].Nodes, node.Node{
		Protocol:    node.VLess,
		Server:      "9.9.9.9",
		Port:        443,
		DisplayName: "US 03",
		Settings:    node.Settings{UUID: "uuid"},
	})
	path := filepath.Join(dir, "surge.conf")
	require.NoError(t, WriteSurge(path, groups))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vmess")
	assert.NotContains(t, string(data), "US 03")
}

func TestBuildSingBoxOptionsAssignsUniqueTags(t *testing.T) {
	groups, nodes := sampleGroups()
	opts, err := BuildSingBoxOptions(groups, nodes)
	require.NoError(t, err)
	assert.True(t, len(opts.Outbounds) >= len(nodes))
	seen := make(map[string]bool, len(opts.Outbounds))
	for _, o := range opts.Outbounds {
		assert.False(t, seen[o.Tag], "duplicate outbound tag %q", o.Tag)
		seen[o.Tag] = true
	}
}
