package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kyson-dev/subsync/internal/node"
)

func mkNode(server string, port int, latency int64) node.Node {
	return node.Node{
		Protocol: node.VMess,
		Server:   server,
		Port:     port,
		ProbeResult: &node.Probe{
			Status:    node.StatusUp,
			LatencyMs: latency,
		},
	}
}

func TestDedupRemovesDuplicatesPreservingOrder(t *testing.T) {
	nodes := []node.Node{
		mkNode("a.com", 443, 100),
		mkNode("b.com", 443, 50),
		mkNode("a.com", 443, 10),
	}
	out := Dedup(nodes, Options{PreferLowerLatency: true})
	assert := assert.New(t)
	assert.Len(out, 2)
	assert.Equal("a.com", out[0].Server)
	assert.Equal(int64(10), out[0].ProbeResult.LatencyMs)
	assert.Equal("b.com", out[1].Server)
}

func TestDedupIsIdempotent(t *testing.T) {
	nodes := []node.Node{mkNode("a.com", 443, 100), mkNode("b.com", 443, 50)}
	once := Dedup(nodes, Options{PreferLowerLatency: true})
	twice := Dedup(once, Options{PreferLowerLatency: true})
	assert.Equal(t, once, twice)
}
