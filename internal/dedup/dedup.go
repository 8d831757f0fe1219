// Package dedup removes duplicate proxy nodes by fingerprint, grounded on
// SajadMRjl-find-me-internet's internal/dedup/filter.go key-set approach
// and the teacher's outboundHash content-hash idiom (here applied to the
// canonical node.Node rather than a sing-box outbound map).
package dedup

import "github.com/kyson-dev/subsync/internal/node"

// Options configures tie-breaking between nodes that share a fingerprint.
type Options struct {
	// PreferLowerLatency keeps the probed node with the lower latency when
	// two nodes collide and both already carry a Probe result.
	PreferLowerLatency bool
}

// Dedup returns nodes with duplicates (by node.Key()) removed. The first
// occurrence's position is preserved in the output (insertion order), but
// its content may be replaced by a later duplicate if the later one wins
// the latency tie-break. Calling Dedup twice on its own output is a no-op.
func Dedup(nodes []node.Node, opts Options) []node.Node {
	order := make([]node.FingerprintKey, 0, len(nodes))
	best := make(map[node.FingerprintKey]node.Node, len(nodes))

	for _, n := range nodes {
		key := n.Key()
		existing, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = n
			continue
		}
		if opts.PreferLowerLatency && shouldReplace(existing, n) {
			best[key] = n
		}
	}

	out := make([]node.Node, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func shouldReplace(existing, candidate node.Node) bool {
	if candidate.ProbeResult == nil {
		return false
	}
	if existing.ProbeResult == nil {
		return false
	}
	if existing.ProbeResult.Status != node.StatusUp && candidate.ProbeResult.Status == node.StatusUp {
		return true
	}
	if existing.ProbeResult.Status == node.StatusUp && candidate.ProbeResult.Status == node.StatusUp {
		return candidate.ProbeResult.LatencyMs < existing.ProbeResult.LatencyMs
	}
	return false
}
