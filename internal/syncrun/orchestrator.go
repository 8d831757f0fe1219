// Package syncrun implements the Orchestrator: the single entrypoint
// that runs fetch, parse, dedup, classify, probe, filter, group and emit
// in sequence and persists a summary of what happened. Grounded on the
// teacher's Daemon.Serve/cleanup lifecycle shape (internal/core/daemon,
// since deleted — see DESIGN.md) generalized from "keep a sing-box
// process alive" to "run one aggregation pass start to finish."
package syncrun

import (
	"context"
	"fmt"
	"time"

	"github.com/kyson-dev/subsync/internal/appconfig"
	"github.com/kyson-dev/subsync/internal/applog"
	"github.com/kyson-dev/subsync/internal/classify"
	"github.com/kyson-dev/subsync/internal/dedup"
	"github.com/kyson-dev/subsync/internal/egresscache"
	"github.com/kyson-dev/subsync/internal/emit"
	"github.com/kyson-dev/subsync/internal/fetcher"
	"github.com/kyson-dev/subsync/internal/geolocate"
	"github.com/kyson-dev/subsync/internal/group"
	"github.com/kyson-dev/subsync/internal/node"
	"github.com/kyson-dev/subsync/internal/parser"
	"github.com/kyson-dev/subsync/internal/paths"
	"github.com/kyson-dev/subsync/internal/prober"
	"github.com/kyson-dev/subsync/internal/syncevent"
	"github.com/kyson-dev/subsync/internal/syncstate"
)

// Orchestrator runs one complete sync pass.
type Orchestrator struct {
	Paths  paths.Paths
	Config appconfig.Config
	Log    *applog.Logger
	Sink   syncevent.Sink
	Maps   *classify.Maps
	Locator *geolocate.Locator
}

// New builds an Orchestrator from already-resolved dependencies. Every
// dependency is an explicit field rather than a package-level default so
// a caller (tests included) can substitute fakes freely.
func New(p paths.Paths, cfg appconfig.Config, log *applog.Logger, sink syncevent.Sink, maps *classify.Maps, locator *geolocate.Locator) *Orchestrator {
	if sink == nil {
		sink = syncevent.NopSink{}
	}
	return &Orchestrator{Paths: p, Config: cfg, Log: log, Sink: sink, Maps: maps, Locator: locator}
}

// Run executes the full pipeline: fetch/parse every enabled source,
// dedup, classify, probe, filter, re-classify and renumber, harvest
// egress-proxy candidates, exclude jurisdictions, group, emit artifacts,
// and persist a SyncStatus. It returns the final status even when some
// sources failed, since the pipeline is progress-preserving — only a
// failure to load the source list or to write the artifacts returns a
// non-nil error.
func (o *Orchestrator) Run(ctx context.Context) (syncstate.Status, error) {
	startedAt := time.Now()
	o.Sink.Emit(syncevent.Event{Type: syncevent.TypeRunStarted, Timestamp: startedAt})

	// Step 1: load config/egress cache.
	egressCachePath := o.Paths.CacheDir + "/egress.json"
	egressCache, err := egresscache.Load(egressCachePath)
	if err != nil {
		o.Log.Warn("failed to load egress cache, continuing without it", "error", err)
	}

	// Step 2: load prior SyncStatus so the completion event can report a
	// node-count delta against the last run.
	prevStatus, _ := syncstate.Load(o.Paths.StateFile)

	// Step 3: fetch+parse per source.
	sources, err := LoadSources(o.Paths.SourcesFile)
	if err != nil {
		return syncstate.Status{}, fmt.Errorf("syncrun: loading sources: %w", err)
	}

	fetchOpts := fetcher.DefaultOptions()
	if o.Config.FetchMaxRetries > 0 {
		fetchOpts.MaxRetries = o.Config.FetchMaxRetries
	}
	if o.Config.FetchTimeoutSeconds > 0 {
		fetchOpts.PerAttemptTimeout = time.Duration(o.Config.FetchTimeoutSeconds) * time.Second
	}
	fetchOpts.EgressProxies = egressCache.Proxies
	if o.Config.EgressProxyURL != "" {
		fetchOpts.EgressProxies = append([]string{o.Config.EgressProxyURL}, fetchOpts.EgressProxies...)
	}

	fetchStartedAt := time.Now()
	var allNodes []node.Node
	var sourceStatuses []syncstate.SourceStatus
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		res, ferr := fetcher.Fetch(ctx, src.URL, fetchOpts)
		status := syncstate.SourceStatus{URL: src.URL, FetchedAt: time.Now()}
		if ferr != nil {
			status.Error = ferr.Error()
			sourceStatuses = append(sourceStatuses, status)
			o.Sink.Emit(syncevent.Event{Type: syncevent.TypeSourceFailed, Message: src.URL, Timestamp: time.Now()})
			continue
		}
		nodes, perr := parser.ParseAuto(res.Body)
		if perr != nil {
			status.Error = perr.Error()
			sourceStatuses = append(sourceStatuses, status)
			continue
		}
		for i := range nodes {
			nodes[i].SourceTag = src.Tag
		}
		status.NodeCount = len(nodes)
		sourceStatuses = append(sourceStatuses, status)
		allNodes = append(allNodes, nodes...)
		o.Sink.Emit(syncevent.Event{Type: syncevent.TypeSourceFetched, Message: src.URL, Timestamp: time.Now()})
	}
	fetchDuration := time.Since(fetchStartedAt)

	// Step 4: dedup.
	allNodes = dedup.Dedup(allNodes, dedup.Options{PreferLowerLatency: true})

	// Step 5: classify pass 1 — assigns Geo-from-name-matching and
	// service tags before the prober runs, so down-stream steps can
	// already group by country.
	if o.Maps != nil {
		allNodes = classify.Classify(allNodes, o.Maps)
	}

	// Step 5b: resolve any nodes still missing a Geo through the IP
	// Locator pool.
	if o.Locator != nil {
		for i := range allNodes {
			if allNodes[i].Geo != nil && allNodes[i].Geo.CountryCode != "" {
				continue
			}
			geo, lerr := o.Locator.Locate(ctx, allNodes[i].Server)
			if lerr != nil {
				continue
			}
			allNodes[i].Geo = &geo
		}
	}

	// Step 6: probe. o.Locator is a concrete *geolocate.Locator that may
	// itself be nil; passed directly as the prober.Locator interface it
	// would compare non-nil even when the pointer underneath is nil, so
	// it's only assigned to probeLocator when actually present.
	probeOpts := prober.DefaultOptions()
	if o.Config.ProbeWorkers > 0 {
		probeOpts.Workers = o.Config.ProbeWorkers
	}
	if o.Config.ProbeTimeoutSeconds > 0 {
		probeOpts.Timeout = time.Duration(o.Config.ProbeTimeoutSeconds) * time.Second
	}
	if o.Config.ProbeHighLatencyFloor > 0 {
		probeOpts.HighLatencyFloor = o.Config.ProbeHighLatencyFloor
	}
	probeOpts.VerifyLocation = o.Config.ProbeVerifyLocation
	var probeLocator prober.Locator
	if o.Locator != nil {
		probeLocator = o.Locator
	}
	probeStartedAt := time.Now()
	allNodes = prober.Probe(ctx, allNodes, probeOpts, probeLocator)
	probeDuration := time.Since(probeStartedAt)
	allNodes = applyLocationCorrections(allNodes)
	o.Sink.Emit(syncevent.Event{Type: syncevent.TypeProbeCompleted, Timestamp: time.Now()})

	// Step 7: filter by probe status/latency/maxNodes.
	alive := filterAlive(allNodes, o.Config.MaxNodesPerGroup)

	// Step 8: classify, renumber, and harvest egress-proxy candidates
	// against the full post-filter list — before jurisdiction exclusion,
	// so a node's country is settled by the time it's either excluded
	// from the emitted groups or offered up as an egress proxy.
	if o.Maps != nil {
		alive = classify.Classify(alive, o.Maps)
		classify.SortByCountry(alive)
		namer := &classify.Namer{Maps: o.Maps}
		alive = namer.Rename(alive)
	}
	candidates := harvestEgressCandidates(alive, o.Config.EgressJurisdiction)
	egressCache = egressCache.Merge(candidates)
	if err := egresscache.Save(egressCachePath, egressCache); err != nil {
		o.Log.Warn("failed to persist egress cache", "error", err)
	}

	// Step 9: exclude configured jurisdictions (default CN) from the set
	// that actually gets grouped and emitted.
	emitted := excludeJurisdictions(alive, o.Config.ExcludeJurisdictions)
	o.Sink.Emit(syncevent.Event{Type: syncevent.TypeFilterApplied, Timestamp: time.Now(), Fields: map[string]interface{}{"alive": len(emitted)}})

	groups := group.Build(group.Context{
		Nodes:           emitted,
		RegionShortlist: o.Config.RegionShortlist,
		ServiceTags:     serviceTagNames(o.Maps),
		OthersName:      "Others",
	})

	// Step 10: emit.
	emitStartedAt := time.Now()
	if err := emit.Run(o.Paths.OutputDir, groups, emitted, emit.DefaultTargets()); err != nil {
		o.Sink.Emit(syncevent.Event{Type: syncevent.TypeRunFailed, Message: err.Error(), Timestamp: time.Now()})
		return syncstate.Status{}, fmt.Errorf("syncrun: emitting artifacts: %w", err)
	}
	emitDuration := time.Since(emitStartedAt)
	o.Sink.Emit(syncevent.Event{Type: syncevent.TypeEmitCompleted, Timestamp: time.Now()})

	// Step 12: persist SyncStatus + emit completion event.
	finishedAt := time.Now()
	status := syncstate.Status{
		StartedAt:         startedAt,
		FinishedAt:        finishedAt,
		Sources:           sourceStatuses,
		TotalNodes:        len(allNodes),
		AliveNodes:        len(emitted),
		FinalNodeCount:    len(emitted),
		PreviousNodeCount: prevStatus.FinalNodeCount,
		Durations:         syncstate.Durations{Fetch: fetchDuration, Probe: probeDuration, Emit: emitDuration},
		GroupCounts:       groupCounts(groups),
		EgressProxies:     egressCache.Proxies,
	}
	if err := syncstate.Save(o.Paths.StateFile, status); err != nil {
		o.Log.Warn("failed to persist sync status", "error", err)
	}
	o.Sink.Emit(syncevent.Event{
		Type:      syncevent.TypeRunCompleted,
		Message:   fmt.Sprintf("%d alive nodes across %d groups", status.AliveNodes, len(groups)),
		Timestamp: finishedAt,
		Fields: map[string]interface{}{
			"nodeCount":         status.FinalNodeCount,
			"previousNodeCount": status.PreviousNodeCount,
			"durations":         status.Durations,
			"regionsCount":      len(o.Config.RegionShortlist),
			"protocolsCount":    protocolsCount(emitted),
		},
	})
	return status, nil
}

// applyLocationCorrections swaps the leading flag on any node whose probe
// flagged a mismatch between its cached Geo and its freshly-resolved one
// (§4.6 step 4 / §4.7).
func applyLocationCorrections(nodes []node.Node) []node.Node {
	for i, n := range nodes {
		if n.ProbeResult == nil || !n.ProbeResult.LocationMismatch || n.ProbeResult.ActualGeo == nil {
			continue
		}
		nodes[i] = classify.CorrectLocation(n, *n.ProbeResult.ActualGeo)
	}
	return nodes
}

func protocolsCount(nodes []node.Node) int {
	seen := make(map[node.Protocol]bool)
	for _, n := range nodes {
		seen[n.Protocol] = true
	}
	return len(seen)
}

func filterAlive(nodes []node.Node, maxPerGroup int) []node.Node {
	var out []node.Node
	for _, n := range nodes {
		if n.ProbeResult == nil || n.ProbeResult.Status != node.StatusUp {
			continue
		}
		out = append(out, n)
	}
	if maxPerGroup <= 0 {
		return out
	}
	counts := make(map[string]int)
	var capped []node.Node
	for _, n := range out {
		key := countryKey(n)
		if counts[key] >= maxPerGroup {
			continue
		}
		counts[key]++
		capped = append(capped, n)
	}
	return capped
}

func countryKey(n node.Node) string {
	if n.Geo != nil {
		return n.Geo.CountryCode
	}
	return "XX"
}

func excludeJurisdictions(nodes []node.Node, excluded []string) []node.Node {
	if len(excluded) == 0 {
		excluded = []string{"CN"}
	}
	blocked := make(map[string]bool, len(excluded))
	for _, code := range excluded {
		blocked[code] = true
	}
	var out []node.Node
	for _, n := range nodes {
		if n.Geo != nil && blocked[n.Geo.CountryCode] {
			continue
		}
		out = append(out, n)
	}
	return out
}

func serviceTagNames(m *classify.Maps) []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.ServiceTags))
	for _, s := range m.ServiceTags {
		names = append(names, s.Tag)
	}
	return names
}

func groupCounts(groups []group.Group) map[string]int {
	out := make(map[string]int, len(groups))
	for _, g := range groups {
		out[g.Name] = len(g.Nodes)
	}
	return out
}

// harvestEgressCandidates returns share URIs for every http/https/socks5
// node whose country matches jurisdiction (the egress cache is meant to
// source proxies that sit inside the jurisdiction being fetched from, not
// every reachable relay).
func harvestEgressCandidates(nodes []node.Node, jurisdiction string) []string {
	var out []string
	for _, n := range nodes {
		if n.Geo == nil || n.Geo.CountryCode != jurisdiction {
			continue
		}
		switch n.Protocol {
		case node.HTTP, node.HTTPS, node.SOCKS5:
		default:
			continue
		}
		scheme := string(n.Protocol)
		if n.Protocol == node.HTTPS {
			scheme = "https"
		}
		if n.Settings.Username != "" {
			out = append(out, fmt.Sprintf("%s://%s:%s@%s:%d", scheme, n.Settings.Username, n.Settings.Password, n.Server, n.Port))
			continue
		}
		out = append(out, fmt.Sprintf("%s://%s:%d", scheme, n.Server, n.Port))
	}
	return out
}
