// Package geolocate resolves a node's IP to country/city/org metadata
// through a pool of remote HTTP providers, round-robining past outages
// and rate limits. Grounded on the teacher's provider-table-plus-status
// shape (internal/config tables) and zeroc00I-Zgeo's mutex-guarded cache
// discipline, but deliberately diverges from SajadMRjl-find-me-internet's
// local geoip2-golang mmdb lookup: the spec calls for a pool of remote,
// declarative HTTP providers rather than a bundled database.
package geolocate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kyson-dev/subsync/internal/node"
)

// Status is a provider's current availability.
type Status string

const (
	StatusReady   Status = "ready"
	StatusLimited Status = "limited"
	StatusNoKey   Status = "no_key"
	StatusFailed  Status = "failed"
)

// Provider is a declarative remote geolocation endpoint.
type Provider struct {
	Name               string
	URLTemplate        string // "%s" is replaced with the IP
	RequiresKey        bool
	APIKey             string
	RateLimitPerMinute int
	Parser             func([]byte) (node.Geo, error)

	mu           sync.Mutex
	status       Status
	windowStart  time.Time
	windowCount  int
	cooldownUntil time.Time
}

func (p *Provider) effectiveStatus(now time.Time) Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RequiresKey && p.APIKey == "" {
		return StatusNoKey
	}
	if !p.cooldownUntil.IsZero() && now.Before(p.cooldownUntil) {
		return StatusFailed
	}
	if p.RateLimitPerMinute > 0 {
		if now.Sub(p.windowStart) > time.Minute {
			p.windowStart = now
			p.windowCount = 0
		}
		if p.windowCount >= p.RateLimitPerMinute {
			return StatusLimited
		}
	}
	return StatusReady
}

func (p *Provider) recordCall(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if now.Sub(p.windowStart) > time.Minute {
		p.windowStart = now
		p.windowCount = 0
	}
	p.windowCount++
}

func (p *Provider) recordFailure(now time.Time, cooldown time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cooldownUntil = now.Add(cooldown)
}

func (p *Provider) url(ip string) string {
	return fmt.Sprintf(p.URLTemplate, ip)
}

// Locator round-robins lookup requests across a provider pool, serving
// cached answers when available.
type Locator struct {
	providers []*Provider
	cache     *Cache
	client    *http.Client
	mu        sync.Mutex
	cursor    int
	now       func() time.Time
	failureCooldown time.Duration
}

// NewLocator builds a Locator over providers, backed by cache (see
// NewCache). A nil *http.Client falls back to a 10s-timeout default.
func NewLocator(providers []*Provider, cache *Cache, client *http.Client) *Locator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Locator{
		providers:       providers,
		cache:           cache,
		client:          client,
		now:             time.Now,
		failureCooldown: 10 * time.Minute,
	}
}

// Locate resolves ip, preferring the memory/disk cache, then trying each
// ready provider in round-robin order until one succeeds.
func (l *Locator) Locate(ctx context.Context, ip string) (node.Geo, error) {
	if geo, ok := l.cache.Get(ip); ok {
		return geo, nil
	}

	now := l.now()
	n := len(l.providers)
	if n == 0 {
		return node.Geo{}, fmt.Errorf("geolocate: no providers configured")
	}

	l.mu.Lock()
	start := l.cursor
	l.cursor = (l.cursor + 1) % n
	l.mu.Unlock()

	var lastErr error
	for i := 0; i < n; i++ {
		p := l.providers[(start+i)%n]
		if p.effectiveStatus(now) != StatusReady {
			continue
		}
		geo, err := l.call(ctx, p, ip)
		if err != nil {
			p.recordFailure(now, l.failureCooldown)
			lastErr = err
			continue
		}
		geo.ResolvedAt = now
		l.cache.Put(ip, geo)
		return geo, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("geolocate: no provider available for %s", ip)
	}
	return node.Geo{}, lastErr
}

func (l *Locator) call(ctx context.Context, p *Provider, ip string) (node.Geo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url(ip), nil)
	if err != nil {
		return node.Geo{}, err
	}
	p.recordCall(l.now())
	resp, err := l.client.Do(req)
	if err != nil {
		return node.Geo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return node.Geo{}, fmt.Errorf("geolocate: %s rate limited", p.Name)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return node.Geo{}, fmt.Errorf("geolocate: %s returned status %d", p.Name, resp.StatusCode)
	}
	var body []byte
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		k, rerr := resp.Body.Read(chunk)
		if k > 0 {
			buf = append(buf, chunk[:k]...)
		}
		if rerr != nil {
			break
		}
	}
	body = buf
	return p.Parser(body)
}

// Statuses reports each provider's current status.
func (l *Locator) Statuses() map[string]Status {
	now := l.now()
	out := make(map[string]Status, len(l.providers))
	for _, p := range l.providers {
		out[p.Name] = p.effectiveStatus(now)
	}
	return out
}

// decodeJSON is a small helper shared by provider parsers.
func decodeJSON(body []byte, v interface{}) error {
	return json.NewDecoder(strings.NewReader(string(body))).Decode(v)
}
