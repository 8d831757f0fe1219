package geolocate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kyson-dev/subsync/internal/node"
)

// TTL is how long a cached geolocation answer remains valid.
const TTL = 7 * 24 * time.Hour

// Cache is a two-level cache: an in-memory map backed by a disk directory
// sharded by the IP's first IPv4 octet, so a full-table load never reads
// more than one shard file per lookup. Grounded on zeroc00I-Zgeo's
// mutex-guarded cache discipline, generalized to remote-provider answers.
type Cache struct {
	mu      sync.Mutex
	mem     map[string]node.Geo
	dir     string
	loaded  map[string]bool // shard keys already loaded from disk
	nowFunc func() time.Time
}

// NewCache creates a Cache persisting shard files under dir. An empty dir
// disables disk persistence (memory-only).
func NewCache(dir string) *Cache {
	return &Cache{
		mem:     make(map[string]node.Geo),
		dir:     dir,
		loaded:  make(map[string]bool),
		nowFunc: time.Now,
	}
}

func shardKey(ip string) string {
	octet := strings.SplitN(ip, ".", 2)[0]
	if octet == "" {
		octet = "other"
	}
	return octet
}

// Get returns a non-expired cached answer for ip.
func (c *Cache) Get(ip string) (node.Geo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureShardLoadedLocked(shardKey(ip))
	geo, ok := c.mem[ip]
	if !ok {
		return node.Geo{}, false
	}
	if c.nowFunc().Sub(geo.ResolvedAt) > TTL {
		delete(c.mem, ip)
		return node.Geo{}, false
	}
	return geo, true
}

// Put stores geo for ip and persists the owning shard to disk.
func (c *Cache) Put(ip string, geo node.Geo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[ip] = geo
	c.persistShardLocked(shardKey(ip))
}

func (c *Cache) shardPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *Cache) ensureShardLoadedLocked(key string) {
	if c.dir == "" || c.loaded[key] {
		return
	}
	c.loaded[key] = true
	data, err := os.ReadFile(c.shardPath(key))
	if err != nil {
		return
	}
	var shard map[string]node.Geo
	if err := json.Unmarshal(data, &shard); err != nil {
		return
	}
	for ip, geo := range shard {
		if shardKey(ip) == key {
			if _, exists := c.mem[ip]; !exists {
				c.mem[ip] = geo
			}
		}
	}
}

func (c *Cache) persistShardLocked(key string) {
	if c.dir == "" {
		return
	}
	shard := make(map[string]node.Geo)
	for ip, geo := range c.mem {
		if shardKey(ip) == key {
			shard[ip] = geo
		}
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return
	}
	data, err := json.MarshalIndent(shard, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(c.shardPath(key), data, 0o644)
}
