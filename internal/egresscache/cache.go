// Package egresscache persists the flat list of proxy URLs the fetcher
// may use as an egress proxy when a source starts throttling direct
// requests. Grounded on the teacher's internal/subscription/storage.go
// JSON-file read/write idiom.
package egresscache

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Cache is the on-disk egress-proxy candidate list.
type Cache struct {
	Proxies []string `json:"proxies"`
}

// Load reads the cache file at path. A missing file is not an error; it
// returns an empty Cache.
func Load(path string) (Cache, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Cache{}, nil
	}
	if err != nil {
		return Cache{}, err
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return Cache{}, err
	}
	return c, nil
}

// Save writes c to path, creating parent directories as needed.
func Save(path string, c Cache) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Merge folds newly-harvested candidates into c, deduplicating while
// preserving the existing order and appending newcomers at the tail.
func (c Cache) Merge(candidates []string) Cache {
	seen := make(map[string]bool, len(c.Proxies))
	for _, p := range c.Proxies {
		seen[p] = true
	}
	out := append([]string{}, c.Proxies...)
	for _, cand := range candidates {
		if cand == "" || seen[cand] {
			continue
		}
		seen[cand] = true
		out = append(out, cand)
	}
	return Cache{Proxies: out}
}
