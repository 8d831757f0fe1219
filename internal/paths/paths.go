// Package paths resolves the on-disk layout this pipeline reads sources
// from and writes output to, adapted from the teacher's
// internal/env.Paths/Init resolution-precedence idiom (flag > env var >
// built-in default), with the teacher's multi-instance daemon registry
// and active-instance detection dropped: a single-pass sync run has no
// notion of "the currently running instance" the way a persistent
// sing-box daemon does.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// EnvHomeVar is the environment variable that overrides the default home
// directory, mirroring the teacher's MINIBOX_HOME convention.
const EnvHomeVar = "SUBSYNC_HOME"

// Paths is the resolved set of directories and files this pipeline uses.
type Paths struct {
	HomeDir       string
	SourcesFile   string // list of subscription source URLs
	CacheDir      string // egress-proxy cache (egress.json) and GeoCacheDir's parent
	GeoCacheDir   string // IP Locator disk cache, sharded by octet
	OutputDir     string // emitted groups/ + client configs
	StateFile     string // persisted SyncStatus
	LockFile      string // run-lock, guards against overlapping orchestrator runs
}

var (
	once     sync.Once
	resolved Paths
	initErr  error
)

// Resolve computes Paths once per process, honoring flagHome (highest
// priority), then EnvHomeVar, then the "~/.subsync" fallback. Subsequent
// calls return the first call's result regardless of arguments, matching
// the teacher's sync.Once-guarded singleton.
func Resolve(flagHome string) (Paths, error) {
	once.Do(func() {
		resolved, initErr = build(flagHome)
	})
	return resolved, initErr
}

// ResetForTest clears the memoized Paths so a test can call Resolve
// again with different inputs. Production code never calls this.
func ResetForTest() {
	once = sync.Once{}
	resolved = Paths{}
	initErr = nil
}

func build(flagHome string) (Paths, error) {
	home := flagHome
	if home == "" {
		home = os.Getenv(EnvHomeVar)
	}
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("paths: resolving user home: %w", err)
		}
		home = filepath.Join(dir, ".subsync")
	}

	p := Paths{
		HomeDir:     home,
		SourcesFile: filepath.Join(home, "sources.json"),
		CacheDir:    filepath.Join(home, "cache"),
		GeoCacheDir: filepath.Join(home, "cache", "geo"),
		OutputDir:   filepath.Join(home, "output"),
		StateFile:   filepath.Join(home, "state.json"),
		LockFile:    filepath.Join(home, "run.lock"),
	}
	for _, dir := range []string{p.HomeDir, p.CacheDir, p.GeoCacheDir, p.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Paths{}, fmt.Errorf("paths: creating %s: %w", dir, err)
		}
	}
	return p, nil
}
