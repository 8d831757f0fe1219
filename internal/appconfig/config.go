// Package appconfig loads the pipeline's runtime configuration from a
// .env file plus environment variables, grounded on
// SajadMRjl-find-me-internet's internal/config/config.go, which layers
// joho/godotenv over kelseyhightower/envconfig the same way.
package appconfig

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the complete set of environment-driven settings a run needs.
type Config struct {
	HomeDir string `envconfig:"SUBSYNC_HOME"`

	FetchMaxRetries     int    `envconfig:"FETCH_MAX_RETRIES" default:"3"`
	FetchTimeoutSeconds int    `envconfig:"FETCH_TIMEOUT_SECONDS" default:"15"`
	EgressProxyURL      string `envconfig:"EGRESS_PROXY_URL"`

	ProbeWorkers          int   `envconfig:"PROBE_WORKERS" default:"32"`
	ProbeTimeoutSeconds   int   `envconfig:"PROBE_TIMEOUT_SECONDS" default:"5"`
	ProbeHighLatencyFloor int64 `envconfig:"PROBE_HIGH_LATENCY_FLOOR_MS" default:"1000"`
	ProbeVerifyLocation   bool  `envconfig:"PROBE_VERIFY_LOCATION" default:"false"`

	// IP_API_URL/IP_API_KEY configure the primary IP Locator provider;
	// GEO_IPINFO_TOKEN is kept alongside it for the ipinfo.io provider in
	// the pool, which carries its own separate token.
	IPAPIURL       string `envconfig:"IP_API_URL"`
	IPAPIKey       string `envconfig:"IP_API_KEY"`
	GeoIPInfoToken string `envconfig:"GEO_IPINFO_TOKEN"`

	MaxNodesPerGroup     int      `envconfig:"MAX_NODES_PER_GROUP" default:"0"`
	ExcludeJurisdictions []string `envconfig:"EXCLUDE_JURISDICTIONS" default:"CN"`
	EgressJurisdiction   string   `envconfig:"EGRESS_JURISDICTION" default:"CN"`
	RegionShortlist      []string `envconfig:"REGION_SHORTLIST" default:"US,HK,TW,JP,SG,KR,GB,DE"`

	BarkURL             string  `envconfig:"BARK_URL"`
	BarkTitle           string  `envconfig:"BARK_TITLE" default:"subsync"`
	BarkPushesPerMinute float64 `envconfig:"BARK_PUSHES_PER_MINUTE" default:"1"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPListenAddr string `envconfig:"HTTP_LISTEN_ADDR" default:":8080"`
	GHProxyBase    string `envconfig:"GH_PROXY_BASE"`
}

// Load reads envFile (if present; a missing .env is not an error) and
// then overlays process environment variables into a Config.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("appconfig: loading %s: %w", envFile, err)
		}
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("appconfig: processing environment: %w", err)
	}
	return cfg, nil
}
