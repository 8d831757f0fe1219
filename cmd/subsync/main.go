// Command subsync fetches, dedups, probes, classifies and emits proxy
// subscriptions into per-client configs. Grounded on the teacher's
// cobra-based command tree (cmd/minibox/main.go, since rewritten for
// this domain's three subcommands rather than a daemon's start/stop/status).
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/kyson-dev/subsync/internal/appconfig"
	"github.com/kyson-dev/subsync/internal/applog"
	"github.com/kyson-dev/subsync/internal/classify"
	"github.com/kyson-dev/subsync/internal/geolocate"
	"github.com/kyson-dev/subsync/internal/httpapi"
	"github.com/kyson-dev/subsync/internal/paths"
	"github.com/kyson-dev/subsync/internal/syncevent"
	"github.com/kyson-dev/subsync/internal/syncrun"
)

// buildVersion is overridden at release build time via -ldflags.
var buildVersion = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var homeFlag, envFlag string

	root := &cobra.Command{
		Use:   "subsync",
		Short: "Aggregate, probe and re-emit proxy subscriptions",
	}
	root.PersistentFlags().StringVar(&homeFlag, "home", "", "override the data directory (default ~/.subsync)")
	root.PersistentFlags().StringVar(&envFlag, "env", ".env", "path to an optional .env file")

	root.AddCommand(newSyncCmd(&homeFlag, &envFlag))
	root.AddCommand(newServeCmd(&homeFlag, &envFlag))
	root.AddCommand(newVersionCmd())
	return root
}

func setup(homeFlag, envFlag string) (paths.Paths, appconfig.Config, *applog.Logger, error) {
	cfg, err := appconfig.Load(envFlag)
	if err != nil {
		return paths.Paths{}, appconfig.Config{}, applog.Default(), err
	}
	log := applog.NewText(os.Stderr, applog.LevelFromString(cfg.LogLevel))
	home := homeFlag
	if home == "" {
		home = cfg.HomeDir
	}
	p, err := paths.Resolve(home)
	if err != nil {
		return paths.Paths{}, appconfig.Config{}, log, err
	}
	return p, cfg, log, nil
}

func newSyncCmd(homeFlag, envFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one fetch/probe/emit pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, log, err := setup(*homeFlag, *envFlag)
			if err != nil {
				return err
			}

			lock, err := paths.Acquire(p.LockFile)
			if err != nil {
				return err
			}
			defer lock.Release()

			maps := classify.NewMaps(classify.DefaultCountries, classify.DefaultServiceTags)
			locator := geolocate.NewLocator(geolocate.DefaultProviders(cfg.IPAPIURL, cfg.IPAPIKey, cfg.GeoIPInfoToken), geolocate.NewCache(p.GeoCacheDir), nil)

			var sink syncevent.Sink = syncevent.NopSink{}
			if cfg.BarkURL != "" {
				sink = syncevent.NewBarkSink(cfg.BarkURL, cfg.BarkTitle, cfg.BarkPushesPerMinute, 1)
			}

			orch := syncrun.New(p, cfg, log, sink, maps, locator)
			status, err := orch.Run(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("sync complete", "total_nodes", status.TotalNodes, "alive_nodes", status.AliveNodes)
			return nil
		},
	}
}

func newServeCmd(homeFlag, envFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve emitted artifacts and status over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, log, err := setup(*homeFlag, *envFlag)
			if err != nil {
				return err
			}
			srv := httpapi.NewServer(p, log)
			srv.GHProxyBase = cfg.GHProxyBase
			log.Info("serving", "addr", cfg.HTTPListenAddr)
			return http.ListenAndServe(cfg.HTTPListenAddr, srv.Handler())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(buildVersion)
			return nil
		},
	}
}
