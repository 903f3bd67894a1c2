// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/venuecache/internal/config"
	xglog "github.com/ManuGH/venuecache/internal/log"
	"github.com/ManuGH/venuecache/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "venuecache",
		Short:         "Venue catalog and image cache",
		Long:          "venuecache keeps a conditionally refreshed venue catalog on disk and serves venues and scaled venue images.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (YAML)")

	root.AddCommand(
		newServeCmd(opts),
		newVenuesCmd(opts),
		newImageCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// loadConfig resolves the configuration and reconfigures the logger from it.
// Without --config, ${VENUECACHE_DATA}/config.yaml is used when present.
func loadConfig(opts *rootOptions) (config.AppConfig, error) {
	cfg, err := config.NewLoader(configPath(opts), version.Version).Load()
	if err != nil {
		return cfg, err
	}
	configureLogger(cfg)
	return cfg, nil
}

func configPath(opts *rootOptions) string {
	path := strings.TrimSpace(opts.configPath)
	if path == "" {
		path = resolveDefaultConfigPath()
	}
	return path
}

func configureLogger(cfg config.AppConfig) {
	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Output:  os.Stderr,
		Service: "venuecache",
		Version: version.Version,
	})
}

func resolveDefaultConfigPath() string {
	dataDir := strings.TrimSpace(os.Getenv("VENUECACHE_DATA"))
	if dataDir == "" {
		dataDir = config.DefaultDataDir
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}
