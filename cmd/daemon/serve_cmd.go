package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ManuGH/venuecache/internal/config"
	"github.com/ManuGH/venuecache/internal/daemon"
	xglog "github.com/ManuGH/venuecache/internal/log"
	"github.com/ManuGH/venuecache/internal/platform/httpx"
	"github.com/ManuGH/venuecache/internal/telemetry"
	"github.com/ManuGH/venuecache/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		Long:  "Load the catalog in the background and serve the HTTP API until SIGINT or SIGTERM. SIGHUP re-reads the config file and forces a catalog refresh.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := xglog.WithComponent("daemon")
	logger.Info().
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str(xglog.FieldURL, httpx.Redact(cfg.Catalog.URL)).
		Str("listen", cfg.API.ListenAddr).
		Msg("starting venuecache")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "venuecache",
		ServiceVersion: version.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return err
	}

	rt, err := daemon.NewRuntime(cfg)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return err
	}

	deps := daemon.Deps{
		Logger:     logger,
		APIHandler: rt.APIHandler(version.Version),
	}
	if cfg.Metrics.ListenAddr != "" {
		deps.MetricsHandler = promhttp.Handler()
		deps.MetricsAddr = cfg.Metrics.ListenAddr
	}
	mgr, err := daemon.NewManager(daemon.DefaultServerConfig(cfg.API.ListenAddr), deps)
	if err != nil {
		_ = rt.Close(context.Background())
		_ = tp.Shutdown(context.Background())
		return err
	}
	// Hooks run in reverse: the runtime drains before spans are flushed.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("runtime", rt.Close)

	if err := rt.Start(); err != nil {
		return err
	}
	path := configPath(opts)
	holder := config.NewHolder(cfg, config.NewLoader(path, version.Version), path)
	return daemon.NewApp(logger, mgr, rt.Service()).
		WithConfig(holder, configureLogger).
		Run(ctx)
}
