// Package daemon builds the venuecache runtime from configuration and runs
// it behind the HTTP servers until shutdown.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/ManuGH/venuecache/internal/api"
	"github.com/ManuGH/venuecache/internal/catalog"
	"github.com/ManuGH/venuecache/internal/config"
	"github.com/ManuGH/venuecache/internal/health"
	"github.com/ManuGH/venuecache/internal/imaging"
	"github.com/ManuGH/venuecache/internal/loader"
	"github.com/ManuGH/venuecache/internal/log"
	"github.com/ManuGH/venuecache/internal/platform/httpx"
	"github.com/ManuGH/venuecache/internal/resilience"
	"github.com/ManuGH/venuecache/internal/service"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Runtime owns the worker pool, the delivery dispatcher and the service built
// on top of them.
type Runtime struct {
	cfg     config.AppConfig
	client  *http.Client
	pool    *loader.Pool
	disp    *loader.Dispatcher
	svc     *service.Service
	breaker *resilience.CircuitBreaker
	health  *health.Manager
	logger  zerolog.Logger

	mu         sync.Mutex
	started    bool
	stopDisp   context.CancelFunc
	closeOnce  sync.Once
	closeError error
}

// NewRuntime wires fetchers, pool, dispatcher and service from cfg. Nothing
// runs until Start.
func NewRuntime(cfg config.AppConfig) (*Runtime, error) {
	client := httpx.NewClient(cfg.HTTP.Timeout)
	if cfg.Telemetry.Enabled {
		client = httpx.Traced(client)
	}

	catalogFetcher, err := catalog.NewFetcher(catalog.Config{
		URL:       cfg.Catalog.URL,
		CacheDir:  cfg.DataDir,
		CacheFile: cfg.Catalog.CacheFile,
		Client:    client,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog fetcher: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.Images.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Images.RateLimit), max(cfg.Images.Burst, 1))
	}
	breaker := resilience.NewCircuitBreaker("images", cfg.Images.BreakerThreshold, cfg.Images.BreakerReset)

	imageFetcher, err := imaging.NewFetcher(imaging.Config{
		TempDir:   cfg.Images.TempDir,
		MaxPixels: cfg.Images.MaxPixels,
		MaxBytes:  int64(cfg.Images.MaxBytes),
		Client:    client,
		Limiter:   limiter,
		Breaker:   breaker,
	})
	if err != nil {
		return nil, fmt.Errorf("image fetcher: %w", err)
	}

	pool := loader.NewPool(loader.PoolConfig{Workers: cfg.Workers.Count, QueueSize: cfg.Workers.Queue})
	disp := loader.NewDispatcher()

	svc := service.New(service.Deps{
		Catalog:    catalogFetcher,
		Images:     imageFetcher,
		Pool:       pool,
		Dispatcher: disp,
	})

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewCatalogChecker(svc))
	hm.RegisterChecker(health.NewFileChecker("catalog_cache", catalogFetcher.CachePath()))
	hm.RegisterChecker(health.NewBreakerChecker("image_breaker", breaker))

	return &Runtime{
		cfg:     cfg,
		client:  client,
		pool:    pool,
		disp:    disp,
		breaker: breaker,
		health:  hm,
		logger:  log.WithComponent("runtime"),
		svc:     svc,
	}, nil
}

// Service exposes the venue service.
func (r *Runtime) Service() *service.Service { return r.svc }

// Health exposes the liveness and readiness checks.
func (r *Runtime) Health() *health.Manager { return r.health }

// APIHandler builds the HTTP surface. /metrics is mounted on it unless a
// dedicated metrics listener is configured.
func (r *Runtime) APIHandler(version string) http.Handler {
	return api.New(r.svc, api.Config{
		MaxWidth:     r.cfg.Images.MaxWidth,
		MaxHeight:    r.cfg.Images.MaxHeight,
		RateLimit:    r.cfg.API.RateLimit,
		ServeMetrics: r.cfg.Metrics.ListenAddr == "",
		Version:      version,
		Tracing:      r.cfg.Telemetry.Enabled,
		Health:       r.health,
	}).Handler()
}

// Start launches the pool and the dispatcher and begins the catalog load.
func (r *Runtime) Start() error {
	if err := r.StartWorkers(); err != nil {
		return err
	}
	r.svc.Start()
	r.logger.Info().
		Str(log.FieldURL, httpx.Redact(r.cfg.Catalog.URL)).
		Str(log.FieldCacheDir, r.cfg.DataDir).
		Int("workers", r.cfg.Workers.Count).
		Msg("runtime started")
	return nil
}

// StartWorkers launches the pool and the dispatcher only. Image requests
// work; the catalog stays unloaded until Start.
func (r *Runtime) StartWorkers() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrRuntimeStarted
	}
	r.started = true

	r.pool.Start()
	ctx, cancel := context.WithCancel(context.Background())
	r.stopDisp = cancel
	go r.disp.Run(ctx)
	return nil
}

// Close stops the service, then the pool, then drains the dispatcher. It is
// safe to call more than once and before Start.
func (r *Runtime) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		_ = r.svc.Close()
		r.pool.Stop()

		r.mu.Lock()
		stop := r.stopDisp
		r.mu.Unlock()
		if stop != nil {
			stop()
			select {
			case <-r.disp.Done():
			case <-ctx.Done():
				r.closeError = ctx.Err()
			}
		}
		r.client.CloseIdleConnections()
		r.logger.Info().Msg("runtime stopped")
	})
	return r.closeError
}
