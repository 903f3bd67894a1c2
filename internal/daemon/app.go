// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/venuecache/internal/config"
	"github.com/rs/zerolog"
)

// Refresher is triggered by the reload signal.
type Refresher interface {
	RefreshCatalog()
}

// App owns the long-lived runtime wiring (reload signal) and delegates
// server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	refresher    Refresher
	reloadSignal os.Signal
	notify       func(chan<- os.Signal, ...os.Signal)
	stopNotify   func(chan<- os.Signal)

	holder   *config.Holder
	onConfig func(config.AppConfig)
}

// NewApp creates a new App orchestrator. refresher may be nil.
func NewApp(logger zerolog.Logger, manager Manager, refresher Refresher) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		refresher:    refresher,
		reloadSignal: syscall.SIGHUP,
		notify:       signal.Notify,
		stopNotify:   signal.Stop,
	}
}

// WithConfig watches the config file behind h and calls apply for every
// accepted reload. The reload signal also re-reads the file.
func (a *App) WithConfig(h *config.Holder, apply func(config.AppConfig)) *App {
	a.holder = h
	a.onConfig = apply
	return a
}

// Run blocks until ctx is cancelled or a server fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.holder != nil {
		updates := make(chan config.AppConfig, 1)
		a.holder.Subscribe(updates)
		g.Go(func() error {
			if err := a.holder.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("config watcher unavailable, reload on signal only")
			}
			return nil
		})
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-updates:
					if a.onConfig != nil {
						a.onConfig(cfg)
					}
				}
			}
		})
	}

	// SIGHUP re-reads the config and forces a conditional catalog refetch.
	if (a.refresher != nil || a.holder != nil) && a.reloadSignal != nil {
		hupChan := make(chan os.Signal, 1)
		a.notify(hupChan, a.reloadSignal)
		g.Go(func() error {
			defer a.stopNotify(hupChan)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "catalog.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal")
					if a.holder != nil {
						_ = a.holder.Reload(ctx)
					}
					if a.refresher != nil {
						a.refresher.RefreshCatalog()
					}
				}
			}
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
