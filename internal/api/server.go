// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the venue catalog and image scaling over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/ManuGH/venuecache/internal/api/middleware"
	"github.com/ManuGH/venuecache/internal/health"
	"github.com/ManuGH/venuecache/internal/imaging"
	"github.com/ManuGH/venuecache/internal/loader"
	"github.com/ManuGH/venuecache/internal/venue"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// VenueService is what the handlers need from the service layer.
type VenueService interface {
	ListVenues() []venue.Venue
	GetVenueByID(id int64) (venue.Venue, bool)
	RequestImage(ctx context.Context, url string, maxW, maxH int) (*imaging.Bitmap, bool)
	RefreshCatalog()
	CatalogState() loader.State
}

// Config tunes the HTTP surface.
type Config struct {
	// MaxWidth and MaxHeight bound image requests and act as defaults.
	MaxWidth  int
	MaxHeight int
	// RateLimit is requests per minute per client IP; zero disables it.
	RateLimit int
	// ServeMetrics mounts /metrics on this router.
	ServeMetrics bool
	Version      string
	// Tracing enables server spans.
	Tracing bool
	// Health serves /healthz and /readyz when set.
	Health *health.Manager
}

// Server holds the handlers.
type Server struct {
	svc VenueService
	cfg Config
}

// New creates a Server.
func New(svc VenueService, cfg Config) *Server {
	return &Server{svc: svc, cfg: cfg}
}

// Handler builds the routed handler with the ingress stack applied.
func (s *Server) Handler() http.Handler {
	stack := middleware.StackConfig{
		EnableMetrics:      true,
		EnableLogging:      true,
		RateLimitPerMinute: s.cfg.RateLimit,
	}
	if s.cfg.Tracing {
		stack.TracingService = "venuecache"
	}
	r := middleware.NewRouter(stack)

	if s.cfg.Health != nil {
		r.Get("/healthz", s.cfg.Health.ServeHealth)
		r.Get("/readyz", s.cfg.Health.ServeReady)
	} else {
		r.Get("/healthz", s.handleHealth)
	}
	if s.cfg.ServeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/venues", s.handleListVenues)
		r.Get("/venues/{id}", s.handleGetVenue)
		r.Get("/images", s.handleImage)
		r.With(middleware.RefreshRateLimit()).Post("/catalog/refresh", s.handleRefresh)
		r.Get("/catalog/status", s.handleCatalogStatus)
	})
	return r
}
