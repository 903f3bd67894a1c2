// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog downloads the venue catalog with Last-Modified conditional
// caching and keeps the id lookup table for the most recent delivery.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/venuecache/internal/loader"
	xglog "github.com/ManuGH/venuecache/internal/log"
	"github.com/ManuGH/venuecache/internal/metrics"
	"github.com/ManuGH/venuecache/internal/platform/httpx"
	"github.com/ManuGH/venuecache/internal/telemetry"
	"github.com/ManuGH/venuecache/internal/venue"
	"github.com/google/renameio/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheFile is the name of the cache record inside the cache directory.
const DefaultCacheFile = "venue_data"

// Config describes where the catalog comes from and where it is cached.
type Config struct {
	URL       string
	CacheDir  string
	CacheFile string
	Client    *http.Client
	// Now supplies the fallback modification time when the server sends no
	// Last-Modified header.
	Now func() time.Time
}

// Fetcher performs the conditional download and decodes the cache record.
type Fetcher struct {
	url    string
	path   string
	client *http.Client
	now    func() time.Time
	group  singleflight.Group
}

// NewFetcher validates cfg and creates the cache directory.
func NewFetcher(cfg Config) (*Fetcher, error) {
	if _, err := httpx.ParseRemote(cfg.URL); err != nil {
		return nil, fmt.Errorf("catalog url %q: %w", cfg.URL, err)
	}
	if cfg.CacheDir == "" {
		return nil, errors.New("catalog cache dir is empty")
	}
	if cfg.CacheFile == "" {
		cfg.CacheFile = DefaultCacheFile
	}
	if cfg.Client == nil {
		cfg.Client = httpx.NewClient(0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("create catalog cache dir: %w", err)
	}
	return &Fetcher{
		url:    cfg.URL,
		path:   filepath.Join(cfg.CacheDir, cfg.CacheFile),
		client: cfg.Client,
		now:    cfg.Now,
	}, nil
}

// CachePath is the location of the cache record.
func (f *Fetcher) CachePath() string { return f.path }

// Fetch is the fail-soft form of Load: failures are logged and counted and an
// empty catalog is returned.
func (f *Fetcher) Fetch(ctx context.Context) []venue.Venue {
	venues, err := f.Load(ctx)
	if err == nil {
		return venues
	}
	kind := loader.KindOf(err)
	logger := xglog.WithComponentFromContext(ctx, "catalog")
	if kind == loader.KindCanceled {
		logger.Debug().Err(err).Msg("catalog load canceled")
	} else {
		metrics.IncCatalogFetch(metrics.CatalogError)
		metrics.IncCatalogError(string(kind))
		logger.Error().
			Err(err).
			Str(xglog.FieldErrorKind, string(kind)).
			Str(xglog.FieldURL, httpx.Redact(f.url)).
			Msg("catalog load failed")
	}
	return []venue.Venue{}
}

// Load refreshes the cache record when the remote copy is newer and decodes
// whatever the record holds afterwards.
func (f *Fetcher) Load(ctx context.Context) ([]venue.Venue, error) {
	ctx, span := telemetry.Tracer("venuecache.catalog").Start(ctx, "catalog.load",
		trace.WithAttributes(attribute.String(telemetry.HTTPURLKey, httpx.Redact(f.url))))
	defer span.End()

	if err := f.refresh(ctx); err != nil {
		telemetry.RecordError(span, string(loader.KindOf(err)), err)
		return nil, err
	}
	venues, err := f.readCache()
	if err != nil {
		telemetry.RecordError(span, string(loader.KindOf(err)), err)
		return nil, err
	}
	span.SetAttributes(attribute.Int(telemetry.CatalogVenuesKey, len(venues)))
	return venues, nil
}

// refresh collapses concurrent downloads of the same record into one writer.
// A shared download runs under the context of the caller that started it; if
// that caller was cancelled while this one is still live, the result is
// dropped and the download started again under this caller's context.
func (f *Fetcher) refresh(ctx context.Context) error {
	for {
		ch := f.group.DoChan(f.path, func() (any, error) {
			return nil, f.download(ctx)
		})
		select {
		case res := <-ch:
			if res.Err != nil && loader.KindOf(res.Err) == loader.KindCanceled && ctx.Err() == nil {
				f.group.Forget(f.path)
				continue
			}
			return res.Err
		case <-ctx.Done():
			return loader.Fail(loader.KindCanceled, "catalog refresh", ctx.Err())
		}
	}
}

func (f *Fetcher) download(ctx context.Context) error {
	logger := xglog.WithComponentFromContext(ctx, "catalog")

	lastCache, cached, err := f.cacheTime()
	if err != nil {
		return loader.Fail(loader.KindIO, "stat cache record", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return loader.Fail(loader.KindNetwork, "build catalog request", err)
	}
	if cached {
		req.Header.Set("If-Modified-Since", lastCache.UTC().Format(http.TimeFormat))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return loader.Fail(loader.KindNetwork, "catalog request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	span := trace.SpanFromContext(ctx)
	if resp.StatusCode == http.StatusNotModified && cached {
		span.SetAttributes(attribute.String(telemetry.CatalogOutcomeKey, string(metrics.CatalogNotModified)))
		metrics.IncCatalogFetch(metrics.CatalogNotModified)
		logger.Debug().Msg("catalog not modified")
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return loader.Fail(loader.KindNetwork, "catalog request",
			&httpx.StatusError{URL: httpx.Redact(f.url), Code: resp.StatusCode})
	}

	remote := f.now()
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, perr := http.ParseTime(lm); perr == nil {
			remote = t
		}
	}
	if cached && !remote.After(lastCache) {
		span.SetAttributes(attribute.String(telemetry.CatalogOutcomeKey, string(metrics.CatalogNotModified)))
		metrics.IncCatalogFetch(metrics.CatalogNotModified)
		logger.Debug().
			Time("remote_modified", remote).
			Time("cache_modified", lastCache).
			Msg("cached catalog is current")
		return nil
	}

	pending, err := renameio.NewPendingFile(f.path, renameio.WithPermissions(0o640))
	if err != nil {
		return loader.Fail(loader.KindIO, "create pending cache record", err)
	}
	defer func() {
		if cerr := pending.Cleanup(); cerr != nil {
			logger.Debug().Err(cerr).Msg("cleanup pending cache record")
		}
	}()

	n, err := httpx.CopyChunks(ctx, pending, resp.Body)
	if err != nil {
		return loader.Fail(loader.KindNetwork, "download catalog", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return loader.Fail(loader.KindIO, "replace cache record", err)
	}

	span.SetAttributes(attribute.String(telemetry.CatalogOutcomeKey, string(metrics.CatalogDownloaded)))
	metrics.IncCatalogFetch(metrics.CatalogDownloaded)
	metrics.AddCatalogBytes(n)
	logger.Info().
		Int64("bytes", n).
		Time("remote_modified", remote).
		Str(xglog.FieldPath, f.path).
		Msg("catalog downloaded")
	return nil
}

func (f *Fetcher) cacheTime() (time.Time, bool, error) {
	fi, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return fi.ModTime(), true, nil
}

func (f *Fetcher) readCache() ([]venue.Venue, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, loader.Fail(loader.KindIO, "open cache record", err)
	}
	defer func() { _ = file.Close() }()

	venues, err := venue.DecodeCatalog(file)
	if err != nil {
		return nil, loader.Fail(loader.KindParse, "decode cache record", err)
	}
	return venues, nil
}
