// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package imaging downloads venue images and decodes them to fit a bounded
// display size.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"

	"github.com/ManuGH/venuecache/internal/loader"
	xglog "github.com/ManuGH/venuecache/internal/log"
	"github.com/ManuGH/venuecache/internal/metrics"
	"github.com/ManuGH/venuecache/internal/platform/httpx"
	"github.com/ManuGH/venuecache/internal/resilience"
	"github.com/ManuGH/venuecache/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/time/rate"
)

// Limits applied when Config leaves them at zero.
const (
	DefaultMaxPixels       = 24_000_000
	DefaultMaxBytes  int64 = 16 << 20
)

var (
	// ErrInvalidRequest rejects requests with a bad URL or non-positive bounds.
	ErrInvalidRequest = errors.New("invalid image request")
	// ErrTooLarge rejects bodies above MaxBytes and sources above MaxPixels.
	ErrTooLarge = errors.New("image too large")
)

// Request names an image and the box it must fit in.
type Request struct {
	URL       string
	MaxWidth  int
	MaxHeight int
}

func (r Request) validate() error {
	if _, err := httpx.ParseRemote(r.URL); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if r.MaxWidth <= 0 || r.MaxHeight <= 0 {
		return fmt.Errorf("%w: bounds %dx%d", ErrInvalidRequest, r.MaxWidth, r.MaxHeight)
	}
	return nil
}

// Config wires the fetcher's collaborators. Limiter and Breaker are optional.
type Config struct {
	TempDir string
	Client  *http.Client
	Limiter *rate.Limiter
	Breaker *resilience.CircuitBreaker
	// MaxPixels bounds width*height of a source image before it is decoded.
	MaxPixels int
	// MaxBytes bounds the downloaded body.
	MaxBytes int64
}

// Fetcher downloads, probes and decodes images.
type Fetcher struct {
	tempDir   string
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *resilience.CircuitBreaker
	maxPixels int
	maxBytes  int64
}

// NewFetcher creates the temp directory and returns a fetcher.
func NewFetcher(cfg Config) (*Fetcher, error) {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.TempDir, 0o750); err != nil {
		return nil, fmt.Errorf("create image temp dir: %w", err)
	}
	if cfg.Client == nil {
		cfg.Client = httpx.NewClient(0)
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		tempDir:   cfg.TempDir,
		client:    cfg.Client,
		limiter:   cfg.Limiter,
		breaker:   cfg.Breaker,
		maxPixels: cfg.MaxPixels,
		maxBytes:  cfg.MaxBytes,
	}, nil
}

// Fetch is the fail-soft form of Load: any failure yields nil.
func (f *Fetcher) Fetch(ctx context.Context, req Request) *Bitmap {
	bm, err := f.Load(ctx, req)
	if err == nil {
		metrics.IncImageFetch(metrics.ImageOK)
		return bm
	}
	kind := loader.KindOf(err)
	logger := xglog.WithComponentFromContext(ctx, "imaging")
	if kind == loader.KindCanceled {
		metrics.IncImageFetch(metrics.ImageCanceled)
		logger.Debug().Err(err).Msg("image load canceled")
		return nil
	}
	metrics.IncImageFetch(metrics.ImageError)
	metrics.IncImageError(string(kind))
	logger.Warn().
		Err(err).
		Str(xglog.FieldErrorKind, string(kind)).
		Str(xglog.FieldURL, httpx.Redact(req.URL)).
		Msg("image load failed")
	return nil
}

// Load downloads req.URL to a temp file and decodes it to fit the requested
// bounds. The temp file is removed on every path.
func (f *Fetcher) Load(ctx context.Context, req Request) (bm *Bitmap, err error) {
	ctx, span := telemetry.Tracer("venuecache.imaging").Start(ctx, "image.load")
	span.SetAttributes(telemetry.ImageRequestAttributes(httpx.Redact(req.URL), req.MaxWidth, req.MaxHeight)...)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, string(loader.KindOf(err)), err)
		}
		span.End()
	}()

	if err := req.validate(); err != nil {
		return nil, loader.Fail(loader.KindNetwork, "image request", err)
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, loader.Fail(loader.KindNetwork, "image rate limit", err)
		}
	}

	tmp, err := os.CreateTemp(f.tempDir, "img-*")
	if err != nil {
		return nil, loader.Fail(loader.KindIO, "create image temp file", err)
	}
	path := tmp.Name()
	defer func() { _ = os.Remove(path) }()

	download := func() error { return f.download(ctx, req.URL, tmp) }
	if f.breaker != nil {
		err = f.breaker.Execute(download)
	} else {
		err = download()
	}
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = loader.Fail(loader.KindIO, "close image temp file", cerr)
	}
	if err != nil {
		return nil, loader.Fail(loader.KindNetwork, "download image", err)
	}

	return decodeFile(ctx, path, req.MaxWidth, req.MaxHeight, f.maxPixels)
}

func (f *Fetcher) download(ctx context.Context, url string, dst *os.File) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &httpx.StatusError{URL: httpx.Redact(url), Code: resp.StatusCode}
	}
	if resp.ContentLength > f.maxBytes {
		return fmt.Errorf("%w: content length %d exceeds %d bytes", ErrTooLarge, resp.ContentLength, f.maxBytes)
	}
	n, err := httpx.CopyChunks(ctx, dst, io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return err
	}
	if n > f.maxBytes {
		return fmt.Errorf("%w: body exceeds %d bytes", ErrTooLarge, f.maxBytes)
	}
	return nil
}

// decodeFile probes the header, refuses sources above maxPixels, picks a
// subsample factor and scales the result to fit exactly.
func decodeFile(ctx context.Context, path string, maxW, maxH, maxPixels int) (*Bitmap, error) {
	cfg, format, err := probe(path)
	if err != nil {
		return nil, loader.Fail(loader.KindDecode, "probe image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, loader.Fail(loader.KindDecode, "probe image",
			fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels))
	}
	if err := ctx.Err(); err != nil {
		return nil, loader.Fail(loader.KindCanceled, "probe image", err)
	}

	factor := SampleFactor(cfg.Width, cfg.Height, maxW, maxH)
	metrics.ObserveSampleFactor(factor)
	trace.SpanFromContext(ctx).SetAttributes(telemetry.ImageResultAttributes(cfg.Width, cfg.Height, factor)...)
	logger := xglog.WithComponentFromContext(ctx, "imaging")
	logger.Debug().
		Str("format", format).
		Int(xglog.FieldWidth, cfg.Width).
		Int(xglog.FieldHeight, cfg.Height).
		Int(xglog.FieldSampleFactor, factor).
		Msg("image probed")

	// Re-open for the full decode.
	src, err := decodeAll(path)
	if err != nil {
		return nil, loader.Fail(loader.KindDecode, "decode image", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, loader.Fail(loader.KindCanceled, "decode image", err)
	}

	var bm *Bitmap
	if factor > 1 {
		bm = subsample(src, factor)
	} else {
		bm = native(src)
	}
	bm, err = fit(ctx, bm, maxW, maxH)
	if err != nil {
		return nil, loader.Fail(loader.KindCanceled, "scale image", err)
	}
	return bm, nil
}

func probe(path string) (image.Config, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer func() { _ = file.Close() }()
	return image.DecodeConfig(file)
}

func decodeAll(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	img, _, err := image.Decode(file)
	return img, err
}
