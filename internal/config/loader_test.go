// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/venuecache/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("VENUECACHE_DATA", dir)
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("VENUECACHE_LOG_LEVEL", "")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "test", cfg.Version)
	assert.Equal(t, DefaultCatalogURL, cfg.Catalog.URL)
	assert.Equal(t, "venue_data", cfg.Catalog.CacheFile)
	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, filepath.Join(dir, "tmp"), cfg.Images.TempDir)
	assert.Equal(t, 512, cfg.Images.MaxWidth)
	assert.Zero(t, cfg.Images.RateLimit)
	assert.Equal(t, 4, cfg.Workers.Count)
	assert.Equal(t, ":8088", cfg.API.ListenAddr)

	info, err := os.Stat(cfg.Images.TempDir)
	require.NoError(t, err, "validation creates the temp dir")
	assert.True(t, info.IsDir())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
logLevel: debug
catalog:
  url: https://example.com/venues.json
http:
  timeout: 3s
images:
  maxWidth: 200
  maxHeight: 120
  rateLimit: 2.5
workers:
  count: 2
api:
  rateLimit: 0
`)

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://example.com/venues.json", cfg.Catalog.URL)
	assert.Equal(t, 3*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 200, cfg.Images.MaxWidth)
	assert.Equal(t, 120, cfg.Images.MaxHeight)
	assert.InDelta(t, 2.5, cfg.Images.RateLimit, 0.0001)
	assert.Equal(t, 2, cfg.Workers.Count)
	assert.Equal(t, 64, cfg.Workers.Queue, "unset keys keep defaults")
	assert.Equal(t, 0, cfg.API.RateLimit, "explicit zero disables the limiter")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "workers:\n  count: 2\ncatalog:\n  url: https://file.example.com/v.json\n")
	t.Setenv("VENUECACHE_WORKERS", "8")
	t.Setenv("VENUECACHE_CATALOG_URL", "https://env.example.com/v.json")
	t.Setenv("VENUECACHE_HTTP_TIMEOUT", "not-a-duration")

	l := NewLoader(path, "")
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers.Count)
	assert.Equal(t, "https://env.example.com/v.json", cfg.Catalog.URL)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTP.Timeout, "invalid env falls back")
	assert.Contains(t, l.ConsumedEnvKeys, "VENUECACHE_WORKERS")
}

func TestLoad_UnknownKeyFails(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "catalog:\n  url: https://example.com/v.json\n  refreshEvery: 5m\n")

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)
}

func TestLoad_InvalidTypeFails(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "workers:\n  count: many\n")

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnknownConfigField))
}

func TestLoad_MultipleDocumentsFail(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "logLevel: info\n---\nlogLevel: debug\n")

	_, err := NewLoader(path, "").Load()
	assert.ErrorIs(t, err, ErrMultipleDocuments)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	isolate(t)
	cfg, err := NewLoader(writeConfig(t, ""), "").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, cfg.Workers.Count)
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	isolate(t)
	_, err := NewLoader(filepath.Join(t.TempDir(), "config.json"), "").Load()
	assert.Error(t, err)
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	dir := t.TempDir()
	cfg := Defaults()
	cfg.DataDir = dir
	cfg.Images.TempDir = filepath.Join(dir, "tmp")
	cfg.Catalog.URL = "ftp://example.com/v.json"
	cfg.Images.MaxWidth = 0
	cfg.Workers.Count = 0
	cfg.API.ListenAddr = "8088"

	err := Validate(cfg)
	require.Error(t, err)
	var ve validate.ValidationError
	require.True(t, errors.As(err, &ve))

	fields := make([]string, 0, len(ve.Errors()))
	for _, e := range ve.Errors() {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"catalog.url", "images.maxWidth", "workers.count", "api.listenAddr"}, fields)
}

func TestToFileConfig_RoundTrips(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
images:
  maxWidth: 320
  rateLimit: 2.5
api:
  rateLimit: 0
`)
	want, err := NewLoader(path, "test").Load()
	require.NoError(t, err)

	out, err := yaml.Marshal(ToFileConfig(want))
	require.NoError(t, err)
	got, err := NewLoader(writeConfig(t, string(out)), "test").Load()
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Zero(t, got.API.RateLimit)
	assert.Equal(t, 2.5, got.Images.RateLimit)
}

func TestLoad_Telemetry(t *testing.T) {
	isolate(t)
	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "http", cfg.Telemetry.Exporter)
	assert.Equal(t, 1.0, cfg.Telemetry.SamplingRate)

	t.Setenv("VENUECACHE_TELEMETRY_ENABLED", "true")
	t.Setenv("VENUECACHE_TELEMETRY_EXPORTER", "kafka")
	_, err = NewLoader("", "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telemetry.exporter")

	t.Setenv("VENUECACHE_TELEMETRY_EXPORTER", "grpc")
	t.Setenv("VENUECACHE_OTLP_ENDPOINT", "collector:4317")
	cfg, err = NewLoader("", "test").Load()
	require.NoError(t, err)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
}

func TestLoad_ImageLimits(t *testing.T) {
	isolate(t)
	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultImageMaxPixels, cfg.Images.MaxPixels)
	assert.Equal(t, DefaultImageMaxBytes, cfg.Images.MaxBytes)

	path := writeConfig(t, `
images:
  maxPixels: 1000000
  maxBytes: 65536
`)
	t.Setenv("VENUECACHE_IMAGE_MAX_BYTES", "131072")
	cfg, err = NewLoader(path, "test").Load()
	require.NoError(t, err)
	assert.Equal(t, 1_000_000, cfg.Images.MaxPixels)
	assert.Equal(t, 131072, cfg.Images.MaxBytes, "env wins over file")

	t.Setenv("VENUECACHE_IMAGE_MAX_PIXELS", "-1")
	_, err = NewLoader(path, "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "images.maxPixels")
}
