// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultDataDir          = "/tmp/venuecache"
	DefaultCatalogURL       = "https://s3.amazonaws.com/jon-hancock-phunware/nflapi-static.json"
	DefaultCacheFile        = "venue_data"
	DefaultHTTPTimeout      = 15 * time.Second
	DefaultImageMaxSize     = 512
	DefaultImageBurst       = 4
	DefaultImageMaxPixels   = 24_000_000
	DefaultImageMaxBytes    = 16 << 20
	DefaultBreakerThreshold = 5
	DefaultBreakerReset     = 30 * time.Second
	DefaultWorkers          = 4
	DefaultQueueSize        = 64
	DefaultListenAddr       = ":8088"
	DefaultAPIRateLimit     = 600
	DefaultLogLevel         = "info"
	DefaultOTLPExporter     = "http"
	DefaultOTLPEndpoint     = "localhost:4318"
)

// Loader resolves an AppConfig with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every environment key the loader looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Load applies defaults, the strict YAML file and the environment, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}
	l.mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Images.TempDir == "" {
		cfg.Images.TempDir = filepath.Join(cfg.DataDir, "tmp")
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:  DefaultDataDir,
		LogLevel: DefaultLogLevel,
		Catalog:  CatalogConfig{URL: DefaultCatalogURL, CacheFile: DefaultCacheFile},
		HTTP:     HTTPConfig{Timeout: DefaultHTTPTimeout},
		Images: ImagesConfig{
			MaxWidth:         DefaultImageMaxSize,
			MaxHeight:        DefaultImageMaxSize,
			MaxPixels:        DefaultImageMaxPixels,
			MaxBytes:         DefaultImageMaxBytes,
			Burst:            DefaultImageBurst,
			BreakerThreshold: DefaultBreakerThreshold,
			BreakerReset:     DefaultBreakerReset,
		},
		Workers: WorkersConfig{Count: DefaultWorkers, Queue: DefaultQueueSize},
		API:     APIConfig{ListenAddr: DefaultListenAddr, RateLimit: DefaultAPIRateLimit},
		Telemetry: TelemetryConfig{
			Exporter:     DefaultOTLPExporter,
			Endpoint:     DefaultOTLPEndpoint,
			SamplingRate: 1.0,
		},
	}
}

// loadFile parses a single YAML document and rejects unknown keys.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &fileCfg, nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return nil, fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, ErrMultipleDocuments
	}
	return &fileCfg, nil
}

func mergeFileConfig(dst *AppConfig, src *FileConfig) {
	setString(&dst.DataDir, os.ExpandEnv(src.DataDir))
	setString(&dst.LogLevel, src.LogLevel)

	setString(&dst.Catalog.URL, os.ExpandEnv(src.Catalog.URL))
	setString(&dst.Catalog.CacheFile, src.Catalog.CacheFile)

	setDuration(&dst.HTTP.Timeout, src.HTTP.Timeout)

	setString(&dst.Images.TempDir, os.ExpandEnv(src.Images.TempDir))
	setInt(&dst.Images.MaxWidth, src.Images.MaxWidth)
	setInt(&dst.Images.MaxHeight, src.Images.MaxHeight)
	setInt(&dst.Images.MaxPixels, src.Images.MaxPixels)
	setInt(&dst.Images.MaxBytes, src.Images.MaxBytes)
	if src.Images.RateLimit != nil {
		dst.Images.RateLimit = *src.Images.RateLimit
	}
	setInt(&dst.Images.Burst, src.Images.Burst)
	setInt(&dst.Images.BreakerThreshold, src.Images.BreakerThreshold)
	setDuration(&dst.Images.BreakerReset, src.Images.BreakerReset)

	setInt(&dst.Workers.Count, src.Workers.Count)
	setInt(&dst.Workers.Queue, src.Workers.Queue)

	setString(&dst.API.ListenAddr, src.API.ListenAddr)
	if src.API.RateLimit != nil {
		dst.API.RateLimit = *src.API.RateLimit
	}
	setString(&dst.Metrics.ListenAddr, src.Metrics.ListenAddr)

	if src.Telemetry.Enabled {
		dst.Telemetry.Enabled = true
	}
	setString(&dst.Telemetry.Exporter, src.Telemetry.Exporter)
	setString(&dst.Telemetry.Endpoint, src.Telemetry.Endpoint)
	if src.Telemetry.SamplingRate != nil {
		dst.Telemetry.SamplingRate = *src.Telemetry.SamplingRate
	}
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = l.envString("VENUECACHE_DATA", cfg.DataDir)
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogLevel = l.envString("VENUECACHE_LOG_LEVEL", cfg.LogLevel)

	cfg.Catalog.URL = l.envString("VENUECACHE_CATALOG_URL", cfg.Catalog.URL)
	cfg.Catalog.CacheFile = l.envString("VENUECACHE_CATALOG_CACHE_FILE", cfg.Catalog.CacheFile)

	cfg.HTTP.Timeout = l.envDuration("VENUECACHE_HTTP_TIMEOUT", cfg.HTTP.Timeout)

	cfg.Images.TempDir = l.envString("VENUECACHE_IMAGE_TEMP_DIR", cfg.Images.TempDir)
	cfg.Images.MaxWidth = l.envInt("VENUECACHE_IMAGE_MAX_WIDTH", cfg.Images.MaxWidth)
	cfg.Images.MaxHeight = l.envInt("VENUECACHE_IMAGE_MAX_HEIGHT", cfg.Images.MaxHeight)
	cfg.Images.MaxPixels = l.envInt("VENUECACHE_IMAGE_MAX_PIXELS", cfg.Images.MaxPixels)
	cfg.Images.MaxBytes = l.envInt("VENUECACHE_IMAGE_MAX_BYTES", cfg.Images.MaxBytes)
	cfg.Images.RateLimit = l.envFloat("VENUECACHE_IMAGE_RATE_LIMIT", cfg.Images.RateLimit)
	cfg.Images.Burst = l.envInt("VENUECACHE_IMAGE_BURST", cfg.Images.Burst)
	cfg.Images.BreakerThreshold = l.envInt("VENUECACHE_IMAGE_BREAKER_THRESHOLD", cfg.Images.BreakerThreshold)
	cfg.Images.BreakerReset = l.envDuration("VENUECACHE_IMAGE_BREAKER_RESET", cfg.Images.BreakerReset)

	cfg.Workers.Count = l.envInt("VENUECACHE_WORKERS", cfg.Workers.Count)
	cfg.Workers.Queue = l.envInt("VENUECACHE_QUEUE_SIZE", cfg.Workers.Queue)

	cfg.API.ListenAddr = l.envString("VENUECACHE_LISTEN", cfg.API.ListenAddr)
	cfg.API.RateLimit = l.envInt("VENUECACHE_API_RATE_LIMIT", cfg.API.RateLimit)
	cfg.Metrics.ListenAddr = l.envString("VENUECACHE_METRICS_LISTEN", cfg.Metrics.ListenAddr)

	cfg.Telemetry.Enabled = l.envBool("VENUECACHE_TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("VENUECACHE_TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("VENUECACHE_OTLP_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("VENUECACHE_TRACE_SAMPLING", cfg.Telemetry.SamplingRate)
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// ToFileConfig renders a resolved configuration in file form, so that
// writing it back and loading it yields the same AppConfig.
func ToFileConfig(cfg AppConfig) FileConfig {
	var fc FileConfig
	fc.DataDir = cfg.DataDir
	fc.LogLevel = cfg.LogLevel
	fc.Catalog.URL = cfg.Catalog.URL
	fc.Catalog.CacheFile = cfg.Catalog.CacheFile
	fc.HTTP.Timeout = cfg.HTTP.Timeout
	fc.Images.TempDir = cfg.Images.TempDir
	fc.Images.MaxWidth = cfg.Images.MaxWidth
	fc.Images.MaxHeight = cfg.Images.MaxHeight
	fc.Images.MaxPixels = cfg.Images.MaxPixels
	fc.Images.MaxBytes = cfg.Images.MaxBytes
	rate := cfg.Images.RateLimit
	fc.Images.RateLimit = &rate
	fc.Images.Burst = cfg.Images.Burst
	fc.Images.BreakerThreshold = cfg.Images.BreakerThreshold
	fc.Images.BreakerReset = cfg.Images.BreakerReset
	fc.Workers.Count = cfg.Workers.Count
	fc.Workers.Queue = cfg.Workers.Queue
	fc.API.ListenAddr = cfg.API.ListenAddr
	apiRate := cfg.API.RateLimit
	fc.API.RateLimit = &apiRate
	fc.Metrics.ListenAddr = cfg.Metrics.ListenAddr
	fc.Telemetry.Enabled = cfg.Telemetry.Enabled
	fc.Telemetry.Exporter = cfg.Telemetry.Exporter
	fc.Telemetry.Endpoint = cfg.Telemetry.Endpoint
	sampling := cfg.Telemetry.SamplingRate
	fc.Telemetry.SamplingRate = &sampling
	return fc
}
