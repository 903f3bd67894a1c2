package config

import (
	"time"

	"github.com/ManuGH/venuecache/internal/validate"
)

var logLevels = []string{"trace", "debug", "info", "warn", "error"}

// Validate checks a resolved configuration and creates its directories.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("dataDir", cfg.DataDir)
	v.Directory("images.tempDir", cfg.Images.TempDir)
	v.OneOf("logLevel", cfg.LogLevel, logLevels)

	v.URL("catalog.url", cfg.Catalog.URL, []string{"http", "https"})
	if cfg.Catalog.CacheFile == "" {
		v.AddError("catalog.cacheFile", "value cannot be empty", cfg.Catalog.CacheFile)
	}

	v.MinDuration("http.timeout", cfg.HTTP.Timeout, 100*time.Millisecond)

	v.Positive("images.maxWidth", cfg.Images.MaxWidth)
	v.Positive("images.maxHeight", cfg.Images.MaxHeight)
	v.Positive("images.maxPixels", cfg.Images.MaxPixels)
	v.Positive("images.maxBytes", cfg.Images.MaxBytes)
	v.NonNegative("images.rateLimit", cfg.Images.RateLimit)
	if cfg.Images.RateLimit > 0 {
		v.Positive("images.burst", cfg.Images.Burst)
	}
	v.Positive("images.breakerThreshold", cfg.Images.BreakerThreshold)
	v.MinDuration("images.breakerReset", cfg.Images.BreakerReset, time.Second)

	v.Range("workers.count", cfg.Workers.Count, 1, 256)
	v.Range("workers.queue", cfg.Workers.Queue, 1, 1<<16)

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	v.NonNegative("api.rateLimit", float64(cfg.API.RateLimit))
	if cfg.Metrics.ListenAddr != "" {
		v.ListenAddr("metrics.listenAddr", cfg.Metrics.ListenAddr)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		if cfg.Telemetry.Endpoint == "" {
			v.AddError("telemetry.endpoint", "value cannot be empty when telemetry is enabled", cfg.Telemetry.Endpoint)
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		v.AddError("telemetry.samplingRate", "must be between 0 and 1", cfg.Telemetry.SamplingRate)
	}

	return v.Err()
}
