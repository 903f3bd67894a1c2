// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration with precedence
// ENV > YAML file > defaults.
package config

import "time"

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	Version  string
	DataDir  string
	LogLevel string

	Catalog   CatalogConfig
	HTTP      HTTPConfig
	Images    ImagesConfig
	Workers   WorkersConfig
	API       APIConfig
	Metrics   MetricsConfig
	Telemetry TelemetryConfig
}

type CatalogConfig struct {
	URL       string
	CacheFile string
}

type HTTPConfig struct {
	Timeout time.Duration
}

type ImagesConfig struct {
	TempDir   string
	MaxWidth  int
	MaxHeight int
	// MaxPixels caps the source dimensions (width*height) accepted for decode.
	MaxPixels int
	// MaxBytes caps the size of a downloaded image body.
	MaxBytes int
	// RateLimit is downloads per second; zero disables limiting.
	RateLimit        float64
	Burst            int
	BreakerThreshold int
	BreakerReset     time.Duration
}

type WorkersConfig struct {
	Count int
	Queue int
}

type APIConfig struct {
	ListenAddr string
	// RateLimit is requests per minute per client IP; zero disables limiting.
	RateLimit int
}

type MetricsConfig struct {
	// ListenAddr serves /metrics on a separate listener. Empty keeps it on
	// the API router.
	ListenAddr string
}

// TelemetryConfig controls OpenTelemetry tracing of downloads and API calls.
type TelemetryConfig struct {
	Enabled bool
	// Exporter is "grpc" or "http".
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// FileConfig mirrors the YAML file. Zero values mean "not set".
type FileConfig struct {
	DataDir  string `yaml:"dataDir,omitempty"`
	LogLevel string `yaml:"logLevel,omitempty"`

	Catalog struct {
		URL       string `yaml:"url,omitempty"`
		CacheFile string `yaml:"cacheFile,omitempty"`
	} `yaml:"catalog,omitempty"`

	HTTP struct {
		Timeout time.Duration `yaml:"timeout,omitempty"`
	} `yaml:"http,omitempty"`

	Images struct {
		TempDir          string        `yaml:"tempDir,omitempty"`
		MaxWidth         int           `yaml:"maxWidth,omitempty"`
		MaxHeight        int           `yaml:"maxHeight,omitempty"`
		MaxPixels        int           `yaml:"maxPixels,omitempty"`
		MaxBytes         int           `yaml:"maxBytes,omitempty"`
		RateLimit        *float64      `yaml:"rateLimit,omitempty"`
		Burst            int           `yaml:"burst,omitempty"`
		BreakerThreshold int           `yaml:"breakerThreshold,omitempty"`
		BreakerReset     time.Duration `yaml:"breakerReset,omitempty"`
	} `yaml:"images,omitempty"`

	Workers struct {
		Count int `yaml:"count,omitempty"`
		Queue int `yaml:"queue,omitempty"`
	} `yaml:"workers,omitempty"`

	API struct {
		ListenAddr string `yaml:"listenAddr,omitempty"`
		RateLimit  *int   `yaml:"rateLimit,omitempty"`
	} `yaml:"api,omitempty"`

	Metrics struct {
		ListenAddr string `yaml:"listenAddr,omitempty"`
	} `yaml:"metrics,omitempty"`

	Telemetry struct {
		Enabled      bool     `yaml:"enabled,omitempty"`
		Exporter     string   `yaml:"exporter,omitempty"`
		Endpoint     string   `yaml:"endpoint,omitempty"`
		SamplingRate *float64 `yaml:"samplingRate,omitempty"`
	} `yaml:"telemetry,omitempty"`
}
