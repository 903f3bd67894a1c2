// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Image fetch outcomes.
const (
	ImageOK       = "ok"
	ImageError    = "error"
	ImageCanceled = "canceled"
)

var (
	imageFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "venuecache_image_fetch_total",
		Help: "Image loads by outcome",
	}, []string{"outcome"}) // outcome=ok|error|canceled

	imageFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "venuecache_image_errors_total",
		Help: "Image load failures by error kind",
	}, []string{"kind"}) // kind=network|decode|io

	imageSampleFactor = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "venuecache_image_subsample_factor",
		Help:    "Power-of-two subsample factor chosen per decoded image",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	})

	imageLiveBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "venuecache_image_live_bytes",
		Help: "Bytes held by decoded bitmaps that have not been released",
	})
)

// IncImageFetch counts one image load by outcome.
func IncImageFetch(outcome string) { imageFetchTotal.WithLabelValues(outcome).Inc() }

// IncImageError counts one image failure by kind.
func IncImageError(kind string) { imageFetchErrors.WithLabelValues(kind).Inc() }

// ObserveSampleFactor records a chosen subsample factor.
func ObserveSampleFactor(f int) { imageSampleFactor.Observe(float64(f)) }

// AddImageLiveBytes adjusts the live bitmap bytes gauge.
func AddImageLiveBytes(delta int) { imageLiveBytes.Add(float64(delta)) }
