// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Catalog fetch outcomes.
const (
	CatalogDownloaded  = "downloaded"
	CatalogNotModified = "not_modified"
	CatalogError       = "error"
)

var (
	catalogFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "venuecache_catalog_fetch_total",
		Help: "Catalog fetch attempts by outcome",
	}, []string{"outcome"}) // outcome=downloaded|not_modified|error

	catalogFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "venuecache_catalog_errors_total",
		Help: "Catalog fetch failures by error kind",
	}, []string{"kind"}) // kind=network|parse|io|canceled

	catalogVenues = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "venuecache_catalog_venues",
		Help: "Number of venues in the last delivered catalog",
	})

	catalogBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "venuecache_catalog_downloaded_bytes_total",
		Help: "Bytes written to the catalog cache record",
	})
)

// IncCatalogFetch counts one catalog refresh outcome.
func IncCatalogFetch(outcome string) { catalogFetchTotal.WithLabelValues(outcome).Inc() }

// IncCatalogError counts one catalog failure by kind.
func IncCatalogError(kind string) { catalogFetchErrors.WithLabelValues(kind).Inc() }

// RecordCatalogVenues sets the size of the delivered snapshot.
func RecordCatalogVenues(n int) { catalogVenues.Set(float64(n)) }

// AddCatalogBytes counts bytes committed to the cache record.
func AddCatalogBytes(n int64) { catalogBytes.Add(float64(n)) }
