// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Loader result outcomes.
const (
	ResultDelivered   = "delivered"
	ResultRedelivered = "redelivered"
	ResultDiscarded   = "discarded"
)

var (
	loaderResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "venuecache_loader_results_total",
		Help: "Background loader results by loader kind and outcome",
	}, []string{"loader", "outcome"}) // outcome=delivered|redelivered|discarded

	loaderTasksInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "venuecache_loader_tasks_in_flight",
		Help: "Background fetch tasks currently queued or running",
	}, []string{"loader"})

	poolQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "venuecache_pool_queue_depth",
		Help: "Tasks waiting for a free worker",
	})
)

// IncLoaderResult counts a finished loader task by outcome.
func IncLoaderResult(loader, outcome string) {
	loaderResultsTotal.WithLabelValues(loader, outcome).Inc()
}

// AddLoaderInFlight adjusts the in-flight gauge for a loader kind.
func AddLoaderInFlight(loader string, delta int) {
	loaderTasksInFlight.WithLabelValues(loader).Add(float64(delta))
}

// SetPoolQueueDepth records the number of queued tasks.
func SetPoolQueueDepth(n int) { poolQueueDepth.Set(float64(n)) }
