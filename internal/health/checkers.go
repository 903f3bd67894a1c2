// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"

	"github.com/ManuGH/venuecache/internal/loader"
	"github.com/ManuGH/venuecache/internal/resilience"
)

// CatalogSource is the part of the service the catalog check reads.
type CatalogSource interface {
	CatalogState() loader.State
	VenueCount() int
}

// CatalogChecker is unhealthy until the first catalog delivery and degraded
// while the delivered catalog is empty.
type CatalogChecker struct {
	src CatalogSource
}

// NewCatalogChecker creates the catalog readiness check.
func NewCatalogChecker(src CatalogSource) *CatalogChecker {
	return &CatalogChecker{src: src}
}

func (c *CatalogChecker) Name() string { return "catalog" }

func (c *CatalogChecker) Check(context.Context) CheckResult {
	state := c.src.CatalogState()
	n := c.src.VenueCount()
	switch {
	case n > 0:
		return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d venues (%s)", n, state)}
	case state == loader.StateDelivered:
		return CheckResult{Status: StatusDegraded, Message: "catalog delivered but empty"}
	default:
		return CheckResult{Status: StatusUnhealthy, Message: "catalog not delivered yet (" + string(state) + ")"}
	}
}

// FileChecker checks that the cache record exists and is not empty.
type FileChecker struct {
	name string
	path string
}

// NewFileChecker creates a checker for file existence
func NewFileChecker(name, path string) *FileChecker {
	return &FileChecker{name: name, path: path}
}

func (c *FileChecker) Name() string { return c.name }

// A missing cache record is only degraded: the first download may still be
// in flight and the catalog check already covers readiness.
func (c *FileChecker) Check(context.Context) CheckResult {
	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{Status: StatusDegraded, Message: "not written yet", Error: "file not found"}
		}
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected file, got directory"}
	}
	if info.Size() == 0 {
		return CheckResult{Status: StatusDegraded, Message: "file is empty"}
	}
	return CheckResult{Status: StatusHealthy, Message: "last modified " + info.ModTime().UTC().Format("2006-01-02T15:04:05Z")}
}

// BreakerChecker reports an open image circuit breaker as degraded.
type BreakerChecker struct {
	name string
	cb   *resilience.CircuitBreaker
}

// NewBreakerChecker wraps cb.
func NewBreakerChecker(name string, cb *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{name: name, cb: cb}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	switch st := c.cb.State(); st {
	case resilience.StateClosed:
		return CheckResult{Status: StatusHealthy, Message: string(st)}
	default:
		return CheckResult{Status: StatusDegraded, Message: string(st)}
	}
}
