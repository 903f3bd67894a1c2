package catalog

import (
	"context"

	"github.com/ManuGH/venuecache/internal/loader"
	"github.com/ManuGH/venuecache/internal/metrics"
	"github.com/ManuGH/venuecache/internal/venue"
)

// Loader is the catalog loader type.
type Loader = loader.Loader[[]venue.Venue]

// NewLoader builds a catalog loader that keeps idx in step with its deliveries.
func NewLoader(f *Fetcher, idx *Index, pool *loader.Pool, disp *loader.Dispatcher, cb loader.Callbacks[[]venue.Venue]) *Loader {
	return loader.New(pool, disp, loader.Options[[]venue.Venue]{
		Name:  "catalog",
		Fetch: func(ctx context.Context) []venue.Venue { return f.Fetch(ctx) },
		OnDeliver: func(venues []venue.Venue) {
			idx.Replace(venues)
			metrics.RecordCatalogVenues(len(venues))
		},
		OnReset: func() {
			idx.Clear()
			metrics.RecordCatalogVenues(0)
		},
	}, cb)
}
