// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package service is the surface presentation code talks to: venue lookups,
// image requests, catalog refreshes and change notifications.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/ManuGH/venuecache/internal/catalog"
	"github.com/ManuGH/venuecache/internal/imaging"
	"github.com/ManuGH/venuecache/internal/loader"
	xglog "github.com/ManuGH/venuecache/internal/log"
	"github.com/ManuGH/venuecache/internal/venue"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("service closed")

// EventKind names a notification.
type EventKind string

const (
	EventCatalogDelivered EventKind = "catalog_delivered"
	EventCatalogReset     EventKind = "catalog_reset"
	EventImageDiscarded   EventKind = "image_discarded"
)

// Event tells subscribers that data they may hold is stale.
type Event struct {
	Kind   EventKind
	Source string
}

// Deps are the collaborators a Service is built from. Pool and Dispatcher
// are owned by the caller and must be running.
type Deps struct {
	Catalog    *catalog.Fetcher
	Images     *imaging.Fetcher
	Pool       *loader.Pool
	Dispatcher *loader.Dispatcher
}

// Service wires the catalog loader, the lookup index and on-demand image
// loaders together.
type Service struct {
	idx     *catalog.Index
	catalog *catalog.Loader
	images  *imaging.Fetcher
	pool    *loader.Pool
	disp    *loader.Dispatcher
	logger  zerolog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// New builds a Service. The catalog is not fetched until Start.
func New(d Deps) *Service {
	s := &Service{
		idx:    catalog.NewIndex(),
		images: d.Images,
		pool:   d.Pool,
		disp:   d.Dispatcher,
		logger: xglog.WithComponent("service"),
		ready:  make(chan struct{}),
		subs:   make(map[int]chan Event),
	}
	s.catalog = catalog.NewLoader(d.Catalog, s.idx, d.Pool, d.Dispatcher, loader.Callbacks[[]venue.Venue]{
		OnLoadFinished: func(venues []venue.Venue) {
			s.readyOnce.Do(func() { close(s.ready) })
			s.logger.Info().Int("venues", len(venues)).Msg("catalog delivered")
			s.publish(Event{Kind: EventCatalogDelivered, Source: "catalog"})
		},
		OnReset: func() {
			s.publish(Event{Kind: EventCatalogReset, Source: "catalog"})
		},
	})
	return s
}

// Start begins loading the catalog, or redelivers the held snapshot.
func (s *Service) Start() { s.catalog.Start() }

// Lookup exposes the read-only index.
func (s *Service) Lookup() catalog.Lookup { return s.idx }

// ListVenues returns the venues of the most recent catalog delivery.
func (s *Service) ListVenues() []venue.Venue { return s.idx.List() }

// VenueCount is the size of the most recent delivery.
func (s *Service) VenueCount() int { return s.idx.Len() }

// GetVenueByID looks a venue up in the most recent delivery.
func (s *Service) GetVenueByID(id int64) (venue.Venue, bool) { return s.idx.Get(id) }

// RefreshCatalog asks for a fresh conditional fetch.
func (s *Service) RefreshCatalog() { s.catalog.ForceLoad() }

// ResetCatalog drops the held snapshot and clears the index.
func (s *Service) ResetCatalog() { s.catalog.Reset() }

// WaitCatalog blocks until the first catalog delivery or ctx is done.
func (s *Service) WaitCatalog(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CatalogState reports the catalog loader's lifecycle state.
func (s *Service) CatalogState() loader.State { return s.catalog.State() }

// RequestImage loads url scaled to fit maxW×maxH. On success the caller owns
// the bitmap and must Release it. Failures and cancellation yield false.
func (s *Service) RequestImage(ctx context.Context, url string, maxW, maxH int) (*imaging.Bitmap, bool) {
	if s.isClosed() {
		return nil, false
	}
	delivered := make(chan *imaging.Bitmap, 1)
	l := imaging.NewLoader(s.images, imaging.Request{URL: url, MaxWidth: maxW, MaxHeight: maxH}, s.pool, s.disp,
		loader.Callbacks[*imaging.Bitmap]{
			OnLoadFinished: func(b *imaging.Bitmap) {
				select {
				case delivered <- b:
				default:
				}
			},
		})
	l.Start()

	select {
	case bm := <-delivered:
		// Ownership moves to the caller; the loader is dropped without Reset.
		l.Stop()
		return bm, bm != nil
	case <-ctx.Done():
		// Reset releases a result that raced in and discards anything later.
		l.Reset()
		s.publish(Event{Kind: EventImageDiscarded, Source: url})
		return nil, false
	}
}

// Subscribe returns a channel of notifications and a cancel func. Slow
// subscribers miss events rather than block delivery.
func (s *Service) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, 16)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Service) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Debug().Str(xglog.FieldEvent, string(ev.Kind)).Msg("subscriber lagging, event dropped")
		}
	}
}

// Close stops the catalog loader and closes every subscription. The held
// snapshot stays readable.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.catalog.Stop()
	return nil
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
