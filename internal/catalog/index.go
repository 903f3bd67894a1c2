package catalog

import (
	"sync/atomic"

	"github.com/ManuGH/venuecache/internal/venue"
)

// Lookup is the read-only view collaborators get of the index.
type Lookup interface {
	Get(id int64) (venue.Venue, bool)
	List() []venue.Venue
	Len() int
}

type table struct {
	byID  map[int64]venue.Venue
	order []venue.Venue
}

var emptyTable = &table{byID: map[int64]venue.Venue{}}

// Index maps venue ids to venues of the most recently delivered snapshot.
// Readers never observe a partially built table.
type Index struct {
	cur atomic.Pointer[table]
}

var _ Lookup = (*Index)(nil)

// NewIndex returns an empty index.
func NewIndex() *Index {
	idx := &Index{}
	idx.cur.Store(emptyTable)
	return idx
}

// Replace swaps in a table built from venues. A later duplicate id overrides
// the earlier entry in place.
func (i *Index) Replace(venues []venue.Venue) {
	t := &table{
		byID:  make(map[int64]venue.Venue, len(venues)),
		order: make([]venue.Venue, 0, len(venues)),
	}
	pos := make(map[int64]int, len(venues))
	for _, v := range venues {
		if at, dup := pos[v.ID]; dup {
			t.order[at] = v
		} else {
			pos[v.ID] = len(t.order)
			t.order = append(t.order, v)
		}
		t.byID[v.ID] = v
	}
	i.cur.Store(t)
}

// Clear empties the index.
func (i *Index) Clear() { i.cur.Store(emptyTable) }

func (i *Index) Get(id int64) (venue.Venue, bool) {
	v, ok := i.cur.Load().byID[id]
	return v, ok
}

// List returns the venues in catalog order.
func (i *Index) List() []venue.Venue {
	t := i.cur.Load()
	out := make([]venue.Venue, len(t.order))
	copy(out, t.order)
	return out
}

func (i *Index) Len() int { return len(i.cur.Load().order) }
