package imaging

import (
	"context"

	"github.com/ManuGH/venuecache/internal/loader"
)

// Loader is the image loader type.
type Loader = loader.Loader[*Bitmap]

// NewLoader builds a loader for one image request. Discarded and superseded
// bitmaps are released automatically.
func NewLoader(f *Fetcher, req Request, pool *loader.Pool, disp *loader.Dispatcher, cb loader.Callbacks[*Bitmap]) *Loader {
	return loader.New(pool, disp, loader.Options[*Bitmap]{
		Name:    "image",
		Fetch:   func(ctx context.Context) *Bitmap { return f.Fetch(ctx, req) },
		Release: func(b *Bitmap) { b.Release() },
	}, cb)
}
