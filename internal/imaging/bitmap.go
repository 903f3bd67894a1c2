// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package imaging

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/venuecache/internal/metrics"
)

var (
	// pixPool recycles RGBA backing arrays between bitmaps.
	pixPool   sync.Pool
	liveBytes atomic.Int64
)

// LiveBytes is the pixel memory held by bitmaps that were not yet released.
func LiveBytes() int64 { return liveBytes.Load() }

func getPix(n int) []byte {
	if p, ok := pixPool.Get().(*[]byte); ok && cap(*p) >= n {
		buf := (*p)[:n]
		clear(buf)
		return buf
	}
	return make([]byte, n)
}

func putPix(buf []byte) {
	buf = buf[:0]
	pixPool.Put(&buf)
}

// Bitmap is a decoded image whose pixel memory is owned by the holder until
// Release is called.
type Bitmap struct {
	img      *image.RGBA
	released atomic.Bool
}

// NewBitmap allocates a w×h bitmap from the pixel pool.
func NewBitmap(w, h int) *Bitmap {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	pix := getPix(4 * w * h)
	liveBytes.Add(int64(len(pix)))
	metrics.AddImageLiveBytes(len(pix))
	return &Bitmap{img: &image.RGBA{Pix: pix, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}}
}

// Image exposes the pixels. It returns nil once the bitmap is released.
func (b *Bitmap) Image() *image.RGBA {
	if b == nil || b.released.Load() {
		return nil
	}
	return b.img
}

func (b *Bitmap) Width() int  { return b.img.Rect.Dx() }
func (b *Bitmap) Height() int { return b.img.Rect.Dy() }

// Bytes is the size of the pixel buffer.
func (b *Bitmap) Bytes() int { return len(b.img.Pix) }

// Released reports whether Release has run.
func (b *Bitmap) Released() bool { return b.released.Load() }

// Release returns the pixels to the pool. It is safe to call on a nil bitmap
// and more than once.
func (b *Bitmap) Release() {
	if b == nil || !b.released.CompareAndSwap(false, true) {
		return
	}
	liveBytes.Add(-int64(len(b.img.Pix)))
	metrics.AddImageLiveBytes(-len(b.img.Pix))
	putPix(b.img.Pix)
	b.img = &image.RGBA{Rect: b.img.Rect}
}
