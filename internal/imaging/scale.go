package imaging

import (
	"context"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// SampleFactor returns the largest power of two f for which both
// (h/2)/f > maxH and (w/2)/f > maxW hold, or 1 when none does.
func SampleFactor(w, h, maxW, maxH int) int {
	if w <= maxW && h <= maxH {
		return 1
	}
	halfW, halfH := w/2, h/2
	f := 1
	for halfH/(f*2) > maxH && halfW/(f*2) > maxW {
		f *= 2
	}
	return f
}

// FitSize returns the exact size that fits w×h inside maxW×maxH with a single
// uniform scale, or w×h unchanged when it already fits.
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	fw := max(1, int(math.Round(float64(w)*scale)))
	fh := max(1, int(math.Round(float64(h)*scale)))
	return min(fw, maxW), min(fh, maxH)
}

// subsample copies every f-th pixel of src into a new bitmap.
func subsample(src image.Image, f int) *Bitmap {
	b := src.Bounds()
	dst := NewBitmap(max(1, b.Dx()/f), max(1, b.Dy()/f))
	draw.NearestNeighbor.Scale(dst.img, dst.img.Rect, src, b, draw.Src, nil)
	return dst
}

// native copies src into a bitmap at its own resolution.
func native(src image.Image) *Bitmap {
	b := src.Bounds()
	dst := NewBitmap(b.Dx(), b.Dy())
	draw.Draw(dst.img, dst.img.Rect, src, b.Min, draw.Src)
	return dst
}

// fit scales bm down to fit maxW×maxH. bm is released when a new bitmap
// replaces it.
func fit(ctx context.Context, bm *Bitmap, maxW, maxH int) (*Bitmap, error) {
	w, h := FitSize(bm.Width(), bm.Height(), maxW, maxH)
	if w == bm.Width() && h == bm.Height() {
		return bm, nil
	}
	if err := ctx.Err(); err != nil {
		bm.Release()
		return nil, err
	}
	dst := NewBitmap(w, h)
	draw.BiLinear.Scale(dst.img, dst.img.Rect, bm.img, bm.img.Rect, draw.Src, nil)
	bm.Release()
	return dst, nil
}
