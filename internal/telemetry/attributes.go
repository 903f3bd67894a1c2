package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by catalog and image spans.
const (
	HTTPURLKey = "http.url"

	CatalogOutcomeKey = "catalog.outcome"
	CatalogVenuesKey  = "catalog.venues"

	ImageMaxWidthKey     = "image.max_width"
	ImageMaxHeightKey    = "image.max_height"
	ImageWidthKey        = "image.width"
	ImageHeightKey       = "image.height"
	ImageSampleFactorKey = "image.sample_factor"

	ErrorKindKey = "error.kind"
)

// ImageRequestAttributes describes an image load before it runs.
func ImageRequestAttributes(url string, maxW, maxH int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPURLKey, url),
		attribute.Int(ImageMaxWidthKey, maxW),
		attribute.Int(ImageMaxHeightKey, maxH),
	}
}

// ImageResultAttributes describes a decoded image.
func ImageResultAttributes(w, h, sampleFactor int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ImageWidthKey, w),
		attribute.Int(ImageHeightKey, h),
		attribute.Int(ImageSampleFactorKey, sampleFactor),
	}
}

// RecordError marks span failed with err and its kind.
func RecordError(span trace.Span, kind string, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String(ErrorKindKey, kind))
	span.SetStatus(codes.Error, err.Error())
}
