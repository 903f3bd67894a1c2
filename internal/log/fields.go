// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldLoader    = "loader"
	FieldVenueID   = "venue_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldErrorKind = "error_kind"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath     = "path"
	FieldURL      = "url"
	FieldCacheDir = "cache_dir"

	// Image fields
	FieldWidth        = "width"
	FieldHeight       = "height"
	FieldSampleFactor = "sample_factor"
)
