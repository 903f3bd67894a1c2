// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package venue holds the catalog entities and their JSON wire codec.
package venue

import "time"

// DateLayout is the catalog timestamp format (yyyy-MM-dd HH:mm:ss Z).
const DateLayout = "2006-01-02 15:04:05 -0700"

// ScheduleItem is one scheduled event window at a venue.
type ScheduleItem struct {
	Start time.Time
	End   time.Time
}

// Equal reports whether both items describe the same (start, end) window.
func (s ScheduleItem) Equal(o ScheduleItem) bool {
	return s.Start.Equal(o.Start) && s.End.Equal(o.End)
}

// Valid reports whether the window does not end before it starts.
func (s ScheduleItem) Valid() bool {
	return !s.End.Before(s.Start)
}

// StartString formats Start in the catalog layout.
func (s ScheduleItem) StartString() string { return s.Start.Format(DateLayout) }

// EndString formats End in the catalog layout.
func (s ScheduleItem) EndString() string { return s.End.Format(DateLayout) }

// Venue is one catalog record. Values are never mutated after decoding;
// Schedule is shared with the snapshot it came from, so callers must not modify it.
type Venue struct {
	ID       int64
	Name     string
	Address  string
	Phone    string
	ImageURL string
	Schedule []ScheduleItem
}

// HasImage reports whether the venue advertises an image.
func (v Venue) HasImage() bool { return v.ImageURL != "" }

// ScheduleItems returns a copy of the schedule in source order.
func (v Venue) ScheduleItems() []ScheduleItem {
	out := make([]ScheduleItem, len(v.Schedule))
	copy(out, v.Schedule)
	return out
}

// ValidateSchedule splits items into those kept and those dropped because
// they end before they start. Source order is preserved in both.
func ValidateSchedule(items []ScheduleItem) (valid, dropped []ScheduleItem) {
	valid = make([]ScheduleItem, 0, len(items))
	for _, it := range items {
		if it.Valid() {
			valid = append(valid, it)
		} else {
			dropped = append(dropped, it)
		}
	}
	return valid, dropped
}
