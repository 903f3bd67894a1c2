// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package venue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	xglog "github.com/ManuGH/venuecache/internal/log"
)

// ErrMalformedCatalog is returned for any catalog body that cannot be decoded.
var ErrMalformedCatalog = errors.New("venue: malformed catalog")

// timestamp decodes and encodes the catalog date layout.
type timestamp time.Time

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	*t = timestamp(parsed)
	return nil
}

func (t timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(DateLayout))
}

type wireSchedule struct {
	StartDate timestamp `json:"start_date"`
	EndDate   timestamp `json:"end_date"`
}

type wireVenue struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Address  string         `json:"address"`
	Phone    string         `json:"phone,omitempty"`
	ImageURL string         `json:"image_url,omitempty"`
	Schedule []wireSchedule `json:"schedule"`
}

// DecodeCatalog parses a catalog body (a JSON array of venues). Schedule items
// that end before they start are dropped; the venue itself is kept.
func DecodeCatalog(r io.Reader) ([]Venue, error) {
	var raw []wireVenue
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCatalog, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing content after array", ErrMalformedCatalog)
	}

	logger := xglog.WithComponent("venue")
	out := make([]Venue, 0, len(raw))
	for _, w := range raw {
		v := Venue{
			ID:       w.ID,
			Name:     w.Name,
			Address:  w.Address,
			Phone:    w.Phone,
			ImageURL: w.ImageURL,
		}
		items := make([]ScheduleItem, 0, len(w.Schedule))
		for _, s := range w.Schedule {
			items = append(items, ScheduleItem{Start: time.Time(s.StartDate), End: time.Time(s.EndDate)})
		}
		var dropped []ScheduleItem
		v.Schedule, dropped = ValidateSchedule(items)
		for _, item := range dropped {
			logger.Warn().
				Int64(xglog.FieldVenueID, w.ID).
				Str("start", item.StartString()).
				Str("end", item.EndString()).
				Msg("dropping schedule item that ends before it starts")
		}
		out = append(out, v)
	}
	return out, nil
}

func toWire(v Venue) wireVenue {
	wv := wireVenue{
		ID:       v.ID,
		Name:     v.Name,
		Address:  v.Address,
		Phone:    v.Phone,
		ImageURL: v.ImageURL,
		Schedule: make([]wireSchedule, 0, len(v.Schedule)),
	}
	for _, s := range v.Schedule {
		wv.Schedule = append(wv.Schedule, wireSchedule{
			StartDate: timestamp(s.Start),
			EndDate:   timestamp(s.End),
		})
	}
	return wv
}

// MarshalJSON renders a single venue in the catalog wire shape.
func (v Venue) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(v))
}

// EncodeCatalog writes venues in the catalog wire shape.
func EncodeCatalog(w io.Writer, venues []Venue) error {
	raw := make([]wireVenue, 0, len(venues))
	for _, v := range venues {
		raw = append(raw, toWire(v))
	}
	if err := json.NewEncoder(w).Encode(raw); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return nil
}
