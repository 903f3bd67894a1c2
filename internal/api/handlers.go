package api

import (
	"bytes"
	"image/png"
	"net/http"
	"strconv"

	"github.com/ManuGH/venuecache/internal/log"
	"github.com/ManuGH/venuecache/internal/platform/httpx"
	"github.com/ManuGH/venuecache/internal/venue"
	"github.com/go-chi/chi/v5"
)

type venueList struct {
	Count  int           `json:"count"`
	Venues []venue.Venue `json:"venues"`
}

type catalogStatus struct {
	State  string `json:"state"`
	Venues int    `json:"venues"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.cfg.Version})
}

func (s *Server) handleListVenues(w http.ResponseWriter, r *http.Request) {
	venues := s.svc.ListVenues()
	if venues == nil {
		venues = []venue.Venue{}
	}
	writeJSON(w, http.StatusOK, venueList{Count: len(venues), Venues: venues})
}

func (s *Server) handleGetVenue(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrInvalidInput, "venue id must be an integer")
		return
	}
	v, ok := s.svc.GetVenueByID(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, ErrVenueNotFound, "")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.svc.RefreshCatalog()
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "catalog.refresh_requested").
		Msg("catalog refresh requested")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func (s *Server) handleCatalogStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalogStatus{
		State:  string(s.svc.CatalogState()),
		Venues: len(s.svc.ListVenues()),
	})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("url")
	if _, err := httpx.ParseRemote(raw); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrInvalidInput, "url must be an absolute http(s) URL")
		return
	}
	maxW, okW := s.dimension(q.Get("w"), s.cfg.MaxWidth)
	maxH, okH := s.dimension(q.Get("h"), s.cfg.MaxHeight)
	if !okW || !okH {
		writeError(w, r, http.StatusBadRequest, ErrInvalidInput, "w and h must be positive integers within the configured maximum")
		return
	}

	bm, ok := s.svc.RequestImage(r.Context(), raw, maxW, maxH)
	if !ok {
		if r.Context().Err() != nil {
			return
		}
		writeError(w, r, http.StatusBadGateway, ErrImageUnavailable, "")
		return
	}
	defer bm.Release()

	var buf bytes.Buffer
	if err := png.Encode(&buf, bm.Image()); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(log.FieldURL, httpx.Redact(raw)).
			Msg("png encode failed")
		writeError(w, r, http.StatusInternalServerError, ErrInternalServer, "")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Image-Width", strconv.Itoa(bm.Width()))
	w.Header().Set("X-Image-Height", strconv.Itoa(bm.Height()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// dimension parses a bound, defaulting to and capped by limit.
func (s *Server) dimension(raw string, limit int) (int, bool) {
	if raw == "" {
		return limit, limit > 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || (limit > 0 && n > limit) {
		return 0, false
	}
	return n, true
}
