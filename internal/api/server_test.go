package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/venuecache/internal/imaging"
	"github.com/ManuGH/venuecache/internal/loader"
	"github.com/ManuGH/venuecache/internal/venue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu       sync.Mutex
	venues   []venue.Venue
	image    *imaging.Bitmap
	gotURL   string
	gotW     int
	gotH     int
	refresh  atomic.Int32
	failImgs bool
}

func (f *fakeService) ListVenues() []venue.Venue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]venue.Venue(nil), f.venues...)
}

func (f *fakeService) GetVenueByID(id int64) (venue.Venue, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.venues {
		if v.ID == id {
			return v, true
		}
	}
	return venue.Venue{}, false
}

func (f *fakeService) RequestImage(_ context.Context, url string, maxW, maxH int) (*imaging.Bitmap, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotURL, f.gotW, f.gotH = url, maxW, maxH
	if f.failImgs {
		return nil, false
	}
	return f.image, true
}

func (f *fakeService) RefreshCatalog()            { f.refresh.Add(1) }
func (f *fakeService) CatalogState() loader.State { return loader.StateDelivered }

func newTestServer(t *testing.T, svc *fakeService) http.Handler {
	t.Helper()
	return New(svc, Config{MaxWidth: 200, MaxHeight: 100, Version: "test"}).Handler()
}

func sampleVenues() []venue.Venue {
	return []venue.Venue{
		{ID: 1, Name: "Blue Hall", Address: "1 Main St"},
		{ID: 7, Name: "Red Room", ImageURL: "http://example.com/red.png"},
	}
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	rr := do(t, newTestServer(t, &fakeService{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestListVenues(t *testing.T) {
	h := newTestServer(t, &fakeService{venues: sampleVenues()})
	rr := do(t, h, http.MethodGet, "/api/venues")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Count  int               `json:"count"`
		Venues []json.RawMessage `json:"venues"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Venues, 2)
}

func TestListVenues_EmptyIsArray(t *testing.T) {
	rr := do(t, newTestServer(t, &fakeService{}), http.MethodGet, "/api/venues")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"count":0,"venues":[]}`, rr.Body.String())
}

func TestGetVenue(t *testing.T) {
	h := newTestServer(t, &fakeService{venues: sampleVenues()})

	rr := do(t, h, http.MethodGet, "/api/venues/7")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Red Room")

	rr = do(t, h, http.MethodGet, "/api/venues/99")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "VENUE_NOT_FOUND")

	rr = do(t, h, http.MethodGet, "/api/venues/abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "INVALID_INPUT")
}

func TestRefreshCatalog(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(t, svc)
	rr := do(t, h, http.MethodPost, "/api/catalog/refresh")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, int32(1), svc.refresh.Load())

	rr = do(t, h, http.MethodGet, "/api/catalog/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCatalogStatus(t *testing.T) {
	rr := do(t, newTestServer(t, &fakeService{venues: sampleVenues()}), http.MethodGet, "/api/catalog/status")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"state":"delivered","venues":2}`, rr.Body.String())
}

func TestImage_EncodesPNGAndReleases(t *testing.T) {
	bm := imaging.NewBitmap(4, 3)
	bm.Image().Set(0, 0, color.RGBA{R: 255, A: 255})
	svc := &fakeService{image: bm}
	h := newTestServer(t, svc)

	rr := do(t, h, http.MethodGet, "/api/images?url=http%3A%2F%2Fexample.com%2Fa.png&w=50&h=40")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "4", rr.Header().Get("X-Image-Width"))
	assert.Equal(t, "3", rr.Header().Get("X-Image-Height"))

	img, err := png.Decode(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	assert.True(t, bm.Released())
	assert.Equal(t, "http://example.com/a.png", svc.gotURL)
	assert.Equal(t, 50, svc.gotW)
	assert.Equal(t, 40, svc.gotH)
}

func TestImage_DefaultsToConfiguredBounds(t *testing.T) {
	svc := &fakeService{image: imaging.NewBitmap(1, 1)}
	rr := do(t, newTestServer(t, svc), http.MethodGet, "/api/images?url=https://example.com/b.jpg")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 200, svc.gotW)
	assert.Equal(t, 100, svc.gotH)
}

func TestImage_BadRequests(t *testing.T) {
	h := newTestServer(t, &fakeService{})
	for _, target := range []string{
		"/api/images",
		"/api/images?url=ftp://example.com/a.png",
		"/api/images?url=http://example.com/a.png&w=0",
		"/api/images?url=http://example.com/a.png&w=abc",
		"/api/images?url=http://example.com/a.png&h=1000",
	} {
		rr := do(t, h, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestImage_UpstreamFailure(t *testing.T) {
	rr := do(t, newTestServer(t, &fakeService{failImgs: true}), http.MethodGet, "/api/images?url=http://example.com/a.png")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "IMAGE_UNAVAILABLE")
}

func TestRateLimit(t *testing.T) {
	h := New(&fakeService{}, Config{MaxWidth: 10, MaxHeight: 10, RateLimit: 3}).Handler()
	var limited bool
	for i := 0; i < 5; i++ {
		if do(t, h, http.MethodGet, "/healthz").Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited)
}

func TestMetricsEndpoint(t *testing.T) {
	h := New(&fakeService{}, Config{MaxWidth: 10, MaxHeight: 10, ServeMetrics: true}).Handler()
	_ = do(t, h, http.MethodGet, "/healthz")

	srv := httptest.NewServer(h)
	defer srv.Close()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, buf.String(), "venuecache_http_request_duration_seconds")
}
