package mapbox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"backend-navi/internal/apperr"
	"backend-navi/internal/shared/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const directionsBody = `{"code":"Ok","routes":[{"distance":1200.5,"duration":300,"geometry":{"type":"LineString","coordinates":[[106.8,-6.2],[106.81,-6.21]]},"legs":[]}],"waypoints":[]}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:           srv.URL,
		Token:             "pk.test",
		Timeout:           2 * time.Second,
		RatePerSec:        1000,
		MatrixConcurrency: 2,
	})
}

func TestDirectionsBuildsRequest(t *testing.T) {
	var gotPath, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		_, _ = w.Write([]byte(directionsBody))
	})

	res, err := c.Directions(context.Background(), DirectionsRequest{
		Origin:      geo.Point{Lng: 106.8, Lat: -6.2},
		Destination: geo.Point{Lng: 106.9, Lat: -6.3},
		Waypoints:   []geo.Point{{Lng: 106.85, Lat: -6.25}},
		Traffic:     true,
	})
	require.NoError(t, err)
	require.Len(t, res.Routes, 1)
	assert.Equal(t, 1200.5, res.Routes[0].Distance)
	assert.Equal(t, "/directions/v5/mapbox/driving-traffic/106.8,-6.2;106.85,-6.25;106.9,-6.3", gotPath)
	assert.Contains(t, gotQuery, "geometries=geojson")
	assert.Contains(t, gotQuery, "steps=true")
	assert.Contains(t, gotQuery, "access_token=pk.test")
}

func TestDirectionsProfile(t *testing.T) {
	assert.Equal(t, "driving", directionsProfile("", false))
	assert.Equal(t, "driving-traffic", directionsProfile("", true))
	assert.Equal(t, "walking", directionsProfile("walking", true))
}

func TestProviderErrorIsIntegration(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"InvalidInput"}`))
	})

	_, err := c.Directions(context.Background(), DirectionsRequest{
		Origin:      geo.Point{Lng: 1, Lat: 1},
		Destination: geo.Point{Lng: 2, Lat: 2},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrIntegration))

	var se *statusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnprocessableEntity, se.Status)
	assert.Equal(t, "InvalidInput", se.Message)
}

func TestDistanceMatrixIssuesOneCallPerPair(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(directionsBody))
	})

	origins := []geo.Point{{Lng: 1, Lat: 1}, {Lng: 2, Lat: 2}}
	dests := []geo.Point{{Lng: 3, Lat: 3}, {Lng: 4, Lat: 4}}
	m, err := c.DistanceMatrix(context.Background(), origins, dests)
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())
	require.Len(t, m.Matrix, 2)
	for _, row := range m.Matrix {
		require.Len(t, row, 2)
		for _, cell := range row {
			assert.Equal(t, 1200.5, cell.Distance)
			assert.Equal(t, 300.0, cell.Duration)
		}
	}
}

func TestDistanceMatrixFailsWhenOneCellFails(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(directionsBody))
	})

	origins := []geo.Point{{Lng: 1, Lat: 1}, {Lng: 2, Lat: 2}}
	dests := []geo.Point{{Lng: 3, Lat: 3}, {Lng: 4, Lat: 4}}
	m, err := c.DistanceMatrix(context.Background(), origins, dests)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrIntegration))
	assert.Nil(t, m.Matrix)
}

func TestGeocodeCachesResults(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/geocoding/v5/mapbox.places/"))
		_, _ = w.Write([]byte(`{"features":[{"id":"address.1","text":"Monas","place_name":"Monas, Jakarta","place_type":["poi"],"geometry":{"coordinates":[106.8271,-6.1754]}}]}`))
	})

	for i := 0; i < 3; i++ {
		res, err := c.Geocode(context.Background(), "Monas Jakarta")
		require.NoError(t, err)
		assert.Equal(t, []float64{106.8271, -6.1754}, res.Coordinates)
		assert.Equal(t, "Monas, Jakarta", res.PlaceName)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeocodeNoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	})
	_, err := c.Geocode(context.Background(), "nowhere at all")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = c.ReverseGeocode(context.Background(), geo.Point{Lng: 0, Lat: 0})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestReverseGeocodeAndSearch(t *testing.T) {
	var gotPath, gotProximity string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotProximity = r.URL.Query().Get("proximity")
		_, _ = w.Write([]byte(`{"features":[{"id":"poi.1","text":"Cafe","place_name":"Cafe, Bandung","place_type":["poi"],"relevance":0.9,"center":[107.6,-6.9]}]}`))
	})

	rev, err := c.ReverseGeocode(context.Background(), geo.Point{Lng: 107.6, Lat: -6.9})
	require.NoError(t, err)
	assert.Equal(t, "Cafe, Bandung", rev.Address)
	assert.Equal(t, "/geocoding/v5/mapbox.places/107.6,-6.9.json", gotPath)

	near := geo.Point{Lng: 107.6, Lat: -6.9}
	places, err := c.SearchPlaces(context.Background(), "cafe", &near, 5)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Cafe", places[0].Name)
	assert.Equal(t, []float64{107.6, -6.9}, places[0].Coordinates)
	assert.Equal(t, "107.6,-6.9", gotProximity)
}

func TestOptimizeDefaults(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"code":"Ok","trips":[{"distance":10,"duration":5,"geometry":{"type":"LineString","coordinates":[]},"legs":[]}],"waypoints":[{"waypoint_index":1,"trips_index":0,"location":[1,1]}]}`))
	})

	res, err := c.Optimize(context.Background(), OptimizeRequest{Waypoints: []geo.Point{{Lng: 1, Lat: 1}, {Lng: 2, Lat: 2}}})
	require.NoError(t, err)
	require.Len(t, res.Trips, 1)
	assert.Contains(t, gotQuery, "source=first")
	assert.Contains(t, gotQuery, "destination=last")
	assert.Contains(t, gotQuery, "roundtrip=false")
}

func TestTimeoutIsIntegration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond, RatePerSec: 100})

	_, err := c.ReverseGeocode(context.Background(), geo.Point{Lng: 1, Lat: 1})
	assert.True(t, errors.Is(err, apperr.ErrIntegration))
}
