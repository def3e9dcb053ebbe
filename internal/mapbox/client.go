// Package mapbox is a thin HTTP client for the Mapbox directions, geocoding
// and optimization APIs. Every exported call returns apperr kinds only.
package mapbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"backend-navi/internal/apperr"
	"backend-navi/internal/logging"
	"backend-navi/internal/metrics"
	"backend-navi/internal/shared/geo"

	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	breakerName     = "mapbox"
	maxResponseSize = 8 << 20
	geocodeCacheTTL = 10 * time.Minute
)

type Config struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	RatePerSec        float64
	MatrixConcurrency int
	HTTPClient        *http.Client
}

type Client struct {
	baseURL           string
	token             string
	timeout           time.Duration
	matrixConcurrency int

	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
	geocode *cache.Cache
}

// statusError is a non-2xx response from Mapbox.
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("mapbox status %d: %s", e.Status, e.Message)
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.MatrixConcurrency <= 0 {
		cfg.MatrixConcurrency = 4
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	burst := int(cfg.RatePerSec)
	if burst < 1 {
		burst = 1
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return &Client{
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		token:             cfg.Token,
		timeout:           cfg.Timeout,
		matrixConcurrency: cfg.MatrixConcurrency,
		http:              cfg.HTTPClient,
		limiter:           rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst),
		geocode:           cache.New(geocodeCacheTTL, 2*geocodeCacheTTL),
		cb: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
			// 4xx means we sent a bad request; the provider itself is healthy.
			IsSuccessful: func(err error) bool {
				var se *statusError
				if errors.As(err, &se) {
					return se.Status < http.StatusInternalServerError && se.Status != http.StatusTooManyRequests
				}
				return err == nil
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
				metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			},
		}),
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Directions returns routes through origin, waypoints and destination.
func (c *Client) Directions(ctx context.Context, req DirectionsRequest) (DirectionsResult, error) {
	res, err := c.directions(ctx, req)
	if err != nil {
		return DirectionsResult{}, apperr.Integration("mapbox directions", err)
	}
	return res, nil
}

func (c *Client) directions(ctx context.Context, req DirectionsRequest) (DirectionsResult, error) {
	points := make([]geo.Point, 0, len(req.Waypoints)+2)
	points = append(points, req.Origin)
	points = append(points, req.Waypoints...)
	points = append(points, req.Destination)

	q := url.Values{}
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	q.Set("steps", "true")
	q.Set("alternatives", strconv.FormatBool(req.Alternatives))
	q.Set("continue_straight", "false")
	q.Set("annotations", "distance,duration,speed")

	path := fmt.Sprintf("/directions/v5/mapbox/%s/%s", directionsProfile(req.Profile, req.Traffic), joinCoords(points))

	var res DirectionsResult
	if err := c.get(ctx, "directions", path, q, &res); err != nil {
		return DirectionsResult{}, err
	}
	if res.Code != "" && res.Code != "Ok" {
		return DirectionsResult{}, fmt.Errorf("mapbox directions code %s", res.Code)
	}
	return res, nil
}

func directionsProfile(profile string, traffic bool) string {
	if profile == "" {
		profile = ProfileDriving
	}
	if traffic && profile == ProfileDriving {
		return ProfileDrivingTraffic
	}
	return profile
}

// Optimize solves the visiting order of the given waypoints.
func (c *Client) Optimize(ctx context.Context, req OptimizeRequest) (OptimizationResult, error) {
	profile := req.Profile
	if profile == "" {
		profile = ProfileDriving
	}
	source, dest := req.Source, req.Destination
	if source == "" {
		source = "first"
	}
	if dest == "" {
		dest = "last"
	}

	q := url.Values{}
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	q.Set("steps", "true")
	q.Set("source", source)
	q.Set("destination", dest)
	q.Set("roundtrip", strconv.FormatBool(req.Roundtrip))

	path := fmt.Sprintf("/optimized-trips/v1/mapbox/%s/%s", profile, joinCoords(req.Waypoints))

	var res OptimizationResult
	if err := c.get(ctx, "optimization", path, q, &res); err != nil {
		return OptimizationResult{}, apperr.Integration("mapbox optimization", err)
	}
	if res.Code != "" && res.Code != "Ok" {
		return OptimizationResult{}, apperr.Integration("mapbox optimization", fmt.Errorf("code %s", res.Code))
	}
	return res, nil
}

// DistanceMatrix issues one directions call per origin/destination pair.
// Calls run with bounded concurrency; the first failure cancels the rest
// and fails the whole matrix.
func (c *Client) DistanceMatrix(ctx context.Context, origins, destinations []geo.Point) (Matrix, error) {
	cells := make([][]MatrixCell, len(origins))
	for i := range cells {
		cells[i] = make([]MatrixCell, len(destinations))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.matrixConcurrency)
	for i, o := range origins {
		for j, d := range destinations {
			g.Go(func() error {
				res, err := c.directions(gctx, DirectionsRequest{Origin: o, Destination: d})
				if err != nil {
					return fmt.Errorf("cell %d,%d: %w", i, j, err)
				}
				if len(res.Routes) == 0 {
					return fmt.Errorf("cell %d,%d: no route", i, j)
				}
				cells[i][j] = MatrixCell{Distance: res.Routes[0].Distance, Duration: res.Routes[0].Duration}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return Matrix{}, apperr.Integration("mapbox distance matrix", err)
	}
	return Matrix{Matrix: cells}, nil
}

// Geocode resolves an address to its best match. Results are cached.
func (c *Client) Geocode(ctx context.Context, address string) (GeocodeResult, error) {
	key := strings.ToLower(strings.TrimSpace(address))
	if v, ok := c.geocode.Get(key); ok {
		metrics.GeocodeCacheHits.Inc()
		return v.(GeocodeResult), nil
	}
	metrics.GeocodeCacheMisses.Inc()

	q := url.Values{}
	q.Set("limit", "1")

	var fc featureCollection
	if err := c.get(ctx, "geocode", "/geocoding/v5/mapbox.places/"+url.PathEscape(address)+".json", q, &fc); err != nil {
		return GeocodeResult{}, apperr.Integration("mapbox geocode", err)
	}
	if len(fc.Features) == 0 {
		return GeocodeResult{}, apperr.NotFound("address not found")
	}
	f := fc.Features[0]
	res := GeocodeResult{
		Coordinates: f.coordinates(),
		PlaceName:   f.PlaceName,
		PlaceType:   f.PlaceType,
		Context:     f.Context,
	}
	c.geocode.SetDefault(key, res)
	return res, nil
}

func (c *Client) ReverseGeocode(ctx context.Context, p geo.Point) (ReverseResult, error) {
	q := url.Values{}
	q.Set("limit", "1")

	var fc featureCollection
	if err := c.get(ctx, "reverse_geocode", "/geocoding/v5/mapbox.places/"+coord(p)+".json", q, &fc); err != nil {
		return ReverseResult{}, apperr.Integration("mapbox reverse geocode", err)
	}
	if len(fc.Features) == 0 {
		return ReverseResult{}, apperr.NotFound("location not found")
	}
	f := fc.Features[0]
	return ReverseResult{Address: f.PlaceName, PlaceType: f.PlaceType, Context: f.Context}, nil
}

// SearchPlaces looks up POIs and addresses, biased towards proximity when
// given.
func (c *Client) SearchPlaces(ctx context.Context, query string, proximity *geo.Point, limit int) ([]PlaceResult, error) {
	if limit <= 0 || limit > 10 {
		limit = 10
	}
	q := url.Values{}
	q.Set("types", "poi,address")
	q.Set("limit", strconv.Itoa(limit))
	if proximity != nil {
		q.Set("proximity", coord(*proximity))
	}

	var fc featureCollection
	if err := c.get(ctx, "search", "/geocoding/v5/mapbox.places/"+url.PathEscape(query)+".json", q, &fc); err != nil {
		return nil, apperr.Integration("mapbox place search", err)
	}
	out := make([]PlaceResult, 0, len(fc.Features))
	for _, f := range fc.Features {
		out = append(out, PlaceResult{
			ID:          f.ID,
			Name:        f.Text,
			PlaceName:   f.PlaceName,
			Coordinates: f.coordinates(),
			PlaceType:   f.PlaceType,
			Relevance:   f.Relevance,
		})
	}
	return out, nil
}

func (f feature) coordinates() []float64 {
	if len(f.Geometry.Coordinates) > 0 {
		return f.Geometry.Coordinates
	}
	return f.Center
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	start := time.Now()
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.do(ctx, path, q)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.ExternalRequests.WithLabelValues(breakerName, op, "rejected").Inc()
		return err
	}
	metrics.ObserveExternal(breakerName, op, start, err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("operation", op).Msg("mapbox request failed")
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, q url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q.Set("access_token", c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &payload)
		return nil, &statusError{Status: resp.StatusCode, Message: payload.Message}
	}
	return body, nil
}

func coord(p geo.Point) string {
	return strconv.FormatFloat(p.Lng, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}

func joinCoords(points []geo.Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = coord(p)
	}
	return strings.Join(parts, ";")
}
