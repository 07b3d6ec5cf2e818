// Package geocoding resolves city names to coordinates through Mapbox.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"example.com/activities/internal/geo"
	"example.com/activities/internal/observability"
)

// DefaultMapboxBaseURL is the public Mapbox API host.
const DefaultMapboxBaseURL = "https://api.mapbox.com"

// candidateLimit mirrors the number of candidates requested per lookup.
const candidateLimit = 2

// StatusError reports a non-successful response from the geocoding API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocoding api returned %d: %s", e.Status, e.Body)
}

// MapboxConfig configures MapboxClient.
type MapboxConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	// RatePerSecond caps outbound lookups; zero disables the limiter.
	RatePerSecond float64
}

// MapboxClient implements geo.Geocoder with the Mapbox forward geocoding API.
type MapboxClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ geo.Geocoder = (*MapboxClient)(nil)

// NewMapboxClient constructs a client with sane defaults.
func NewMapboxClient(cfg MapboxConfig) *MapboxClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultMapboxBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &MapboxClient{
		baseURL:    baseURL,
		token:      cfg.AccessToken,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

type forwardResponse struct {
	Features []struct {
		PlaceName string `json:"place_name"`
		// Center is [longitude, latitude].
		Center []float64 `json:"center"`
	} `json:"features"`
}

// Resolve returns the coordinates of the first candidate for place.
func (c *MapboxClient) Resolve(ctx context.Context, place string) (geo.Coordinate, error) {
	ctx, span := otel.Tracer("activities/geocoding").Start(ctx, "MapboxClient.Resolve",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("place", place)))
	defer span.End()

	coord, err := c.resolve(ctx, place)
	switch {
	case err == nil:
		observability.RecordGeocode("upstream", "ok")
	case errors.Is(err, geo.ErrPlaceNotFound):
		observability.RecordGeocode("upstream", "not_found")
	default:
		observability.RecordGeocode("upstream", "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocoding failed")
	}
	return coord, err
}

func (c *MapboxClient) resolve(ctx context.Context, place string) (geo.Coordinate, error) {
	query := strings.TrimSpace(place)
	if query == "" {
		return geo.Coordinate{}, geo.ErrPlaceNotFound
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return geo.Coordinate{}, err
	}

	params := url.Values{}
	params.Set("access_token", c.token)
	params.Set("limit", fmt.Sprint(candidateLimit))
	endpoint := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", c.baseURL, url.PathEscape(query), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return geo.Coordinate{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geo.Coordinate{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return geo.Coordinate{}, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload forwardResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return geo.Coordinate{}, fmt.Errorf("decode geocoding response: %w", err)
	}
	if len(payload.Features) == 0 {
		return geo.Coordinate{}, geo.ErrPlaceNotFound
	}

	center := payload.Features[0].Center
	if len(center) < 2 {
		return geo.Coordinate{}, fmt.Errorf("geocoding candidate %q has no center", payload.Features[0].PlaceName)
	}
	return geo.Coordinate{Lat: center[1], Lon: center[0]}, nil
}
