package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rendezvous/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// ErrGeocoderUnavailable wraps transport, timeout and non-2xx failures of the geocoding service.
var ErrGeocoderUnavailable = errors.New("geocoder unavailable")

// Geocoder resolves a free-form address to a position.
// A nil point with a nil error means the address has no match.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Point, error)
}

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org"
	defaultUserAgent    = "rendezvous-api/1.0"
	defaultTimeout      = 5 * time.Second
)

// NominatimGeocoder queries an OpenStreetMap Nominatim search endpoint.
type NominatimGeocoder struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
}

// NewNominatimGeocoder returns a geocoder for baseURL. Empty values fall back to defaults.
func NewNominatimGeocoder(baseURL, userAgent string, timeout time.Duration) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = defaultNominatimURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &NominatimGeocoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		timeout:   timeout,
	}
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode returns the position of the first search result for address.
func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) (*Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		observability.GeocodeRequests.WithLabelValues("empty").Inc()
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		observability.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGeocoderUnavailable, err)
	}

	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	query := url.Values{}
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")

	agent := fiber.Get(g.baseURL + "/search?" + query.Encode())
	agent.UserAgent(g.userAgent)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	agent.Timeout(timeout)
	if err := agent.Parse(); err != nil {
		observability.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGeocoderUnavailable, err)
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		observability.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGeocoderUnavailable, errors.Join(errs...))
	}
	if status < 200 || status >= 300 {
		observability.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: unexpected status %d", ErrGeocoderUnavailable, status)
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		observability.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode geocoder response: %w", err)
	}
	if len(places) == 0 {
		observability.GeocodeRequests.WithLabelValues("miss").Inc()
		return nil, nil
	}

	point, err := places[0].point()
	if err != nil {
		observability.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	observability.GeocodeRequests.WithLabelValues("hit").Inc()
	return point, nil
}

func (p nominatimPlace) point() (*Point, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(p.Lat), 64)
	if err != nil {
		return nil, fmt.Errorf("parse latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(p.Lon), 64)
	if err != nil {
		return nil, fmt.Errorf("parse longitude %q: %w", p.Lon, err)
	}
	point := &Point{Latitude: lat, Longitude: lon}
	if err := point.Validate(); err != nil {
		return nil, err
	}
	return point, nil
}
