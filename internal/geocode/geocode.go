// Package geocode resolves free-text addresses to coordinates. Lookups are
// best effort: callers get an optional point and never an error.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	geo "github.com/codingsince1985/geo-golang"
	"github.com/codingsince1985/geo-golang/openstreetmap"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"dispatch-service/internal/metrics"
)

// ErrNotFound is returned by a Geocoder when the address has no match.
var ErrNotFound = errors.New("address not found")

type Geocoder interface {
	Lookup(ctx context.Context, address string) (orb.Point, error)
}

// Result is the outcome of a best-effort lookup. Found is false whenever the
// geocoder failed for any reason.
type Result struct {
	Point orb.Point
	Found bool
}

// Lat and Lon return pointers suitable for nullable columns, nil when not found.
func (r Result) Lat() *float64 {
	if !r.Found {
		return nil
	}
	v := r.Point.Lat()
	return &v
}

func (r Result) Lon() *float64 {
	if !r.Found {
		return nil
	}
	v := r.Point.Lon()
	return &v
}

// Resolve runs one lookup and swallows every failure after logging it.
func Resolve(ctx context.Context, g Geocoder, log zerolog.Logger, address string) Result {
	address = strings.TrimSpace(address)
	if g == nil || address == "" {
		return Result{}
	}
	point, err := g.Lookup(ctx, address)
	switch {
	case err == nil:
		metrics.IncGeocodeLookup(metrics.GeocodeFound)
		return Result{Point: point, Found: true}
	case errors.Is(err, ErrNotFound):
		metrics.IncGeocodeLookup(metrics.GeocodeNotFound)
		log.Info().Str("address", address).Msg("geocoder found no match")
	default:
		metrics.IncGeocodeLookup(metrics.GeocodeFailed)
		log.Warn().Err(err).Str("address", address).Msg("geocoding failed")
	}
	return Result{}
}

// Nominatim adapts the OpenStreetMap provider of geo-golang to Geocoder.
type Nominatim struct {
	geocoder geo.Geocoder
	timeout  time.Duration
}

// NewNominatim accepts either the service root or its /search endpoint.
func NewNominatim(baseURL string, timeout time.Duration) *Nominatim {
	return &Nominatim{
		geocoder: openstreetmap.GeocoderWithURL(serviceRoot(baseURL)),
		timeout:  timeout,
	}
}

type lookupOutcome struct {
	location *geo.Location
	err      error
}

// Lookup returns once the provider answers or ctx (bounded by the configured
// timeout) is done, whichever comes first.
func (n *Nominatim) Lookup(ctx context.Context, address string) (orb.Point, error) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	done := make(chan lookupOutcome, 1)
	go func() {
		location, err := n.geocoder.Geocode(address)
		done <- lookupOutcome{location: location, err: err}
	}()

	select {
	case <-ctx.Done():
		return orb.Point{}, fmt.Errorf("nominatim lookup: %w", ctx.Err())
	case out := <-done:
		if out.err != nil {
			return orb.Point{}, fmt.Errorf("nominatim lookup: %w", out.err)
		}
		if out.location == nil {
			return orb.Point{}, ErrNotFound
		}
		return orb.Point{out.location.Lng, out.location.Lat}, nil
	}
}

func serviceRoot(baseURL string) string {
	root := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	root = strings.TrimSuffix(root, "/search")
	return root + "/"
}
