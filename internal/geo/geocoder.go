package geo

import (
	"fmt"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/penichelab/ocean-dashboard/internal/ocean"
)

// Resolver turns raw coordinates into a human-readable place name.
// Without an API key it is a no-op and locations keep their given name.
type Resolver struct {
	enabled bool
}

func NewResolver(apiKey string) *Resolver {
	if apiKey == "" {
		return &Resolver{}
	}
	geocoder.ApiKey = apiKey
	return &Resolver{enabled: true}
}

func (r *Resolver) Enabled() bool { return r.enabled }

// Resolve fills in loc.Name via reverse geocoding. Failures are returned
// but callers treat the name as optional decoration.
func (r *Resolver) Resolve(loc ocean.Location) (ocean.Location, error) {
	if !r.enabled || loc.Name != "" {
		return loc, nil
	}
	addresses, err := geocoder.GeocodingReverse(geocoder.Location{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	})
	if err != nil {
		return loc, fmt.Errorf("reverse geocoding: %w", err)
	}
	if len(addresses) == 0 {
		return loc, nil
	}
	loc.Name = displayName(addresses[0])
	return loc, nil
}

func displayName(a geocoder.Address) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.City, a.State, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
