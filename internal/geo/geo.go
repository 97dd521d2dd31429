// Package geo resolves street addresses to coordinates. Geocoding is an
// external collaborator: the only contract is Resolve, and a miss is a
// sentinel the caller turns into a hard create failure, because downstream
// map display depends on coordinates.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pledgeit/pkg/platform/sentinel"
)

// Resolver turns an address into coordinates.
type Resolver interface {
	Resolve(ctx context.Context, address string) (lat, lon float64, err error)
}

// Nominatim resolves addresses against OpenStreetMap's Nominatim API.
type Nominatim struct {
	baseURL string
	client  *http.Client
}

// NewNominatim builds a resolver with a bounded per-call timeout; a
// timed-out geocode is a hard failure for event creation, never a hang.
func NewNominatim(baseURL string, timeout time.Duration) *Nominatim {
	return &Nominatim{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Resolve queries Nominatim and returns the first match. No match returns
// sentinel.ErrNotFound; transport errors return sentinel.ErrUnavailable.
func (n *Nominatim) Resolve(ctx context.Context, address string) (float64, float64, error) {
	query := url.Values{"q": {address}, "format": {"json"}, "limit": {"1"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("build geocode request: %w", err)
	}
	// Nominatim's usage policy requires an identifying agent.
	req.Header.Set("User-Agent", "PledgeIt-GeoLookup/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %q: %w", address, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("geocode %q: status %d: %w", address, resp.StatusCode, sentinel.ErrUnavailable)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, 0, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, sentinel.ErrNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse longitude %q: %w", results[0].Lon, err)
	}
	return lat, lon, nil
}

// Static always resolves to fixed coordinates; use as a test double or for
// offline development.
type Static struct {
	Lat float64
	Lon float64
	// Err, when set, is returned instead of the coordinates.
	Err error
}

func (s *Static) Resolve(ctx context.Context, address string) (float64, float64, error) {
	if s.Err != nil {
		return 0, 0, s.Err
	}
	return s.Lat, s.Lon, nil
}
