package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/penichelab/ocean-dashboard/internal/httpx"
	"github.com/penichelab/ocean-dashboard/internal/ocean"
)

// stormGlassTimeout is deliberately short: the free tier rate-limits hard and
// a slow answer is not worth holding the hybrid join for.
const stormGlassTimeout = 4 * time.Second

// StormGlass fetches point marine conditions for the last hour.
type StormGlass struct {
	apiKey  string
	baseURL string
	client  *httpx.Client
	circuit *gobreaker.CircuitBreaker

	now func() time.Time
}

func NewStormGlass(client *httpx.Client, apiKey string) *StormGlass {
	return &StormGlass{
		apiKey:  apiKey,
		baseURL: "https://api.stormglass.io/v2/weather/point",
		client:  client,
		circuit: newBreaker("stormglass"),
		now:     time.Now,
	}
}

func (s *StormGlass) Source() ocean.Source { return ocean.SourceStormGlass }

func (s *StormGlass) SetBaseURL(u string) { s.baseURL = u }

type stormGlassResponse struct {
	Hours []struct {
		Time             string             `json:"time"`
		WaveHeight       map[string]float64 `json:"waveHeight"`
		WaterTemperature map[string]float64 `json:"waterTemperature"`
		AirTemperature   map[string]float64 `json:"airTemperature"`
		WindSpeed        map[string]float64 `json:"windSpeed"`
	} `json:"hours"`
}

// Fetch requests the trailing one-hour window. A successful response with no
// hours yields a clearly-flagged synthetic fallback snapshot so the combined
// endpoint can keep answering; transport failures propagate to the caller.
func (s *StormGlass) Fetch(ctx context.Context, loc ocean.Location) (*ocean.Snapshot, error) {
	if s.apiKey == "" {
		return nil, &ocean.ConfigError{Source: ocean.SourceStormGlass, EnvVar: "STORMGLASS_API_KEY"}
	}

	end := s.now().UTC()
	start := end.Add(-1 * time.Hour)

	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%.5f", loc.Latitude))
	values.Set("lng", fmt.Sprintf("%.5f", loc.Longitude))
	values.Set("params", "waveHeight,waterTemperature,airTemperature,windSpeed")
	values.Set("source", "sg")
	values.Set("start", fmt.Sprintf("%d", start.Unix()))
	values.Set("end", fmt.Sprintf("%d", end.Unix()))

	raw, err := fetchThroughBreaker(ctx, s.circuit, s.client, s.baseURL+"?"+values.Encode(), httpx.Options{
		Headers: map[string]string{"Authorization": s.apiKey},
		Timeout: stormGlassTimeout,
	})
	if err != nil {
		return nil, err
	}

	var resp stormGlassResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &httpx.ParseError{URL: s.baseURL, Err: err}
	}

	if len(resp.Hours) == 0 {
		return s.fallbackSnapshot(end), nil
	}

	latest := resp.Hours[len(resp.Hours)-1]
	observed := end
	if ts, err := time.Parse(time.RFC3339, latest.Time); err == nil {
		observed = ts.UTC()
	}

	snap := &ocean.Snapshot{ObservedAt: observed}
	if v, ok := latest.WaveHeight["sg"]; ok {
		snap.Current.WaveHeight = ptr(v)
	}
	if v, ok := latest.WaterTemperature["sg"]; ok {
		snap.Current.WaterTemperature = ptr(v)
	}
	if v, ok := latest.AirTemperature["sg"]; ok {
		snap.Current.AirTemperature = ptr(v)
	}
	if v, ok := latest.WindSpeed["sg"]; ok {
		snap.Current.WindSpeed = ptr(v)
	}
	return snap, nil
}

// fallbackSnapshot mirrors the hardcoded substitute record the dashboard used
// whenever StormGlass answered with nothing usable: typical Peniche values,
// flagged so no one mistakes them for measurements.
func (s *StormGlass) fallbackSnapshot(at time.Time) *ocean.Snapshot {
	return &ocean.Snapshot{
		ObservedAt: at,
		Fallback:   true,
		Current: ocean.Metrics{
			WaveHeight:       ptr(1.4),
			WaterTemperature: ptr(16.5),
			WindSpeed:        ptr(5.5),
		},
	}
}
