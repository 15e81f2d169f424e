package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"github.com/penichelab/ocean-dashboard/internal/httpx"
	"github.com/penichelab/ocean-dashboard/internal/ocean"
)

// WorldTides fetches high/low tide extremes for the next 24 hours.
type WorldTides struct {
	apiKey  string
	baseURL string
	client  *httpx.Client
	circuit *gobreaker.CircuitBreaker

	now func() time.Time
}

func NewWorldTides(client *httpx.Client, apiKey string) *WorldTides {
	return &WorldTides{
		apiKey:  apiKey,
		baseURL: "https://www.worldtides.info/api/v3",
		client:  client,
		circuit: newBreaker("worldtides"),
		now:     time.Now,
	}
}

func (w *WorldTides) Source() ocean.Source { return ocean.SourceWorldTides }

// SetBaseURL points the fetcher at a test server.
func (w *WorldTides) SetBaseURL(u string) { w.baseURL = u }

type worldTidesResponse struct {
	Status   int    `json:"status"`
	Error    string `json:"error"`
	Extremes []struct {
		Dt     int64   `json:"dt"`
		Height float64 `json:"height"`
		Type   string  `json:"type"` // "High" | "Low"
	} `json:"extremes"`
}

// Fetch requests a 24h extremes window. An empty extremes list is a valid,
// active result with no tide fields; only transport/API failures are errors.
func (w *WorldTides) Fetch(ctx context.Context, loc ocean.Location) (*ocean.Snapshot, error) {
	if w.apiKey == "" {
		return nil, &ocean.ConfigError{Source: ocean.SourceWorldTides, EnvVar: "WORLDTIDES_API_KEY"}
	}

	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%.5f", loc.Latitude))
	values.Set("lon", fmt.Sprintf("%.5f", loc.Longitude))
	values.Set("extremes", "1")
	values.Set("length", "86400")
	values.Set("key", w.apiKey)

	raw, err := fetchThroughBreaker(ctx, w.circuit, w.client, w.baseURL+"?"+values.Encode(), httpx.Options{
		Headers: map[string]string{"User-Agent": "ocean-dashboard/1.0"},
	})
	if err != nil {
		return nil, err
	}

	var resp worldTidesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &httpx.ParseError{URL: w.baseURL, Err: err}
	}
	// WorldTides reports API-level failures inside a 200 body.
	if resp.Error != "" {
		return nil, fmt.Errorf("worldtides: %s", resp.Error)
	}

	sort.Slice(resp.Extremes, func(i, j int) bool {
		return resp.Extremes[i].Dt < resp.Extremes[j].Dt
	})

	snap := &ocean.Snapshot{ObservedAt: w.now().UTC()}
	if len(resp.Extremes) == 0 {
		return snap, nil
	}

	next := resp.Extremes[0]
	snap.Current.TideLevel = ptr(next.Height)
	snap.Current.NextTide = &ocean.TideEvent{
		Time:   time.Unix(next.Dt, 0).UTC(),
		Type:   next.Type,
		Height: next.Height,
	}

	// The six extremes after the current one become a synthetic forecast.
	rest := resp.Extremes[1:]
	if len(rest) > 6 {
		rest = rest[:6]
	}
	for _, ex := range rest {
		snap.Forecast = append(snap.Forecast, ocean.ForecastPoint{
			Time:   time.Unix(ex.Dt, 0).UTC(),
			Source: ocean.SourceWorldTides,
			Metrics: ocean.Metrics{
				TideLevel: ptr(ex.Height),
				NextTide: &ocean.TideEvent{
					Time:   time.Unix(ex.Dt, 0).UTC(),
					Type:   ex.Type,
					Height: ex.Height,
				},
			},
		})
	}
	return snap, nil
}
