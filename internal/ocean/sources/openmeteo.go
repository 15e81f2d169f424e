package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/penichelab/ocean-dashboard/internal/httpx"
	"github.com/penichelab/ocean-dashboard/internal/ocean"
)

// OpenMeteo fetches hourly pressure and wind speed as a keyless,
// lowest-priority supplementary source.
type OpenMeteo struct {
	baseURL string
	client  *httpx.Client

	now func() time.Time
}

func NewOpenMeteo(client *httpx.Client) *OpenMeteo {
	return &OpenMeteo{
		baseURL: "https://api.open-meteo.com/v1/forecast",
		client:  client,
		now:     time.Now,
	}
}

func (o *OpenMeteo) Source() ocean.Source { return ocean.SourceOpenMeteo }

func (o *OpenMeteo) SetBaseURL(u string) { o.baseURL = u }

type openMeteoResponse struct {
	Hourly struct {
		Time        []string  `json:"time"`
		PressureMSL []float64 `json:"pressure_msl"`
		WindSpeed   []float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

func (o *OpenMeteo) Fetch(ctx context.Context, loc ocean.Location) (*ocean.Snapshot, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%.5f", loc.Latitude))
	values.Set("longitude", fmt.Sprintf("%.5f", loc.Longitude))
	values.Set("hourly", "pressure_msl,wind_speed_10m")
	values.Set("forecast_days", "1")
	values.Set("timezone", "UTC")

	var resp openMeteoResponse
	if err := o.client.DecodeJSON(ctx, o.baseURL+"?"+values.Encode(), httpx.Options{}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Hourly.Time) == 0 {
		return nil, fmt.Errorf("open-meteo: empty hourly series")
	}

	snap := &ocean.Snapshot{ObservedAt: o.now().UTC()}
	for i, iso := range resp.Hourly.Time {
		ts, err := time.Parse("2006-01-02T15:04", iso)
		if err != nil {
			continue
		}
		m := ocean.Metrics{}
		if i < len(resp.Hourly.PressureMSL) {
			m.Pressure = ptr(resp.Hourly.PressureMSL[i])
		}
		if i < len(resp.Hourly.WindSpeed) {
			m.WindSpeed = ptr(resp.Hourly.WindSpeed[i])
		}
		if i == 0 {
			snap.Current = m
			continue
		}
		snap.Forecast = append(snap.Forecast, ocean.ForecastPoint{
			Time:    ts.UTC(),
			Source:  ocean.SourceOpenMeteo,
			Metrics: m,
		})
	}
	return snap, nil
}
