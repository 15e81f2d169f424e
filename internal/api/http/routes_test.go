package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/penichelab/ocean-dashboard/internal/cache"
	"github.com/penichelab/ocean-dashboard/internal/config"
	"github.com/penichelab/ocean-dashboard/internal/geo"
	"github.com/penichelab/ocean-dashboard/internal/httpx"
	"github.com/penichelab/ocean-dashboard/internal/ocean"
)

// stubFetcher returns a canned snapshot or error for one source.
type stubFetcher struct {
	source ocean.Source
	snap   *ocean.Snapshot
	err    error
}

func (f *stubFetcher) Source() ocean.Source { return f.source }

func (f *stubFetcher) Fetch(ctx context.Context, loc ocean.Location) (*ocean.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func floatPtr(v float64) *float64 { return &v }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func healthySnapshot() *ocean.Snapshot {
	return &ocean.Snapshot{
		Current:    ocean.Metrics{WaveHeight: floatPtr(1.2)},
		Forecast:   []ocean.ForecastPoint{},
		ObservedAt: time.Now().UTC(),
	}
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Port:            "3001",
		AppEnv:          "development",
		DefaultLocation: ocean.Location{Latitude: 39.355, Longitude: -9.381, Name: "Peniche"},
		CacheDefaultTTL: 300 * time.Second,
	}
}

func newTestApp(t *testing.T, cfg *config.AppConfig, fetchers ...ocean.Fetcher) *fiber.App {
	t.Helper()

	c := cache.New(cfg.CacheDefaultTTL)
	svc := ocean.NewService(c, nil, fetchers...)
	srv := NewServer(cfg, testLogger(), c, httpx.New(nil), svc, geo.NewResolver(""))

	app := fiber.New()
	srv.RegisterRoutes(app)
	return app
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("decode body %q: %v", body, err)
	}
}

func TestCombinedDefaultsToHomeLocation(t *testing.T) {
	fetchers := make([]ocean.Fetcher, 0, len(ocean.MergePriority))
	for _, src := range ocean.MergePriority {
		fetchers = append(fetchers, &stubFetcher{source: src, snap: healthySnapshot()})
	}
	app := newTestApp(t, testConfig(), fetchers...)

	req := httptest.NewRequest(http.MethodGet, "/api/ocean/combined", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var env ocean.Envelope
	decodeBody(t, resp, &env)
	if env.Strategy != ocean.StrategyHybrid {
		t.Errorf("expected hybrid strategy, got %q", env.Strategy)
	}
	if env.Location.Latitude != 39.355 || env.Location.Longitude != -9.381 {
		t.Errorf("expected default location, got %+v", env.Location)
	}
	if env.Metadata.QualityScore != 100 {
		t.Errorf("expected quality 100 with all sources healthy, got %d", env.Metadata.QualityScore)
	}
}

func TestCombinedRejectsPartialCoordinates(t *testing.T) {
	app := newTestApp(t, testConfig())

	for _, target := range []string{
		"/api/ocean/combined?lat=39.36",
		"/api/ocean/combined?lon=-9.16",
		"/api/ocean/combined?lat=abc&lon=-9.16",
		"/api/ocean/combined?lat=95&lon=-9.16",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", target, resp.StatusCode)
		}

		var body struct {
			Error    string   `json:"error"`
			Example  string   `json:"example"`
			Required []string `json:"required"`
		}
		decodeBody(t, resp, &body)
		if body.Example == "" || len(body.Required) != 2 {
			t.Errorf("%s: expected example and required fields, got %+v", target, body)
		}
	}
}

func TestCombinedRejectsUnknownSource(t *testing.T) {
	app := newTestApp(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/ocean/combined?source=noaa", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestCombinedSingleSourceMissingKey(t *testing.T) {
	fetcher := &stubFetcher{
		source: ocean.SourceWorldTides,
		err:    &ocean.ConfigError{Source: ocean.SourceWorldTides, EnvVar: "WORLDTIDES_API_KEY"},
	}
	app := newTestApp(t, testConfig(), fetcher)

	req := httptest.NewRequest(http.MethodGet, "/api/ocean/combined?source=worldtides", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.StatusCode)
	}

	var body struct {
		Error string `json:"error"`
		Help  string `json:"help"`
	}
	decodeBody(t, resp, &body)
	if body.Help == "" {
		t.Errorf("expected a help hint naming the env var, got %+v", body)
	}
}

func TestCombinedHybridToleratesMissingKey(t *testing.T) {
	fetchers := []ocean.Fetcher{
		&stubFetcher{source: ocean.SourceWorldTides, err: &ocean.ConfigError{Source: ocean.SourceWorldTides, EnvVar: "WORLDTIDES_API_KEY"}},
		&stubFetcher{source: ocean.SourceStormGlass, snap: healthySnapshot()},
		&stubFetcher{source: ocean.SourceCMEMS, snap: healthySnapshot()},
		&stubFetcher{source: ocean.SourceOpenMeteo, snap: healthySnapshot()},
	}
	app := newTestApp(t, testConfig(), fetchers...)

	req := httptest.NewRequest(http.MethodGet, "/api/ocean/combined", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var env ocean.Envelope
	decodeBody(t, resp, &env)
	if env.Sources[ocean.SourceWorldTides].Status != ocean.StatusUnavailable {
		t.Errorf("expected worldtides unavailable, got %q", env.Sources[ocean.SourceWorldTides].Status)
	}
	if env.Metadata.QualityScore != 75 {
		t.Errorf("expected quality 75, got %d", env.Metadata.QualityScore)
	}
}

func TestProxyMissingKeyAnswers500WithHelp(t *testing.T) {
	app := newTestApp(t, testConfig())

	for _, target := range []string{
		"/api/stormglass?lat=39.36&lon=-9.16",
		"/api/openweathermap?lat=39.36&lon=-9.16",
		"/api/weatherapi?lat=39.36&lon=-9.16",
		"/api/worldtides?lat=39.36&lon=-9.16",
		"/api/thingspeak",
		"/api/nasa/apod",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("%s: expected status 500, got %d", target, resp.StatusCode)
			continue
		}

		var body struct {
			Error string `json:"error"`
			Help  string `json:"help"`
		}
		decodeBody(t, resp, &body)
		if body.Help == "" {
			t.Errorf("%s: expected help hint, got %+v", target, body)
		}
	}
}

func TestProxyMissingParamsAnswers400(t *testing.T) {
	cfg := testConfig()
	cfg.OpenWeatherAPIKey = "owm-key"
	cfg.WeatherAPIKey = "wapi-key"
	cfg.StormGlassAPIKey = "sg-key"
	cfg.WorldTidesAPIKey = "wt-key"
	app := newTestApp(t, cfg)

	for _, target := range []string{
		"/api/openweathermap",
		"/api/weatherapi?lat=39.36",
		"/api/worldtides",
		"/api/stormglass?lon=-9.16",
		"/api/openmeteo",
		"/api/sun",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", target, resp.StatusCode)
		}
	}
}

func TestWorldTidesProbeWithoutKey(t *testing.T) {
	app := newTestApp(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/worldtides/test", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status     string `json:"status"`
		Configured bool   `json:"configured"`
	}
	decodeBody(t, resp, &body)
	if body.Status != "error" || body.Configured {
		t.Errorf("expected unconfigured error payload, got %+v", body)
	}
}

func TestMarsPhotosDemoWithoutKey(t *testing.T) {
	app := newTestApp(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/nasa/mars?rover=perseverance", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status      string            `json:"status"`
		Rover       string            `json:"rover"`
		TotalPhotos int               `json:"total_photos"`
		Photos      []json.RawMessage `json:"photos"`
	}
	decodeBody(t, resp, &body)
	if body.Status != "demo" {
		t.Errorf("expected demo status without key, got %q", body.Status)
	}
	if body.TotalPhotos != len(body.Photos) || len(body.Photos) == 0 {
		t.Errorf("expected a consistent non-empty demo gallery, got %+v", body)
	}
}

func TestPortugalSpaceShape(t *testing.T) {
	app := newTestApp(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/nasa/portugal-space", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Missions   []json.RawMessage `json:"missions"`
		Satellites []json.RawMessage `json:"satellites"`
		Facts      []string          `json:"interesting_facts"`
		Statistics map[string]int    `json:"statistics"`
	}
	decodeBody(t, resp, &body)
	if len(body.Missions) == 0 || len(body.Satellites) == 0 || len(body.Facts) == 0 {
		t.Errorf("expected populated sections, got %+v", body)
	}
	if _, ok := body.Statistics["space_companies"]; !ok {
		t.Errorf("expected statistics, got %+v", body.Statistics)
	}
}

func TestStatusReflectsConfiguredKeys(t *testing.T) {
	cfg := testConfig()
	cfg.StormGlassAPIKey = "sg-key"
	cfg.NASAAPIKey = "nasa-key"
	app := newTestApp(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Server string          `json:"server"`
		APIs   map[string]bool `json:"apis"`
	}
	decodeBody(t, resp, &body)
	if body.Server != "online" {
		t.Errorf("expected server online, got %q", body.Server)
	}
	for api, want := range map[string]bool{
		"stormglass":     true,
		"nasa":           true,
		"worldtides":     false,
		"openweathermap": false,
		"openmeteo":      true,
	} {
		if body.APIs[api] != want {
			t.Errorf("api %s: expected configured=%v, got %v", api, want, body.APIs[api])
		}
	}
}

func TestHealthAndDoc(t *testing.T) {
	app := newTestApp(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: expected status 200, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("doc: expected status 200, got %d", resp.StatusCode)
	}

	var doc struct {
		Endpoints []endpointDoc `json:"endpoints"`
	}
	decodeBody(t, resp, &doc)
	if len(doc.Endpoints) < 10 {
		t.Errorf("expected the doc payload to list the endpoints, got %d", len(doc.Endpoints))
	}
}

func TestCopernicusPlaceholders(t *testing.T) {
	app := newTestApp(t, testConfig())

	for _, target := range []string{
		"/api/copernicus/emergency",
		"/api/copernicus/images",
		"/api/copernicus/timeseries",
		"/api/copernicus/airquality",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusNotImplemented {
			t.Errorf("%s: expected status 501, got %d", target, resp.StatusCode)
		}
	}
}
