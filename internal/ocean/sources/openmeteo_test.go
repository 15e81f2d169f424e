package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/penichelab/ocean-dashboard/internal/httpx"
)

func TestOpenMeteoFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("hourly") != "pressure_msl,wind_speed_10m" {
			t.Errorf("hourly = %s", q.Get("hourly"))
		}
		if q.Get("latitude") == "" || q.Get("longitude") == "" {
			t.Error("coordinates missing")
		}
		fmt.Fprint(w, `{"hourly":{
			"time":["2026-02-01T00:00","2026-02-01T01:00","2026-02-01T02:00"],
			"pressure_msl":[1013.2,1013.0,1012.7],
			"wind_speed_10m":[12.5,13.1,14.0]
		}}`)
	}))
	defer server.Close()

	om := NewOpenMeteo(httpx.New(server.Client()))
	om.SetBaseURL(server.URL)

	snap, err := om.Fetch(context.Background(), testLocation())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Current.Pressure == nil || *snap.Current.Pressure != 1013.2 {
		t.Errorf("pressure = %v, want 1013.2", snap.Current.Pressure)
	}
	if snap.Current.WindSpeed == nil || *snap.Current.WindSpeed != 12.5 {
		t.Errorf("wind_speed = %v, want 12.5", snap.Current.WindSpeed)
	}
	if len(snap.Forecast) != 2 {
		t.Errorf("forecast length = %d, want 2", len(snap.Forecast))
	}
}

func TestOpenMeteoEmptySeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hourly":{"time":[]}}`)
	}))
	defer server.Close()

	om := NewOpenMeteo(httpx.New(server.Client()))
	om.SetBaseURL(server.URL)

	if _, err := om.Fetch(context.Background(), testLocation()); err == nil {
		t.Fatal("an empty hourly series is an error for this source")
	}
}
