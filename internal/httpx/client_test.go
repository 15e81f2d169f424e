package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchJSONSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "yes" {
			t.Error("custom header not forwarded")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := New(server.Client())
	raw, err := c.FetchJSON(context.Background(), server.URL, Options{
		Headers: map[string]string{"X-Test": "yes"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Errorf("body = %s", raw)
	}
}

func TestFetchJSONUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("backend exploded"))
	}))
	defer server.Close()

	c := New(server.Client())
	_, err := c.FetchJSON(context.Background(), server.URL, Options{})

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
	}
	if ue.Status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", ue.Status)
	}
	if !strings.Contains(ue.Body, "backend exploded") {
		t.Errorf("body not captured: %q", ue.Body)
	}
}

func TestFetchJSONParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	c := New(server.Client())
	_, err := c.FetchJSON(context.Background(), server.URL, Options{})

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestFetchJSONTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(server.Client())
	_, err := c.FetchJSON(context.Background(), server.URL, Options{Timeout: 50 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"peniche","lat":39.355}`))
	}))
	defer server.Close()

	var out struct {
		Name string  `json:"name"`
		Lat  float64 `json:"lat"`
	}
	c := New(server.Client())
	if err := c.DecodeJSON(context.Background(), server.URL, Options{}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "peniche" || out.Lat != 39.355 {
		t.Errorf("decoded = %+v", out)
	}
}
