package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"mapchat/internal/geo"
)

func TestCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/forecast" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("latitude"); got != "48.8584" {
			t.Errorf("latitude = %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"temperature_2m":14.2,"wind_speed_10m":7.5,"weather_code":61}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	snap, err := c.Current(context.Background(), geo.Location{Lat: 48.8584, Lng: 2.2945})
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if snap.TemperatureC != 14.2 || snap.WindSpeedKmh != 7.5 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.Description != "rain" {
		t.Errorf("description = %q", snap.Description)
	}
}

func TestCurrentRejectsInvalidLocation(t *testing.T) {
	c := NewClient()
	if _, err := c.Current(context.Background(), geo.Location{Lat: 100, Lng: 0}); err == nil {
		t.Fatal("expected error for invalid location")
	}
}

func TestCurrentUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.Current(context.Background(), geo.Location{Lat: 1, Lng: 1}); err == nil {
		t.Fatal("expected error from 502 response")
	}
}

func TestConcurrentLookupsCollapse(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"temperature_2m":1,"wind_speed_10m":1,"weather_code":0}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	loc := geo.Location{Lat: 10.001, Lng: 20.001}

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := c.Current(context.Background(), loc)
			done <- err
		}()
	}
	close(release)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("lookup %d failed: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 upstream call, got %d", n)
	}
}

func TestDescribeCode(t *testing.T) {
	cases := map[int]string{
		0:  "clear sky",
		2:  "partly cloudy",
		3:  "overcast",
		48: "fog",
		55: "drizzle",
		65: "rain",
		73: "snow",
		81: "rain showers",
		95: "thunderstorm",
		40: "unknown",
	}
	for code, want := range cases {
		if got := describeCode(code); got != want {
			t.Errorf("describeCode(%d) = %q, want %q", code, got, want)
		}
	}
}
