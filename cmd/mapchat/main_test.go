package main

import (
	"strings"
	"testing"
	"time"

	"mapchat/internal/geo"
	mapviewport "mapchat/internal/viewport"
)

func TestDescribeCommand(t *testing.T) {
	if got := describeCommand(mapviewport.Command{Kind: mapviewport.NoOp}); got != "" {
		t.Errorf("NoOp should render empty, got %q", got)
	}

	fly := mapviewport.Command{
		Kind:     mapviewport.FlyTo,
		Center:   geo.Location{Lat: 48.8584, Lng: 2.2945},
		Zoom:     15,
		Duration: 2 * time.Second,
	}
	if got := describeCommand(fly); !strings.Contains(got, "48.8584") || !strings.Contains(got, "fly") {
		t.Errorf("fly-to rendering = %q", got)
	}

	fit := mapviewport.Command{
		Kind:   mapviewport.FitBounds,
		Points: []geo.Location{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}},
		Bounds: geo.BoundsOf(geo.Location{Lat: 1, Lng: 1}, geo.Location{Lat: 2, Lng: 2}),
	}
	if got := describeCommand(fit); !strings.Contains(got, "2 points") {
		t.Errorf("fit-bounds rendering = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Errorf("short title changed: %q", got)
	}
	long := strings.Repeat("é", 30)
	got := truncate(long, 20)
	if runes := []rune(got); len(runes) != 20 {
		t.Errorf("truncated length = %d runes", len(runes))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("missing ellipsis: %q", got)
	}
}
