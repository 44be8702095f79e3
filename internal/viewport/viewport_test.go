package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mapchat/internal/geo"
)

func TestDecideNoTargetNoRelated(t *testing.T) {
	cmd := Decide(nil, nil)
	assert.Equal(t, NoOp, cmd.Kind)
}

func TestDecideTargetOnly(t *testing.T) {
	target := &geo.Location{Lat: 48.8584, Lng: 2.2945}
	cmd := Decide(target, nil)

	assert.Equal(t, FlyTo, cmd.Kind)
	assert.Equal(t, *target, cmd.Center)
	assert.NotZero(t, cmd.Zoom)
	assert.NotZero(t, cmd.Duration)
}

func TestDecideInvalidTarget(t *testing.T) {
	cmd := Decide(&geo.Location{Lat: 200, Lng: 0}, nil)
	assert.Equal(t, NoOp, cmd.Kind)
}

func TestDecideClusterTakesPrecedence(t *testing.T) {
	target := &geo.Location{Lat: 10, Lng: 10}
	related := []geo.Location{{Lat: 20, Lng: 20}, {Lat: 30, Lng: 5}}
	cmd := Decide(target, related)

	assert.Equal(t, FitBounds, cmd.Kind)
	assert.Len(t, cmd.Points, 3, "cluster should include the target")
	assert.Equal(t, geo.Location{Lat: 10, Lng: 5}, cmd.Bounds.SouthWest)
	assert.Equal(t, geo.Location{Lat: 30, Lng: 20}, cmd.Bounds.NorthEast)
	assert.Equal(t, fitPaddingPx, cmd.PaddingPx)
}

func TestDecideDegenerateCluster(t *testing.T) {
	// A single repeated point cannot be framed.
	related := []geo.Location{{Lat: 7, Lng: 7}, {Lat: 7, Lng: 7}}
	cmd := Decide(nil, related)
	assert.Equal(t, NoOp, cmd.Kind)

	// All-invalid cluster likewise.
	cmd = Decide(nil, []geo.Location{{Lat: 500, Lng: 0}})
	assert.Equal(t, NoOp, cmd.Kind)
}

func TestSyncEmitsOncePerChange(t *testing.T) {
	s := NewSynchronizer()
	target := &geo.Location{Lat: 1, Lng: 2}

	first := s.Sync(target, nil)
	assert.Equal(t, FlyTo, first.Kind)

	// Same state again: suppressed.
	second := s.Sync(target, nil)
	assert.Equal(t, NoOp, second.Kind)

	// Changed target: re-emitted.
	third := s.Sync(&geo.Location{Lat: 3, Lng: 4}, nil)
	assert.Equal(t, FlyTo, third.Kind)
}

func TestRequestRecenterIsCountedNotFlagged(t *testing.T) {
	s := NewSynchronizer()

	if _, ok := s.RequestRecenter(); ok {
		t.Fatal("recenter without a user location should be refused")
	}

	s.SetUserLocation(geo.Location{Lat: 40.0, Lng: -3.7})
	first, ok := s.RequestRecenter()
	assert.True(t, ok)
	assert.Equal(t, FlyTo, first.Kind)

	// Identical repeated request must still fly, with a distinct sequence.
	second, ok := s.RequestRecenter()
	assert.True(t, ok)
	assert.Equal(t, FlyTo, second.Kind)
	assert.Equal(t, uint64(2), s.RecenterCount())
}

func TestSetUserLocationRejectsInvalid(t *testing.T) {
	s := NewSynchronizer()
	s.SetUserLocation(geo.Location{Lat: -120, Lng: 0})
	assert.Nil(t, s.UserLocation())
}
