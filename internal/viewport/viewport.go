// Package viewport decides how the map camera reacts to conversation
// state: fly to a single target, fit the bounds of a location cluster, or
// do nothing. The actual renderer consumes the emitted commands; this
// package never touches it directly.
package viewport

import (
	"fmt"
	"time"

	"mapchat/internal/geo"
	"mapchat/internal/logging"
)

// CommandKind discriminates viewport commands.
type CommandKind int

const (
	NoOp CommandKind = iota
	FlyTo
	FitBounds
)

func (k CommandKind) String() string {
	switch k {
	case FlyTo:
		return "fly-to"
	case FitBounds:
		return "fit-bounds"
	default:
		return "no-op"
	}
}

// Fixed camera parameters. These are product constants, not tunables.
const (
	flyToZoom      = 15.0
	flyToDuration  = 2 * time.Second
	fitPaddingPx   = 60
	fitMaxZoom     = 15.0
	fitDuration    = 2 * time.Second
	recenterZoom   = 14.0
	recenterFlight = 1500 * time.Millisecond
)

// Command is one instruction for the map renderer.
type Command struct {
	Kind      CommandKind
	Center    geo.Location   // FlyTo
	Points    []geo.Location // FitBounds
	Bounds    geo.Bounds     // FitBounds
	Zoom      float64        // FlyTo zoom / FitBounds max zoom
	PaddingPx int            // FitBounds
	Duration  time.Duration
}

func (c Command) String() string {
	switch c.Kind {
	case FlyTo:
		return fmt.Sprintf("fly-to(%.4f, %.4f, zoom=%.0f)", c.Center.Lat, c.Center.Lng, c.Zoom)
	case FitBounds:
		return fmt.Sprintf("fit-bounds(%d points)", len(c.Points))
	default:
		return "no-op"
	}
}

// Decide computes the next viewport command from the current target and
// related-location cluster. A cluster always takes precedence over a
// single target; a degenerate cluster (empty or collapsed to one point)
// yields NoOp rather than a zero-area fit.
func Decide(target *geo.Location, related []geo.Location) Command {
	if len(related) > 0 {
		points := make([]geo.Location, 0, len(related)+1)
		for _, p := range related {
			if p.Valid() {
				points = append(points, p)
			}
		}
		if target != nil && target.Valid() {
			points = append(points, *target)
		}
		b := geo.BoundsOf(points...)
		if b.Degenerate() {
			return Command{Kind: NoOp}
		}
		logging.Viewport("fit-bounds over %d point(s)", len(points))
		return Command{
			Kind:      FitBounds,
			Points:    points,
			Bounds:    b,
			Zoom:      fitMaxZoom,
			PaddingPx: fitPaddingPx,
			Duration:  fitDuration,
		}
	}

	if target != nil && target.Valid() {
		logging.Viewport("fly-to %.4f,%.4f", target.Lat, target.Lng)
		return Command{
			Kind:     FlyTo,
			Center:   *target,
			Zoom:     flyToZoom,
			Duration: flyToDuration,
		}
	}

	return Command{Kind: NoOp}
}

// Synchronizer tracks map state and emits a command exactly once per
// relevant state change. Recenter requests are counted, not flagged, so
// repeated identical requests each re-trigger the flight.
type Synchronizer struct {
	userLocation *geo.Location
	lastTarget   *geo.Location
	lastRelated  []geo.Location
	recenterSeq  uint64
}

// NewSynchronizer creates an idle synchronizer.
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{}
}

// SetUserLocation records the device position used by recenter flights.
// Invalid locations are ignored.
func (s *Synchronizer) SetUserLocation(loc geo.Location) {
	if !loc.Valid() {
		return
	}
	s.userLocation = &loc
}

// UserLocation returns the recorded device position, or nil.
func (s *Synchronizer) UserLocation() *geo.Location {
	return s.userLocation
}

// Sync emits the command for the given target/related pair, or NoOp when
// the pair is unchanged since the last emission.
func (s *Synchronizer) Sync(target *geo.Location, related []geo.Location) Command {
	if locEqual(target, s.lastTarget) && relatedEqual(related, s.lastRelated) {
		return Command{Kind: NoOp}
	}
	s.lastTarget = cloneLoc(target)
	s.lastRelated = append([]geo.Location(nil), related...)
	return Decide(target, related)
}

// RequestRecenter issues a flight back to the user location. Each call
// increments the trigger sequence so identical consecutive requests are
// still distinguishable and still fly.
func (s *Synchronizer) RequestRecenter() (Command, bool) {
	if s.userLocation == nil {
		return Command{Kind: NoOp}, false
	}
	s.recenterSeq++
	logging.Viewport("recenter #%d to %.4f,%.4f", s.recenterSeq, s.userLocation.Lat, s.userLocation.Lng)
	return Command{
		Kind:     FlyTo,
		Center:   *s.userLocation,
		Zoom:     recenterZoom,
		Duration: recenterFlight,
	}, true
}

// RecenterCount returns how many recenter flights have been requested.
func (s *Synchronizer) RecenterCount() uint64 {
	return s.recenterSeq
}

func cloneLoc(l *geo.Location) *geo.Location {
	if l == nil {
		return nil
	}
	out := *l
	return &out
}

func locEqual(a, b *geo.Location) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func relatedEqual(a, b []geo.Location) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
