// Package geo provides the coordinate model shared by the conversation,
// session, and viewport layers. Every latitude/longitude pair that enters
// trusted state passes through this package first.
package geo

import "math"

// Location is a WGS84 coordinate pair. The JSON field names are the wire
// format used both in persisted sessions and in assistant replies.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the location is finite and within
// [-90,90] latitude and [-180,180] longitude.
func (l Location) Valid() bool {
	return Validate(l.Lat, l.Lng)
}

// Validate checks a raw pair without constructing a Location.
func Validate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return false
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// FromAny normalizes untyped input (decoded JSON from storage or the
// network) into a Location. It accepts only a map with numeric, finite,
// in-range "lat" and "lng" fields; everything else is treated as absent.
func FromAny(v any) (Location, bool) {
	switch t := v.(type) {
	case Location:
		return t, t.Valid()
	case *Location:
		if t == nil {
			return Location{}, false
		}
		return *t, t.Valid()
	case map[string]any:
		lat, ok := asFloat(t["lat"])
		if !ok {
			return Location{}, false
		}
		lng, ok := asFloat(t["lng"])
		if !ok {
			return Location{}, false
		}
		loc := Location{Lat: lat, Lng: lng}
		return loc, loc.Valid()
	default:
		return Location{}, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
