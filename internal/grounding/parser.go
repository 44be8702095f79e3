package grounding

import (
	"regexp"
	"strconv"
	"strings"

	"mapchat/internal/geo"
	"mapchat/internal/logging"
)

// coordTagRe matches the hidden coordinate tag the assistant appends to a
// reply, e.g. {{LAT:48.8584, LNG:2.2945}}. The key names and the number
// grammar (optional minus, decimal digits) are the wire contract with the
// AI service and must not be loosened.
var coordTagRe = regexp.MustCompile(`\{\{LAT:\s*(-?\d+\.?\d*),\s*LNG:\s*(-?\d+\.?\d*)\}\}`)

// placeCoordRe matches the coordinate pair embedded in Google Maps place
// URIs, e.g. ...!3d35.6895!4d139.6917...
var placeCoordRe = regexp.MustCompile(`!3d(-?\d+\.?\d*)!4d(-?\d+\.?\d*)`)

// Result is the parsed form of an assistant reply.
// Related is nil (not empty) when no citation contributed a location, so
// callers can distinguish "none found" from "empty cluster".
type Result struct {
	CleanText string
	Suggested *geo.Location
	Related   []geo.Location
}

// Parse extracts the primary location tag and citation-derived related
// locations from a raw reply. It is a pure function: malformed numbers
// degrade to "no location", never to an error.
//
// Only the first tag match is parsed; every occurrence of the tag pattern
// is stripped from the display text.
func Parse(text string, citations []Citation) Result {
	res := Result{CleanText: text}

	if m := coordTagRe.FindStringSubmatch(text); m != nil {
		if loc, ok := parsePair(m[1], m[2]); ok {
			res.Suggested = &loc
			logging.GroundingDebug("coordinate tag parsed: lat=%.5f lng=%.5f", loc.Lat, loc.Lng)
		} else {
			logging.Grounding("coordinate tag present but invalid: %q", m[0])
		}
		res.CleanText = strings.TrimSpace(coordTagRe.ReplaceAllString(text, ""))
	}

	for _, c := range citations {
		if c.Kind != KindPlace {
			continue
		}
		m := placeCoordRe.FindStringSubmatch(c.URI)
		if m == nil {
			continue
		}
		if loc, ok := parsePair(m[1], m[2]); ok {
			res.Related = append(res.Related, loc)
		}
	}
	if len(res.Related) > 0 {
		logging.GroundingDebug("extracted %d related location(s) from %d citation(s)", len(res.Related), len(citations))
	}

	return res
}

// parsePair parses and range-checks a lat/lng string pair. Overflowing
// numbers (parsed as ±Inf) fail validation and are treated as absent.
func parsePair(latStr, lngStr string) (geo.Location, bool) {
	lat, latErr := strconv.ParseFloat(latStr, 64)
	lng, lngErr := strconv.ParseFloat(lngStr, 64)
	if latErr != nil && !isRangeErr(latErr) {
		return geo.Location{}, false
	}
	if lngErr != nil && !isRangeErr(lngErr) {
		return geo.Location{}, false
	}
	loc := geo.Location{Lat: lat, Lng: lng}
	return loc, loc.Valid()
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}
