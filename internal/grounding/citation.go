// Package grounding turns a raw assistant reply (text plus grounding
// citations) into a validated location model: the user-visible text, an
// optional primary location, and the ordered set of related locations.
package grounding

import "strings"

// Kind discriminates the citation union.
type Kind int

const (
	// KindWeb is a citation pointing at a regular web page.
	KindWeb Kind = iota
	// KindPlace is a citation pointing at a map place; its URI may embed
	// a coordinate pair.
	KindPlace
)

func (k Kind) String() string {
	if k == KindPlace {
		return "place"
	}
	return "web"
}

// Citation is a structured source record attached to an AI reply.
// Beyond coordinate extraction from place URIs it is opaque.
type Citation struct {
	Kind  Kind   `json:"kind"`
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// ClassifyURI decides whether a grounding source URI refers to a map
// place. Maps URIs either embed a !3d<lat>!4d<lng> pair or live on a
// Google Maps host.
func ClassifyURI(uri string) Kind {
	if placeCoordRe.MatchString(uri) {
		return KindPlace
	}
	if strings.Contains(uri, "google.com/maps") || strings.Contains(uri, "maps.google.") {
		return KindPlace
	}
	return KindWeb
}
