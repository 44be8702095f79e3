// Package ai defines the boundary to the conversational model service
// and its Gemini-backed production implementation. The rest of the
// application only sees Client: a fallible remote call that takes a
// bounded history window plus an optional context coordinate and returns
// raw text with grounding citations.
package ai

import (
	"context"

	"mapchat/internal/geo"
	"mapchat/internal/grounding"
)

// Conversation roles on the wire.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one (role, text) pair of the recent-history window.
type Turn struct {
	Role string
	Text string
}

// Reply is the raw model response before grounding extraction.
type Reply struct {
	Text      string
	Citations []grounding.Citation
}

// Client is the AI service boundary. Implementations must treat the call
// as a slow, fallible remote operation; the single error channel carries
// everything the operator needs to know.
type Client interface {
	Send(ctx context.Context, history []Turn, contextLocation *geo.Location) (*Reply, error)
}
