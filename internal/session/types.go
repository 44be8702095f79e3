// Package session defines the persisted conversation model (messages,
// chat sessions) and the store that loads, migrates, sanitizes, and saves
// it. Everything read back from persistence is treated as untrusted until
// it has passed sanitization.
package session

import (
	"time"

	"github.com/google/uuid"

	"mapchat/internal/geo"
	"mapchat/internal/grounding"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// DefaultTitle is the placeholder title of a freshly created session.
// The real title is derived later from the first user message.
const DefaultTitle = "New chat"

// WelcomeText is the canned first message of every new session.
const WelcomeText = "Hi! Ask me about any place in the world and I'll show it on the map."

// Message is a single conversation entry. Immutable once appended.
type Message struct {
	ID                 string               `json:"id"`
	Role               Role                 `json:"role"`
	Text               string               `json:"text"`
	Timestamp          int64                `json:"timestamp"` // epoch milliseconds
	GroundingCitations []grounding.Citation `json:"groundingCitations,omitempty"`
	SuggestedLocation  *geo.Location        `json:"suggestedLocation,omitempty"`
	RelatedLocations   []geo.Location       `json:"relatedLocations,omitempty"`
}

// ChatSession is one named conversation.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt int64     `json:"updatedAt"` // epoch milliseconds
}

// NewMessage builds a message stamped with a fresh ID and the current
// time.
func NewMessage(role Role, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewChatSession builds a session containing the canned welcome message.
func NewChatSession() ChatSession {
	return ChatSession{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		Messages:  []Message{NewMessage(RoleModel, WelcomeText)},
		UpdatedAt: time.Now().UnixMilli(),
	}
}

// titleLimit is the derived-title truncation length in runes.
const titleLimit = 30

// DeriveTitle sets the session title from its first user message.
// It runs only while the title is still the placeholder and at least two
// messages exist; once derived it is never recomputed.
func DeriveTitle(s *ChatSession) {
	if s.Title != DefaultTitle || len(s.Messages) < 2 {
		return
	}
	for _, m := range s.Messages {
		if m.Role != RoleUser {
			continue
		}
		runes := []rune(m.Text)
		if len(runes) > titleLimit {
			s.Title = string(runes[:titleLimit]) + "…"
		} else {
			s.Title = m.Text
		}
		return
	}
}

// LatestTarget scans messages newest-first and returns the first valid
// suggested location, or nil when the session has none.
func LatestTarget(messages []Message) *geo.Location {
	for i := len(messages) - 1; i >= 0; i-- {
		if loc := messages[i].SuggestedLocation; loc != nil && loc.Valid() {
			out := *loc
			return &out
		}
	}
	return nil
}

// LatestRelated scans messages newest-first and returns the first
// non-empty related-location set, or nil.
func LatestRelated(messages []Message) []geo.Location {
	for i := len(messages) - 1; i >= 0; i-- {
		if rel := messages[i].RelatedLocations; len(rel) > 0 {
			out := make([]geo.Location, len(rel))
			copy(out, rel)
			return out
		}
	}
	return nil
}
