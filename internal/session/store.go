package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mapchat/internal/grounding"
	"mapchat/internal/logging"
)

// Storage keys. The legacy key predates multi-session support and is
// read-only: it is migrated on load but never written back.
const (
	sessionsKey      = "chat_sessions"
	legacyHistoryKey = "chat_history"
)

// legacyTitle names a conversation restored from the single-history blob.
const legacyTitle = "Recovered conversation"

// Blobs is the persistence boundary: two string-keyed opaque text
// records. Implemented by store.LocalStore.
type Blobs interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
}

// Store loads, migrates, sanitizes, and persists the session collection.
type Store struct {
	blobs Blobs
}

// NewStore wraps a blob store.
func NewStore(blobs Blobs) *Store {
	return &Store{blobs: blobs}
}

// rawMessage mirrors Message but keeps location fields untyped so a
// corrupted record degrades to "absent" instead of failing the whole
// load.
type rawMessage struct {
	ID                 string               `json:"id"`
	Role               Role                 `json:"role"`
	Text               string               `json:"text"`
	Timestamp          int64                `json:"timestamp"`
	GroundingCitations []grounding.Citation `json:"groundingCitations"`
	SuggestedLocation  any                  `json:"suggestedLocation"`
	RelatedLocations   any                  `json:"relatedLocations"`
}

type rawSession struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Messages  []rawMessage `json:"messages"`
	UpdatedAt int64        `json:"updatedAt"`
}

func (r rawMessage) toMessage() Message {
	return Message{
		ID:                 r.ID,
		Role:               r.Role,
		Text:               r.Text,
		Timestamp:          r.Timestamp,
		GroundingCitations: r.GroundingCitations,
		SuggestedLocation:  sanitizeRawLocation(r.SuggestedLocation),
		RelatedLocations:   sanitizeRawRelated(r.RelatedLocations),
	}
}

// Load returns the persisted session collection.
//
// Precedence: the multi-session record wins; failing that, a non-empty
// legacy single-history record is wrapped into one recovered session.
// Any parse failure is logged and degrades to an empty collection — the
// caller is responsible for synthesizing a fresh session when nothing
// survives.
func (s *Store) Load() []ChatSession {
	timer := logging.StartTimer(logging.CategorySession, "Store.Load")
	defer timer.Stop()

	blob, ok, err := s.blobs.Get(sessionsKey)
	if err != nil {
		logging.SessionError("Failed to read %q: %v", sessionsKey, err)
		return nil
	}
	if ok {
		var raw []rawSession
		if err := json.Unmarshal([]byte(blob), &raw); err != nil {
			logging.SessionError("Corrupt %q record, discarding saved history: %v", sessionsKey, err)
			return nil
		}
		sessions := make([]ChatSession, 0, len(raw))
		for _, rs := range raw {
			cs := ChatSession{
				ID:        rs.ID,
				Title:     rs.Title,
				UpdatedAt: rs.UpdatedAt,
				Messages:  make([]Message, 0, len(rs.Messages)),
			}
			for _, rm := range rs.Messages {
				cs.Messages = append(cs.Messages, rm.toMessage())
			}
			sessions = append(sessions, cs)
		}
		logging.Session("Loaded %d session(s)", len(sessions))
		return sessions
	}

	return s.loadLegacy()
}

// loadLegacy migrates the pre-multi-session single conversation blob into
// one recovered session. The legacy key is never rewritten.
func (s *Store) loadLegacy() []ChatSession {
	blob, ok, err := s.blobs.Get(legacyHistoryKey)
	if err != nil {
		logging.SessionError("Failed to read legacy %q: %v", legacyHistoryKey, err)
		return nil
	}
	if !ok {
		return nil
	}

	var raw []rawMessage
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		logging.SessionError("Corrupt legacy %q record, ignoring: %v", legacyHistoryKey, err)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	cs := ChatSession{
		ID:       uuid.NewString(),
		Title:    legacyTitle,
		Messages: make([]Message, 0, len(raw)),
	}
	for _, rm := range raw {
		cs.Messages = append(cs.Messages, rm.toMessage())
	}
	cs.UpdatedAt = cs.Messages[len(cs.Messages)-1].Timestamp
	if cs.UpdatedAt <= 0 {
		cs.UpdatedAt = time.Now().UnixMilli()
	}

	logging.Session("Migrated legacy history (%d messages) into session %s", len(cs.Messages), cs.ID)
	return []ChatSession{cs}
}

// Save persists the whole collection as one serialized record.
// An empty collection is never written, so a startup race cannot
// overwrite at-rest history with the empty state.
func (s *Store) Save(sessions []ChatSession) error {
	if len(sessions) == 0 {
		logging.SessionDebug("Skipping save of empty session collection")
		return nil
	}

	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to serialize sessions: %w", err)
	}
	if err := s.blobs.Put(sessionsKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist sessions: %w", err)
	}
	logging.SessionDebug("Saved %d session(s) (%d bytes)", len(sessions), len(data))
	return nil
}
