package session

import "mapchat/internal/geo"

// SanitizeMessage re-validates a message's location fields. An invalid
// suggested location becomes absent; invalid related locations are
// dropped element-wise, preserving the order of the survivors.
// Idempotent: sanitizing a sanitized message changes nothing.
func SanitizeMessage(m Message) Message {
	if m.SuggestedLocation != nil && !m.SuggestedLocation.Valid() {
		m.SuggestedLocation = nil
	}
	if len(m.RelatedLocations) > 0 {
		kept := m.RelatedLocations[:0:0]
		for _, loc := range m.RelatedLocations {
			if loc.Valid() {
				kept = append(kept, loc)
			}
		}
		if len(kept) == 0 {
			kept = nil
		}
		m.RelatedLocations = kept
	}
	return m
}

// SanitizeSession sanitizes every message of a session.
func SanitizeSession(s ChatSession) ChatSession {
	for i, m := range s.Messages {
		s.Messages[i] = SanitizeMessage(m)
	}
	return s
}

// SanitizeAll sanitizes a whole session collection.
func SanitizeAll(sessions []ChatSession) []ChatSession {
	for i, s := range sessions {
		sessions[i] = SanitizeSession(s)
	}
	return sessions
}

// sanitizeRawLocation normalizes an untyped decoded location value.
func sanitizeRawLocation(v any) *geo.Location {
	if loc, ok := geo.FromAny(v); ok {
		return &loc
	}
	return nil
}

// sanitizeRawRelated normalizes an untyped decoded location list.
func sanitizeRawRelated(v any) []geo.Location {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []geo.Location
	for _, item := range list {
		if loc, ok := geo.FromAny(item); ok {
			out = append(out, loc)
		}
	}
	return out
}
