// Package chat implements the conversation controller: the send state
// machine, session lifecycle, and the merge of parsed replies into
// session and map state. It owns the session collection snapshot; all
// mutation goes through it.
package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"mapchat/internal/ai"
	"mapchat/internal/geo"
	"mapchat/internal/grounding"
	"mapchat/internal/logging"
	"mapchat/internal/session"
	"mapchat/internal/viewport"
)

// historyWindow bounds how many recent messages are sent to the model.
const historyWindow = 10

// apologyText is the only failure text that ever reaches the transcript.
// The underlying error goes to the operator log, never to the user.
const apologyText = "Sorry, I ran into a problem answering that. Please try again."

// ErrEmptyMessage rejects blank or whitespace-only input.
var ErrEmptyMessage = errors.New("message text is empty")

// Controller drives conversations. Safe for concurrent use; at most one
// AI call may be outstanding per session, and a second send while one is
// pending is ignored rather than queued.
type Controller struct {
	mu      sync.Mutex
	svc     ai.Client
	store   *session.Store
	view    *viewport.Synchronizer
	weather WeatherFunc

	sessions []session.ChatSession
	activeID string
	pending  map[string]bool

	// Derived map state for the active session. Not persisted.
	target  *geo.Location
	related []geo.Location
}

// WeatherFunc fetches conditions for an already-validated location.
// Optional; a nil func disables the lookup.
type WeatherFunc func(ctx context.Context, loc geo.Location) (string, error)

// Option configures the controller.
type Option func(*Controller)

// WithWeather enables weather lookups for newly set targets.
func WithWeather(fn WeatherFunc) Option {
	return func(c *Controller) { c.weather = fn }
}

// NewController loads the persisted collection, sanitizes it, and
// guarantees a non-empty collection with an active session.
func NewController(svc ai.Client, store *session.Store, opts ...Option) *Controller {
	c := &Controller{
		svc:     svc,
		store:   store,
		view:    viewport.NewSynchronizer(),
		pending: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.sessions = session.SanitizeAll(store.Load())
	if len(c.sessions) == 0 {
		c.sessions = []session.ChatSession{session.NewChatSession()}
		logging.Session("No saved history; starting fresh session %s", c.sessions[0].ID)
	}

	// Most recently updated session becomes active.
	sort.SliceStable(c.sessions, func(i, j int) bool {
		return c.sessions[i].UpdatedAt > c.sessions[j].UpdatedAt
	})
	c.activeID = c.sessions[0].ID
	c.recomputeMapStateLocked()
	return c
}

// Active returns a copy of the active session.
func (c *Controller) Active() session.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneSession(*c.mustActiveLocked())
}

// Sessions returns a snapshot of the collection, most recent first.
func (c *Controller) Sessions() []session.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]session.ChatSession, len(c.sessions))
	for i, s := range c.sessions {
		out[i] = cloneSession(s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out
}

// Target returns the current map target, or nil.
func (c *Controller) Target() *geo.Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return nil
	}
	out := *c.target
	return &out
}

// SendResult is what one completed send produced.
type SendResult struct {
	Session  session.ChatSession
	Viewport viewport.Command
	Weather  string // empty unless a lookup ran and succeeded
}

// Send submits user text to the active session.
//
// Blank text is rejected with ErrEmptyMessage. A send while another is
// pending on the same session is a no-op: the transcript is left
// unchanged and a NoOp result returns. A remote failure never surfaces
// as an error here; it becomes the fixed apology message in the
// transcript and the detail goes to the operator log.
func (c *Controller) Send(ctx context.Context, text string) (SendResult, error) {
	if strings.TrimSpace(text) == "" {
		return SendResult{}, ErrEmptyMessage
	}

	c.mu.Lock()
	active := c.mustActiveLocked()
	sessionID := active.ID
	if c.pending[sessionID] {
		logging.SessionDebug("Send ignored: request already pending on %s", sessionID)
		res := SendResult{Session: cloneSession(*active)}
		c.mu.Unlock()
		return res, nil
	}
	c.pending[sessionID] = true

	// Optimistic append, then snapshot the window while still locked.
	active.Messages = append(active.Messages, session.NewMessage(session.RoleUser, text))
	active.UpdatedAt = active.Messages[len(active.Messages)-1].Timestamp
	turns := historyTurns(active.Messages)
	contextLoc := c.contextLocationLocked()
	c.saveLocked()
	c.mu.Unlock()

	reply, err := c.svc.Send(ctx, turns, contextLoc)

	c.mu.Lock()
	delete(c.pending, sessionID)

	// The originating session may have been deleted mid-flight.
	owner := c.findLocked(sessionID)
	if owner == nil {
		logging.Session("Dropping reply for deleted session %s", sessionID)
		res := SendResult{Session: cloneSession(*c.mustActiveLocked())}
		c.mu.Unlock()
		return res, nil
	}

	if err != nil {
		logging.APIError("Send failed on %s: %v", sessionID, err)
		msg := session.NewMessage(session.RoleModel, apologyText)
		owner.Messages = append(owner.Messages, msg)
		owner.UpdatedAt = msg.Timestamp
		c.saveLocked()
		res := SendResult{Session: cloneSession(*owner)}
		c.mu.Unlock()
		return res, nil
	}

	parsed := grounding.Parse(reply.Text, reply.Citations)
	msg := session.NewMessage(session.RoleModel, parsed.CleanText)
	msg.GroundingCitations = reply.Citations
	msg.SuggestedLocation = parsed.Suggested
	msg.RelatedLocations = parsed.Related
	owner.Messages = append(owner.Messages, msg)
	owner.UpdatedAt = msg.Timestamp
	session.DeriveTitle(owner)
	c.saveLocked()

	res := SendResult{Session: cloneSession(*owner)}
	var weatherLoc *geo.Location
	if sessionID == c.activeID {
		if parsed.Suggested != nil {
			loc := *parsed.Suggested
			c.target = &loc
		}
		c.related = cloneRelated(parsed.Related)
		res.Viewport = c.view.Sync(c.target, c.related)
		if c.target != nil {
			loc := *c.target
			weatherLoc = &loc
		}
	}
	c.mu.Unlock()

	// Weather is garnish: fetched outside the lock, failures logged only.
	if c.weather != nil && weatherLoc != nil {
		if snap, werr := c.weather(ctx, *weatherLoc); werr != nil {
			logging.Weather("Lookup failed: %v", werr)
		} else {
			res.Weather = snap
		}
	}
	return res, nil
}

// NewSession creates a fresh session with the canned welcome message,
// makes it active, and clears the map target.
func (c *Controller) NewSession() session.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := session.NewChatSession()
	c.sessions = append(c.sessions, s)
	c.activeID = s.ID
	c.target = nil
	c.related = nil
	c.view.Sync(nil, nil)
	c.saveLocked()
	logging.Session("Created session %s", s.ID)
	return cloneSession(s)
}

// SwitchTo makes the named session active and recomputes map state from
// its messages, newest-first.
func (c *Controller) SwitchTo(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.findLocked(id) == nil {
		return errors.New("unknown session " + id)
	}
	c.activeID = id
	c.recomputeMapStateLocked()
	c.view.Sync(c.target, c.related)
	logging.Session("Switched to session %s", id)
	return nil
}

// Delete removes a session after the confirm gate approves. When the
// active session is removed, the most recently updated survivor becomes
// active; if none remain a fresh session is synthesized, so the
// collection is never empty.
func (c *Controller) Delete(id string, confirm func() bool) error {
	if confirm != nil && !confirm() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i := range c.sessions {
		if c.sessions[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.New("unknown session " + id)
	}

	c.sessions = append(c.sessions[:idx], c.sessions[idx+1:]...)
	logging.Session("Deleted session %s", id)

	if len(c.sessions) == 0 {
		c.sessions = []session.ChatSession{session.NewChatSession()}
		c.activeID = c.sessions[0].ID
	} else if id == c.activeID {
		best := 0
		for i := range c.sessions {
			if c.sessions[i].UpdatedAt > c.sessions[best].UpdatedAt {
				best = i
			}
		}
		c.activeID = c.sessions[best].ID
	}
	c.recomputeMapStateLocked()
	c.view.Sync(c.target, c.related)
	c.saveLocked()
	return nil
}

// PickLocation consumes a map-click gesture. The raw pair must validate
// before it becomes the target; an invalid pick is ignored.
func (c *Controller) PickLocation(lat, lng float64) (viewport.Command, bool) {
	if !geo.Validate(lat, lng) {
		logging.Viewport("Ignoring invalid map pick (%.4f, %.4f)", lat, lng)
		return viewport.Command{Kind: viewport.NoOp}, false
	}
	loc := geo.Location{Lat: lat, Lng: lng}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = &loc
	c.related = nil
	return c.view.Sync(c.target, nil), true
}

// SetUserLocation records the device location for recenter and context.
func (c *Controller) SetUserLocation(lat, lng float64) {
	if !geo.Validate(lat, lng) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.SetUserLocation(geo.Location{Lat: lat, Lng: lng})
}

// RequestRecenter re-issues a flight to the user location. Each call is
// a distinct request even when nothing has moved.
func (c *Controller) RequestRecenter() (viewport.Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.RequestRecenter()
}

// ----------------------------------------------------------------------------
// internals (callers hold c.mu)
// ----------------------------------------------------------------------------

func (c *Controller) mustActiveLocked() *session.ChatSession {
	if s := c.findLocked(c.activeID); s != nil {
		return s
	}
	// Sending without an active session is a broken invariant, not bad
	// external data.
	panic("chat: no active session")
}

func (c *Controller) findLocked(id string) *session.ChatSession {
	for i := range c.sessions {
		if c.sessions[i].ID == id {
			return &c.sessions[i]
		}
	}
	return nil
}

func (c *Controller) recomputeMapStateLocked() {
	active := c.mustActiveLocked()
	c.target = session.LatestTarget(active.Messages)
	c.related = session.LatestRelated(active.Messages)
}

// contextLocationLocked picks target, else user location, else nothing.
func (c *Controller) contextLocationLocked() *geo.Location {
	if c.target != nil {
		out := *c.target
		return &out
	}
	return c.view.UserLocation()
}

func (c *Controller) saveLocked() {
	if err := c.store.Save(c.sessions); err != nil {
		logging.SessionError("Save failed: %v", err)
	}
}

func historyTurns(messages []session.Message) []ai.Turn {
	start := 0
	if len(messages) > historyWindow {
		start = len(messages) - historyWindow
	}
	turns := make([]ai.Turn, 0, len(messages)-start)
	for _, m := range messages[start:] {
		role := ai.RoleUser
		if m.Role == session.RoleModel {
			role = ai.RoleModel
		}
		turns = append(turns, ai.Turn{Role: role, Text: m.Text})
	}
	return turns
}

func cloneSession(s session.ChatSession) session.ChatSession {
	out := s
	out.Messages = make([]session.Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}

func cloneRelated(in []geo.Location) []geo.Location {
	if in == nil {
		return nil
	}
	out := make([]geo.Location, len(in))
	copy(out, in)
	return out
}
