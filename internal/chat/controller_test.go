package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"mapchat/internal/ai"
	"mapchat/internal/geo"
	"mapchat/internal/session"
	"mapchat/internal/viewport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Started by go.opencensus.io's package init (via transitive deps),
		// not by the code under test.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

// mockClient scripts the AI boundary.
type mockClient struct {
	fn func(history []ai.Turn, loc *geo.Location) (*ai.Reply, error)
}

func (m *mockClient) Send(_ context.Context, history []ai.Turn, loc *geo.Location) (*ai.Reply, error) {
	return m.fn(history, loc)
}

// memBlobs is an in-memory session.Blobs.
type memBlobs struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemBlobs() *memBlobs { return &memBlobs{data: make(map[string]string)} }

func (b *memBlobs) Get(key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *memBlobs) Put(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

func newTestController(fn func([]ai.Turn, *geo.Location) (*ai.Reply, error), opts ...Option) *Controller {
	return NewController(&mockClient{fn: fn}, session.NewStore(newMemBlobs()), opts...)
}

func TestSendMergesParsedReply(t *testing.T) {
	c := newTestController(func(_ []ai.Turn, _ *geo.Location) (*ai.Reply, error) {
		return &ai.Reply{Text: "The Eiffel Tower is in Paris. {{LAT:48.8584, LNG:2.2945}}"}, nil
	})

	res, err := c.Send(context.Background(), "Where is the Eiffel Tower?")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	msgs := res.Session.Messages
	// welcome + user + model
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	model := msgs[2]
	if model.Role != session.RoleModel {
		t.Errorf("last message role = %s", model.Role)
	}
	if model.Text != "The Eiffel Tower is in Paris." {
		t.Errorf("clean text = %q", model.Text)
	}
	if model.SuggestedLocation == nil || model.SuggestedLocation.Lat != 48.8584 {
		t.Errorf("suggested location = %+v", model.SuggestedLocation)
	}
	if res.Viewport.Kind != viewport.FlyTo {
		t.Errorf("viewport kind = %v", res.Viewport.Kind)
	}
	if got := c.Target(); got == nil || got.Lng != 2.2945 {
		t.Errorf("target = %+v", got)
	}
	if res.Session.Title != "Where is the Eiffel Tower?" {
		t.Errorf("derived title = %q", res.Session.Title)
	}
}

func TestSendRejectsBlankText(t *testing.T) {
	c := newTestController(func(_ []ai.Turn, _ *geo.Location) (*ai.Reply, error) {
		t.Fatal("AI must not be called for blank input")
		return nil, nil
	})

	if _, err := c.Send(context.Background(), "   \n\t "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if got := len(c.Active().Messages); got != 1 {
		t.Errorf("transcript changed: %d messages", got)
	}
}

func TestConcurrentSendIsNoOp(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	c := newTestController(func(_ []ai.Turn, _ *geo.Location) (*ai.Reply, error) {
		close(entered)
		<-release
		return &ai.Reply{Text: "done"}, nil
	})

	done := make(chan SendResult)
	go func() {
		res, _ := c.Send(context.Background(), "first")
		done <- res
	}()
	<-entered

	// Second send while the first is in flight: ignored, no user message.
	res, err := c.Send(context.Background(), "second")
	if err != nil {
		t.Fatalf("concurrent send returned error: %v", err)
	}
	for _, m := range res.Session.Messages {
		if m.Text == "second" {
			t.Error("concurrent send appended a duplicate user message")
		}
	}

	close(release)
	first := <-done
	if got := len(first.Session.Messages); got != 3 {
		t.Errorf("expected 3 messages after first send, got %d", got)
	}
}

func TestSendFailureAppendsApologyOnly(t *testing.T) {
	c := newTestController(func(_ []ai.Turn, _ *geo.Location) (*ai.Reply, error) {
		return nil, errors.New("upstream exploded")
	})

	res, err := c.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("remote failure must not surface as an error: %v", err)
	}

	last := res.Session.Messages[len(res.Session.Messages)-1]
	if last.Text != apologyText {
		t.Errorf("expected apology, got %q", last.Text)
	}
	if strings.Contains(last.Text, "exploded") {
		t.Error("raw error text leaked into the transcript")
	}
	if last.SuggestedLocation != nil || last.RelatedLocations != nil {
		t.Error("apology message must carry no location fields")
	}
	if res.Viewport.Kind != viewport.NoOp {
		t.Errorf("map state must be unchanged, got %v", res.Viewport.Kind)
	}
}

func TestHistoryWindowIsLastTen(t *testing.T) {
	var captured []ai.Turn
	c := newTestController(func(history []ai.Turn, _ *geo.Location) (*ai.Reply, error) {
		captured = history
		return &ai.Reply{Text: "ok"}, nil
	})

	for i := 0; i < 7; i++ {
		if _, err := c.Send(context.Background(), "turn"); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}
	// 1 welcome + 7 user + 6 model = 14 before the last send's window.
	if len(captured) != 10 {
		t.Fatalf("window size = %d, want 10", len(captured))
	}
	if captured[len(captured)-1].Role != ai.RoleUser {
		t.Error("window must end with the just-appended user turn")
	}
}

func TestContextLocationPrefersTarget(t *testing.T) {
	var captured *geo.Location
	c := newTestController(func(_ []ai.Turn, loc *geo.Location) (*ai.Reply, error) {
		captured = loc
		return &ai.Reply{Text: "ok"}, nil
	})

	c.SetUserLocation(40.4168, -3.7038)
	if _, err := c.Send(context.Background(), "nearby?"); err != nil {
		t.Fatal(err)
	}
	if captured == nil || captured.Lat != 40.4168 {
		t.Fatalf("expected user location as context, got %+v", captured)
	}

	if _, ok := c.PickLocation(51.5007, -0.1246); !ok {
		t.Fatal("valid pick rejected")
	}
	if _, err := c.Send(context.Background(), "and here?"); err != nil {
		t.Fatal(err)
	}
	if captured == nil || captured.Lat != 51.5007 {
		t.Fatalf("expected picked target as context, got %+v", captured)
	}
}

func TestNewSessionClearsTarget(t *testing.T) {
	c := newTestController(func(_ []ai.Turn, _ *geo.Location) (*ai.Reply, error) {
		return &ai.Reply{Text: "x {{LAT:1, LNG:2}}"}, nil
	})
	if _, err := c.Send(context.Background(), "place?"); err != nil {
		t.Fatal(err)
	}
	if c.Target() == nil {
		t.Fatal("expected a target after send")
	}

	fresh := c.NewSession()
	if c.Target() != nil {
		t.Error("new session must clear the target")
	}
	if len(fresh.Messages) != 1 || fresh.Messages[0].Text != session.WelcomeText {
		t.Errorf("fresh session transcript = %+v", fresh.Messages)
	}
	if c.Active().ID != fresh.ID {
		t.Error("fresh session must become active")
	}
}

func TestSwitchToRecomputesTarget(t *testing.T) {
	c := newTestController(func(_ []ai.Turn, _ *geo.Location) (*ai.Reply, error) {
		return &ai.Reply{Text: "spot {{LAT:10, LNG:20}}"}, nil
	})
	first := c.Active().ID
	if _, err := c.Send(context.Background(), "where?"); err != nil {
		t.Fatal(err)
	}

	c.NewSession()
	if c.Target() != nil {
		t.Fatal("target should be clear in the new session")
	}

	if err := c.SwitchTo(first); err != nil {
		t.Fatalf("SwitchTo failed: %v", err)
	}
	if got := c.Target(); got == nil || got.Lat != 10 || got.Lng != 20 {
		t.Errorf("recomputed target = %+v", got)
	}

	if err := c.SwitchTo("nope"); err == nil {
		t.Error("expected error for unknown session id")
	}
}

func TestDeleteConfirmGateAndFallback(t *testing.T) {
	c := newTestController(func(_ []ai.Turn, _ *geo.Location) (*ai.Reply, error) {
		return &ai.Reply{Text: "ok"}, nil
	})
	first := c.Active().ID
	second := c.NewSession().ID

	// Declined gate: nothing happens.
	if err := c.Delete(second, func() bool { return false }); err != nil {
		t.Fatal(err)
	}
	if len(c.Sessions()) != 2 {
		t.Fatal("declined delete must keep the session")
	}

	// Deleting the active session falls back to the survivor.
	if err := c.Delete(second, func() bool { return true }); err != nil {
		t.Fatal(err)
	}
	if c.Active().ID != first {
		t.Errorf("active after delete = %s, want %s", c.Active().ID, first)
	}

	// Deleting the last session synthesizes a fresh one.
	if err := c.Delete(first, func() bool { return true }); err != nil {
		t.Fatal(err)
	}
	sessions := c.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("expected a synthesized session, got %d", len(sessions))
	}
	if sessions[0].ID == first || sessions[0].Title != session.DefaultTitle {
		t.Errorf("synthesized session = %+v", sessions[0])
	}
}

func TestPickLocationValidates(t *testing.T) {
	c := newTestController(func(_ []ai.Turn, _ *geo.Location) (*ai.Reply, error) {
		return &ai.Reply{Text: "ok"}, nil
	})

	if _, ok := c.PickLocation(91, 0); ok {
		t.Error("out-of-range pick must be rejected")
	}
	if c.Target() != nil {
		t.Error("rejected pick must not set the target")
	}

	cmd, ok := c.PickLocation(-33.8568, 151.2153)
	if !ok || cmd.Kind != viewport.FlyTo {
		t.Errorf("valid pick: ok=%v kind=%v", ok, cmd.Kind)
	}
}

func TestWeatherAttachedToNewTarget(t *testing.T) {
	c := newTestController(
		func(_ []ai.Turn, _ *geo.Location) (*ai.Reply, error) {
			return &ai.Reply{Text: "beach {{LAT:-33.8568, LNG:151.2153}}"}, nil
		},
		WithWeather(func(_ context.Context, loc geo.Location) (string, error) {
			if !loc.Valid() {
				t.Errorf("weather called with invalid location %+v", loc)
			}
			return "22.0°C, clear sky", nil
		}),
	)

	res, err := c.Send(context.Background(), "beach weather?")
	if err != nil {
		t.Fatal(err)
	}
	if res.Weather != "22.0°C, clear sky" {
		t.Errorf("weather = %q", res.Weather)
	}
}

func TestControllerPersistsAcrossRestart(t *testing.T) {
	blobs := newMemBlobs()
	store := session.NewStore(blobs)

	c := NewController(&mockClient{fn: func(_ []ai.Turn, _ *geo.Location) (*ai.Reply, error) {
		return &ai.Reply{Text: "noted {{LAT:35.6895, LNG:139.6917}}"}, nil
	}}, store)
	if _, err := c.Send(context.Background(), "remember Tokyo"); err != nil {
		t.Fatal(err)
	}
	id := c.Active().ID

	// Fresh controller over the same blobs: collection and map state
	// come back from persistence.
	c2 := NewController(&mockClient{fn: nil}, session.NewStore(blobs))
	if c2.Active().ID != id {
		t.Errorf("restored active = %s, want %s", c2.Active().ID, id)
	}
	if got := c2.Target(); got == nil || got.Lat != 35.6895 {
		t.Errorf("restored target = %+v", got)
	}
}
