package event

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// drain delivers everything queued on bus and returns.
func drain(bus *Bus) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Run(ctx)
}

func TestPublishDeliversByType(t *testing.T) {
	bus := NewBus(testLogger(), 16)

	var loaded, failed []Event
	bus.Subscribe(ProfileLoaded, func(e Event) { loaded = append(loaded, e) })
	bus.Subscribe(ProfileFailed, func(e Event) { failed = append(failed, e) })

	bus.Publish(Event{Type: ProfileLoaded, Data: map[string]any{"artist_id": "abc-123", "albums": 2}})
	bus.Publish(Event{Type: ArtistNotFound})
	drain(bus)

	if len(loaded) != 1 || len(failed) != 0 {
		t.Fatalf("loaded=%d failed=%d, want 1 and 0", len(loaded), len(failed))
	}
	if got := loaded[0].String("artist_id"); got != "abc-123" {
		t.Errorf("artist_id = %q, want abc-123", got)
	}
	if loaded[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if s := bus.Stats(); s.Published != 2 || s.Delivered != 1 {
		t.Errorf("stats = %+v, want 2 published and 1 delivered", s)
	}
}

func TestPublishKeepsTimestamp(t *testing.T) {
	bus := NewBus(testLogger(), 4)
	at := time.Date(1987, 7, 1, 0, 0, 0, 0, time.UTC)

	var got time.Time
	bus.Subscribe(AlbumsEnriched, func(e Event) { got = e.Timestamp })
	bus.Publish(Event{Type: AlbumsEnriched, Timestamp: at})
	drain(bus)

	if !got.Equal(at) {
		t.Errorf("timestamp = %v, want %v", got, at)
	}
}

func TestSubscribeAllSeesEveryTypeInOrder(t *testing.T) {
	bus := NewBus(testLogger(), 16)

	var seen []Type
	bus.SubscribeAll(func(e Event) { seen = append(seen, e.Type) })

	want := []Type{ProfileLoaded, ConfigReloaded, ArtistNotFound}
	for _, typ := range want {
		bus.Publish(Event{Type: typ})
	}
	drain(bus)

	if len(seen) != len(want) {
		t.Fatalf("seen %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(testLogger(), 16)

	kept, removed := 0, 0
	bus.Subscribe(ProfileLoaded, func(Event) { kept++ })
	unsubscribe := bus.Subscribe(ProfileLoaded, func(Event) { removed++ })

	bus.Publish(Event{Type: ProfileLoaded})
	drain(bus)
	unsubscribe()
	unsubscribe()
	bus.Publish(Event{Type: ProfileLoaded})
	drain(bus)

	if kept != 2 || removed != 1 {
		t.Errorf("kept=%d removed=%d, want 2 and 1", kept, removed)
	}
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	bus := NewBus(testLogger(), 2)

	calls := 0
	bus.Subscribe(ProfileLoaded, func(Event) { calls++ })
	for range 3 {
		bus.Publish(Event{Type: ProfileLoaded})
	}
	drain(bus)

	if calls != 2 {
		t.Errorf("delivered %d events, want 2", calls)
	}
	if s := bus.Stats(); s.Published != 2 || s.Dropped != 1 {
		t.Errorf("stats = %+v, want 2 published and 1 dropped", s)
	}
}

func TestHandlerPanicDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(testLogger(), 16)

	secondCalled := false
	bus.Subscribe(ProfileFailed, func(Event) { panic("boom") })
	bus.Subscribe(ProfileFailed, func(Event) { secondCalled = true })

	bus.Publish(Event{Type: ProfileFailed})
	drain(bus)

	if !secondCalled {
		t.Error("second handler should still be called after first panics")
	}
	if s := bus.Stats(); s.Panics != 1 || s.Delivered != 1 {
		t.Errorf("stats = %+v, want 1 panic and 1 delivered", s)
	}
}

func TestRunDeliversWhileRunning(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	got := make(chan Event, 1)
	bus.Subscribe(AlbumsEnriched, func(e Event) { got <- e })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bus.Run(ctx)
		close(done)
	}()

	bus.Publish(Event{Type: AlbumsEnriched, Data: map[string]any{"matched": "3/5"}})
	select {
	case e := <-got:
		if e.String("matched") != "3/5" {
			t.Errorf("matched = %q", e.String("matched"))
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEventString(t *testing.T) {
	e := Event{Data: map[string]any{"query": "Napalm Death", "albums": 3}}
	tests := []struct {
		key  string
		want string
	}{
		{"query", "Napalm Death"},
		{"albums", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := e.String(tt.key); got != tt.want {
			t.Errorf("String(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}

	var empty Event
	if got := empty.String("query"); got != "" {
		t.Errorf("String on nil data = %q, want empty", got)
	}
}
