// Package event carries pipeline outcomes and runtime notices between
// components of one process.
package event

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Type identifies a category of event.
type Type string

// Known event types.
const (
	ProfileLoaded  Type = "profile.loaded"
	ProfileFailed  Type = "profile.failed"
	ArtistNotFound Type = "artist.not_found"
	AlbumsEnriched Type = "albums.enriched"
	ConfigReloaded Type = "config.reloaded"
)

// Event is one published occurrence. Data keys are event specific.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// String returns the data value for key, or "" when absent or not a string.
func (e Event) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// Handler processes one event.
type Handler func(Event)

// Stats counts bus traffic since the bus was created.
type Stats struct {
	Published int64 `json:"published"`
	Dropped   int64 `json:"dropped"`
	Delivered int64 `json:"delivered"`
	Panics    int64 `json:"panics"`
}

type subscription struct {
	id  uint64
	typ Type // empty matches every type
	fn  Handler
}

// Bus queues events on a bounded channel and delivers them from the
// goroutine running Run, one at a time, in publish order. Publishing never
// blocks: when the queue is full the event is dropped and counted.
type Bus struct {
	queue  chan Event
	logger *slog.Logger

	mu     sync.RWMutex
	subs   []subscription
	nextID uint64

	published atomic.Int64
	dropped   atomic.Int64
	delivered atomic.Int64
	panics    atomic.Int64
}

// NewBus creates a bus whose queue holds size events (256 when size <= 0).
func NewBus(logger *slog.Logger, size int) *Bus {
	if size <= 0 {
		size = 256
	}
	return &Bus{
		queue:  make(chan Event, size),
		logger: logger.With(slog.String("component", "events")),
	}
}

// Subscribe registers h for events of type t. The returned function removes
// the subscription and may be called more than once.
func (b *Bus) Subscribe(t Type, h Handler) (unsubscribe func()) {
	return b.add(t, h)
}

// SubscribeAll registers h for every event type.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	return b.add("", h)
}

func (b *Bus) add(t Type, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, typ: t, fn: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			kept := b.subs[:0:0]
			for _, s := range b.subs {
				if s.id != id {
					kept = append(kept, s)
				}
			}
			b.subs = kept
		})
	}
}

// Publish queues e, stamping it with the current time when unset.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case b.queue <- e:
		b.published.Add(1)
	default:
		b.dropped.Add(1)
		b.logger.Warn("event queue full, dropping event", slog.String("type", string(e.Type)))
	}
}

// Run delivers queued events until ctx is done, then delivers what is still
// queued and returns.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case e := <-b.queue:
			b.deliver(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-b.queue:
					b.deliver(e)
				default:
					return
				}
			}
		}
	}
}

// Stats returns a snapshot of the counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Dropped:   b.dropped.Load(),
		Delivered: b.delivered.Load(),
		Panics:    b.panics.Load(),
	}
}

func (b *Bus) handlers(t Type) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Handler
	for _, s := range b.subs {
		if s.typ == "" || s.typ == t {
			out = append(out, s.fn)
		}
	}
	return out
}

func (b *Bus) deliver(e Event) {
	for _, h := range b.handlers(e.Type) {
		b.call(h, e)
	}
}

// call runs one handler; a panic is logged and counted and does not stop
// delivery to the remaining handlers.
func (b *Bus) call(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			b.logger.Error("event handler panicked",
				slog.String("type", string(e.Type)),
				slog.Any("panic", r))
		}
	}()
	h(e)
	b.delivered.Add(1)
}
