package discovery

import (
	"context"
	"sync"
	"time"
)

// Tracker lets only the most recently started run of a view reach its sink.
// Begin cancels the previous run.
type Tracker struct {
	mu       sync.Mutex
	seq      uint64
	cancel   context.CancelFunc
	lastUsed time.Time
}

// Begin starts a new run and returns its context and sequence number.
func (t *Tracker) Begin(ctx context.Context) (context.Context, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	t.seq++
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.lastUsed = time.Now()
	return runCtx, t.seq
}

// IsCurrent reports whether seq is still the latest run.
func (t *Tracker) IsCurrent(seq uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return seq == t.seq
}

// End releases the run's context if it is still the latest.
func (t *Tracker) End(seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seq == t.seq && t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *Tracker) idleSince() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastUsed
}

// Trackers keys one Tracker per client.
type Trackers struct {
	mu       sync.Mutex
	trackers map[string]*Tracker
	maxIdle  time.Duration
}

// NewTrackers creates an empty set. Trackers idle longer than maxIdle are
// dropped lazily.
func NewTrackers(maxIdle time.Duration) *Trackers {
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}
	return &Trackers{
		trackers: make(map[string]*Tracker),
		maxIdle:  maxIdle,
	}
}

// Get returns the tracker for key, creating it on first use.
func (ts *Trackers) Get(key string) *Tracker {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if len(ts.trackers) > 1024 {
		cutoff := time.Now().Add(-ts.maxIdle)
		for k, t := range ts.trackers {
			if k != key && t.idleSince().Before(cutoff) {
				delete(ts.trackers, k)
			}
		}
	}

	t, ok := ts.trackers[key]
	if !ok {
		t = &Tracker{lastUsed: time.Now()}
		ts.trackers[key] = t
	}
	return t
}

// Len returns the number of tracked clients.
func (ts *Trackers) Len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.trackers)
}
