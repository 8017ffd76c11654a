package discovery

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFixedDelay_FirstAttemptImmediate(t *testing.T) {
	p := FixedDelay{Interval: time.Hour}
	start := time.Now()
	if err := p.Wait(context.Background(), 0); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("first attempt should not wait")
	}
}

func TestFixedDelay_HonorsCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := FixedDelay{Interval: time.Hour}.Wait(ctx, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestTokenBucket_SpacesAttempts(t *testing.T) {
	p := NewTokenBucket(20 * time.Millisecond)
	start := time.Now()
	for i := range 3 {
		if err := p.Wait(context.Background(), i); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Errorf("elapsed %v, want roughly two intervals", elapsed)
	}
}

func TestNewPacer(t *testing.T) {
	if p, err := NewPacer("", time.Second); err != nil {
		t.Errorf("empty mode: %v", err)
	} else if _, ok := p.(FixedDelay); !ok {
		t.Errorf("empty mode = %T, want FixedDelay", p)
	}
	if p, err := NewPacer(PacingTokenBucket, time.Second); err != nil {
		t.Errorf("token bucket: %v", err)
	} else if _, ok := p.(*TokenBucket); !ok {
		t.Errorf("token_bucket = %T", p)
	}
	if _, err := NewPacer("jitter", time.Second); err == nil {
		t.Error("expected error for unknown mode")
	}
}
