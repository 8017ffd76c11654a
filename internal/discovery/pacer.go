package discovery

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPaceInterval spaces secondary-catalog queries.
const DefaultPaceInterval = 200 * time.Millisecond

// Pacer spaces the queries of an enrichment pass.
type Pacer interface {
	// Wait blocks before attempt n (0-based) of one pass.
	Wait(ctx context.Context, attempt int) error
}

// FixedDelay sleeps Interval between consecutive attempts of a pass.
// The first attempt is never delayed.
type FixedDelay struct {
	Interval time.Duration
}

// Wait implements Pacer.
func (p FixedDelay) Wait(ctx context.Context, attempt int) error {
	if attempt == 0 || p.Interval <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// TokenBucket paces every attempt through one shared limiter, so concurrent
// passes together stay under one query per Interval.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a TokenBucket allowing one attempt per interval.
func NewTokenBucket(interval time.Duration) *TokenBucket {
	if interval <= 0 {
		return &TokenBucket{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait implements Pacer.
func (p *TokenBucket) Wait(ctx context.Context, _ int) error {
	return p.limiter.Wait(ctx)
}

// Pacing modes accepted by NewPacer.
const (
	PacingFixed       = "fixed"
	PacingTokenBucket = "token_bucket"
)

// NewPacer builds the Pacer for a configured mode. Empty means fixed.
func NewPacer(mode string, interval time.Duration) (Pacer, error) {
	switch mode {
	case "", PacingFixed:
		return FixedDelay{Interval: interval}, nil
	case PacingTokenBucket:
		return NewTokenBucket(interval), nil
	default:
		return nil, fmt.Errorf("unknown pacing mode %q", mode)
	}
}
