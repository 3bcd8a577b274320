package stream

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Backoff computes the wait before reconnect attempt n (1-based).
type Backoff interface {
	Delay(attempt int) time.Duration
}

// Default reconnect bounds.
const (
	DefaultBaseDelay = time.Second
	DefaultMaxDelay  = 60 * time.Second
)

// ExponentialBackoff doubles Base per attempt up to Max and spreads each
// delay over [d/2, 3d/2), then caps it at Max. Two instances with the same
// seed produce the same sequence.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewExponentialBackoff creates a seeded backoff. Non-positive bounds fall
// back to the defaults.
func NewExponentialBackoff(base, maxDelay time.Duration, seed uint64) *ExponentialBackoff {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if maxDelay < base {
		maxDelay = base
	}
	return &ExponentialBackoff{
		Base: base,
		Max:  maxDelay,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Delay returns the jittered delay for attempt.
func (b *ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := b.Base
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}

	b.mu.Lock()
	jittered := d/2 + time.Duration(b.rng.Int64N(int64(d)))
	b.mu.Unlock()

	if jittered > b.Max {
		jittered = b.Max
	}
	return jittered
}

// ConstantBackoff always waits the same duration.
type ConstantBackoff time.Duration

func (c ConstantBackoff) Delay(int) time.Duration { return time.Duration(c) }
