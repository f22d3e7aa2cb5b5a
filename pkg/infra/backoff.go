package infra

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Backoff produces jittered, exponentially growing delays for reconnect
// loops. It deliberately has no attempt cap; callers decide when to give up.
type Backoff struct {
	base     time.Duration
	cap      time.Duration
	factor   float64
	next     time.Duration
	attempts int
	mu       sync.Mutex
}

func NewBackoff(base, cap time.Duration, factor float64) *Backoff {
	return &Backoff{
		base:   base,
		cap:    cap,
		factor: factor,
		next:   base,
	}
}

// Next returns the delay to wait before the following attempt, with ±20%
// jitter to keep restarting daemons from stampeding a recovering service.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++

	jitter := time.Duration((rand.Float64()*0.4 - 0.2) * float64(b.next))
	wait := max(b.next+jitter, b.base)

	b.next = min(time.Duration(float64(b.next)*b.factor), b.cap)

	return wait
}

// Reset returns the sequence to its base delay after a success.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next = b.base
	b.attempts = 0
}

func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
