package conn

import "time"

// Backoff produces the reconnect delay sequence 1s, 2s, 4s, ... capped at
// max. Reset returns it to the initial delay after a successful connect.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff creates a doubling backoff between initial and max.
func NewBackoff(initial, max time.Duration) *Backoff {
	return &Backoff{initial: initial, max: max, current: initial}
}

// Next returns the delay to wait before the next attempt and advances the
// sequence.
func (b *Backoff) Next() time.Duration {
	delay := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return delay
}

// Reset returns the sequence to the initial delay.
func (b *Backoff) Reset() {
	b.current = b.initial
}
