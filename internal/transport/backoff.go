package transport

import "time"

// Backoff implements the reconnect wait policy: start at Base, double on
// every failure up to Max, reset to Base after any success.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	next time.Duration
}

// NewBackoff creates a Backoff with the given base and ceiling.
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{Base: base, Max: max}
}

// Next returns the wait interval for the current failure and advances the
// policy for the next one.
func (b *Backoff) Next() time.Duration {
	if b.next == 0 {
		b.next = b.Base
	}
	cur := b.next
	b.next *= 2
	if b.next > b.Max {
		b.next = b.Max
	}
	if cur > b.Max {
		cur = b.Max
	}
	return cur
}

// Reset returns the policy to the base interval.
func (b *Backoff) Reset() {
	b.next = 0
}
