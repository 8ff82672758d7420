package bridge

import (
	"math"
	"math/rand"
	"time"
)

// backoff computes reconnect delays: initial * factor^attempt, capped at max,
// then spread by ±jitter and capped again.
type backoff struct {
	initial time.Duration
	max     time.Duration
	factor  float64
	jitter  float64
	random  func() float64

	attempt int
}

func newBackoff(initial, max time.Duration, factor, jitter float64) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		factor:  factor,
		jitter:  jitter,
		random:  rand.Float64,
	}
}

func (b *backoff) Next() time.Duration {
	d := float64(b.initial) * math.Pow(b.factor, float64(b.attempt))
	if d > float64(b.max) {
		d = float64(b.max)
	} else {
		b.attempt++
	}

	if b.jitter > 0 {
		d *= 1 + b.jitter*(2*b.random()-1)
	}
	if d > float64(b.max) {
		d = float64(b.max)
	}
	return time.Duration(math.Round(d))
}

func (b *backoff) Reset() {
	b.attempt = 0
}
