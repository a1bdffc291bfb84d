package channel

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig controls the reconnect schedule after an abnormal close.
// Delays grow exponentially from InitialDelay up to MaxDelay, and the
// attempt count is capped so a dead backend surfaces as a terminal error
// instead of an endless retry loop.
type BackoffConfig struct {
	// InitialDelay is the delay before the first reconnect attempt.
	InitialDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// MaxAttempts limits consecutive failed attempts before the channel
	// reports the connection as lost.
	MaxAttempts int
	// DisableJitter makes delays deterministic (tests only).
	DisableJitter bool
}

// DefaultBackoff returns the reconnect schedule used in production.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 3 * time.Second,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  5,
	}
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	d := DefaultBackoff()
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	return c
}

// Delay returns the jittered delay before the given attempt (1-based).
func (c BackoffConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(c.InitialDelay) * math.Pow(2, float64(attempt-1))
	delay = math.Min(delay, float64(c.MaxDelay))
	d := time.Duration(delay)
	if !c.DisableJitter && d > 1 {
		d += time.Duration(rand.Int63n(int64(d) / 2))
	}
	return d
}
