package socket

import (
	"math"
	"math/rand/v2"
	"time"
)

// ReconnectConfig controls automatic redial after an unexpected drop.
// Disabled by default: a dropped channel then stays CLOSED until restart.
type ReconnectConfig struct {
	Enabled     bool
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

func (c *ReconnectConfig) defaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
}

// backoff yields exponentially growing, jittered delays. The attempt counter
// resets once a connection has stayed up for a minute.
type backoff struct {
	cfg         ReconnectConfig
	attempt     int
	connectedAt time.Time
}

func newBackoff(cfg ReconnectConfig) *backoff {
	cfg.defaults()
	return &backoff{cfg: cfg}
}

func (b *backoff) allowed() bool {
	return b.cfg.MaxAttempts <= 0 || b.attempt < b.cfg.MaxAttempts
}

func (b *backoff) connected() {
	b.connectedAt = time.Now()
}

func (b *backoff) next() time.Duration {
	if !b.connectedAt.IsZero() && time.Since(b.connectedAt) > time.Minute {
		b.attempt = 0
	}
	b.connectedAt = time.Time{}
	jitter := rand.Float64() * float64(b.cfg.BaseDelay) * 0.5
	delay := math.Min(
		float64(b.cfg.BaseDelay)*math.Pow(2, float64(b.attempt))+jitter,
		float64(b.cfg.MaxDelay),
	)
	b.attempt++
	return time.Duration(delay)
}
