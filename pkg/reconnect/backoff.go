package reconnect

import (
	"math/rand"
	"sync"
	"time"
)

// Default backoff schedule: 1s, 2s, 4s, ... capped at 60s, each delay
// stretched by up to 25% random jitter so a fleet of clients does not
// redial a recovering server in lockstep.
const (
	// InitialBackoff is the delay before the first reconnection attempt.
	InitialBackoff = 1 * time.Second

	// MaxBackoff caps the delay between attempts.
	MaxBackoff = 60 * time.Second

	// BackoffMultiplier grows the delay after each failed attempt.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum random stretch as a fraction of the
	// base delay.
	JitterFactor = 0.25
)

// Backoff produces the delay schedule for reconnection attempts.
// All methods are safe for concurrent use.
type Backoff struct {
	mu sync.Mutex

	// base delay for the next attempt, before jitter
	current time.Duration

	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64

	attempts int

	rng *rand.Rand
}

// NewBackoff returns a Backoff with the default schedule.
func NewBackoff() *Backoff {
	return &Backoff{
		current:    InitialBackoff,
		initial:    InitialBackoff,
		max:        MaxBackoff,
		multiplier: BackoffMultiplier,
		jitter:     JitterFactor,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// BackoffConfig overrides parts of the default schedule. Zero values keep
// the defaults, except Jitter, where zero disables jitter entirely.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// NewBackoffWithConfig returns a Backoff with a custom schedule.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialBackoff
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxBackoff
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = BackoffMultiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &Backoff{
		current:    cfg.Initial,
		initial:    cfg.Initial,
		max:        cfg.Max,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the jittered delay for the next attempt and advances the
// schedule.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.addJitter(b.current)

	b.attempts++
	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next

	return delay
}

// Peek returns a jittered delay for the next attempt without advancing
// the schedule.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addJitter(b.current)
}

// Reset restarts the schedule. Call after a successful connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the base delay for the next attempt, without jitter.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.jitter*b.rng.Float64())
}
