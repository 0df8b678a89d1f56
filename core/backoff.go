package session

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 30 * time.Second
	defaultMultiplier  = 2
	defaultMaxAttempts = 5
)

// BackoffPolicy controls reconnect scheduling. The delay before retry k is
// BaseDelay * Multiplier^(k-1), capped at MaxDelay. MaxAttempts <= 0 retries
// forever.
type BackoffPolicy struct {
	BaseDelay           time.Duration
	MaxDelay            time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxAttempts         int
}

func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
		Multiplier:  defaultMultiplier,
		MaxAttempts: defaultMaxAttempts,
	}
}

func (p BackoffPolicy) withDefaults() BackoffPolicy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = max(defaultMaxDelay, p.BaseDelay)
	}
	if p.Multiplier < 1 {
		p.Multiplier = defaultMultiplier
	}
	if p.RandomizationFactor < 0 || p.RandomizationFactor > 1 {
		p.RandomizationFactor = 0
	}
	return p
}

// reconnectBackoff counts consecutive failed attempts and hands out the
// delay before the next one.
type reconnectBackoff struct {
	policy      BackoffPolicy
	exponential *backoff.ExponentialBackOff
	attempts    int
}

func newReconnectBackoff(policy BackoffPolicy) *reconnectBackoff {
	policy = policy.withDefaults()
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = policy.BaseDelay
	exponential.MaxInterval = policy.MaxDelay
	exponential.Multiplier = policy.Multiplier
	exponential.RandomizationFactor = policy.RandomizationFactor
	exponential.Reset()

	return &reconnectBackoff{policy: policy, exponential: exponential}
}

// next reserves the next retry. ok is false once the ceiling is reached, in
// which case attempt is the number of retries already made.
func (b *reconnectBackoff) next() (attempt int, delay time.Duration, ok bool) {
	if b.policy.MaxAttempts > 0 && b.attempts >= b.policy.MaxAttempts {
		return b.attempts, 0, false
	}

	b.attempts++
	delay = b.exponential.NextBackOff()
	if delay == backoff.Stop || delay > b.policy.MaxDelay {
		delay = b.policy.MaxDelay
	}
	return b.attempts, delay, true
}

func (b *reconnectBackoff) reset() {
	b.attempts = 0
	b.exponential.Reset()
}

func (b *reconnectBackoff) count() int { return b.attempts }
