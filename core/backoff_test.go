package session

import (
	"testing"
	"time"
)

func TestReconnectBackoffDoublesUpToMaxDelay(t *testing.T) {
	b := newReconnectBackoff(BackoffPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, MaxAttempts: 6})

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, want := range expected {
		attempt, delay, ok := b.next()
		if !ok {
			t.Fatalf("attempt %d: expected retry to be allowed", i+1)
		}
		if attempt != i+1 || delay != want {
			t.Fatalf("attempt %d: expected %s, got attempt %d after %s", i+1, want, attempt, delay)
		}
	}

	if attempt, _, ok := b.next(); ok || attempt != 6 {
		t.Fatalf("expected ceiling after 6 attempts, got ok=%t attempt=%d", ok, attempt)
	}

	b.reset()
	if attempt, delay, ok := b.next(); !ok || attempt != 1 || delay != 100*time.Millisecond {
		t.Fatalf("expected reset to restart at base delay, got ok=%t attempt=%d delay=%s", ok, attempt, delay)
	}
}

func TestReconnectBackoffWithoutCeiling(t *testing.T) {
	b := newReconnectBackoff(BackoffPolicy{BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond})

	var previous time.Duration
	for i := range 50 {
		_, delay, ok := b.next()
		if !ok {
			t.Fatalf("attempt %d: expected unlimited retries", i+1)
		}
		if delay < previous || delay > 4*time.Millisecond {
			t.Fatalf("attempt %d: unexpected delay %s after %s", i+1, delay, previous)
		}
		previous = delay
	}
}

func TestBackoffPolicyDefaults(t *testing.T) {
	policy := BackoffPolicy{BaseDelay: -1, MaxDelay: 0, Multiplier: 0.5, RandomizationFactor: 3}.withDefaults()
	if policy.BaseDelay != defaultBaseDelay || policy.MaxDelay != defaultMaxDelay {
		t.Fatalf("unexpected delays: %+v", policy)
	}
	if policy.Multiplier != defaultMultiplier || policy.RandomizationFactor != 0 {
		t.Fatalf("unexpected factors: %+v", policy)
	}
}
