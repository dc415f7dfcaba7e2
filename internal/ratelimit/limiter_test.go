package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestLimiterEnforcesLimit(t *testing.T) {
	l := NewLimiter(3, time.Minute, 100)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !l.Allow("user-1", now) {
			t.Fatalf("request %d denied within limit", i+1)
		}
	}
	if l.Allow("user-1", now) {
		t.Fatal("request over limit allowed")
	}

	// Other keys are unaffected.
	if !l.Allow("user-2", now) {
		t.Fatal("independent key denied")
	}
}

func TestLimiterWindowExpiry(t *testing.T) {
	l := NewLimiter(1, time.Minute, 100)
	now := time.Now()

	if !l.Allow("user-1", now) {
		t.Fatal("first request denied")
	}
	if l.Allow("user-1", now.Add(30*time.Second)) {
		t.Fatal("second request within window allowed")
	}
	if !l.Allow("user-1", now.Add(61*time.Second)) {
		t.Fatal("request after window expiry denied")
	}
}

func TestLimiterBoundedEntries(t *testing.T) {
	const maxEntries = 50
	l := NewLimiter(10, time.Minute, maxEntries)
	now := time.Now()

	for i := 0; i < maxEntries*3; i++ {
		l.Allow(fmt.Sprintf("key-%d", i), now.Add(time.Duration(i)*time.Millisecond))
	}

	if got := l.Len(); got > maxEntries {
		t.Fatalf("tracked keys = %d, exceeds bound %d", got, maxEntries)
	}
}

func TestLimiterSweepRemovesExpired(t *testing.T) {
	l := NewLimiter(10, time.Minute, 100)
	now := time.Now()

	for i := 0; i < 10; i++ {
		l.Allow(fmt.Sprintf("key-%d", i), now)
	}
	if l.Len() != 10 {
		t.Fatalf("tracked keys = %d, want 10", l.Len())
	}

	// A request after the window triggers the lazy sweep.
	l.Allow("fresh", now.Add(2*time.Minute))

	if got := l.Len(); got != 1 {
		t.Fatalf("tracked keys after sweep = %d, want 1", got)
	}
}

func TestLimiterEvictsOldestWhenFull(t *testing.T) {
	l := NewLimiter(1, time.Minute, 2)
	now := time.Now()

	l.Allow("oldest", now)
	l.Allow("middle", now.Add(time.Second))
	l.Allow("newest", now.Add(2*time.Second))

	if l.Len() != 2 {
		t.Fatalf("tracked keys = %d, want 2", l.Len())
	}

	// The evicted oldest key starts a fresh window and is allowed again.
	if !l.Allow("oldest", now.Add(3*time.Second)) {
		t.Fatal("evicted key should start fresh")
	}
}

func TestLimiterDefaults(t *testing.T) {
	l := NewLimiter(0, 0, 0)
	if !l.Allow("key", time.Now()) {
		t.Fatal("default limiter denied first request")
	}
}
