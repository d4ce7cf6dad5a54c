package ratelimit

import (
	"testing"
	"time"
)

func TestAllowsUpToMaxEventsPerWindow(t *testing.T) {
	l := New()
	base := time.Unix(1000, 0)

	accepted := 0
	for i := 0; i < 15; i++ {
		if l.Allow(base.Add(time.Duration(i) * time.Millisecond)) {
			accepted++
		}
	}
	if accepted != MaxEvents {
		t.Fatalf("accepted = %d, want %d", accepted, MaxEvents)
	}
}

func TestWindowSlidesAfterDelay(t *testing.T) {
	l := New()
	base := time.Unix(2000, 0)

	for i := 0; i < MaxEvents; i++ {
		if !l.Allow(base.Add(time.Duration(i) * time.Millisecond)) {
			t.Fatalf("event %d unexpectedly rejected", i)
		}
	}
	if l.Allow(base.Add(time.Millisecond)) {
		t.Fatal("13th event within window was accepted")
	}

	// Past the 5s window, the earliest events have expired.
	later := base.Add(Window + time.Millisecond)
	if !l.Allow(later) {
		t.Fatal("event after window slide was rejected")
	}
}

func TestInterArrivalUnderWindowNeverExceedsMax(t *testing.T) {
	l := New()
	base := time.Unix(3000, 0)

	accepted := 0
	// 20 sends spaced so their total span is under 5s.
	for i := 0; i < 20; i++ {
		now := base.Add(time.Duration(i) * 200 * time.Millisecond)
		if l.Allow(now) {
			accepted++
		}
	}
	if accepted > MaxEvents {
		t.Fatalf("accepted = %d, want <= %d", accepted, MaxEvents)
	}
}
