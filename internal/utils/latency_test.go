package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(16)
	for ms := 10; ms <= 80; ms += 10 {
		tracker.Observe(time.Duration(ms) * time.Millisecond)
	}

	if tracker.Count() != 8 {
		t.Fatalf("expected 8 samples, got %d", tracker.Count())
	}
	if p95 := tracker.Percentile(95); p95 < 70*time.Millisecond {
		t.Fatalf("expected p95 near the top of the window, got %v", p95)
	}
	if p0 := tracker.Percentile(0); p0 != 10*time.Millisecond {
		t.Fatalf("expected fastest sample for p0, got %v", p0)
	}
	if p100 := tracker.Percentile(100); p100 != 80*time.Millisecond {
		t.Fatalf("expected slowest sample for p100, got %v", p100)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	tracker := NewLatencyTracker(4)
	if got := tracker.Percentile(95); got != 0 {
		t.Fatalf("empty tracker should report zero, got %v", got)
	}
}

func TestLatencyTrackerSlidingWindow(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 1; i <= 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}
	if tracker.Count() != 3 {
		t.Fatalf("window should cap at 3, got %d", tracker.Count())
	}
	// Only the three newest samples remain.
	if min := tracker.Percentile(0); min != 8*time.Millisecond {
		t.Fatalf("oldest samples should have been evicted, got min %v", min)
	}
}
