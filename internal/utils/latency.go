package utils

import (
	"sort"
	"sync"
	"time"
)

const defaultLatencyWindow = 512

// LatencyTracker keeps a sliding window of duration samples so services can
// report request percentiles without a metrics backend.
type LatencyTracker struct {
	mu      sync.RWMutex
	window  []time.Duration
	maxSize int
}

// NewLatencyTracker returns a tracker holding at most maxSize samples; older
// samples fall off as new ones arrive.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = defaultLatencyWindow
	}
	return &LatencyTracker{maxSize: maxSize}
}

// Observe records one duration sample.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.window = append(l.window, d)
	if len(l.window) > l.maxSize {
		copy(l.window, l.window[1:])
		l.window = l.window[:l.maxSize]
	}
}

// Percentile returns the duration at percentile p (0-100), or zero when no
// samples have been recorded yet.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.window)
	if n == 0 {
		return 0
	}

	sorted := append([]time.Duration(nil), l.window...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	switch {
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[n-1]
	}

	index := int((p / 100.0) * float64(n-1))
	if index < 0 {
		index = 0
	} else if index >= n {
		index = n - 1
	}
	return sorted[index]
}

// Count reports how many samples the window currently holds.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.window)
}
