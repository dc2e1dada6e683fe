package crawler

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

// VisitTracker is the run-wide set of URLs already claimed for fetching. It is
// safe for concurrent use so a URL is fetched at most once per run.
type VisitTracker struct {
	seen  sync.Map
	count atomic.Int64
}

// NewVisitTracker creates an empty tracker.
func NewVisitTracker() *VisitTracker {
	return &VisitTracker{}
}

// MarkIfNew stores the URL if it has not been seen before and returns true.
func (t *VisitTracker) MarkIfNew(url string) bool {
	if url == "" {
		return false
	}
	_, loaded := t.seen.LoadOrStore(url, struct{}{})
	if !loaded {
		t.count.Add(1)
	}
	return !loaded
}

// Seen reports whether the URL was already claimed.
func (t *VisitTracker) Seen(url string) bool {
	_, ok := t.seen.Load(url)
	return ok
}

// Len returns the number of claimed URLs.
func (t *VisitTracker) Len() int {
	return int(t.count.Load())
}

// timerPauser sleeps for the delay or until ctx ends.
type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// delayRange draws uniform politeness delays in [min, max].
type delayRange struct {
	min, max time.Duration
}

func (d delayRange) next() time.Duration {
	if d.max <= d.min {
		return d.min
	}
	span := int64(d.max - d.min)
	return d.min + time.Duration(rand.Int64N(span+1))
}
