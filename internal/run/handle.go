package run

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/academic-crawler/internal/crawler"
	"github.com/JakeFAU/academic-crawler/internal/store"
)

// Result is what a finished run produced. Records are retained even when
// saving fails or the run is cancelled.
type Result struct {
	RunID     string
	Records   []crawler.Record
	Extracted int
	Domains   []crawler.DomainResult
	Saved     store.SaveResult
	ExportURI string
	Err       error
}

// Handle controls one background run.
type Handle struct {
	id     string
	done   chan struct{}
	cancel context.CancelFunc

	once   sync.Once
	mu     sync.Mutex
	result Result
}

// ID returns the run identifier.
func (h *Handle) ID() string { return h.id }

// Done is closed once the run has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel requests the run to stop; partial records are kept on the Result.
func (h *Handle) Cancel() { h.cancel() }

// Wait blocks until the run finishes or ctx ends and returns the run's error.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		res, _ := h.Result()
		return res, res.Err
	case <-ctx.Done():
		return Result{}, fmt.Errorf("wait for run %s: %w", h.id, ctx.Err())
	}
}

// Result returns the outcome, or false while the run is still active.
func (h *Handle) Result() (Result, bool) {
	select {
	case <-h.done:
	default:
		return Result{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, true
}

func (h *Handle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Handle) complete(res Result) {
	h.once.Do(func() {
		h.mu.Lock()
		h.result = res
		h.mu.Unlock()
		close(h.done)
	})
}
