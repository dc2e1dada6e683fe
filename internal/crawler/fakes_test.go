package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/academic-crawler/internal/catalog"
)

// fakeFetcher serves every URL unless it is listed in fail. It records each
// call and the peak number of concurrent fetches.
type fakeFetcher struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]bool
	noText   map[string]bool
	latency  time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	fail := f.fail[rawURL]
	noText := f.noText[rawURL]
	f.mu.Unlock()

	if f.latency > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(f.latency):
		}
	}
	if fail {
		return Page{}, &FetchError{URL: rawURL, StatusCode: 500, Err: errors.New("server error")}
	}
	text := "page text for " + rawURL
	if noText {
		text = ""
	}
	return Page{URL: rawURL, StatusCode: 200, HTML: []byte("<html></html>"), Text: text}, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// titleExtractor makes a record titled after the page URL.
type titleExtractor struct{}

func (titleExtractor) Extract(page Page, _ catalog.Selectors) (Record, error) {
	if page.Text == "" {
		return Record{}, ErrNoText
	}
	return Record{Title: page.URL, Field: "علوم عامة", SourceURL: page.URL}, nil
}

// treeLinks fans every page out into ten children, making the link graph unbounded.
type treeLinks struct {
	calls atomic.Int32
}

func (l *treeLinks) ExtractLinks(page Page, domainFilter string) []string {
	l.calls.Add(1)
	out := make([]string, 0, 11)
	out = append(out, "https://elsewhere.example/page")
	for i := range 10 {
		out = append(out, fmt.Sprintf("%s/%d", strings.TrimSuffix(page.URL, "/"), i))
	}
	if domainFilter == "" {
		return out
	}
	kept := out[:0]
	for _, u := range out {
		if strings.Contains(u, domainFilter) {
			kept = append(kept, u)
		}
	}
	return kept
}

// noLinks never discovers anything.
type noLinks struct{}

func (noLinks) ExtractLinks(Page, string) []string { return nil }

// countingPauser never sleeps; it can cancel a context after a number of pauses.
type countingPauser struct {
	calls       atomic.Int32
	cancelAfter int32
	cancel      context.CancelFunc
	delays      []time.Duration
	mu          sync.Mutex
}

func (p *countingPauser) Pause(_ context.Context, delay time.Duration) {
	p.mu.Lock()
	p.delays = append(p.delays, delay)
	p.mu.Unlock()
	if n := p.calls.Add(1); p.cancel != nil && n == p.cancelAfter {
		p.cancel()
	}
}

type recordingObserver struct {
	started  []string
	indices  []int
	finished []DomainResult
}

func (o *recordingObserver) DomainStarted(domain string, index, _ int) {
	o.started = append(o.started, domain)
	o.indices = append(o.indices, index)
}

func (o *recordingObserver) DomainFinished(res DomainResult, _, _, _ int) {
	o.finished = append(o.finished, res)
}
