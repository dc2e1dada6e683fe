package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/academic-crawler/internal/catalog"
)

// Fetcher performs one HTTP GET and returns the page or a *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// RecordExtractor derives a Record from a fetched page. It returns ErrNoText
// when the page has nothing to classify.
type RecordExtractor interface {
	Extract(page Page, hints catalog.Selectors) (Record, error)
}

// LinkExtractor discovers outgoing links on a page. Links whose URL does not
// contain domainFilter are dropped; an empty filter keeps everything.
type LinkExtractor interface {
	ExtractLinks(page Page, domainFilter string) []string
}

// Observer receives coarse, per-domain milestones from the orchestrator.
// index is 0-based and counts domains in crawl order; total is the catalog size.
type Observer interface {
	DomainStarted(domain string, index, total int)
	DomainFinished(result DomainResult, index, total, accumulated int)
}

// Pauser sleeps between fetch completions.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

type nopObserver struct{}

func (nopObserver) DomainStarted(string, int, int) {}
func (nopObserver) DomainFinished(DomainResult, int, int, int) {}
