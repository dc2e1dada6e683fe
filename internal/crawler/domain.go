package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/academic-crawler/internal/catalog"
	"github.com/JakeFAU/academic-crawler/internal/metrics"
)

// Options tunes the domain crawler.
type Options struct {
	// MaxWorkers bounds both batch size and concurrent fetches.
	MaxWorkers int
	// DelayMin and DelayMax bound the uniform politeness delay after each fetch.
	DelayMin time.Duration
	DelayMax time.Duration
	// MaxLinksPerPage caps new links enqueued from one page.
	MaxLinksPerPage int
	// DiscoveryRatio stops link discovery once crawled pages reach this share of the budget.
	DiscoveryRatio float64
	// BlockedDomains filters discovered links by host.
	BlockedDomains []string
	// Pauser replaces the timer-based pause; nil uses the timer.
	Pauser Pauser
}

// Defaults applied by NewDomainCrawler for zero values.
const (
	DefaultMaxWorkers      = 5
	DefaultMaxLinksPerPage = 10
	DefaultDiscoveryRatio  = 0.8
)

func (o Options) withDefaults() Options {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	if o.MaxLinksPerPage <= 0 {
		o.MaxLinksPerPage = DefaultMaxLinksPerPage
	}
	if o.DiscoveryRatio <= 0 {
		o.DiscoveryRatio = DefaultDiscoveryRatio
	}
	if o.DelayMax < o.DelayMin {
		o.DelayMax = o.DelayMin
	}
	if o.Pauser == nil {
		o.Pauser = timerPauser{}
	}
	return o
}

// DomainCrawler runs the frontier loop for one domain at a time. The visited
// tracker it holds is shared by every domain of a run.
type DomainCrawler struct {
	fetcher   Fetcher
	records   RecordExtractor
	links     LinkExtractor
	visited   *VisitTracker
	blocklist *HostBlocklist
	opts      Options
	delays    delayRange
	logger    *zap.Logger
}

// NewDomainCrawler wires a domain crawler for one run.
func NewDomainCrawler(
	fetcher Fetcher,
	records RecordExtractor,
	links LinkExtractor,
	visited *VisitTracker,
	opts Options,
	logger *zap.Logger,
) *DomainCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if visited == nil {
		visited = NewVisitTracker()
	}
	opts = opts.withDefaults()
	return &DomainCrawler{
		fetcher:   fetcher,
		records:   records,
		links:     links,
		visited:   visited,
		blocklist: NewHostBlocklist(opts.BlockedDomains),
		opts:      opts,
		delays:    delayRange{min: opts.DelayMin, max: opts.DelayMax},
		logger:    logger,
	}
}

// Crawl fetches at most maxPages distinct URLs of src, starting from its seeds
// and following discovered links breadth-first in batches. Per-URL failures
// are counted, never returned. Cancellation stops the crawl between batches
// and interrupts the politeness pause; the partial result is returned.
func (d *DomainCrawler) Crawl(ctx context.Context, src catalog.Source, maxPages int) DomainResult {
	result := DomainResult{Domain: src.Domain}
	logger := d.logger.With(zap.String("domain", src.Domain), zap.Int("max_pages", maxPages))

	frontier := NewFrontier(d.visited)
	for _, seed := range src.SeedURLs {
		frontier.Push(seed)
	}

	for frontier.Len() > 0 && result.Attempted < maxPages {
		if ctx.Err() != nil {
			logger.Info("domain crawl cancelled", zap.Int("attempted", result.Attempted))
			return result
		}

		batch := d.nextBatch(frontier, min(d.opts.MaxWorkers, maxPages-result.Attempted))
		if len(batch) == 0 {
			break
		}
		result.Attempted += len(batch)

		for _, r := range d.runBatch(ctx, src, batch) {
			d.merge(ctx, &result, r, frontier, src, maxPages, logger)
		}
	}

	logger.Info("domain crawl finished",
		zap.Int("attempted", result.Attempted),
		zap.Int("crawled", result.Crawled),
		zap.Int("failed", result.Failed),
		zap.Int("records", len(result.Records)),
	)
	return result
}

func (d *DomainCrawler) nextBatch(frontier *Frontier, size int) []string {
	batch := make([]string, 0, size)
	for len(batch) < size {
		u, ok := frontier.Pop()
		if !ok {
			break
		}
		batch = append(batch, u)
	}
	return batch
}

// runBatch fetches the batch concurrently and joins before returning. Results
// arrive in completion order.
func (d *DomainCrawler) runBatch(ctx context.Context, src catalog.Source, batch []string) []Result {
	results := make(chan Result, len(batch))
	var g errgroup.Group
	g.SetLimit(d.opts.MaxWorkers)
	for _, u := range batch {
		g.Go(func() error {
			results <- d.process(ctx, src, u)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	out := make([]Result, 0, len(batch))
	for r := range results {
		out = append(out, r)
	}
	return out
}

func (d *DomainCrawler) process(ctx context.Context, src catalog.Source, rawURL string) (res Result) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer func() {
		if p := recover(); p != nil {
			res = Result{URL: rawURL, Outcome: OutcomeFetchFailed, Err: fmt.Errorf("worker panic: %v", p)}
		}
	}()

	page, err := d.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Result{URL: rawURL, Outcome: OutcomeFetchFailed, Err: err}
	}
	record, err := d.records.Extract(page, src.Selectors)
	if err != nil {
		return Result{URL: rawURL, Outcome: OutcomeExtractFailed, Page: page, Err: err}
	}
	record.Domain = src.Domain
	return Result{URL: rawURL, Outcome: OutcomeFetched, Page: page, Record: record}
}

func (d *DomainCrawler) merge(
	ctx context.Context,
	result *DomainResult,
	r Result,
	frontier *Frontier,
	src catalog.Source,
	maxPages int,
	logger *zap.Logger,
) {
	metrics.ObservePage(r.URL, r.Outcome.String(), len(r.Page.HTML))

	switch r.Outcome {
	case OutcomeFetchFailed:
		result.Failed++
		logger.Warn("fetch failed", zap.String("url", r.URL), zap.Error(r.Err))
	case OutcomeExtractFailed, OutcomeFetched:
		result.Crawled++
		if r.Outcome == OutcomeFetched {
			result.Records = append(result.Records, r.Record)
			metrics.ObserveRecord(r.Record.Field)
		} else {
			logger.Debug("no record extracted", zap.String("url", r.URL), zap.Error(r.Err))
		}
		if float64(result.Crawled) < d.opts.DiscoveryRatio*float64(maxPages) {
			added := d.enqueueLinks(frontier, r.Page, src)
			logger.Debug("links enqueued", zap.String("url", r.URL), zap.Int("added", added))
		}
		logger.Info("page crawled",
			zap.String("url", r.URL),
			zap.String("outcome", r.Outcome.String()),
			zap.Int("crawled", result.Crawled),
		)
	}

	d.opts.Pauser.Pause(ctx, d.delays.next())
}

func (d *DomainCrawler) enqueueLinks(frontier *Frontier, page Page, src catalog.Source) int {
	added := 0
	for _, link := range d.links.ExtractLinks(page, src.Domain) {
		if added >= d.opts.MaxLinksPerPage {
			break
		}
		if !d.blocklist.AllowsURL(link) {
			continue
		}
		if frontier.Push(link) {
			added++
		}
	}
	return added
}
