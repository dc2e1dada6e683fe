package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/academic-crawler/internal/catalog"
)

const (
	minPagesPerDomain = 50
	recordsPerPage    = 3
)

// RunResult is the outcome of one CrawlAll call.
type RunResult struct {
	// Records is the deduplicated corpus.
	Records []Record
	// Extracted counts records before deduplication.
	Extracted int
	Domains   []DomainResult
	// Visited counts distinct URLs claimed during the run.
	Visited int
}

// Orchestrator walks the catalog domain by domain until the target record
// count is reached or the catalog is exhausted.
type Orchestrator struct {
	catalog catalog.Catalog
	fetcher Fetcher
	records RecordExtractor
	links   LinkExtractor
	opts    Options
	logger  *zap.Logger
}

// NewOrchestrator wires an orchestrator over the catalog.
func NewOrchestrator(
	cat catalog.Catalog,
	fetcher Fetcher,
	records RecordExtractor,
	links LinkExtractor,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		catalog: cat,
		fetcher: fetcher,
		records: records,
		links:   links,
		opts:    opts,
		logger:  logger,
	}
}

// PagesPerDomain is the per-domain page budget for a target record count:
// max(50, target / (domains*3)).
func PagesPerDomain(target, totalDomains int) int {
	if totalDomains <= 0 {
		return minPagesPerDomain
	}
	return max(minPagesPerDomain, target/(totalDomains*recordsPerPage))
}

// CrawlAll crawls known sources with the full budget, then .edu and .org
// domains with half the budget while still short of target. It stops as soon
// as the accumulated count reaches target and deduplicates once at the end.
// On cancellation the partial, deduplicated result is returned with the
// context error.
func (o *Orchestrator) CrawlAll(ctx context.Context, target int, observer Observer) (RunResult, error) {
	if observer == nil {
		observer = nopObserver{}
	}
	if target <= 0 {
		return RunResult{}, fmt.Errorf("target count must be > 0")
	}

	visited := NewVisitTracker()
	domainCrawler := NewDomainCrawler(o.fetcher, o.records, o.links, visited, o.opts, o.logger)

	total := o.catalog.TotalDomains()
	budget := PagesPerDomain(target, total)
	o.logger.Info("crawl started",
		zap.Int("target", target),
		zap.Int("domains", total),
		zap.Int("pages_per_domain", budget),
	)

	var (
		all     []Record
		domains []DomainResult
		index   int
	)
	crawl := func(domain string, pages int) {
		observer.DomainStarted(domain, index, total)
		res := domainCrawler.Crawl(ctx, o.catalog.Resolve(domain), pages)
		all = append(all, res.Records...)
		domains = append(domains, res)
		observer.DomainFinished(res, index, total, len(all))
		index++
		o.logger.Info("domain extracted",
			zap.String("domain", domain),
			zap.Int("records", len(res.Records)),
			zap.Int("accumulated", len(all)),
		)
	}
	done := func() bool {
		return len(all) >= target || ctx.Err() != nil
	}

	for _, src := range o.catalog.Sources {
		crawl(src.Domain, budget)
		if done() {
			break
		}
	}
	for _, group := range [][]string{o.catalog.EduDomains, o.catalog.OrgDomains} {
		for _, domain := range group {
			if done() {
				break
			}
			crawl(domain, budget/2)
		}
	}

	result := RunResult{
		Records:   Dedupe(all),
		Extracted: len(all),
		Domains:   domains,
		Visited:   visited.Len(),
	}
	o.logger.Info("crawl finished",
		zap.Int("extracted", result.Extracted),
		zap.Int("unique", len(result.Records)),
		zap.Int("visited", result.Visited),
	)
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("crawl cancelled: %w", err)
	}
	return result, nil
}
