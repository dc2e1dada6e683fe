package store

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/academic-crawler/internal/crawler"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DefaultSourceDomain labels crawl_status rows for runs spanning many domains.
const DefaultSourceDomain = "multiple"

// CrawlState mirrors the crawl_status.status column.
type CrawlState string

// Crawl states persisted in crawl_status.status.
const (
	CrawlPending   CrawlState = "pending"
	CrawlCompleted CrawlState = "completed"
	CrawlError     CrawlState = "error"
)

// StoredRecord is a persisted record.
type StoredRecord struct {
	ID int64 `json:"id"`
	crawler.Record
	CrawledAt time.Time `json:"crawled_at"`
}

// CrawlStatus models one crawl_status row.
type CrawlStatus struct {
	SourceDomain string     `json:"domain"`
	LastCrawled  time.Time  `json:"last_crawled"`
	TotalItems   int        `json:"total_items"`
	Status       CrawlState `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Statistics aggregates the stored corpus.
type Statistics struct {
	TotalItems        int            `json:"total_items"`
	FieldDistribution map[string]int `json:"field_distribution"`
	TypeDistribution  map[string]int `json:"type_distribution"`
	CrawlStatuses     []CrawlStatus  `json:"crawl_statuses"`
}

// SaveResult reports what a SaveRecords call did.
type SaveResult struct {
	// Received counts records handed to the sink.
	Received int `json:"received"`
	// Inserted counts newly stored records.
	Inserted int `json:"inserted"`
	// Skipped counts records already present under the same (title, field).
	Skipped int `json:"skipped"`
}

// ListFilter narrows record listings. Zero values mean "no filter"; Limit 0 means no limit.
type ListFilter struct {
	Field  string
	Type   string
	Search string
	Limit  int
	Offset int
}

// RecordSink persists a run's records. Saving is idempotent on (title, field)
// and updates the crawl status row for domain.
type RecordSink interface {
	SaveRecords(ctx context.Context, records []crawler.Record, domain string) (SaveResult, error)
	// MarkCrawlError records a failed run for domain.
	MarkCrawlError(ctx context.Context, domain, message string) error
}

// RecordReader serves stored records.
type RecordReader interface {
	// ListRecords returns records matching filter ordered by id.
	ListRecords(ctx context.Context, filter ListFilter) ([]StoredRecord, error)
	// CountRecords returns the number of records matching filter, ignoring Limit and Offset.
	CountRecords(ctx context.Context, filter ListFilter) (int, error)
	// GetRecord loads one record or returns ErrNotFound.
	GetRecord(ctx context.Context, id int64) (StoredRecord, error)
	// Statistics aggregates totals, distributions, and crawl statuses.
	Statistics(ctx context.Context) (Statistics, error)
}

// Repository is the full persistence surface.
type Repository interface {
	RecordSink
	RecordReader
	Ping(ctx context.Context) error
	Close()
}
