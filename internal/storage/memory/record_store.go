package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/academic-crawler/internal/crawler"
	"github.com/JakeFAU/academic-crawler/internal/store"
)

type recordKey struct {
	title string
	field string
}

// RecordStore keeps records in-memory for development and tests. It applies
// the same (title, field) uniqueness rule as the Postgres store.
type RecordStore struct {
	mu       sync.RWMutex
	records  []store.StoredRecord
	keys     map[recordKey]struct{}
	statuses map[string]store.CrawlStatus
	nextID   int64
	now      func() time.Time
}

// NewRecordStore constructs a RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		keys:     make(map[recordKey]struct{}),
		statuses: make(map[string]store.CrawlStatus),
		nextID:   1,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source.
func (s *RecordStore) WithClock(now func() time.Time) *RecordStore {
	if now != nil {
		s.now = now
	}
	return s
}

// SaveRecords stores records not yet present and marks domain completed.
func (s *RecordStore) SaveRecords(ctx context.Context, records []crawler.Record, domain string) (store.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return store.SaveResult{}, fmt.Errorf("save records: %w", err)
	}
	if domain == "" {
		domain = store.DefaultSourceDomain
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result := store.SaveResult{Received: len(records)}
	now := s.now()
	for _, r := range records {
		key := recordKey{title: r.Title, field: r.Field}
		if _, exists := s.keys[key]; exists {
			result.Skipped++
			continue
		}
		s.keys[key] = struct{}{}
		s.records = append(s.records, store.StoredRecord{ID: s.nextID, Record: cloneRecord(r), CrawledAt: now})
		s.nextID++
		result.Inserted++
	}
	s.statuses[domain] = store.CrawlStatus{
		SourceDomain: domain,
		LastCrawled:  now,
		TotalItems:   result.Inserted,
		Status:       store.CrawlCompleted,
	}
	return result, nil
}

// MarkCrawlError records a failed run for domain.
func (s *RecordStore) MarkCrawlError(_ context.Context, domain, message string) error {
	if domain == "" {
		domain = store.DefaultSourceDomain
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[domain] = store.CrawlStatus{
		SourceDomain: domain,
		LastCrawled:  s.now(),
		Status:       store.CrawlError,
		ErrorMessage: message,
	}
	return nil
}

// ListRecords returns matching records ordered by id.
func (s *RecordStore) ListRecords(_ context.Context, filter store.ListFilter) ([]store.StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.StoredRecord, 0)
	skipped := 0
	for _, r := range s.records {
		if !matches(r, filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, store.StoredRecord{ID: r.ID, Record: cloneRecord(r.Record), CrawledAt: r.CrawledAt})
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// CountRecords counts matching records.
func (s *RecordStore) CountRecords(_ context.Context, filter store.ListFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.records {
		if matches(r, filter) {
			n++
		}
	}
	return n, nil
}

// GetRecord fetches a record by id.
func (s *RecordStore) GetRecord(_ context.Context, id int64) (store.StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return store.StoredRecord{ID: r.ID, Record: cloneRecord(r.Record), CrawledAt: r.CrawledAt}, nil
		}
	}
	return store.StoredRecord{}, store.ErrNotFound
}

// Statistics aggregates the stored corpus.
func (s *RecordStore) Statistics(_ context.Context) (store.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := store.Statistics{
		TotalItems:        len(s.records),
		FieldDistribution: make(map[string]int),
		TypeDistribution:  make(map[string]int),
		CrawlStatuses:     make([]store.CrawlStatus, 0, len(s.statuses)),
	}
	for _, r := range s.records {
		stats.FieldDistribution[r.Field]++
		stats.TypeDistribution[r.Type]++
	}
	for _, st := range s.statuses {
		stats.CrawlStatuses = append(stats.CrawlStatuses, st)
	}
	sort.Slice(stats.CrawlStatuses, func(i, j int) bool {
		return stats.CrawlStatuses[i].SourceDomain < stats.CrawlStatuses[j].SourceDomain
	})
	return stats, nil
}

// Ping always succeeds.
func (s *RecordStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *RecordStore) Close() {}

func matches(r store.StoredRecord, filter store.ListFilter) bool {
	if filter.Field != "" && r.Field != filter.Field {
		return false
	}
	if filter.Type != "" && r.Type != filter.Type {
		return false
	}
	if filter.Search != "" {
		q := filter.Search
		if !strings.Contains(r.Title, q) && !strings.Contains(r.Summary, q) && !strings.Contains(r.Field, q) {
			return false
		}
	}
	return true
}

func cloneRecord(r crawler.Record) crawler.Record {
	r.People = slices.Clone(r.People)
	r.Facts = slices.Clone(r.Facts)
	return r
}
