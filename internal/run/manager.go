// Package run owns the lifecycle of crawl runs: it starts at most one run at a
// time, tracks coarse progress for status queries, and persists, exports, and
// announces each run's corpus when crawling ends.
package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/academic-crawler/internal/crawler"
	"github.com/JakeFAU/academic-crawler/internal/metrics"
	"github.com/JakeFAU/academic-crawler/internal/store"
)

var (
	// ErrAlreadyRunning is returned by Start while another run is active.
	ErrAlreadyRunning = errors.New("a crawl run is already in progress")
	// ErrInvalidTarget rejects non-positive target counts.
	ErrInvalidTarget = errors.New("target count must be > 0")
)

// EventFinished names the message published when a run ends.
const EventFinished = "crawl.run.finished"

// Progress milestones reported through Snapshot.Progress.
const (
	progressStart    = 0
	progressCrawling = 10
	progressSaving   = 80
	progressDone     = 100
)

// State is the lifecycle phase of the current or last run.
type State string

// Run states.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSaving    State = "saving"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateError     State = "error"
)

// Crawler runs a whole crawl; *crawler.Orchestrator satisfies it.
type Crawler interface {
	CrawlAll(ctx context.Context, target int, observer crawler.Observer) (crawler.RunResult, error)
}

// Exporter writes a finished corpus to blob storage.
type Exporter interface {
	Export(ctx context.Context, runID string, records any) (string, error)
}

// Publisher announces finished runs.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) (string, error)
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// Snapshot is a point-in-time copy of run state.
type Snapshot struct {
	RunID          string     `json:"run_id,omitempty"`
	State          State      `json:"state"`
	IsRunning      bool       `json:"is_running"`
	Progress       int        `json:"progress"`
	Message        string     `json:"message"`
	Target         int        `json:"target,omitempty"`
	CurrentDomain  string     `json:"current_domain,omitempty"`
	TotalExtracted int        `json:"total_extracted"`
	TotalSaved     int        `json:"total_saved"`
	ExportURI      string     `json:"export_uri,omitempty"`
	Error          string     `json:"error,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// FinishedEvent is the payload published when a run ends.
type FinishedEvent struct {
	RunID      string    `json:"run_id"`
	Status     State     `json:"status"`
	Extracted  int       `json:"extracted"`
	Saved      int       `json:"saved"`
	ExportURI  string    `json:"export_uri,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type counterIDs struct {
	mu sync.Mutex
	n  int
}

func (c *counterIDs) NewID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("run-%d", c.n), nil
}

// Option customises a Manager.
type Option func(*Manager)

// WithExporter uploads every saved corpus.
func WithExporter(e Exporter) Option {
	return func(m *Manager) { m.exporter = e }
}

// WithPublisher announces every finished run.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithIDGenerator sets the run ID source.
func WithIDGenerator(ids IDGenerator) Option {
	return func(m *Manager) {
		if ids != nil {
			m.ids = ids
		}
	}
}

// WithClock sets the timestamp source.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithStatusDomain sets the crawl_status key runs are saved under.
func WithStatusDomain(domain string) Option {
	return func(m *Manager) {
		if domain != "" {
			m.statusDomain = domain
		}
	}
}

// Manager starts runs and serves their status. It is safe for concurrent use.
type Manager struct {
	crawler      Crawler
	sink         store.RecordSink
	exporter     Exporter
	publisher    Publisher
	ids          IDGenerator
	clock        Clock
	logger       *zap.Logger
	statusDomain string

	mu      sync.Mutex
	snap    Snapshot
	current *Handle
}

// NewManager wires a Manager around the crawler and the persistence sink.
func NewManager(c Crawler, sink store.RecordSink, opts ...Option) (*Manager, error) {
	if c == nil {
		return nil, fmt.Errorf("crawler is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("record sink is required")
	}
	m := &Manager{
		crawler:      c,
		sink:         sink,
		ids:          &counterIDs{},
		clock:        systemClock{},
		logger:       zap.NewNop(),
		statusDomain: store.DefaultSourceDomain,
		snap:         Snapshot{State: StateIdle, Message: "idle"},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start launches a run in the background. The run is detached from ctx's
// cancellation but keeps its values; use Handle.Cancel to stop it.
func (m *Manager) Start(ctx context.Context, target int) (*Handle, error) {
	if target <= 0 {
		return nil, ErrInvalidTarget
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && !m.current.finished() {
		return nil, ErrAlreadyRunning
	}
	id, err := m.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{id: id, done: make(chan struct{}), cancel: cancel}
	started := m.clock.Now()
	m.current = h
	m.snap = Snapshot{
		RunID:     id,
		State:     StateRunning,
		IsRunning: true,
		Progress:  progressStart,
		Message:   "Starting crawl",
		Target:    target,
		StartedAt: &started,
	}
	m.logger.Info("crawl run started", zap.String("run_id", id), zap.Int("target", target))

	go m.execute(runCtx, h, target)
	return h, nil
}

// Status returns the current snapshot.
func (m *Manager) Status() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Current returns the active or most recent run handle, if any.
func (m *Manager) Current() (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != nil
}

// Cancel stops the active run. It reports false when nothing is running.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	h := m.current
	m.mu.Unlock()
	if h == nil || h.finished() {
		return false
	}
	h.Cancel()
	return true
}

func (m *Manager) execute(ctx context.Context, h *Handle, target int) {
	defer h.cancel()
	result := Result{RunID: h.id}
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("run panicked: %v", r)
			m.finish(ctx, h, StateError, &result)
		}
	}()

	m.update(func(s *Snapshot) {
		s.Progress = progressCrawling
		s.Message = "Crawling"
	})
	crawled, err := m.crawler.CrawlAll(ctx, target, &progressObserver{m: m})
	result.Records = crawled.Records
	result.Extracted = crawled.Extracted
	result.Domains = crawled.Domains
	if err != nil {
		result.Err = err
		state := StateError
		if errors.Is(err, context.Canceled) {
			state = StateCancelled
		}
		m.finish(ctx, h, state, &result)
		return
	}

	m.update(func(s *Snapshot) {
		s.State = StateSaving
		s.Progress = progressSaving
		s.CurrentDomain = ""
		s.TotalExtracted = len(crawled.Records)
		s.Message = fmt.Sprintf("Saving %d records", len(crawled.Records))
	})
	saved, err := m.sink.SaveRecords(ctx, crawled.Records, m.statusDomain)
	result.Saved = saved
	if err != nil {
		result.Err = fmt.Errorf("save records: %w", err)
		if markErr := m.sink.MarkCrawlError(context.WithoutCancel(ctx), m.statusDomain, err.Error()); markErr != nil {
			m.logger.Error("mark crawl error failed", zap.String("run_id", h.id), zap.Error(markErr))
		}
		m.finish(ctx, h, StateError, &result)
		return
	}
	metrics.ObserveSaved(saved.Inserted)

	if m.exporter != nil {
		uri, err := m.exporter.Export(ctx, h.id, crawled.Records)
		if err != nil {
			m.logger.Warn("export corpus failed", zap.String("run_id", h.id), zap.Error(err))
		} else {
			result.ExportURI = uri
		}
	}
	m.finish(ctx, h, StateCompleted, &result)
}

// finish publishes the outcome, then flips the snapshot and closes the handle
// under one lock, so Status and Start never disagree about an active run.
func (m *Manager) finish(ctx context.Context, h *Handle, state State, result *Result) {
	now := m.clock.Now()
	metrics.ObserveRun(string(state))

	fields := []zap.Field{
		zap.String("run_id", h.id),
		zap.String("state", string(state)),
		zap.Int("extracted", result.Extracted),
		zap.Int("unique", len(result.Records)),
		zap.Int("saved", result.Saved.Inserted),
	}
	if result.Err != nil {
		m.logger.Warn("crawl run finished", append(fields, zap.Error(result.Err))...)
	} else {
		m.logger.Info("crawl run finished", fields...)
	}

	if m.publisher != nil {
		evt := FinishedEvent{
			RunID:      h.id,
			Status:     state,
			Extracted:  len(result.Records),
			Saved:      result.Saved.Inserted,
			ExportURI:  result.ExportURI,
			FinishedAt: now,
		}
		if result.Err != nil {
			evt.Error = result.Err.Error()
		}
		if _, err := m.publisher.Publish(context.WithoutCancel(ctx), EventFinished, evt); err != nil {
			m.logger.Warn("publish run event failed", zap.String("run_id", h.id), zap.Error(err))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := &m.snap
	s.State = state
	s.IsRunning = false
	s.CurrentDomain = ""
	s.FinishedAt = &now
	s.TotalSaved = result.Saved.Inserted
	s.ExportURI = result.ExportURI
	switch state {
	case StateCompleted:
		s.Progress = progressDone
		s.TotalExtracted = len(result.Records)
		s.Message = fmt.Sprintf("Completed: %d records extracted, %d new records saved",
			len(result.Records), result.Saved.Inserted)
	case StateCancelled:
		s.TotalExtracted = len(result.Records)
		s.Message = fmt.Sprintf("Cancelled after %d records", len(result.Records))
	default:
		s.Error = result.Err.Error()
		s.Message = "Error: " + result.Err.Error()
	}
	h.complete(*result)
}

func (m *Manager) update(fn func(*Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.snap)
}

// progressObserver maps per-domain milestones onto the crawling progress band.
type progressObserver struct {
	m *Manager
}

func (o *progressObserver) DomainStarted(domain string, index, total int) {
	o.m.update(func(s *Snapshot) {
		s.CurrentDomain = domain
		s.Progress = crawlProgress(index, total)
		s.Message = fmt.Sprintf("Crawling %s (%d/%d)", domain, index+1, total)
	})
}

func (o *progressObserver) DomainFinished(result crawler.DomainResult, index, total, accumulated int) {
	o.m.update(func(s *Snapshot) {
		s.Progress = crawlProgress(index+1, total)
		s.TotalExtracted = accumulated
		s.Message = fmt.Sprintf("Finished %s: %d records", result.Domain, len(result.Records))
	})
}

func crawlProgress(done, total int) int {
	if total <= 0 {
		return progressCrawling
	}
	return progressCrawling + (progressSaving-progressCrawling)*done/total
}
