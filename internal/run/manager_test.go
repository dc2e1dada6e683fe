package run

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/academic-crawler/internal/catalog"
	"github.com/JakeFAU/academic-crawler/internal/crawler"
	"github.com/JakeFAU/academic-crawler/internal/export"
	pubmemory "github.com/JakeFAU/academic-crawler/internal/publisher/memory"
	"github.com/JakeFAU/academic-crawler/internal/store"
	"github.com/JakeFAU/academic-crawler/internal/storage/memory"
)

type crawlFunc func(ctx context.Context, target int, observer crawler.Observer) (crawler.RunResult, error)

func (f crawlFunc) CrawlAll(ctx context.Context, target int, observer crawler.Observer) (crawler.RunResult, error) {
	return f(ctx, target, observer)
}

func corpus(n int) []crawler.Record {
	out := make([]crawler.Record, 0, n)
	for i := range n {
		out = append(out, crawler.Record{Title: fmt.Sprintf("Title %d", i), Field: "فيزياء", People: []string{}, Facts: []string{}})
	}
	return out
}

func quickCrawler(records []crawler.Record) crawlFunc {
	return func(_ context.Context, _ int, observer crawler.Observer) (crawler.RunResult, error) {
		observer.DomainStarted("a.org", 0, 1)
		observer.DomainFinished(crawler.DomainResult{Domain: "a.org", Records: records}, 0, 1, len(records))
		return crawler.RunResult{Records: records, Extracted: len(records)}, nil
	}
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func waitFor(t *testing.T, h *Handle) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-h.Done():
	case <-ctx.Done():
		t.Fatal("run did not finish")
	}
	res, ok := h.Result()
	require.True(t, ok)
	return res
}

func TestRunCompletesAndPersists(t *testing.T) {
	t.Parallel()

	sink := memory.NewRecordStore()
	blobs := memory.NewBlobStore()
	exp, err := export.New(blobs, "exports")
	require.NoError(t, err)
	pub := pubmemory.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	m, err := NewManager(quickCrawler(corpus(3)), sink,
		WithExporter(exp),
		WithPublisher(pub),
		WithClock(fixedClock{t: now}),
	)
	require.NoError(t, err)
	require.Equal(t, StateIdle, m.Status().State)

	h, err := m.Start(context.Background(), 10)
	require.NoError(t, err)
	res, err := h.Wait(context.Background())
	require.NoError(t, err)

	require.Equal(t, h.ID(), res.RunID)
	require.Len(t, res.Records, 3)
	require.Equal(t, store.SaveResult{Received: 3, Inserted: 3}, res.Saved)
	require.Equal(t, "memory://exports/"+h.ID()+"/academic_data.json", res.ExportURI)

	snap := m.Status()
	require.Equal(t, StateCompleted, snap.State)
	require.False(t, snap.IsRunning)
	require.Equal(t, 100, snap.Progress)
	require.Equal(t, 3, snap.TotalExtracted)
	require.Equal(t, 3, snap.TotalSaved)
	require.Equal(t, now, *snap.FinishedAt)

	n, err := sink.CountRecords(context.Background(), store.ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, EventFinished, msgs[0].Event)
	require.JSONEq(t, fmt.Sprintf(`{
		"run_id": %q,
		"status": "completed",
		"extracted": 3,
		"saved": 3,
		"export_uri": %q,
		"finished_at": "2025-03-01T12:00:00Z"
	}`, h.ID(), res.ExportURI), string(msgs[0].Data))
}

func TestStartRejectsConcurrentRuns(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	blocking := crawlFunc(func(ctx context.Context, _ int, _ crawler.Observer) (crawler.RunResult, error) {
		<-release
		return crawler.RunResult{Records: corpus(1), Extracted: 1}, nil
	})
	m, err := NewManager(blocking, memory.NewRecordStore())
	require.NoError(t, err)

	first, err := m.Start(context.Background(), 5)
	require.NoError(t, err)
	require.True(t, m.Status().IsRunning)

	_, err = m.Start(context.Background(), 5)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	close(release)
	waitFor(t, first)

	second, err := m.Start(context.Background(), 5)
	require.NoError(t, err)
	require.NotEqual(t, first.ID(), second.ID())
	waitFor(t, second)
}

func TestStartRejectsNonPositiveTarget(t *testing.T) {
	t.Parallel()

	m, err := NewManager(quickCrawler(nil), memory.NewRecordStore())
	require.NoError(t, err)
	_, err = m.Start(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidTarget)
	require.Equal(t, StateIdle, m.Status().State)
}

func TestCancelKeepsPartialRecords(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	partial := crawlFunc(func(ctx context.Context, _ int, _ crawler.Observer) (crawler.RunResult, error) {
		close(started)
		<-ctx.Done()
		return crawler.RunResult{Records: corpus(2), Extracted: 2}, fmt.Errorf("crawl cancelled: %w", ctx.Err())
	})
	sink := memory.NewRecordStore()
	m, err := NewManager(partial, sink)
	require.NoError(t, err)

	require.False(t, m.Cancel(), "nothing to cancel yet")
	h, err := m.Start(context.Background(), 5)
	require.NoError(t, err)
	<-started
	require.True(t, m.Cancel())

	res := waitFor(t, h)
	require.ErrorIs(t, res.Err, context.Canceled)
	require.Len(t, res.Records, 2)

	snap := m.Status()
	require.Equal(t, StateCancelled, snap.State)
	require.Equal(t, 2, snap.TotalExtracted)
	n, err := sink.CountRecords(context.Background(), store.ListFilter{})
	require.NoError(t, err)
	require.Zero(t, n, "cancelled runs are not persisted")
}

type failingSink struct {
	marked []string
}

func (f *failingSink) SaveRecords(context.Context, []crawler.Record, string) (store.SaveResult, error) {
	return store.SaveResult{}, errors.New("database unavailable")
}

func (f *failingSink) MarkCrawlError(_ context.Context, domain, message string) error {
	f.marked = append(f.marked, domain+": "+message)
	return nil
}

func TestSinkFailureEndsInError(t *testing.T) {
	t.Parallel()

	sink := &failingSink{}
	pub := pubmemory.New()
	m, err := NewManager(quickCrawler(corpus(2)), sink, WithPublisher(pub), WithStatusDomain("batch"))
	require.NoError(t, err)

	h, err := m.Start(context.Background(), 5)
	require.NoError(t, err)
	res, err := h.Wait(context.Background())
	require.ErrorContains(t, err, "database unavailable")
	require.Len(t, res.Records, 2, "records stay available in memory")

	snap := m.Status()
	require.Equal(t, StateError, snap.State)
	require.Equal(t, 80, snap.Progress)
	require.Contains(t, snap.Message, "database unavailable")
	require.Equal(t, []string{"batch: database unavailable"}, sink.marked)
	require.Len(t, pub.Messages(), 1)
}

func TestProgressFollowsDomains(t *testing.T) {
	t.Parallel()

	reached := make(chan struct{})
	release := make(chan struct{})
	stepping := crawlFunc(func(_ context.Context, _ int, observer crawler.Observer) (crawler.RunResult, error) {
		observer.DomainStarted("a.org", 0, 4)
		observer.DomainFinished(crawler.DomainResult{Domain: "a.org", Records: corpus(4)}, 0, 4, 4)
		observer.DomainStarted("b.org", 1, 4)
		close(reached)
		<-release
		return crawler.RunResult{Records: corpus(4), Extracted: 4}, nil
	})
	m, err := NewManager(stepping, memory.NewRecordStore())
	require.NoError(t, err)

	h, err := m.Start(context.Background(), 100)
	require.NoError(t, err)
	<-reached

	snap := m.Status()
	require.Equal(t, StateRunning, snap.State)
	require.Equal(t, 27, snap.Progress)
	require.Equal(t, "b.org", snap.CurrentDomain)
	require.Equal(t, 4, snap.TotalExtracted)
	require.Equal(t, "Crawling b.org (2/4)", snap.Message)

	close(release)
	waitFor(t, h)
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()

	h := &Handle{id: "r", done: make(chan struct{}), cancel: func() {}}
	_, ok := h.Result()
	require.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCrawlProgress(t *testing.T) {
	t.Parallel()

	require.Equal(t, 10, crawlProgress(0, 18))
	require.Equal(t, 45, crawlProgress(9, 18))
	require.Equal(t, 80, crawlProgress(18, 18))
	require.Equal(t, 10, crawlProgress(0, 0))
}

func TestNewManagerValidates(t *testing.T) {
	t.Parallel()

	_, err := NewManager(nil, memory.NewRecordStore())
	require.Error(t, err)
	_, err = NewManager(quickCrawler(nil), nil)
	require.Error(t, err)
}

type staticFetcher struct{}

func (staticFetcher) Fetch(_ context.Context, rawURL string) (crawler.Page, error) {
	return crawler.Page{URL: rawURL, StatusCode: 200, Text: "page " + rawURL}, nil
}

type urlTitleExtractor struct{}

func (urlTitleExtractor) Extract(page crawler.Page, _ catalog.Selectors) (crawler.Record, error) {
	return crawler.Record{Title: page.URL, Field: "علوم عامة", SourceURL: page.URL}, nil
}

type noLinks struct{}

func (noLinks) ExtractLinks(crawler.Page, string) []string { return nil }

type instantPauser struct{}

func (instantPauser) Pause(context.Context, time.Duration) {}

// progressRecorder samples the manager's snapshot after every milestone.
type progressRecorder struct {
	inner    crawler.Observer
	m        *Manager
	progress []int
	messages []string
}

func (r *progressRecorder) sample() {
	snap := r.m.Status()
	r.progress = append(r.progress, snap.Progress)
	r.messages = append(r.messages, snap.Message)
}

func (r *progressRecorder) DomainStarted(domain string, index, total int) {
	r.inner.DomainStarted(domain, index, total)
	r.sample()
}

func (r *progressRecorder) DomainFinished(res crawler.DomainResult, index, total, accumulated int) {
	r.inner.DomainFinished(res, index, total, accumulated)
	r.sample()
}

func TestProgressStaysInRangeWithOrchestrator(t *testing.T) {
	t.Parallel()

	cat := catalog.Catalog{
		Sources: []catalog.Source{
			{Domain: "a.org", SeedURLs: []string{"https://a.org/1"}},
			{Domain: "b.org", SeedURLs: []string{"https://b.org/1"}},
		},
	}
	orch := crawler.NewOrchestrator(cat, staticFetcher{}, urlTitleExtractor{}, noLinks{},
		crawler.Options{Pauser: instantPauser{}}, nil)

	rec := &progressRecorder{}
	var m *Manager
	wrapped := crawlFunc(func(ctx context.Context, target int, observer crawler.Observer) (crawler.RunResult, error) {
		rec.inner = observer
		rec.m = m
		return orch.CrawlAll(ctx, target, rec)
	})
	m, err := NewManager(wrapped, memory.NewRecordStore())
	require.NoError(t, err)

	h, err := m.Start(context.Background(), 1000)
	require.NoError(t, err)
	_, err = h.Wait(context.Background())
	require.NoError(t, err)

	require.Equal(t, []int{10, 45, 45, 80}, rec.progress)
	require.Equal(t, "Crawling a.org (1/2)", rec.messages[0])
	require.Equal(t, "Crawling b.org (2/2)", rec.messages[2])

	all := append(rec.progress, m.Status().Progress)
	for i, p := range all {
		require.LessOrEqual(t, p, 100)
		if i > 0 {
			require.GreaterOrEqual(t, p, all[i-1], "progress never moves backwards")
		}
	}
	require.Equal(t, 100, m.Status().Progress)
}

type blockingPublisher struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPublisher) Publish(context.Context, string, any) (string, error) {
	close(p.entered)
	<-p.release
	return "msg-1", nil
}

func TestRunStaysActiveWhilePublishing(t *testing.T) {
	t.Parallel()

	pub := &blockingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	m, err := NewManager(quickCrawler(corpus(1)), memory.NewRecordStore(), WithPublisher(pub))
	require.NoError(t, err)

	h, err := m.Start(context.Background(), 5)
	require.NoError(t, err)
	<-pub.entered

	require.True(t, m.Status().IsRunning)
	_, err = m.Start(context.Background(), 5)
	require.ErrorIs(t, err, ErrAlreadyRunning)
	_, done := h.Result()
	require.False(t, done)

	close(pub.release)
	waitFor(t, h)
	snap := m.Status()
	require.False(t, snap.IsRunning)
	require.Equal(t, StateCompleted, snap.State)

	next, err := m.Start(context.Background(), 5)
	require.NoError(t, err)
	waitFor(t, next)
}
