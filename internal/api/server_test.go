package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/academic-crawler/internal/config"
	"github.com/JakeFAU/academic-crawler/internal/crawler"
	"github.com/JakeFAU/academic-crawler/internal/run"
	"github.com/JakeFAU/academic-crawler/internal/store"
	"github.com/JakeFAU/academic-crawler/internal/storage/memory"
)

type crawlFunc func(ctx context.Context, target int, observer crawler.Observer) (crawler.RunResult, error)

func (f crawlFunc) CrawlAll(ctx context.Context, target int, observer crawler.Observer) (crawler.RunResult, error) {
	return f(ctx, target, observer)
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 8080},
		Run:    config.RunConfig{TargetCount: 25},
	}
}

func seededStore(t *testing.T) *memory.RecordStore {
	t.Helper()
	s := memory.NewRecordStore()
	_, err := s.SaveRecords(context.Background(), []crawler.Record{
		{Type: "نظرية علمية", Title: "Relativity", Field: "فيزياء", Summary: "Space and time.", People: []string{}, Facts: []string{}},
		{Type: "معلومة علمية", Title: "Cells", Field: "أحياء", Summary: "Units of life.", People: []string{}, Facts: []string{}},
		{Type: "معلومة علمية", Title: "Evolution", Field: "أحياء", Summary: "Natural selection.", People: []string{}, Facts: []string{}},
	}, "")
	require.NoError(t, err)
	return s
}

func newTestServer(t *testing.T, c run.Crawler, cfg config.Config) (*Server, *run.Manager, *memory.RecordStore) {
	t.Helper()
	repo := seededStore(t)
	if c == nil {
		c = crawlFunc(func(context.Context, int, crawler.Observer) (crawler.RunResult, error) {
			return crawler.RunResult{}, nil
		})
	}
	m, err := run.NewManager(c, repo)
	require.NoError(t, err)
	return NewServer(m, repo, cfg, zap.NewNop()), m, repo
}

func serve(s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func waitIdle(t *testing.T, m *run.Manager) {
	t.Helper()
	h, ok := m.Current()
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = h.Wait(ctx)
	require.False(t, m.Status().IsRunning)
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, nil, testConfig())
	rec := serve(s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(s, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ready"}`, rec.Body.String())

	rec = serve(s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

type downStore struct {
	store.RecordReader
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadinessReportsStoreFailure(t *testing.T) {
	t.Parallel()

	m, err := run.NewManager(crawlFunc(nil), memory.NewRecordStore())
	require.NoError(t, err)
	s := NewServer(m, downStore{}, testConfig(), nil)

	rec := serve(s, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStartCrawlingUsesDefaultTarget(t *testing.T) {
	t.Parallel()

	targets := make(chan int, 1)
	s, m, _ := newTestServer(t, crawlFunc(func(_ context.Context, target int, _ crawler.Observer) (crawler.RunResult, error) {
		targets <- target
		return crawler.RunResult{}, nil
	}), testConfig())

	rec := serve(s, http.MethodPost, "/start_crawling", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp startResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)
	require.Equal(t, 25, resp.TargetCount)
	require.Equal(t, 25, <-targets)
	waitIdle(t, m)

	rec = serve(s, http.MethodPost, "/start_crawling", []byte(`{"target_count": 7}`))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 7, <-targets)
	waitIdle(t, m)
}

func TestStartCrawlingRejectsSecondRun(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	s, m, _ := newTestServer(t, crawlFunc(func(context.Context, int, crawler.Observer) (crawler.RunResult, error) {
		<-release
		return crawler.RunResult{}, nil
	}), testConfig())

	require.Equal(t, http.StatusAccepted, serve(s, http.MethodPost, "/start_crawling", nil).Code)
	rec := serve(s, http.MethodPost, "/start_crawling", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "already in progress")

	close(release)
	waitIdle(t, m)
}

func TestStartCrawlingBadRequests(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, nil, testConfig())
	require.Equal(t, http.StatusBadRequest, serve(s, http.MethodPost, "/start_crawling", []byte("{invalid")).Code)
	require.Equal(t, http.StatusBadRequest, serve(s, http.MethodPost, "/start_crawling", []byte(`{"target_count":0}`)).Code)
}

func TestCrawlingStatusAndCancel(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	s, m, _ := newTestServer(t, crawlFunc(func(ctx context.Context, _ int, obs crawler.Observer) (crawler.RunResult, error) {
		obs.DomainStarted("britannica.com", 0, 2)
		close(started)
		<-ctx.Done()
		return crawler.RunResult{}, fmt.Errorf("crawl cancelled: %w", ctx.Err())
	}), testConfig())

	rec := serve(s, http.MethodPost, "/crawling/cancel", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(s, http.MethodGet, "/crawling_status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"is_running":false`)

	require.Equal(t, http.StatusAccepted, serve(s, http.MethodPost, "/start_crawling", nil).Code)
	<-started

	var snap run.Snapshot
	rec = serve(s, http.MethodGet, "/crawling_status", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.True(t, snap.IsRunning)
	require.Equal(t, 10, snap.Progress)
	require.Equal(t, "britannica.com", snap.CurrentDomain)

	require.Equal(t, http.StatusAccepted, serve(s, http.MethodPost, "/crawling/cancel", nil).Code)
	waitIdle(t, m)
	require.Equal(t, run.StateCancelled, m.Status().State)
}

func TestListData(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, nil, testConfig())

	rec := serve(s, http.MethodGet, "/api/data", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-Total-Count"))
	var all []store.StoredRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 3)

	q := url.Values{"field": {"أحياء"}, "limit": {"1"}, "offset": {"1"}}
	rec = serve(s, http.MethodGet, "/api/data?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-Total-Count"))
	var page []store.StoredRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page, 1)
	require.Equal(t, "Evolution", page[0].Title)

	require.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, "/api/data?limit=-1", nil).Code)
	require.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, "/api/data?offset=x", nil).Code)
}

func TestSampleFieldAndStatistics(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, nil, testConfig())

	var sample []store.StoredRecord
	rec := serve(s, http.MethodGet, "/api/data/sample?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sample))
	require.Len(t, sample, 2)

	var byField []store.StoredRecord
	rec = serve(s, http.MethodGet, "/api/data/field/"+url.PathEscape("فيزياء"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byField))
	require.Len(t, byField, 1)
	require.Equal(t, "Relativity", byField[0].Title)

	var stats store.Statistics
	rec = serve(s, http.MethodGet, "/api/statistics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 3, stats.TotalItems)
	require.Equal(t, map[string]int{"فيزياء": 1, "أحياء": 2}, stats.FieldDistribution)
}

func TestDownloadJSON(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, nil, testConfig())
	rec := serve(s, http.MethodGet, "/download_json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "attachment; filename=academic_data.json", rec.Header().Get("Content-Disposition"))
	require.Contains(t, rec.Body.String(), "فيزياء", "non-ascii text is not escaped")

	var records []store.StoredRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 3)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	s, _, _ := newTestServer(t, nil, cfg)

	require.Equal(t, http.StatusForbidden, serve(s, http.MethodGet, "/api/statistics", nil).Code)
	require.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/statistics?api_key=secret", nil).Code)
	require.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/healthz", nil).Code, "probes stay open")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/crawling_status", nil)
	req.Header.Set("X-API-Key", "secret")
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, nil, testConfig())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	require.EqualError(t, err, "hijacker not supported")

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	require.NoError(t, err)
	require.NotNil(t, buf)
	require.NoError(t, conn.Close())
	require.NoError(t, h.CloseClient())
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}
