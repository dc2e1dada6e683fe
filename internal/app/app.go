// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/academic-crawler/internal/api"
	"github.com/JakeFAU/academic-crawler/internal/clock/system"
	"github.com/JakeFAU/academic-crawler/internal/config"
	"github.com/JakeFAU/academic-crawler/internal/crawler"
	"github.com/JakeFAU/academic-crawler/internal/export"
	"github.com/JakeFAU/academic-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/academic-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/academic-crawler/internal/id/uuid"
	"github.com/JakeFAU/academic-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/academic-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/academic-crawler/internal/run"
	"github.com/JakeFAU/academic-crawler/internal/storage/gcs"
	"github.com/JakeFAU/academic-crawler/internal/storage/local"
	"github.com/JakeFAU/academic-crawler/internal/storage/memory"
	"github.com/JakeFAU/academic-crawler/internal/storage/postgres"
	"github.com/JakeFAU/academic-crawler/internal/store"
)

// App holds the shared, long-lived services: the record store, the crawl
// pipeline, the run manager, and the HTTP server built on top of them.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	repo    store.Repository
	fetcher crawler.Fetcher
	runs    *run.Manager
	server  *api.Server
	closers []func() error
}

// Option overrides a service NewApp would otherwise build from config.
type Option func(*App)

// WithRepository injects a record store instead of connecting to one.
func WithRepository(repo store.Repository) Option {
	return func(a *App) { a.repo = repo }
}

// WithFetcher injects the page fetcher.
func WithFetcher(f crawler.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// NewApp builds every service from cfg and fails fast when one cannot start.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	clock := system.New()

	if a.repo == nil {
		repo, err := a.openRepository(ctx, clock)
		if err != nil {
			return nil, err
		}
		a.repo = repo
	}

	if a.fetcher == nil {
		fopts := []collyfetcher.Option{collyfetcher.WithLogger(logger.Named("fetcher"))}
		if cfg.Crawler.RateLimitPerDomain > 0 {
			fopts = append(fopts, collyfetcher.WithLimiter(ratelimit.New(ratelimit.Config{
				RPS:   cfg.Crawler.RateLimitPerDomain,
				Burst: cfg.Crawler.RateLimitBurst,
			})))
		}
		a.fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.Crawler.RequestTimeout,
		}, fopts...)
	}

	classifier := extract.NewClassifier(cfg.Catalog.Lexicon, cfg.Catalog.Fallback())
	orchestrator := crawler.NewOrchestrator(
		cfg.Catalog,
		a.fetcher,
		extract.NewRecordExtractor(classifier, nil, nil),
		extract.NewLinkExtractor(),
		cfg.CrawlerOptions(),
		logger.Named("crawler"),
	)

	runOpts := []run.Option{
		run.WithIDGenerator(uuid.NewUUIDGenerator()),
		run.WithClock(clock),
		run.WithLogger(logger.Named("run")),
		run.WithStatusDomain(cfg.Run.StatusDomain),
	}
	exporter, err := a.buildExporter(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if exporter != nil {
		runOpts = append(runOpts, run.WithExporter(exporter))
	}
	if cfg.PubSub.TopicName != "" {
		pub, err := pubsub.New(ctx, pubsub.Config{ProjectID: cfg.PubSub.ProjectID, TopicID: cfg.PubSub.TopicName})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		runOpts = append(runOpts, run.WithPublisher(pub))
		logger.Info("publishing run events", zap.String("topic", cfg.PubSub.TopicName))
	}

	a.runs, err = run.NewManager(orchestrator, a.repo, runOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init run manager: %w", err)
	}
	a.server = api.NewServer(a.runs, a.repo, cfg, logger.Named("api"))
	return a, nil
}

func (a *App) openRepository(ctx context.Context, clock *system.Clock) (store.Repository, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Info("using in-memory record store")
		return memory.NewRecordStore().WithClock(clock.Now), nil
	}
	repo, err := postgres.NewRecordStore(ctx, postgres.Config{
		DSN:       a.cfg.DB.DSN,
		MaxConns:  a.cfg.DB.MaxConns,
		BatchSize: a.cfg.DB.BatchSize,
	}, a.logger.Named("postgres"))
	if err != nil {
		return nil, fmt.Errorf("init postgres store: %w", err)
	}
	repo.WithClock(clock.Now)
	if a.cfg.DB.AutoMigrate {
		if err := repo.EnsureSchema(ctx); err != nil {
			repo.Close()
			return nil, err
		}
	}
	a.logger.Info("using postgres record store")
	return repo, nil
}

func (a *App) buildExporter(ctx context.Context) (*export.Exporter, error) {
	var blobs export.BlobStore
	switch a.cfg.Export.Backend {
	case config.ExportLocal:
		bs, err := local.New(local.Config{BaseDir: a.cfg.Export.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local export: %w", err)
		}
		blobs = bs
	case config.ExportGCS:
		bs, err := gcs.New(ctx, gcs.Config{Bucket: a.cfg.Export.GCSBucket, VerifyBucket: true})
		if err != nil {
			return nil, fmt.Errorf("init gcs export: %w", err)
		}
		a.closers = append(a.closers, bs.Close)
		blobs = bs
	case config.ExportMemory:
		blobs = memory.NewBlobStore()
	default:
		return nil, nil
	}
	a.logger.Info("exporting corpora", zap.String("backend", a.cfg.Export.Backend))
	exp, err := export.New(blobs, a.cfg.Export.Prefix)
	if err != nil {
		return nil, fmt.Errorf("init exporter: %w", err)
	}
	return exp, nil
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetRepository exposes the record store.
func (a *App) GetRepository() store.Repository {
	return a.repo
}

// GetRuns returns the run manager.
func (a *App) GetRuns() *run.Manager {
	return a.runs
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Close releases every service in reverse construction order.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	if a.repo != nil {
		a.repo.Close()
	}
}
