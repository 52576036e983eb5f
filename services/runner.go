package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gumtree-scraper/config"
	"gumtree-scraper/models"
	"gumtree-scraper/monitoring"
	"gumtree-scraper/scraper/gumtree"
	"gumtree-scraper/storage"
	"gumtree-scraper/utils"
)

// ErrInvalidRequest is returned for crawl requests with unusable limits.
var ErrInvalidRequest = errors.New("invalid crawl request")

const (
	warnStoreFailed   = "Failed to save to the external store. Saved to local files as backup."
	warnStoreDisabled = "No external store is configured. Saved to local files only."
)

// Crawler is the scraping stage of a run.
type Crawler interface {
	Crawl(ctx context.Context, req models.CrawlRequest) gumtree.CrawlResult
}

// Exporter writes the local output files of a run.
type Exporter interface {
	Clear() error
	Export(listings []models.Listing, meta storage.ExportMeta) error
}

// Runner executes one crawl invocation end to end: crawl, sync, export, record.
type Runner struct {
	cfg      *config.Config
	crawler  Crawler
	exporter Exporter
	store    storage.RowStore
	history  storage.RunHistory
	stats    *StatisticsService
	metrics  *monitoring.Metrics
	logger   *utils.Logger
	now      func() time.Time
}

type RunnerOption func(*Runner)

// WithStore enables syncing into store. A nil store leaves syncing disabled.
func WithStore(store storage.RowStore) RunnerOption {
	return func(r *Runner) { r.store = store }
}

func WithHistory(h storage.RunHistory) RunnerOption {
	return func(r *Runner) { r.history = h }
}

func WithMetrics(m *monitoring.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func NewRunner(cfg *config.Config, crawler Crawler, exporter Exporter, logger *utils.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:      cfg,
		crawler:  crawler,
		exporter: exporter,
		stats:    NewStatisticsService(logger),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate fills defaults and rejects non-positive limits.
func (r *Runner) Validate(req models.CrawlRequest) (models.CrawlRequest, error) {
	if req.CategoryTarget == "" {
		req.CategoryTarget = r.cfg.DefaultCategory
	}
	if req.CategoryTarget == "" {
		return req, fmt.Errorf("%w: no category given and no default configured", ErrInvalidRequest)
	}
	if req.MaxPages != nil && *req.MaxPages <= 0 {
		return req, fmt.Errorf("%w: max_pages must be positive, got %d", ErrInvalidRequest, *req.MaxPages)
	}
	if req.MaxListings != nil && *req.MaxListings <= 0 {
		return req, fmt.Errorf("%w: max_listings must be positive, got %d", ErrInvalidRequest, *req.MaxListings)
	}
	return req, nil
}

// Run performs one crawl invocation. A partial crawl is still a successful run; the only
// errors are an invalid request and a failed local export.
func (r *Runner) Run(ctx context.Context, req models.CrawlRequest) (*models.RunResult, error) {
	req, err := r.Validate(req)
	if err != nil {
		return nil, err
	}

	res := &models.RunResult{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
	}
	res.ScrapedAt = res.StartedAt
	r.logger.Info("[runner] Run %s started for %s", res.RunID, req.CategoryTarget)

	crawl := r.crawler.Crawl(ctx, req)
	res.Success = true
	res.Listings = crawl.Listings
	res.ListingsCount = len(crawl.Listings)
	res.Complete = crawl.Complete
	res.StopReason = crawl.StopReason

	// persist what was collected even if the caller gave up
	persistCtx := context.WithoutCancel(ctx)

	if err := r.exporter.Clear(); err != nil {
		r.logger.Warn("[runner] Could not clear previous output: %v", err)
	}

	if req.PersistToStore {
		r.sync(persistCtx, res)
	}

	if err := r.exporter.Export(res.Listings, storage.ExportMeta{RunID: res.RunID, ScrapedAt: res.ScrapedAt}); err != nil {
		res.FinishedAt = r.now()
		r.metrics.ObserveRun("export_failed", res.FinishedAt.Sub(res.StartedAt))
		return res, fmt.Errorf("run %s: export: %w", res.RunID, err)
	}

	res.Statistics = r.stats.Generate(res.Listings)
	res.FinishedAt = r.now()

	status := "complete"
	if !res.Complete {
		status = res.StopReason
	}
	r.metrics.ObserveRun(status, res.FinishedAt.Sub(res.StartedAt))

	if r.history != nil {
		if err := r.history.Record(persistCtx, res.Summary(req.CategoryTarget)); err != nil {
			r.logger.Warn("[runner] Could not record run history: %v", err)
		}
	}

	r.logger.Info("[runner] Run %s finished: %d listings, %d appended, stop: %s",
		res.RunID, res.ListingsCount, res.AppendedCount, res.StopReason)
	return res, nil
}

func (r *Runner) sync(ctx context.Context, res *models.RunResult) {
	if r.store == nil {
		r.logger.Warn("[runner] Store sync requested but no store is configured")
		res.Warning = warnStoreDisabled
		return
	}

	sr, err := NewSyncer(r.store, r.logger).Sync(ctx, res.Listings)
	if err != nil {
		r.logger.Error("[runner] Store sync failed: %v", err)
		res.StoreSaved = false
		res.Warning = warnStoreFailed
		return
	}
	res.StoreSaved = true
	res.AppendedCount = sr.Appended
	r.metrics.AddAppended(sr.Appended)
}
