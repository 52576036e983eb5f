package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"gumtree-scraper/api"
	"gumtree-scraper/config"
	"gumtree-scraper/models"
	"gumtree-scraper/monitoring"
	"gumtree-scraper/proxy"
	"gumtree-scraper/scraper/gumtree"
	"gumtree-scraper/services"
	"gumtree-scraper/storage"
	"gumtree-scraper/utils"
)

// app holds what both commands share.
type app struct {
	cfg      *config.Config
	logger   *utils.Logger
	registry *prometheus.Registry
	metrics  *monitoring.Metrics
}

// components are the per-process dependencies a Runner is built from.
type components struct {
	runner  *services.Runner
	history storage.RunHistory
	closers []func() error
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

type runCommand struct {
	Category    string `long:"category" description:"Category path or URL (default DEFAULT_CATEGORY)"`
	MaxPages    int    `long:"max-pages" description:"Maximum results pages to walk"`
	MaxListings int    `long:"max-listings" description:"Maximum listings to collect"`
	Location    string `long:"location" description:"Location filter"`
	NoStore     bool   `long:"no-store" description:"Skip syncing into the external store"`

	app *app
}

type serveCommand struct {
	app *app
}

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a := &app{cfg: cfg, logger: logger, registry: registry, metrics: monitoring.NewMetrics(registry)}

	parser := flags.NewParser(nil, flags.Default)
	if _, err := parser.AddCommand("run", "Run one crawl", "Crawl a category once, sync to the store and export local files.", &runCommand{app: a}); err != nil {
		logger.Fatal("Register run command: %v", err)
	}
	if _, err := parser.AddCommand("serve", "Start the HTTP trigger server", "Serve /scrape, /health, /runs and /metrics.", &serveCommand{app: a}); err != nil {
		logger.Fatal("Register serve command: %v", err)
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		logger.Sync()
		os.Exit(1)
	}
}

func (c *runCommand) Execute(_ []string) error {
	a := c.app
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer comps.Close()

	req := models.CrawlRequest{
		CategoryTarget: c.Category,
		Location:       c.Location,
		PersistToStore: !c.NoStore,
	}
	if c.MaxPages != 0 {
		req.MaxPages = &c.MaxPages
	}
	if c.MaxListings != 0 {
		req.MaxListings = &c.MaxListings
	}

	a.logger.Info("=== Gumtree Scraping System starting ===")
	a.logger.Info("Config | backend: %s | store: %s | delay: %v | retries: %d",
		a.cfg.ProxyBackend, a.cfg.StoreBackend, a.cfg.DelayBetweenReqs, a.cfg.MaxRetries)

	res, err := comps.runner.Run(ctx, req)
	if err != nil {
		return err
	}

	if res.Warning != "" {
		a.logger.Warn("%s", res.Warning)
	}
	services.NewStatisticsService(a.logger).Print(res.Statistics)

	fmt.Printf("  Done. %d listings (%d new in store) | stop: %s | JSON -> %s | CSV -> %s\n\n",
		res.ListingsCount, res.AppendedCount, res.StopReason, a.cfg.OutputJSONPath, a.cfg.OutputCSVPath)
	return nil
}

func (c *serveCommand) Execute(_ []string) error {
	a := c.app
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer comps.Close()

	server := api.NewServer(a.cfg, comps.runner, comps.history, a.registry, a.logger)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Health check: http://%s/health", a.cfg.Addr())
		a.logger.Info("Scrape endpoint: http://%s/scrape", a.cfg.Addr())
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

// build wires the fetcher, scraper, stores and runner for the configured backends.
func (a *app) build(ctx context.Context) (*components, error) {
	comps := &components{}

	var fetcher proxy.Fetcher
	switch a.cfg.ProxyBackend {
	case config.ProxyChrome:
		bf := proxy.NewBrowserFetcher(a.cfg, a.logger)
		comps.closers = append(comps.closers, bf.Close)
		fetcher = bf
	default:
		fetcher = proxy.NewScrapflyClient(a.cfg, a.logger)
	}

	scraper := gumtree.New(a.cfg, fetcher, a.logger, gumtree.WithMetrics(a.metrics))

	exporter, err := storage.NewExporter(a.cfg, a.logger)
	if err != nil {
		comps.Close()
		return nil, err
	}

	opts := []services.RunnerOption{services.WithMetrics(a.metrics)}

	store, err := a.openStore(ctx)
	switch {
	case errors.Is(err, storage.ErrStoreDisabled):
		a.logger.Info("External store disabled")
	case err != nil:
		a.logger.Error("Failed to open %s store, continuing with local files only: %v", a.cfg.StoreBackend, err)
	default:
		comps.closers = append(comps.closers, store.Close)
		opts = append(opts, services.WithStore(store))
	}

	comps.history = a.openHistory(ctx)
	if h, ok := comps.history.(*storage.RedisHistory); ok {
		comps.closers = append(comps.closers, h.Close)
	}
	opts = append(opts, services.WithHistory(comps.history))

	comps.runner = services.NewRunner(a.cfg, scraper, exporter, a.logger, opts...)
	return comps, nil
}

func (a *app) openStore(ctx context.Context) (storage.RowStore, error) {
	switch a.cfg.StoreBackend {
	case config.StoreSheets:
		return storage.NewSheetsStore(ctx, a.cfg, a.logger)
	case config.StorePostgres:
		return storage.NewPostgresStore(ctx, a.cfg, a.logger)
	}
	return nil, storage.ErrStoreDisabled
}

func (a *app) openHistory(ctx context.Context) storage.RunHistory {
	if a.cfg.RedisAddr == "" {
		return storage.NewMemoryHistory(a.cfg.RunHistorySize)
	}
	h, err := storage.NewRedisHistory(ctx, a.cfg.RedisAddr, a.cfg.RunHistorySize)
	if err != nil {
		a.logger.Warn("Run history falls back to memory: %v", err)
		return storage.NewMemoryHistory(a.cfg.RunHistorySize)
	}
	return h
}
