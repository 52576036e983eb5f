package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gumtree-scraper/config"
	"gumtree-scraper/models"
	"gumtree-scraper/storage"
	"gumtree-scraper/utils"
)

// RunService executes one crawl invocation.
type RunService interface {
	Run(ctx context.Context, req models.CrawlRequest) (*models.RunResult, error)
}

// Server holds the dependencies for the HTTP trigger server.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	runner     RunService
	history    storage.RunHistory
	gatherer   prometheus.Gatherer
	logger     *utils.Logger

	// running serialises crawls; the external store assumes one writer at a time.
	running sync.Mutex
}

// NewServer wires the routes. history and gatherer may be nil.
func NewServer(cfg *config.Config, runner RunService, history storage.RunHistory, gatherer prometheus.Gatherer, logger *utils.Logger) *Server {
	s := &Server{
		config:   cfg,
		runner:   runner,
		history:  history,
		gatherer: gatherer,
		logger:   logger,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address. Crawls are long, so there is no write timeout.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}
	s.logger.Info("[api] Listening on %s", s.config.Addr())
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
