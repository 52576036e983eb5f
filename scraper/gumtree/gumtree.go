package gumtree

import (
	"context"
	"strconv"
	"time"

	"gumtree-scraper/config"
	"gumtree-scraper/models"
	"gumtree-scraper/monitoring"
	"gumtree-scraper/proxy"
	"gumtree-scraper/utils"
)

// Limits are the resolved crawl bounds. Zero means unbounded.
type Limits struct {
	MaxPages int
	MaxItems int
}

// ResolveLimits applies the defaulting rule for absent limits: with no item limit,
// a single-page crawl is capped at one page of listings and anything else is unbounded.
func ResolveLimits(req models.CrawlRequest, perPage int) Limits {
	var l Limits
	if req.MaxPages != nil {
		l.MaxPages = *req.MaxPages
	}
	switch {
	case req.MaxListings != nil:
		l.MaxItems = *req.MaxListings
	case l.MaxPages == 1:
		l.MaxItems = perPage
	}
	return l
}

// CrawlResult is what a crawl collected and why it stopped.
type CrawlResult struct {
	Listings     []models.Listing
	PagesFetched int
	Complete     bool
	StopReason   string
}

type crawlState int

const (
	stateFetchPage crawlState = iota
	stateReadStubs
	stateEnrich
	stateDone
)

// Scraper walks a category's results pages and enriches every listing from its detail page.
type Scraper struct {
	cfg       *config.Config
	fetcher   proxy.Fetcher
	extractor *Extractor
	policy    Policy
	pacer     *utils.Pacer
	logger    *utils.Logger
	metrics   *monitoring.Metrics
	now       func() time.Time
	sleep     func(context.Context, time.Duration) error
}

type Option func(*Scraper)

// WithPolicy replaces the default outcome handling table.
func WithPolicy(p Policy) Option {
	return func(s *Scraper) { s.policy = p }
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// New creates a Scraper that fetches through fetcher.
func New(cfg *config.Config, fetcher proxy.Fetcher, logger *utils.Logger, opts ...Option) *Scraper {
	s := &Scraper{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: NewExtractor(cfg.GumtreeBaseURL),
		policy:    DefaultPolicy(cfg),
		pacer:     utils.NewPacer(cfg.DelayBetweenReqs),
		logger:    logger,
		now:       time.Now,
		sleep:     utils.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Crawl runs one sequential crawl. It never fails as a whole: whatever was collected
// before a stop is returned together with the stop reason.
func (s *Scraper) Crawl(ctx context.Context, req models.CrawlRequest) CrawlResult {
	limits := ResolveLimits(req, s.cfg.ListingsPerPage)
	s.logger.Info("[gumtree] Starting crawl of %s | max pages: %s | max listings: %s",
		req.CategoryTarget, limitString(limits.MaxPages), limitString(limits.MaxItems))

	var (
		res     CrawlResult
		page    = 1
		pageURL string
		body    string
		stubs   []models.Stub
		next    int
		seen    = utils.NewKeySet()
	)

	stop := func(reason string, complete bool) crawlState {
		res.StopReason = reason
		res.Complete = complete
		return stateDone
	}

	state := stateFetchPage
	for state != stateDone {
		switch state {
		case stateFetchPage:
			if limits.MaxPages > 0 && page > limits.MaxPages {
				state = stop(models.StopPageLimit, true)
				continue
			}
			if ctx.Err() != nil {
				state = stop(models.StopCancelled, false)
				continue
			}

			var err error
			pageURL, err = PageURL(s.cfg.GumtreeBaseURL, req.CategoryTarget, page, req.Location)
			if err != nil {
				s.logger.Error("[gumtree] Page %d: %v", page, err)
				state = stop(models.StopPageFailed, false)
				continue
			}

			s.logger.Info("[gumtree] Scraping page %d: %s", page, pageURL)
			out, action := s.fetch(ctx, pageURL)
			if out.Kind != proxy.KindOK {
				if action == ActionAbortRun {
					s.metrics.IncPage("quota")
					s.logger.Error("[gumtree] Quota exhausted on page %d, stopping with %d listings", page, len(res.Listings))
					state = stop(models.StopQuotaExceeded, false)
					continue
				}
				s.metrics.IncPage("failed")
				s.logger.Error("[gumtree] Page %d failed: %s", page, out)
				if ctx.Err() != nil {
					state = stop(models.StopCancelled, false)
				} else {
					state = stop(models.StopPageFailed, false)
				}
				continue
			}
			s.metrics.IncPage("ok")
			body = out.Body
			state = stateReadStubs

		case stateReadStubs:
			found, err := s.extractor.ParseResultsPage(body, pageURL)
			if err != nil {
				s.logger.Error("[gumtree] Page %d could not be parsed: %v", page, err)
				state = stop(models.StopPageFailed, false)
				continue
			}
			res.PagesFetched++

			stubs = stubs[:0]
			for _, st := range found {
				if seen.Add(st.URL) {
					stubs = append(stubs, st)
				}
			}
			if len(stubs) == 0 {
				s.logger.Warn("[gumtree] Page %d returned no new listings, stopping", page)
				state = stop(models.StopExhausted, true)
				continue
			}
			s.logger.Debug("[gumtree] Page %d: %d listing links", page, len(stubs))
			next = 0
			state = stateEnrich

		case stateEnrich:
			if limits.MaxItems > 0 && len(res.Listings) >= limits.MaxItems {
				state = stop(models.StopItemLimit, true)
				continue
			}
			if next >= len(stubs) {
				s.logger.Info("[gumtree] Page %d done, collected %d listings so far", page, len(res.Listings))
				page++
				state = stateFetchPage
				continue
			}
			if ctx.Err() != nil {
				state = stop(models.StopCancelled, false)
				continue
			}

			listing, abort := s.enrich(ctx, stubs[next])
			if abort {
				s.logger.Error("[gumtree] Quota exhausted at listing %d of page %d, stopping with %d listings",
					next+1, page, len(res.Listings))
				state = stop(models.StopQuotaExceeded, false)
				continue
			}
			res.Listings = append(res.Listings, listing)
			next++
		}
	}

	s.logger.Info("[gumtree] Crawl finished: %d listings from %d pages (stop: %s, complete: %t)",
		len(res.Listings), res.PagesFetched, res.StopReason, res.Complete)
	return res
}

// enrich fetches and parses the detail page for st. On failure the stub data is kept;
// abort is true only when the run must stop and no record should be produced.
func (s *Scraper) enrich(ctx context.Context, st models.Stub) (models.Listing, bool) {
	out, action := s.fetch(ctx, st.URL)
	if out.Kind != proxy.KindOK {
		if action == ActionAbortRun {
			return models.Listing{}, true
		}
		s.logger.Warn("[gumtree] Detail page failed for %s: %s", st.URL, out)
		s.metrics.IncItem("stub")
		return models.FromStub(st, s.now()), false
	}

	listing, err := s.extractor.ParseDetailPage(out.Body, st.URL, s.now())
	if err != nil {
		s.logger.Warn("[gumtree] Detail page unreadable for %s: %v", st.URL, err)
		s.metrics.IncItem("stub")
		return models.FromStub(st, s.now()), false
	}
	listing.MergeStub(st)
	s.metrics.IncItem("ok")
	s.logger.Debug("[gumtree] Enriched: %s", listing.Title)
	return listing, false
}

// fetch performs one logical fetch, applying the policy to non-OK outcomes. The returned
// action is meaningful only when the outcome is not OK.
func (s *Scraper) fetch(ctx context.Context, target string) (proxy.Outcome, Action) {
	opts := proxy.FetchOptions{Country: s.cfg.ScrapflyCountry}

	for attempt := 0; ; attempt++ {
		if err := s.pacer.Wait(ctx); err != nil {
			return proxy.Transient("cancelled: " + err.Error()), ActionFailItem
		}

		out := s.fetcher.Fetch(ctx, target, opts)
		s.metrics.IncFetch(out.Kind.String())
		if out.Kind == proxy.KindOK {
			return out, ActionRetry
		}

		rule := s.policy.Rule(out.Kind)
		switch rule.Action {
		case ActionAbortRun:
			return out, ActionAbortRun
		case ActionRetry:
			if attempt >= rule.MaxRetries {
				return out, ActionFailItem
			}
			delay := rule.Delay(attempt, out)
			s.logger.Warn("[gumtree] %s for %s (attempt %d/%d), retrying in %v",
				out.Kind, target, attempt+1, rule.MaxRetries+1, delay.Round(time.Millisecond))
			if err := s.sleep(ctx, delay); err != nil {
				return out, ActionFailItem
			}
		default:
			return out, ActionFailItem
		}
	}
}

func limitString(n int) string {
	if n <= 0 {
		return "unbounded"
	}
	return strconv.Itoa(n)
}
