package gumtree

import (
	"math/rand/v2"
	"time"

	"gumtree-scraper/config"
	"gumtree-scraper/proxy"
)

// Action is what the crawl does with a non-OK fetch outcome.
type Action int

const (
	// ActionRetry retries up to Rule.MaxRetries times, then fails the item.
	ActionRetry Action = iota
	// ActionFailItem keeps the stub data for the item (or stops paging for a page).
	ActionFailItem
	// ActionAbortRun stops the whole crawl, keeping what was collected.
	ActionAbortRun
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFailItem:
		return "fail_item"
	case ActionAbortRun:
		return "abort_run"
	}
	return "unknown"
}

// Rule is the handling of one outcome kind.
type Rule struct {
	Action          Action
	MaxRetries      int
	Backoff         []time.Duration // delay before retry i; the last entry repeats
	Jitter          time.Duration
	HonorRetryAfter bool
	MaxSleep        time.Duration
}

// Policy maps fetch outcome kinds to their handling. Kinds without a rule fail the item.
type Policy map[proxy.Kind]Rule

// DefaultPolicy builds the standard retry table from the config.
func DefaultPolicy(cfg *config.Config) Policy {
	return Policy{
		proxy.KindRateLimited: {
			Action:          ActionRetry,
			MaxRetries:      cfg.MaxRetries,
			Backoff:         []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second},
			Jitter:          500 * time.Millisecond,
			HonorRetryAfter: true,
			MaxSleep:        cfg.MaxRetrySleep,
		},
		proxy.KindTransient: {
			Action:     ActionRetry,
			MaxRetries: cfg.MaxRetries,
			Backoff:    []time.Duration{cfg.RetryDelay, 2 * cfg.RetryDelay, 4 * cfg.RetryDelay},
			MaxSleep:   cfg.MaxRetrySleep,
		},
		proxy.KindQuotaExceeded: {Action: ActionAbortRun},
		proxy.KindRejected:      {Action: ActionFailItem},
	}
}

// Rule returns the rule for kind.
func (p Policy) Rule(kind proxy.Kind) Rule {
	if r, ok := p[kind]; ok {
		return r
	}
	return Rule{Action: ActionFailItem}
}

// Delay is the pause before retry number attempt (0-based) after outcome out.
func (r Rule) Delay(attempt int, out proxy.Outcome) time.Duration {
	var d time.Duration
	if len(r.Backoff) > 0 {
		d = r.Backoff[min(attempt, len(r.Backoff)-1)]
	}
	if r.Jitter > 0 {
		d += rand.N(r.Jitter)
	}
	if r.HonorRetryAfter && out.RetryAfter > d {
		d = out.RetryAfter
	}
	if r.MaxSleep > 0 && d > r.MaxSleep {
		d = r.MaxSleep
	}
	return d
}
