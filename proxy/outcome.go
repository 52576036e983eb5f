// Package proxy fetches rendered pages through an upstream scraping proxy (or a
// local headless browser) and reports each attempt as a typed Outcome.
package proxy

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Kind classifies the result of one fetch.
type Kind int

const (
	KindOK Kind = iota
	KindRateLimited
	KindQuotaExceeded
	KindTransient
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindTransient:
		return "transient"
	case KindRejected:
		return "rejected"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome is the result of a fetch. Body and Status are set for KindOK,
// RetryAfter for KindRateLimited (zero when upstream gave no hint), Reason otherwise.
type Outcome struct {
	Kind       Kind
	Body       string
	Status     int
	RetryAfter time.Duration
	Reason     string
}

func OK(body string, status int) Outcome {
	return Outcome{Kind: KindOK, Body: body, Status: status}
}

func RateLimited(retryAfter time.Duration) Outcome {
	return Outcome{Kind: KindRateLimited, RetryAfter: retryAfter, Reason: "rate limited"}
}

func QuotaExceeded(reason string) Outcome {
	return Outcome{Kind: KindQuotaExceeded, Reason: reason}
}

func Transient(reason string) Outcome {
	return Outcome{Kind: KindTransient, Reason: reason}
}

func Rejected(reason string) Outcome {
	return Outcome{Kind: KindRejected, Reason: reason}
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindOK:
		return fmt.Sprintf("ok status=%d bytes=%d", o.Status, len(o.Body))
	case KindRateLimited:
		return fmt.Sprintf("rate_limited retry_after=%v", o.RetryAfter)
	}
	return o.Kind.String() + ": " + o.Reason
}

// FetchOptions are the per-request rendering and geo settings.
type FetchOptions struct {
	RenderJS bool
	Country  string
}

// Fetcher is anything that can turn a target URL into an Outcome.
type Fetcher interface {
	Fetch(ctx context.Context, target string, opts FetchOptions) Outcome
}

// CheckTarget verifies target is an absolute http(s) URL on allowedHost or one of its subdomains.
func CheckTarget(target, allowedHost string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse target: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target %q is not an absolute http(s) URL", target)
	}
	host := strings.ToLower(u.Hostname())
	allowed := strings.ToLower(allowedHost)
	if allowed != "" && host != allowed && !strings.HasSuffix(host, "."+allowed) {
		return fmt.Errorf("target host %q is outside %q", host, allowedHost)
	}
	return nil
}

var blockMarkers = []string{
	"captcha",
	"verify you are human",
	"unusual traffic",
	"pardon our interruption",
	"cloudflare",
}

// Challenge pages are small; full listing pages routinely mention captcha or
// cloudflare in scripts, so markers are only trusted below this size.
const challengePageMax = 64 << 10

// LooksBlocked reports whether body is empty or is an anti-bot challenge page.
func LooksBlocked(body string) bool {
	if strings.TrimSpace(body) == "" {
		return true
	}
	if len(body) > challengePageMax {
		return false
	}
	lowered := strings.ToLower(body)
	for _, m := range blockMarkers {
		if strings.Contains(lowered, m) {
			return true
		}
	}
	return false
}
