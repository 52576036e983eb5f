package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gumtree-scraper/config"
	"gumtree-scraper/utils"
)

// step is one rung of the anti-bot escalation ladder.
type step struct {
	name     string
	asp      bool
	premium  bool
	renderJS bool
}

var escalation = []step{
	{name: "fast"},
	{name: "hard", asp: true, premium: true},
	{name: "hard+js", asp: true, premium: true, renderJS: true},
}

var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "en-AU,en;q=0.9",
}

// ScrapflyClient fetches pages through the Scrapfly scrape API.
type ScrapflyClient struct {
	apiKey      string
	apiURL      string
	country     string
	session     string
	allowedHost string
	http        *http.Client
	logger      *utils.Logger
}

// NewScrapflyClient creates a client from the application config.
func NewScrapflyClient(cfg *config.Config, logger *utils.Logger) *ScrapflyClient {
	return &ScrapflyClient{
		apiKey:      cfg.ScrapflyAPIKey,
		apiURL:      cfg.ScrapflyAPIURL,
		country:     cfg.ScrapflyCountry,
		session:     cfg.ScrapflySession,
		allowedHost: cfg.AllowedHost(),
		http:        &http.Client{Timeout: cfg.RequestTimeout},
		logger:      logger,
	}
}

type apiResponse struct {
	Message    string `json:"message"`
	RetryAfter any    `json:"retry_after"`
	Result     struct {
		Content    string `json:"content"`
		StatusCode int    `json:"status_code"`
		RetryAfter any    `json:"retry_after"`
	} `json:"result"`
}

// Fetch retrieves target, escalating through harder anti-bot settings while the
// response looks like a challenge page. It makes no timed retries of its own.
func (c *ScrapflyClient) Fetch(ctx context.Context, target string, opts FetchOptions) Outcome {
	if err := CheckTarget(target, c.allowedHost); err != nil {
		return Rejected(err.Error())
	}

	country := opts.Country
	if country == "" {
		country = c.country
	}

	for _, st := range escalation {
		if opts.RenderJS {
			st.renderJS = true
		}

		started := time.Now()
		out, blocked := c.attempt(ctx, target, country, st)
		c.logger.Debug("[scrapfly] %s step=%s -> %s (%v)", target, st.name, out, time.Since(started).Round(time.Millisecond))

		if !blocked {
			return out
		}
		c.logger.Warn("[scrapfly] %s looks blocked on %q settings, escalating", target, st.name)
	}

	return Transient("blocked on every escalation step")
}

func (c *ScrapflyClient) attempt(ctx context.Context, target, country string, st step) (Outcome, bool) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("url", target)
	params.Set("country", country)
	params.Set("render_js", strconv.FormatBool(st.renderJS))
	params.Set("asp", strconv.FormatBool(st.asp))
	params.Set("premium_proxy", strconv.FormatBool(st.premium))
	if c.session != "" {
		params.Set("session", c.session)
	}
	for k, v := range defaultHeaders {
		params.Set("headers["+k+"]", v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return Rejected(fmt.Sprintf("build request: %v", err)), false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Transient(fmt.Sprintf("request failed: %v", err)), false
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transient(fmt.Sprintf("read response: %v", err)), false
	}

	var payload apiResponse
	decodeErr := json.Unmarshal(raw, &payload)

	switch api := resp.StatusCode; {
	case api == http.StatusTooManyRequests:
		return RateLimited(retryAfter(resp.Header, payload)), false
	case api == http.StatusPaymentRequired:
		return QuotaExceeded(fmt.Sprintf("scrapfly api %d: %s", api, payload.Message)), false
	case api >= 500:
		return Transient(fmt.Sprintf("scrapfly api %d", api)), false
	case api >= 400:
		return Rejected(fmt.Sprintf("scrapfly api %d: %s", api, payload.Message)), false
	}

	if decodeErr != nil {
		return Transient("malformed response: " + decodeErr.Error()), false
	}

	body := payload.Result.Content
	status := payload.Result.StatusCode
	if status == 0 {
		status = resp.StatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return RateLimited(retryAfter(resp.Header, payload)), false
	case status == http.StatusForbidden && !LooksBlocked(body):
		return QuotaExceeded("target answered 403; scrapfly credits may be exhausted"), false
	case status == http.StatusNotFound || status == http.StatusGone:
		return Rejected(fmt.Sprintf("target status %d", status)), false
	case status >= 500:
		return Transient(fmt.Sprintf("target status %d", status)), false
	}

	if status == http.StatusForbidden || LooksBlocked(body) {
		return Transient(fmt.Sprintf("blocked (status %d)", status)), true
	}
	return OK(body, status), false
}

// retryAfter prefers the Retry-After header, then the JSON hints. Zero means no hint.
func retryAfter(h http.Header, p apiResponse) time.Duration {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if d := parseSeconds(v); d > 0 {
			return d
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	if d := parseSeconds(p.RetryAfter); d > 0 {
		return d
	}
	return parseSeconds(p.Result.RetryAfter)
}

func parseSeconds(v any) time.Duration {
	var secs float64
	switch x := v.(type) {
	case float64:
		secs = x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		secs = f
	default:
		return 0
	}
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
