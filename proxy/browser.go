package proxy

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"gumtree-scraper/config"
	"gumtree-scraper/utils"
)

// BrowserFetcher renders pages in a local headless Chrome. It is meant for
// development runs without proxy credentials and never reports quota exhaustion.
type BrowserFetcher struct {
	browserCtx  context.Context
	cancel      func()
	timeout     time.Duration
	allowedHost string
	logger      *utils.Logger
}

// NewBrowserFetcher starts a shared browser process; call Close when done.
func NewBrowserFetcher(cfg *config.Config, logger *utils.Logger) *BrowserFetcher {
	chromeBin := findChromeBinary(cfg.ChromeBin)
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(defaultHeaders["User-Agent"]),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &BrowserFetcher{
		browserCtx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		timeout:     cfg.RequestTimeout,
		allowedHost: cfg.AllowedHost(),
		logger:      logger,
	}
}

// Fetch navigates a fresh tab to target and returns the rendered document.
func (b *BrowserFetcher) Fetch(ctx context.Context, target string, opts FetchOptions) Outcome {
	if err := CheckTarget(target, b.allowedHost); err != nil {
		return Rejected(err.Error())
	}

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var status atomic.Int64
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if r, ok := ev.(*network.EventResponseReceived); ok && r.Type == network.ResourceTypeDocument {
			status.CompareAndSwap(0, r.Response.Status)
		}
	})

	settle := time.Second
	if opts.RenderJS {
		settle = 4 * time.Second
	}

	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(target),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return Transient(fmt.Sprintf("chromedp: %v", err))
	}

	code := int(status.Load())
	if code == 0 {
		code = http.StatusOK
	}
	switch {
	case code == http.StatusTooManyRequests:
		return RateLimited(0)
	case code == http.StatusNotFound || code == http.StatusGone:
		return Rejected(fmt.Sprintf("target status %d", code))
	case code >= 500:
		return Transient(fmt.Sprintf("target status %d", code))
	case code == http.StatusForbidden || LooksBlocked(html):
		return Transient(fmt.Sprintf("blocked (status %d)", code))
	}
	return OK(html, code)
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() error {
	b.cancel()
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
