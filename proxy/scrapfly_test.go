package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gumtree-scraper/config"
	"gumtree-scraper/utils"
)

const listingURL = "https://www.gumtree.com.au/s-ad/spring-plains/farm-hand/1339462428"

var realPage = "<html><body><h1>Farm hand</h1>" + strings.Repeat("<p>content</p>", 10) + "</body></html>"

type recordedCall struct {
	query map[string]string
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, n int)) (*ScrapflyClient, *[]recordedCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		calls = append(calls, recordedCall{query: q})
		n := len(calls)
		mu.Unlock()
		handler(w, r, n)
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		ScrapflyAPIKey:  "test-key",
		ScrapflyAPIURL:  srv.URL,
		ScrapflyCountry: "AU",
		GumtreeBaseURL:  "https://www.gumtree.com.au",
		RequestTimeout:  5 * time.Second,
	}
	return NewScrapflyClient(cfg, utils.NewNopLogger()), &calls
}

func writeResult(w http.ResponseWriter, status int, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"result": map[string]any{"content": content, "status_code": status},
	})
}

func TestScrapflyFetchOK(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		writeResult(w, 200, realPage)
	})

	out := c.Fetch(t.Context(), listingURL, FetchOptions{})
	require.Equal(t, KindOK, out.Kind, out.String())
	assert.Equal(t, 200, out.Status)
	assert.Equal(t, realPage, out.Body)

	require.Len(t, *calls, 1)
	q := (*calls)[0].query
	assert.Equal(t, "test-key", q["key"])
	assert.Equal(t, listingURL, q["url"])
	assert.Equal(t, "AU", q["country"])
	assert.Equal(t, "false", q["render_js"])
	assert.Equal(t, "false", q["asp"])
	assert.Equal(t, "en-AU,en;q=0.9", q["headers[Accept-Language]"])
}

func TestScrapflyEscalatesWhenBlocked(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		if n == 1 {
			writeResult(w, 200, "<html>Please complete the CAPTCHA</html>")
			return
		}
		writeResult(w, 200, realPage)
	})

	out := c.Fetch(t.Context(), listingURL, FetchOptions{})
	require.Equal(t, KindOK, out.Kind, out.String())
	require.Len(t, *calls, 2)
	assert.Equal(t, "true", (*calls)[1].query["asp"])
	assert.Equal(t, "true", (*calls)[1].query["premium_proxy"])
	assert.Equal(t, "false", (*calls)[1].query["render_js"])
}

func TestScrapflyBlockedOnEveryStep(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		writeResult(w, 200, "verify you are human")
	})

	out := c.Fetch(t.Context(), listingURL, FetchOptions{RenderJS: true})
	assert.Equal(t, KindTransient, out.Kind)
	require.Len(t, *calls, len(escalation))
	for _, call := range *calls {
		assert.Equal(t, "true", call.query["render_js"])
	}
}

func TestScrapflyClassification(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter)
		want    Kind
		retry   time.Duration
	}{
		{
			name: "api rate limit with header",
			handler: func(w http.ResponseWriter) {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			want:  KindRateLimited,
			retry: 7 * time.Second,
		},
		{
			name: "api rate limit with json hint",
			handler: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"retry_after": "3"}`))
			},
			want:  KindRateLimited,
			retry: 3 * time.Second,
		},
		{
			name:    "api quota",
			handler: func(w http.ResponseWriter) { w.WriteHeader(http.StatusPaymentRequired) },
			want:    KindQuotaExceeded,
		},
		{
			name:    "api 5xx",
			handler: func(w http.ResponseWriter) { w.WriteHeader(http.StatusBadGateway) },
			want:    KindTransient,
		},
		{
			name:    "api bad request",
			handler: func(w http.ResponseWriter) { w.WriteHeader(http.StatusUnprocessableEntity) },
			want:    KindRejected,
		},
		{
			name:    "malformed json",
			handler: func(w http.ResponseWriter) { _, _ = w.Write([]byte("not json")) },
			want:    KindTransient,
		},
		{
			name:    "target 403 without challenge",
			handler: func(w http.ResponseWriter) { writeResult(w, 403, "<html>Forbidden</html>") },
			want:    KindQuotaExceeded,
		},
		{
			name:    "target 429",
			handler: func(w http.ResponseWriter) { writeResult(w, 429, "slow down") },
			want:    KindRateLimited,
		},
		{
			name:    "target 404",
			handler: func(w http.ResponseWriter) { writeResult(w, 404, "<html>gone</html>") },
			want:    KindRejected,
		},
		{
			name:    "target 503",
			handler: func(w http.ResponseWriter) { writeResult(w, 503, "<html>down</html>") },
			want:    KindTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) { tt.handler(w) })
			out := c.Fetch(t.Context(), listingURL, FetchOptions{})
			assert.Equal(t, tt.want, out.Kind, out.String())
			if tt.retry > 0 {
				assert.Equal(t, tt.retry, out.RetryAfter)
			}
		})
	}
}

func TestScrapflyRejectsForeignTarget(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		writeResult(w, 200, realPage)
	})

	for _, target := range []string{"https://evil.example.com/s-ad/1", "/s-ad/relative/1", "ftp://www.gumtree.com.au/x"} {
		out := c.Fetch(t.Context(), target, FetchOptions{})
		assert.Equal(t, KindRejected, out.Kind, target)
	}
	assert.Empty(t, *calls)
}

func TestLooksBlocked(t *testing.T) {
	assert.True(t, LooksBlocked(""))
	assert.True(t, LooksBlocked("<title>Pardon Our Interruption</title>"))
	assert.False(t, LooksBlocked(realPage))
	big := strings.Repeat("x", challengePageMax+1) + "recaptcha"
	assert.False(t, LooksBlocked(big))
}
