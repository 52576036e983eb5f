package storage

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
	"google.golang.org/api/option"

	"gumtree-scraper/config"
	"gumtree-scraper/utils"
)

// fakeSheet serves the subset of the Sheets values API the store uses.
type fakeSheet struct {
	mu      sync.Mutex
	values  [][]any
	appends int
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	var body struct {
		Values [][]any `json:"values"`
	}
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "!1:1"):
		resp := map[string]any{"range": "Sheet1!1:1"}
		if len(f.values) > 0 {
			resp["values"] = f.values[:1]
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Sheet1!A:Z", "values": f.values})
	case r.Method == http.MethodPut:
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(f.values) == 0 {
			f.values = append(f.values, body.Values...)
		} else {
			f.values[0] = body.Values[0]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRows": len(body.Values)})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.values = append(f.values, body.Values...)
		f.appends++
		_ = json.NewEncoder(w).Encode(map[string]any{"updates": map[string]any{"updatedRows": len(body.Values)}})
	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func newFakeSheetStore(t *testing.T, sheet *fakeSheet) *SheetsStore {
	t.Helper()
	srv := httptest.NewServer(sheet)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		GoogleSheetsID:    "sheet-123",
		GoogleSheetsRange: "Sheet1!A:Z",
		MaxRetries:        1,
		RetryDelay:        time.Millisecond,
	}
	store, err := NewSheetsStore(t.Context(), cfg, utils.NewNopLogger(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return store
}

func TestSheetsStoreHeaderAndAppend(t *testing.T) {
	sheet := &fakeSheet{}
	store := newFakeSheetStore(t, sheet)
	ctx := t.Context()

	require.NoError(t, store.EnsureHeader(ctx))
	require.Len(t, sheet.values, 1)
	assert.Equal(t, "job_id", sheet.values[0][0])

	require.NoError(t, store.EnsureHeader(ctx), "existing header is left alone")
	require.Len(t, sheet.values, 1)

	require.NoError(t, store.Append(ctx, sampleListings()))
	assert.Equal(t, 1, sheet.appends)

	rows, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1339462428", rows[0]["job_id"])
	assert.Equal(t, "https://www.gumtree.com.au/s-ad/dubbo/livestock/angus-heifers/1339000001", rows[1]["url"])
}

func TestSheetsStoreReadAllKeepsCellTypes(t *testing.T) {
	sheet := &fakeSheet{values: [][]any{
		{"job_id", "title", "url"},
		{1339462428.0, "Hay", "https://www.gumtree.com.au/s-ad/a/b/c/1339462428"},
		{"", "No id"},
	}}
	store := newFakeSheetStore(t, sheet)

	rows, err := store.ReadAll(t.Context())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1339462428.0, rows[0]["job_id"])
	assert.Equal(t, "No id", rows[1]["title"])
	_, hasURL := rows[1]["url"]
	assert.False(t, hasURL, "short rows leave trailing columns unset")
}

func TestSheetsStoreAppendNothing(t *testing.T) {
	sheet := &fakeSheet{}
	store := newFakeSheetStore(t, sheet)
	require.NoError(t, store.Append(t.Context(), nil))
	assert.Zero(t, sheet.appends)
}
