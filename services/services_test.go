package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gumtree-scraper/config"
	"gumtree-scraper/models"
	"gumtree-scraper/scraper/gumtree"
	"gumtree-scraper/storage"
	"gumtree-scraper/utils"
)

func sampleListings() []models.Listing {
	created, _ := models.NewDate(2024, time.May, 12)
	return []models.Listing{
		{JobID: "1339462428", Title: "Hay bales", URL: "https://www.gumtree.com.au/s-ad/a/b/hay/1339462428",
			Location: "Parramatta", CategoryName: "Farming", CreationDate: &created, Description: "Call 0412 345 678",
			Phone: "0412345678", PhoneNumberExists: true, Success: true},
		{JobID: "1339000001", Title: "Heifers", URL: "https://www.gumtree.com.au/s-ad/a/b/heifers/1339000001",
			Location: "Dubbo", CategoryName: "Livestock", PhoneNumberExists: true,
			PhoneRevealURL: "https://www.gumtree.com.au/s-ad/reveal-phone/1339000001", Success: true},
		{Title: "No id", URL: "https://www.gumtree.com.au/s-ad/a/b/no-id", Location: "Dubbo", CategoryName: "Livestock"},
	}
}

// mockStore is a testify mock of storage.RowStore.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) EnsureHeader(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) ReadAll(ctx context.Context) ([]storage.Row, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]storage.Row)
	return rows, args.Error(1)
}

func (m *mockStore) Append(ctx context.Context, listings []models.Listing) error {
	return m.Called(ctx, listings).Error(0)
}

func (m *mockStore) Close() error { return nil }

// memStore is an in-memory RowStore that renders rows the way a spreadsheet would.
type memStore struct {
	rows []storage.Row
}

func (m *memStore) EnsureHeader(context.Context) error { return nil }

func (m *memStore) ReadAll(context.Context) ([]storage.Row, error) { return m.rows, nil }

func (m *memStore) Append(_ context.Context, listings []models.Listing) error {
	for _, l := range listings {
		row := storage.Row{}
		for i, c := range storage.Cells(l) {
			row[storage.Columns[i]] = c
		}
		m.rows = append(m.rows, row)
	}
	return nil
}

func (m *memStore) Close() error { return nil }

func TestKeyOf(t *testing.T) {
	cases := []struct {
		jobID  any
		url    string
		want   string
		wantOK bool
	}{
		{"1339462428", "", "1339462428", true},
		{" 1339462428 ", "", "1339462428", true},
		{1339462428, "", "1339462428", true},
		{int64(1339462428), "", "1339462428", true},
		{1339462428.0, "", "1339462428", true},
		{"1339462428.0", "", "1339462428", true},
		{json.Number("1339462428"), "", "1339462428", true},
		{"", " https://x/1 ", "url:https://x/1", true},
		{nil, "https://x/1", "url:https://x/1", true},
		{"", "", "", false},
		{nil, "  ", "", false},
	}
	for _, tc := range cases {
		got, ok := KeyOf(tc.jobID, tc.url)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("KeyOf(%#v, %q) = %q, %v; want %q, %v", tc.jobID, tc.url, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestPlanSkipsExistingAndBatchDuplicates(t *testing.T) {
	batch := sampleListings()
	batch = append(batch, batch[1])         // repeated inside the batch
	batch = append(batch, models.Listing{}) // no key at all
	existing := []storage.Row{{"job_id": 1339462428.0, "url": "https://elsewhere"}}

	got := Plan(batch, existing)

	require.Len(t, got, 3)
	assert.Equal(t, "1339000001", got[0].JobID)
	assert.Equal(t, "No id", got[1].Title)
	assert.Equal(t, models.Listing{}, got[2])
}

func TestPlanMatchesURLKeys(t *testing.T) {
	existing := []storage.Row{{"job_id": "", "url": "https://www.gumtree.com.au/s-ad/a/b/no-id"}}
	got := Plan(sampleListings(), existing)
	require.Len(t, got, 2)
	for _, l := range got {
		assert.NotEqual(t, "No id", l.Title)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	store := &memStore{}
	syncer := NewSyncer(store, utils.NewNopLogger())
	ctx := t.Context()

	first, err := syncer.Sync(ctx, sampleListings())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Appended: 3}, first)

	second, err := syncer.Sync(ctx, sampleListings())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Appended: 0, Skipped: 3}, second)
	assert.Len(t, store.rows, 3)
}

func TestSyncStopsOnReadFailure(t *testing.T) {
	store := &mockStore{}
	store.On("EnsureHeader", mock.Anything).Return(nil)
	store.On("ReadAll", mock.Anything).Return(nil, errors.New("quota"))

	_, err := NewSyncer(store, utils.NewNopLogger()).Sync(t.Context(), sampleListings())

	assert.Error(t, err)
	store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestSyncAppendsOnlyNew(t *testing.T) {
	store := &mockStore{}
	store.On("EnsureHeader", mock.Anything).Return(nil)
	store.On("ReadAll", mock.Anything).Return([]storage.Row{{"job_id": "1339462428"}}, nil)
	store.On("Append", mock.Anything, mock.MatchedBy(func(ls []models.Listing) bool {
		return len(ls) == 2 && ls[0].JobID == "1339000001"
	})).Return(nil)

	res, err := NewSyncer(store, utils.NewNopLogger()).Sync(t.Context(), sampleListings())

	require.NoError(t, err)
	assert.Equal(t, SyncResult{Appended: 2, Skipped: 1}, res)
	store.AssertExpectations(t)
}

func TestStatisticsGenerate(t *testing.T) {
	svc := NewStatisticsService(utils.NewNopLogger())
	st := svc.Generate(sampleListings())

	if st.TotalItems != 3 {
		t.Errorf("TotalItems: got %d, want 3", st.TotalItems)
	}
	if st.SuccessfulItems != 2 || st.FailedItems != 1 {
		t.Errorf("Successful/Failed: got %d/%d, want 2/1", st.SuccessfulItems, st.FailedItems)
	}
	if st.ItemsWithPhone != 1 || st.ItemsWithPhoneReveal != 1 {
		t.Errorf("Phone/Reveal: got %d/%d, want 1/1", st.ItemsWithPhone, st.ItemsWithPhoneReveal)
	}
	if st.ItemsWithCreationDate != 1 {
		t.Errorf("ItemsWithCreationDate: got %d, want 1", st.ItemsWithCreationDate)
	}
	if st.ListingsByLocation["Dubbo"] != 2 {
		t.Errorf("ListingsByLocation[Dubbo]: got %d, want 2", st.ListingsByLocation["Dubbo"])
	}
	if st.ListingsByCategory["Livestock"] != 2 {
		t.Errorf("ListingsByCategory[Livestock]: got %d, want 2", st.ListingsByCategory["Livestock"])
	}
}

func TestStatisticsEmpty(t *testing.T) {
	st := NewStatisticsService(utils.NewNopLogger()).Generate(nil)
	if st.TotalItems != 0 {
		t.Errorf("TotalItems: got %d, want 0", st.TotalItems)
	}
	if st.ListingsByLocation == nil {
		t.Error("ListingsByLocation should not be nil")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short: got %q", got)
	}
	if got := truncate("a very long listing title", 10); got != "a very ..." {
		t.Errorf("truncate long: got %q", got)
	}
}

type crawlFunc func(ctx context.Context, req models.CrawlRequest) gumtree.CrawlResult

func (f crawlFunc) Crawl(ctx context.Context, req models.CrawlRequest) gumtree.CrawlResult {
	return f(ctx, req)
}

func newTestRunner(t *testing.T, crawl crawlFunc, opts ...RunnerOption) (*Runner, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DefaultCategory: "s-farming-veterinary/c21210",
		OutputJSONPath:  filepath.Join(dir, "gumtree_data.json"),
		OutputCSVPath:   filepath.Join(dir, "gumtree_data.csv"),
	}
	logger := utils.NewNopLogger()
	exporter, err := storage.NewExporter(cfg, logger)
	require.NoError(t, err)
	return NewRunner(cfg, crawl, exporter, logger, opts...), cfg
}

func quotaCrawl(context.Context, models.CrawlRequest) gumtree.CrawlResult {
	return gumtree.CrawlResult{
		Listings:   sampleListings(),
		StopReason: models.StopQuotaExceeded,
	}
}

func TestRunnerStoreFailureStillExports(t *testing.T) {
	store := &mockStore{}
	store.On("EnsureHeader", mock.Anything).Return(errors.New("permission denied"))
	history := storage.NewMemoryHistory(5)

	r, cfg := newTestRunner(t, quotaCrawl, WithStore(store), WithHistory(history))
	res, err := r.Run(t.Context(), models.CrawlRequest{PersistToStore: true})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.StoreSaved)
	assert.Equal(t, warnStoreFailed, res.Warning)
	assert.False(t, res.Complete)
	assert.Equal(t, models.StopQuotaExceeded, res.StopReason)
	assert.Equal(t, 3, res.ListingsCount)
	assert.NotEmpty(t, res.RunID)

	raw, err := os.ReadFile(cfg.OutputJSONPath)
	require.NoError(t, err)
	var doc struct {
		Metadata struct {
			RunID      string `json:"run_id"`
			TotalItems int    `json:"total_items"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, res.RunID, doc.Metadata.RunID)
	assert.Equal(t, 3, doc.Metadata.TotalItems)

	latest, err := history.Latest(t.Context())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, res.RunID, latest.RunID)
	assert.Equal(t, "s-farming-veterinary/c21210", latest.CategoryTarget)
}

func TestRunnerSyncsWhenRequested(t *testing.T) {
	store := &memStore{}
	var got models.CrawlRequest
	crawl := func(_ context.Context, req models.CrawlRequest) gumtree.CrawlResult {
		got = req
		return gumtree.CrawlResult{Listings: sampleListings(), Complete: true, StopReason: models.StopExhausted}
	}

	r, _ := newTestRunner(t, crawl, WithStore(store))
	res, err := r.Run(t.Context(), models.CrawlRequest{CategoryTarget: "s-cars/c18320", PersistToStore: true})

	require.NoError(t, err)
	assert.Equal(t, "s-cars/c18320", got.CategoryTarget)
	assert.True(t, res.StoreSaved)
	assert.Equal(t, 3, res.AppendedCount)
	assert.Empty(t, res.Warning)
	require.NotNil(t, res.Statistics)
	assert.Equal(t, 3, res.Statistics.TotalItems)
}

func TestRunnerWithoutPersistence(t *testing.T) {
	store := &mockStore{}
	r, _ := newTestRunner(t, quotaCrawl, WithStore(store))

	res, err := r.Run(t.Context(), models.CrawlRequest{})

	require.NoError(t, err)
	assert.False(t, res.StoreSaved)
	assert.Empty(t, res.Warning)
	store.AssertNotCalled(t, "EnsureHeader", mock.Anything)
}

func TestRunnerRejectsBadLimits(t *testing.T) {
	r, _ := newTestRunner(t, quotaCrawl)
	zero := 0

	_, err := r.Run(t.Context(), models.CrawlRequest{MaxPages: &zero})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = r.Run(t.Context(), models.CrawlRequest{MaxListings: &zero})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
