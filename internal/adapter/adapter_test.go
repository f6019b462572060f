package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"metricsync/internal/cache"
	"metricsync/internal/config"
	"metricsync/internal/credentials"
	"metricsync/internal/models"
	"metricsync/internal/sheets"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore mirrors a sheet in memory; rows[0] is the header row.
type fakeStore struct {
	rows [][]any
}

func (f *fakeStore) ReadRow(ctx context.Context, spreadsheetID, a1Range string) ([]any, error) {
	if len(f.rows) == 0 {
		return nil, nil
	}
	return f.rows[0], nil
}

func (f *fakeStore) ReadColumn(ctx context.Context, spreadsheetID, a1Range string) ([]string, error) {
	column := make([]string, 0, len(f.rows))
	for _, row := range f.rows {
		if len(row) == 0 {
			column = append(column, "")
			continue
		}
		column = append(column, fmt.Sprintf("%v", row[0]))
	}
	return column, nil
}

func (f *fakeStore) UpdateRange(ctx context.Context, spreadsheetID, a1Range string, row []any) error {
	idx := strings.LastIndex(a1Range, "!A")
	n, err := strconv.Atoi(a1Range[idx+2:])
	if err != nil {
		return fmt.Errorf("unexpected a1 range %s", a1Range)
	}
	for len(f.rows) < n {
		f.rows = append(f.rows, nil)
	}
	f.rows[n-1] = row
	return nil
}

func (f *fakeStore) AppendRow(ctx context.Context, spreadsheetID, a1Range string, row []any) error {
	f.rows = append(f.rows, row)
	return nil
}

func testDeps(store *fakeStore, cred string) Deps {
	logger := zerolog.Nop()
	return Deps{
		Cache:         config.CacheConfig{ResultTTL: time.Minute, LockTTL: time.Second, LockWait: time.Millisecond},
		SpreadsheetID: "default-spreadsheet",
		Coordinator:   cache.NewMemoryCoordinator(),
		Engine:        sheets.NewEngine(store, &logger),
		Decryptor:     credentials.Static(cred),
		Logger:        &logger,
	}
}

func sourceConfig(baseURL string) config.SourceConfig {
	return config.SourceConfig{
		Enabled:    true,
		BaseURL:    baseURL,
		Credential: "b64:ignored-by-static",
		SheetName:  "ads_raw_daily",
		Timezone:   "UTC",
		RateRPS:    100,
	}
}

func TestAdsAdapterSyncInsertThenUpdate(t *testing.T) {
	var spend atomic.Value
	spend.Store("150.5")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/insights/daily", r.URL.Path)
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("date"))
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		fmt.Fprintf(w, `{"spend": %s, "reach": null, "impressions": "2000", "clicks": 5, "landing_page_views": 10}`, spend.Load())
	}))
	defer server.Close()

	store := &fakeStore{}
	a := NewAdsAdapter(sourceConfig(server.URL), testDeps(store, `{"access_token":"token-123"}`))

	opts := models.SyncOptions{TargetDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	result := a.Sync(context.Background(), opts)

	require.True(t, result.Success, "sync failed: %s", result.Error)
	assert.Equal(t, models.ModeInsert, result.Mode)
	assert.Equal(t, 2, result.RowNumber)
	require.NotNil(t, result.Metrics)
	assert.Equal(t, "2024-03-01", result.Metrics.Date)
	assert.Equal(t, 150.5, result.Metrics.Values["spend"])
	assert.Equal(t, float64(0), result.Metrics.Values["reach"], "null coerces to zero")
	assert.Equal(t, float64(2000), result.Metrics.Values["impressions"], "numeric string passes through")

	require.Len(t, store.rows, 2)
	assert.Equal(t, []any{"2024-03-01", 150.5, float64(0), float64(2000), float64(5), float64(10)}, store.rows[1])

	// Re-run for the same date with new upstream numbers: update in
	// place, no duplicate row.
	spend.Store("200")
	result = a.Sync(context.Background(), opts)
	require.True(t, result.Success, "sync failed: %s", result.Error)
	assert.Equal(t, models.ModeUpdate, result.Mode)
	assert.Equal(t, 2, result.RowNumber)
	require.Len(t, store.rows, 2)
	assert.Equal(t, float64(200), store.rows[1][1])
}

func TestAnalyticsAdapterCompactDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reports/daily", r.URL.Path)
		assert.Equal(t, "20240301", r.URL.Query().Get("date"))
		assert.Equal(t, "secret-1", r.Header.Get("X-Api-Secret"))
		fmt.Fprint(w, `{"sessions": 1200, "users": "950", "bounce_rate": 0.42}`)
	}))
	defer server.Close()

	cfg := sourceConfig(server.URL)
	cfg.SheetName = "analytics_raw_daily"
	store := &fakeStore{}
	a := NewAnalyticsAdapter(cfg, testDeps(store, `{"api_secret":"secret-1"}`))

	result := a.Sync(context.Background(), models.SyncOptions{TargetDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)})
	require.True(t, result.Success, "sync failed: %s", result.Error)
	assert.Equal(t, float64(1200), result.Metrics.Values["sessions"])
	assert.Equal(t, float64(950), result.Metrics.Values["users"])
	assert.Equal(t, 0.42, result.Metrics.Values["bounce_rate"])
}

func TestCommerceAdapterSync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/metrics/daily", r.URL.Path)
		assert.Equal(t, "key-9", r.Header.Get("X-Api-Key"))
		fmt.Fprint(w, `{"total_orders": 31, "total_revenue": 4411.20, "net_revenue": 3900, "repeat_customers": 12}`)
	}))
	defer server.Close()

	cfg := sourceConfig(server.URL)
	cfg.SheetName = "commerce_raw_daily"
	store := &fakeStore{}
	a := NewCommerceAdapter(cfg, testDeps(store, `{"api_key":"key-9"}`))

	result := a.Sync(context.Background(), models.SyncOptions{TargetDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)})
	require.True(t, result.Success, "sync failed: %s", result.Error)
	assert.Equal(t, 4411.20, result.Metrics.Values["total_revenue"])
}

func TestSyncDefaultsToYesterday(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"spend": 1}`)
	}))
	defer server.Close()

	a := NewAdsAdapter(sourceConfig(server.URL), testDeps(&fakeStore{}, `{"access_token":"t"}`))

	before := time.Now().UTC().AddDate(0, 0, -1).Format(models.ISODateFormat)
	result := a.Sync(context.Background(), models.SyncOptions{})
	after := time.Now().UTC().AddDate(0, 0, -1).Format(models.ISODateFormat)

	require.True(t, result.Success, "sync failed: %s", result.Error)
	// Either bound tolerates a midnight crossing during the test.
	assert.Contains(t, []string{before, after}, result.Metrics.Date)
}

func TestSyncUpstreamFailureReturnsResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	store := &fakeStore{}
	a := NewAdsAdapter(sourceConfig(server.URL), testDeps(store, `{"access_token":"t"}`))

	result := a.Sync(context.Background(), models.SyncOptions{TargetDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "429")
	assert.Empty(t, store.rows, "no write on fetch failure")
}

func TestSyncSchemaMismatchIsHardStop(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"spend": 1}`)
	}))
	defer server.Close()

	// The target already holds a commerce-style table.
	store := &fakeStore{rows: [][]any{{"date", "total_orders", "total_revenue", "net_revenue"}}}
	a := NewAdsAdapter(sourceConfig(server.URL), testDeps(store, `{"access_token":"t"}`))

	result := a.Sync(context.Background(), models.SyncOptions{TargetDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "commerce")
	require.Len(t, store.rows, 1, "mismatched target must not be written")
}

func TestValidateConfig(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		a := NewAdsAdapter(sourceConfig("http://upstream"), testDeps(&fakeStore{}, `{"access_token":"t"}`))
		check := a.ValidateConfig(context.Background())
		assert.True(t, check.Valid)
		assert.Empty(t, check.Errors)
	})

	t.Run("UnusableCredential", func(t *testing.T) {
		a := NewAdsAdapter(sourceConfig("http://upstream"), testDeps(&fakeStore{}, ""))
		check := a.ValidateConfig(context.Background())
		assert.False(t, check.Valid)
		require.NotEmpty(t, check.Errors)
		assert.Contains(t, check.Errors[0], "credential unusable")
	})

	t.Run("MissingCredentialKey", func(t *testing.T) {
		a := NewAdsAdapter(sourceConfig("http://upstream"), testDeps(&fakeStore{}, `{"wrong":"key"}`))
		check := a.ValidateConfig(context.Background())
		assert.False(t, check.Valid)
		assert.Contains(t, check.Errors[0], "access_token")
	})

	t.Run("MissingBaseURL", func(t *testing.T) {
		cfg := sourceConfig("")
		a := NewAdsAdapter(cfg, testDeps(&fakeStore{}, `{"access_token":"t"}`))
		check := a.ValidateConfig(context.Background())
		assert.False(t, check.Valid)
		assert.Contains(t, check.Errors[0], "base_url")
	})
}

func TestSyncInvalidConfigSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	a := NewAdsAdapter(sourceConfig(server.URL), testDeps(&fakeStore{}, ""))
	result := a.Sync(context.Background(), models.SyncOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid configuration")
	assert.Zero(t, hits.Load())
}

func TestColumnHeaders(t *testing.T) {
	a := NewAdsAdapter(sourceConfig("http://upstream"), testDeps(&fakeStore{}, `{"access_token":"t"}`))
	assert.Equal(t, []string{"date", "spend", "reach", "impressions", "clicks", "landing_page_views"}, a.ColumnHeaders())

	// Mutating the returned slice must not leak into the adapter.
	headers := a.ColumnHeaders()
	headers[0] = "mutated"
	assert.Equal(t, "date", a.ColumnHeaders()[0])
}
