package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"metricsync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory TabularStore; rows[0] is the header row.
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
	n := rowFromA1(a1Range)
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

func rowFromA1(a1Range string) int {
	idx := strings.LastIndex(a1Range, "!A")
	n, err := strconv.Atoi(a1Range[idx+2:])
	if err != nil {
		panic("unexpected a1 range: " + a1Range)
	}
	return n
}

var testHeaders = []string{"date", "spend", "reach", "impressions"}

func newTestEngine(store *fakeStore) *Engine {
	logger := zerolog.Nop()
	return NewEngine(store, &logger)
}

func TestUpsertRowFirstWrite(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store)

	metric := &models.DailyMetric{
		Source: models.SourceAds,
		Date:   "2024-03-01",
		Values: map[string]float64{"spend": 150.5, "reach": 0, "impressions": 2000},
	}

	mode, rowNumber, err := engine.UpsertRow(context.Background(), "sid", "ads_raw_daily", testHeaders, metric)
	require.NoError(t, err)
	assert.Equal(t, models.ModeInsert, mode)
	assert.Equal(t, 2, rowNumber)

	require.Len(t, store.rows, 2)
	assert.Equal(t, []any{"date", "spend", "reach", "impressions"}, store.rows[0])
	assert.Equal(t, []any{"2024-03-01", 150.5, float64(0), float64(2000)}, store.rows[1])
}

func TestUpsertRowInsertThenUpdate(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store)
	ctx := context.Background()

	first := &models.DailyMetric{
		Source: models.SourceAds,
		Date:   "2024-03-01",
		Values: map[string]float64{"spend": 150.5, "impressions": 2000},
	}
	mode, rowNumber, err := engine.UpsertRow(ctx, "sid", "ads_raw_daily", testHeaders, first)
	require.NoError(t, err)
	assert.Equal(t, models.ModeInsert, mode)
	assert.Equal(t, 2, rowNumber)

	// Re-run for the same date: same row, update mode, no duplicate.
	second := &models.DailyMetric{
		Source: models.SourceAds,
		Date:   "2024-03-01",
		Values: map[string]float64{"spend": 200},
	}
	mode, rowNumber, err = engine.UpsertRow(ctx, "sid", "ads_raw_daily", testHeaders, second)
	require.NoError(t, err)
	assert.Equal(t, models.ModeUpdate, mode)
	assert.Equal(t, 2, rowNumber)
	require.Len(t, store.rows, 2)
	assert.Equal(t, []any{"2024-03-01", float64(200), float64(0), float64(0)}, store.rows[1])

	// A new date appends below.
	third := &models.DailyMetric{
		Source: models.SourceAds,
		Date:   "2024-03-02",
		Values: map[string]float64{"spend": 75},
	}
	mode, rowNumber, err = engine.UpsertRow(ctx, "sid", "ads_raw_daily", testHeaders, third)
	require.NoError(t, err)
	assert.Equal(t, models.ModeInsert, mode)
	assert.Equal(t, 3, rowNumber)
	require.Len(t, store.rows, 3)
}

func TestUpsertRowMissingColumnsWrittenAsZero(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store)

	metric := &models.DailyMetric{Source: models.SourceAds, Date: "2024-03-01", Values: map[string]float64{}}
	_, _, err := engine.UpsertRow(context.Background(), "sid", "ads_raw_daily", testHeaders, metric)
	require.NoError(t, err)
	assert.Equal(t, []any{"2024-03-01", float64(0), float64(0), float64(0)}, store.rows[1])
}

func TestCheckTarget(t *testing.T) {
	t.Run("EmptySheet", func(t *testing.T) {
		engine := newTestEngine(&fakeStore{})
		check, empty, err := engine.CheckTarget(context.Background(), "sid", "ads_raw_daily", testHeaders)
		require.NoError(t, err)
		assert.True(t, empty)
		assert.False(t, check.Valid)
	})

	t.Run("ForeignSchema", func(t *testing.T) {
		store := &fakeStore{rows: [][]any{{"date", "total_orders", "total_revenue"}}}
		engine := newTestEngine(store)
		check, empty, err := engine.CheckTarget(context.Background(), "sid", "ads_raw_daily", testHeaders)
		require.NoError(t, err)
		assert.False(t, empty)
		assert.NotEmpty(t, check.MismatchWarning)
	})
}
