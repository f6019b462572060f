package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var adsExpected = []string{"date", "spend", "reach", "impressions", "clicks", "landing_page_views"}

func TestCheckHeaderSchemaEmptyHeader(t *testing.T) {
	for _, header := range [][]any{nil, {}, {"", "  ", nil}} {
		check := CheckHeaderSchema(header, adsExpected)
		assert.False(t, check.Valid)
		assert.Equal(t, adsExpected, check.MissingColumns)
		assert.Equal(t, SchemaNone, check.DetectedSchema)
		assert.Empty(t, check.MismatchWarning)
	}
}

func TestCheckHeaderSchemaMatching(t *testing.T) {
	header := []any{"date", "spend", "reach", "impressions", "clicks", "landing_page_views"}
	check := CheckHeaderSchema(header, adsExpected)
	assert.True(t, check.Valid)
	assert.Empty(t, check.MissingColumns)
	assert.Equal(t, SchemaAds, check.DetectedSchema)
	assert.Empty(t, check.MismatchWarning)
}

func TestCheckHeaderSchemaNormalization(t *testing.T) {
	header := []any{" Date ", "SPEND", "Reach", "impressions", "clicks", "landing_page_views"}
	check := CheckHeaderSchema(header, adsExpected)
	assert.True(t, check.Valid)
}

func TestCheckHeaderSchemaMismatchWarning(t *testing.T) {
	// Commerce-style table, ads columns expected: detected schema plus
	// missing columns means wrong target.
	header := []any{"date", "total_orders", "total_revenue", "net_revenue"}
	check := CheckHeaderSchema(header, adsExpected)
	assert.False(t, check.Valid)
	assert.Equal(t, SchemaCommerce, check.DetectedSchema)
	assert.NotEmpty(t, check.MismatchWarning)
	assert.Contains(t, check.MismatchWarning, "commerce")
}

func TestCheckHeaderSchemaUnrecognizedNoWarning(t *testing.T) {
	// Missing columns but nothing recognizable: no mismatch warning.
	header := []any{"foo", "bar"}
	check := CheckHeaderSchema(header, adsExpected)
	assert.False(t, check.Valid)
	assert.Equal(t, SchemaNone, check.DetectedSchema)
	assert.Empty(t, check.MismatchWarning)
}

func TestCheckHeaderSchemaPartialOwnSchemaNoWarningWhenComplete(t *testing.T) {
	// Own schema detected but nothing missing: a valid target, not drift.
	header := []any{"date", "sessions", "users", "bounce_rate"}
	check := CheckHeaderSchema(header, []string{"date", "sessions", "users", "bounce_rate"})
	assert.True(t, check.Valid)
	assert.Equal(t, SchemaAnalytics, check.DetectedSchema)
	assert.Empty(t, check.MismatchWarning)
}

func TestCheckHeaderSchemaDetectionThreshold(t *testing.T) {
	// A single keyword hit is not enough to call it a schema.
	header := []any{"date", "spend", "unrelated"}
	check := CheckHeaderSchema(header, []string{"date", "sessions"})
	assert.Equal(t, SchemaNone, check.DetectedSchema)
}

func TestIsSheetEmpty(t *testing.T) {
	assert.True(t, IsSheetEmpty(nil))
	assert.True(t, IsSheetEmpty([]any{}))
	assert.True(t, IsSheetEmpty([]any{"", " ", nil}))
	assert.False(t, IsSheetEmpty([]any{"", "date"}))
}
