package sheets

import (
	"fmt"
	"strings"
)

// Schema is the best-guess identity of an existing header row.
type Schema int

const (
	SchemaNone Schema = iota
	SchemaAds
	SchemaAnalytics
	SchemaCommerce
)

func (s Schema) String() string {
	switch s {
	case SchemaAds:
		return "ads"
	case SchemaAnalytics:
		return "analytics"
	case SchemaCommerce:
		return "commerce"
	}
	return "none"
}

// schemaKeywords are the fixed column sets used to recognize what kind
// of table already lives in a target. A schema counts as detected when
// at least two of its columns are present.
var schemaKeywords = []struct {
	schema  Schema
	columns []string
}{
	{SchemaAds, []string{"spend", "reach", "impressions", "clicks", "landing_page_views"}},
	{SchemaAnalytics, []string{"sessions", "users", "bounce_rate"}},
	{SchemaCommerce, []string{"total_orders", "total_revenue", "net_revenue", "repeat_customers"}},
}

const detectThreshold = 2

// HeaderSchemaCheck reports how an existing header row relates to the
// columns about to be written. MismatchWarning is non-empty only when a
// recognizable schema is present AND expected columns are missing; the
// caller treats that as "wrong target, do not overwrite".
type HeaderSchemaCheck struct {
	Valid           bool
	MissingColumns  []string
	DetectedSchema  Schema
	MismatchWarning string
}

// CheckHeaderSchema compares the observed header row against the
// expected column list. An absent or empty header row is the
// first-write case, not an error.
func CheckHeaderSchema(observed []any, expected []string) HeaderSchemaCheck {
	observedSet := make(map[string]bool)
	for _, cell := range observed {
		name := strings.ToLower(strings.TrimSpace(cellString(cell)))
		if name != "" {
			observedSet[name] = true
		}
	}

	check := HeaderSchemaCheck{}
	for _, col := range expected {
		if !observedSet[strings.ToLower(col)] {
			check.MissingColumns = append(check.MissingColumns, col)
		}
	}
	check.Valid = len(check.MissingColumns) == 0

	if len(observedSet) == 0 {
		return check
	}

	for _, kw := range schemaKeywords {
		hits := 0
		for _, col := range kw.columns {
			if observedSet[col] {
				hits++
			}
		}
		if hits >= detectThreshold {
			check.DetectedSchema = kw.schema
			break
		}
	}

	if check.DetectedSchema != SchemaNone && len(check.MissingColumns) > 0 {
		check.MismatchWarning = fmt.Sprintf(
			"target already holds a %s-style table but lacks columns %s",
			check.DetectedSchema, strings.Join(check.MissingColumns, ", "))
	}

	return check
}

// IsSheetEmpty reports whether nothing has been written to the target:
// the header row is absent, zero-length, or every cell is blank.
func IsSheetEmpty(headerRow []any) bool {
	for _, cell := range headerRow {
		if strings.TrimSpace(cellString(cell)) != "" {
			return false
		}
	}
	return true
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
