package sheets

import (
	"context"
	"fmt"
	"strings"

	"metricsync/internal/models"

	"github.com/rs/zerolog"
)

// TabularStore is the thin surface the engine needs from a spreadsheet
// backend: read the header row, scan a column, write one row.
type TabularStore interface {
	ReadRow(ctx context.Context, spreadsheetID, a1Range string) ([]any, error)
	ReadColumn(ctx context.Context, spreadsheetID, a1Range string) ([]string, error)
	UpdateRange(ctx context.Context, spreadsheetID, a1Range string, row []any) error
	AppendRow(ctx context.Context, spreadsheetID, a1Range string, row []any) error
}

// Engine translates a canonical record into a safe write against a
// named sheet: header validation on the way in, insert-vs-update keyed
// by the date column.
type Engine struct {
	store  TabularStore
	logger *zerolog.Logger
}

func NewEngine(store TabularStore, logger *zerolog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// CheckTarget reads the target's header row and reports how it relates
// to the columns about to be written. empty is the unconditional
// "nothing written here yet" signal.
func (e *Engine) CheckTarget(ctx context.Context, spreadsheetID, sheetName string, expected []string) (check HeaderSchemaCheck, empty bool, err error) {
	header, err := e.store.ReadRow(ctx, spreadsheetID, A1(sheetName, "1:1"))
	if err != nil {
		return HeaderSchemaCheck{}, false, fmt.Errorf("read header row: %w", err)
	}
	return CheckHeaderSchema(header, expected), IsSheetEmpty(header), nil
}

// UpsertRow writes the record under the configured headers. An empty
// target gets its header row first. If a row for the record's date
// already exists in column A it is updated in place; otherwise the row
// is appended. Returns the mode and the 1-based row number written.
//
// Safe to re-run for the same source+date: the decision is re-evaluated
// from the live date column every time.
func (e *Engine) UpsertRow(ctx context.Context, spreadsheetID, sheetName string, headers []string, m *models.DailyMetric) (models.WriteMode, int, error) {
	row := buildRow(headers, m)

	header, err := e.store.ReadRow(ctx, spreadsheetID, A1(sheetName, "1:1"))
	if err != nil {
		return "", 0, fmt.Errorf("read header row: %w", err)
	}

	if IsSheetEmpty(header) {
		headerRow := make([]any, len(headers))
		for i, h := range headers {
			headerRow[i] = h
		}
		if err := e.store.UpdateRange(ctx, spreadsheetID, A1(sheetName, "A1"), headerRow); err != nil {
			return "", 0, fmt.Errorf("write header row: %w", err)
		}
		if err := e.store.UpdateRange(ctx, spreadsheetID, A1(sheetName, "A2"), row); err != nil {
			return "", 0, fmt.Errorf("write first row: %w", err)
		}
		e.logger.Info().Str("sheet", sheetName).Str("date", m.Date).Msg("initialized sheet with header and first row")
		return models.ModeInsert, 2, nil
	}

	dates, err := e.store.ReadColumn(ctx, spreadsheetID, A1(sheetName, "A:A"))
	if err != nil {
		return "", 0, fmt.Errorf("read date column: %w", err)
	}

	for i, cell := range dates {
		if i == 0 {
			continue // header
		}
		if strings.TrimSpace(cell) == m.Date {
			rowNumber := i + 1 // column values are zero-based; sheet rows are 1-based
			addr := A1(sheetName, fmt.Sprintf("A%d", rowNumber))
			if err := e.store.UpdateRange(ctx, spreadsheetID, addr, row); err != nil {
				return "", 0, fmt.Errorf("update row %d: %w", rowNumber, err)
			}
			return models.ModeUpdate, rowNumber, nil
		}
	}

	rowNumber := len(dates) + 1
	if err := e.store.AppendRow(ctx, spreadsheetID, A1(sheetName, "A:A"), row); err != nil {
		return "", 0, fmt.Errorf("append row: %w", err)
	}
	return models.ModeInsert, rowNumber, nil
}

// buildRow lays the record out in configured column order. Columns the
// record does not carry are written as zero.
func buildRow(headers []string, m *models.DailyMetric) []any {
	row := make([]any, len(headers))
	for i, h := range headers {
		if strings.EqualFold(h, "date") {
			row[i] = m.Date
			continue
		}
		row[i] = m.Values[h]
	}
	return row
}
