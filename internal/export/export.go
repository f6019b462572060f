package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"metricsync/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter writes synced metric rows into a local xlsx workbook, one
// sheet per source, for offline reporting.
type Exporter struct {
	path   string
	logger *zerolog.Logger
}

func New(path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{path: path, logger: logger}
}

// Export writes the given records grouped by source and returns the
// created file path. headersBySource supplies column order per source.
func (e *Exporter) Export(records []*models.DailyMetric, headersBySource map[models.Source][]string) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	bySource := make(map[models.Source][]*models.DailyMetric)
	for _, r := range records {
		bySource[r.Source] = append(bySource[r.Source], r)
	}

	f := excelize.NewFile()
	defer f.Close()

	wroteAny := false
	for _, source := range models.KnownSources() {
		rows := bySource[source]
		headers := headersBySource[source]
		if len(rows) == 0 || len(headers) == 0 {
			continue
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })

		sheetName := string(source)
		index, err := f.NewSheet(sheetName)
		if err != nil {
			return "", fmt.Errorf("error creating sheet %s: %w", sheetName, err)
		}
		if !wroteAny {
			f.SetActiveSheet(index)
			wroteAny = true
		}

		headerCells := make([]any, len(headers))
		for i, h := range headers {
			headerCells[i] = h
		}
		if err := f.SetSheetRow(sheetName, "A1", &headerCells); err != nil {
			return "", fmt.Errorf("error writing header row: %w", err)
		}

		for i, r := range rows {
			cells := make([]any, len(headers))
			for c, h := range headers {
				if h == "date" {
					cells[c] = r.Date
					continue
				}
				cells[c] = r.Values[h]
			}
			addr := fmt.Sprintf("A%d", i+2)
			if err := f.SetSheetRow(sheetName, addr, &cells); err != nil {
				return "", fmt.Errorf("error writing row %d: %w", i+2, err)
			}
		}

		_ = f.SetColWidth(sheetName, "A", "A", 14)

		style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		lastCol, _ := excelize.ColumnNumberToName(len(headers))
		_ = f.SetCellStyle(sheetName, "A1", lastCol+"1", style)
	}

	if !wroteAny {
		return "", fmt.Errorf("nothing to export")
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("metrics_%s.xlsx", time.Now().Format("2006-01-02_150405"))
	filePath := filepath.Join(e.path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("export file created")
	return filePath, nil
}
