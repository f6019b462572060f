package models

import (
	"fmt"
	"time"
)

// Source identifies an external platform a daily metric comes from.
type Source string

const (
	SourceAds       Source = "ads"
	SourceAnalytics Source = "analytics"
	SourceCommerce  Source = "commerce"
)

// KnownSources returns all sources in the order enqueue-all uses.
func KnownSources() []Source {
	return []Source{SourceAds, SourceAnalytics, SourceCommerce}
}

func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceAds, SourceAnalytics, SourceCommerce:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown source: %q", s)
}

const (
	// ISODateFormat is the canonical calendar-date form used everywhere
	// a date crosses a component boundary.
	ISODateFormat = "2006-01-02"
	// CompactDateFormat is the numeric form some upstream APIs require.
	CompactDateFormat = "20060102"
)

// DailyMetric is the canonical per-source, per-date record. Values holds
// the source's numeric fields keyed by column name; every value is a
// finite number (absent or unparseable input coerces to zero upstream).
type DailyMetric struct {
	Source Source             `json:"source"`
	Date   string             `json:"date"`
	Values map[string]float64 `json:"values"`
}

// SyncOptions parameterizes one sync invocation. Zero values mean
// "use the adapter default": yesterday for TargetDate, the configured
// spreadsheet and sheet for the target fields.
type SyncOptions struct {
	TargetDate    time.Time `json:"target_date,omitempty"`
	SpreadsheetID string    `json:"spreadsheet_id,omitempty"`
	SheetName     string    `json:"sheet_name,omitempty"`
}

// WriteMode says whether the upsert touched an existing row or added one.
type WriteMode string

const (
	ModeInsert WriteMode = "insert"
	ModeUpdate WriteMode = "update"
)

// SyncResult is the terminal outcome of one adapter sync. Exactly one of
// Metrics or Error is meaningful, selected by Success.
type SyncResult struct {
	Success   bool         `json:"success"`
	Mode      WriteMode    `json:"mode,omitempty"`
	RowNumber int          `json:"row_number,omitempty"`
	Metrics   *DailyMetric `json:"metrics,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// FailedResult builds the failure shape adapters return instead of
// letting an error escape the sync boundary.
func FailedResult(err error) SyncResult {
	return SyncResult{Success: false, Error: err.Error()}
}

// JobState is the lifecycle position of a queued sync job.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal reports whether a state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one unit of work owned by the queue. Adapters never mutate it;
// they return a SyncResult the queue records.
type Job struct {
	ID         string      `json:"id"`
	Source     Source      `json:"source"`
	TargetDate string      `json:"target_date"`
	State      JobState    `json:"state"`
	Result     *SyncResult `json:"result,omitempty"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	StartedAt  time.Time   `json:"started_at,omitempty"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
}
