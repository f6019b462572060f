package adapter

import (
	"context"

	"metricsync/internal/models"
)

// Adapter normalizes one external platform's data into the canonical
// DailyMetric shape and writes it through the upsert engine.
//
// Sync never returns an error: every failure, upstream or local, is
// folded into SyncResult so the job queue can always record a terminal
// outcome.
type Adapter interface {
	Source() models.Source
	Sync(ctx context.Context, opts models.SyncOptions) models.SyncResult
	ValidateConfig(ctx context.Context) ConfigCheck
	ColumnHeaders() []string
}

// ConfigCheck is the outcome of pre-flight configuration validation.
type ConfigCheck struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
