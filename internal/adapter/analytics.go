package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"metricsync/internal/config"
	"metricsync/internal/models"
)

var analyticsColumns = []string{"date", "sessions", "users", "bounce_rate"}

// AnalyticsAdapter pulls daily traffic reports from the web-analytics
// platform. Its reporting API wants the compact YYYYMMDD date form;
// both forms derive from the same pinned date, so they cannot drift
// within one sync.
type AnalyticsAdapter struct {
	base
}

func NewAnalyticsAdapter(cfg config.SourceConfig, deps Deps) *AnalyticsAdapter {
	a := &AnalyticsAdapter{base: newBase(models.SourceAnalytics, cfg, deps, analyticsColumns, "api_secret")}
	a.base.fetch = a.fetchReport
	return a
}

func (a *AnalyticsAdapter) fetchReport(ctx context.Context, date time.Time, credential []byte) (map[string]float64, error) {
	var cred struct {
		APISecret string `json:"api_secret"`
	}
	if err := json.Unmarshal(credential, &cred); err != nil {
		return nil, fmt.Errorf("parse credential: %w", err)
	}

	endpoint := fmt.Sprintf("%s/reports/daily?date=%s", a.cfg.BaseURL, date.Format(models.CompactDateFormat))

	body, err := a.getJSON(ctx, endpoint, map[string]string{
		"X-Api-Secret": cred.APISecret,
	})
	if err != nil {
		return nil, err
	}

	return map[string]float64{
		"sessions":    ToNumber(body["sessions"]),
		"users":       ToNumber(body["users"]),
		"bounce_rate": ToNumber(body["bounce_rate"]),
	}, nil
}
