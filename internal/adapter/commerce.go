package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"metricsync/internal/config"
	"metricsync/internal/models"
)

var commerceColumns = []string{"date", "total_orders", "total_revenue", "net_revenue", "repeat_customers"}

// CommerceAdapter pulls daily order and revenue totals from the
// commerce platform's admin API.
type CommerceAdapter struct {
	base
}

func NewCommerceAdapter(cfg config.SourceConfig, deps Deps) *CommerceAdapter {
	a := &CommerceAdapter{base: newBase(models.SourceCommerce, cfg, deps, commerceColumns, "api_key")}
	a.base.fetch = a.fetchDailyTotals
	return a
}

func (a *CommerceAdapter) fetchDailyTotals(ctx context.Context, date time.Time, credential []byte) (map[string]float64, error) {
	var cred struct {
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(credential, &cred); err != nil {
		return nil, fmt.Errorf("parse credential: %w", err)
	}

	day := date.Format(models.ISODateFormat)
	endpoint := fmt.Sprintf("%s/admin/metrics/daily?date=%s", a.cfg.BaseURL, url.QueryEscape(day))

	body, err := a.getJSON(ctx, endpoint, map[string]string{
		"X-Api-Key": cred.APIKey,
	})
	if err != nil {
		return nil, err
	}

	return map[string]float64{
		"total_orders":     ToNumber(body["total_orders"]),
		"total_revenue":    ToNumber(body["total_revenue"]),
		"net_revenue":      ToNumber(body["net_revenue"]),
		"repeat_customers": ToNumber(body["repeat_customers"]),
	}, nil
}
