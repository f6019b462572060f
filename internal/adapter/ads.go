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

var adsColumns = []string{"date", "spend", "reach", "impressions", "clicks", "landing_page_views"}

// AdsAdapter pulls daily campaign insights from the ads platform. The
// insights API takes ISO dates and a bearer token.
type AdsAdapter struct {
	base
}

func NewAdsAdapter(cfg config.SourceConfig, deps Deps) *AdsAdapter {
	a := &AdsAdapter{base: newBase(models.SourceAds, cfg, deps, adsColumns, "access_token")}
	a.base.fetch = a.fetchInsights
	return a
}

func (a *AdsAdapter) fetchInsights(ctx context.Context, date time.Time, credential []byte) (map[string]float64, error) {
	var cred struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(credential, &cred); err != nil {
		return nil, fmt.Errorf("parse credential: %w", err)
	}

	day := date.Format(models.ISODateFormat)
	endpoint := fmt.Sprintf("%s/insights/daily?date=%s", a.cfg.BaseURL, url.QueryEscape(day))

	body, err := a.getJSON(ctx, endpoint, map[string]string{
		"Authorization": "Bearer " + cred.AccessToken,
	})
	if err != nil {
		return nil, err
	}

	return map[string]float64{
		"spend":              ToNumber(body["spend"]),
		"reach":              ToNumber(body["reach"]),
		"impressions":        ToNumber(body["impressions"]),
		"clicks":             ToNumber(body["clicks"]),
		"landing_page_views": ToNumber(body["landing_page_views"]),
	}, nil
}
