package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"metricsync/internal/cache"
	"metricsync/internal/config"
	"metricsync/internal/credentials"
	"metricsync/internal/metrics"
	"metricsync/internal/models"
	"metricsync/internal/sheets"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// fetchFunc pulls one day of raw metrics from the upstream platform and
// returns them already coerced to finite numbers.
type fetchFunc func(ctx context.Context, date time.Time, credential []byte) (map[string]float64, error)

// base carries the sync pipeline shared by every adapter: credential
// check, target-date pinning, lock-wrapped fetch, schema guard, upsert.
type base struct {
	source        models.Source
	cfg           config.SourceConfig
	cacheCfg      config.CacheConfig
	spreadsheetID string
	coord         cache.Coordinator
	engine        *sheets.Engine
	dec           credentials.Decryptor
	limiter       *rate.Limiter
	client        *http.Client
	logger        zerolog.Logger
	headers       []string
	credKey       string
	fetch         fetchFunc
}

// Deps bundles the collaborators every adapter needs.
type Deps struct {
	Cache         config.CacheConfig
	SpreadsheetID string
	Coordinator   cache.Coordinator
	Engine        *sheets.Engine
	Decryptor     credentials.Decryptor
	Client        *http.Client
	Logger        *zerolog.Logger
}

func newBase(source models.Source, cfg config.SourceConfig, deps Deps, headers []string, credKey string) base {
	client := deps.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return base{
		source:        source,
		cfg:           cfg,
		cacheCfg:      deps.Cache,
		spreadsheetID: deps.SpreadsheetID,
		coord:         deps.Coordinator,
		engine:        deps.Engine,
		dec:           deps.Decryptor,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateRPS),
		client:        client,
		logger:        deps.Logger.With().Str("source", string(source)).Logger(),
		headers:       headers,
		credKey:       credKey,
	}
}

func (b *base) Source() models.Source { return b.source }

func (b *base) ColumnHeaders() []string {
	out := make([]string, len(b.headers))
	copy(out, b.headers)
	return out
}

// ValidateConfig runs before any network call: base URL present,
// credential decryptable and carrying the key this platform needs.
func (b *base) ValidateConfig(ctx context.Context) ConfigCheck {
	var errs []string
	if b.cfg.BaseURL == "" {
		errs = append(errs, "base_url is required")
	}
	if _, err := b.credential(); err != nil {
		errs = append(errs, err.Error())
	}
	return ConfigCheck{Valid: len(errs) == 0, Errors: errs}
}

func (b *base) credential() (map[string]string, error) {
	plaintext, err := b.dec.Decrypt(b.cfg.Credential, string(b.source))
	if err != nil {
		return nil, fmt.Errorf("credential unusable: %v", err)
	}
	var cred map[string]string
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return nil, fmt.Errorf("credential is not valid json: %v", err)
	}
	if cred[b.credKey] == "" {
		return nil, fmt.Errorf("credential is missing %s", b.credKey)
	}
	return cred, nil
}

// Sync runs the full pipeline. It never returns an error; every failure
// becomes a terminal SyncResult for the queue to record.
func (b *base) Sync(ctx context.Context, opts models.SyncOptions) models.SyncResult {
	if check := b.ValidateConfig(ctx); !check.Valid {
		return models.SyncResult{Success: false, Error: fmt.Sprintf("invalid configuration: %v", check.Errors)}
	}

	plaintext, err := b.dec.Decrypt(b.cfg.Credential, string(b.source))
	if err != nil {
		return models.FailedResult(fmt.Errorf("credential unusable: %w", err))
	}

	// Pin the target date once; no re-derivation mid-flight, so a sync
	// that straddles midnight still writes a single consistent day.
	date := b.resolveTargetDate(opts)
	iso := date.Format(models.ISODateFormat)

	resultKey := fmt.Sprintf("sync:%s:%s", b.source, iso)
	lockKey := resultKey + cache.LockSuffix

	result, err := cache.WithLock(ctx, b.coord, &b.logger, lockKey, b.cacheCfg.LockTTL, b.cacheCfg.LockWait,
		func(ctx context.Context) (models.SyncResult, error) {
			return b.run(ctx, opts, date, iso, resultKey, plaintext), nil
		})
	if err != nil {
		return models.FailedResult(err)
	}
	return result
}

func (b *base) run(ctx context.Context, opts models.SyncOptions, date time.Time, iso, resultKey string, credential []byte) models.SyncResult {
	if err := b.limiter.Wait(ctx); err != nil {
		return models.FailedResult(err)
	}

	values, err := b.fetch(ctx, date, credential)
	if err != nil {
		b.logger.Error().Err(err).Str("date", iso).Msg("upstream fetch failed")
		return models.FailedResult(fmt.Errorf("fetch %s metrics: %w", b.source, err))
	}

	metric := &models.DailyMetric{Source: b.source, Date: iso, Values: values}

	spreadsheetID := opts.SpreadsheetID
	if spreadsheetID == "" {
		spreadsheetID = b.spreadsheetID
	}
	sheetName := opts.SheetName
	if sheetName == "" {
		sheetName = b.cfg.SheetName
	}

	check, empty, err := b.engine.CheckTarget(ctx, spreadsheetID, sheetName, b.headers)
	if err != nil {
		return models.FailedResult(err)
	}
	if !empty && check.MismatchWarning != "" {
		// Policy: a confidently-detected foreign schema is a hard stop.
		b.logger.Warn().Str("sheet", sheetName).Str("detected", check.DetectedSchema.String()).
			Msg("refusing to write over mismatched schema")
		return models.SyncResult{Success: false, Error: check.MismatchWarning}
	}

	mode, rowNumber, err := b.engine.UpsertRow(ctx, spreadsheetID, sheetName, b.headers, metric)
	if err != nil {
		return models.FailedResult(err)
	}
	metrics.IncSheetWrite(string(b.source), string(mode))

	result := models.SyncResult{Success: true, Mode: mode, RowNumber: rowNumber, Metrics: metric}

	if err := b.coord.SetJSON(ctx, resultKey, result, b.cacheCfg.ResultTTL); err != nil {
		b.logger.Warn().Err(err).Msg("failed to cache sync result")
	}

	b.logger.Info().Str("date", iso).Str("mode", string(mode)).Int("row", rowNumber).Msg("sync complete")
	return result
}

// resolveTargetDate defaults to yesterday in the adapter's timezone.
func (b *base) resolveTargetDate(opts models.SyncOptions) time.Time {
	if !opts.TargetDate.IsZero() {
		return opts.TargetDate
	}
	loc, err := time.LoadLocation(b.cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc).AddDate(0, 0, -1)
}

// getJSON performs an authenticated GET and decodes the body into a
// generic map for per-field coercion.
func (b *base) getJSON(ctx context.Context, url string, header map[string]string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned %s", resp.Status)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body, nil
}
