package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"metricsync/internal/config"
	"metricsync/internal/export"
	"metricsync/internal/metrics"
	"metricsync/internal/models"
	"metricsync/internal/queue"
	"metricsync/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HTTPServer is the boundary surface: trigger syncs, inspect jobs and
// the scheduler, export snapshots. Auth middleware lives outside this
// module and wraps the handler at deployment time.
type HTTPServer struct {
	cfg       config.APIConfig
	queue     *queue.Queue
	scheduler *scheduler.Scheduler
	exporter  *export.Exporter
	headers   map[models.Source][]string
	logger    *zerolog.Logger
	server    *http.Server
}

func NewHTTPServer(
	cfg config.APIConfig,
	q *queue.Queue,
	sched *scheduler.Scheduler,
	exporter *export.Exporter,
	headers map[models.Source][]string,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, queue: q, scheduler: sched, exporter: exporter, headers: headers, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sync", srv.handleSync)
	mux.HandleFunc("/api/v1/jobs/", srv.handleJobStatus)
	mux.HandleFunc("/api/v1/scheduler", srv.handleScheduler)
	mux.HandleFunc("/api/v1/export", srv.handleExport)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		metrics.IncHTTP(r.URL.Path)
		s.logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("duration", time.Since(start)).Msg("http request")
	})
}

func (s *HTTPServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		Source        string `json:"source,omitempty"`
		Date          string `json:"date,omitempty"`
		SpreadsheetID string `json:"spreadsheet_id,omitempty"`
		SheetName     string `json:"sheet_name,omitempty"`
	}
	var body request
	if r.Body != nil && r.ContentLength != 0 {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	opts := models.SyncOptions{SpreadsheetID: body.SpreadsheetID, SheetName: body.SheetName}
	if body.Date != "" {
		date, err := time.Parse(models.ISODateFormat, body.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		opts.TargetDate = date
	}

	if body.Source == "" {
		jobs := s.queue.EnqueueAll(opts)
		writeJSON(w, http.StatusAccepted, map[string]any{"jobs": jobs})
		return
	}

	source, err := models.ParseSource(body.Source)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.queue.Enqueue(source, opts)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job": job})
}

func (s *HTTPServer) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const prefix = "/api/v1/jobs/"
	jobID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, prefix))
	if jobID == "" || strings.Contains(jobID, "/") {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := s.queue.Status(jobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *HTTPServer) handleScheduler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if s.scheduler == nil {
			writeJSON(w, http.StatusOK, map[string]any{"active": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"active":   s.scheduler.IsActive(),
			"next_run": s.scheduler.NextRun().Format(time.RFC3339),
		})
	case http.MethodPost:
		// Manual trigger of a full cycle.
		if s.scheduler == nil {
			writeError(w, http.StatusServiceUnavailable, "scheduler is not configured")
			return
		}
		jobs := s.scheduler.TriggerNow()
		writeJSON(w, http.StatusAccepted, map[string]any{"jobs": jobs})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "exports are not configured")
		return
	}

	var records []*models.DailyMetric
	for _, job := range s.queue.Snapshot() {
		if job.State == models.JobCompleted && job.Result != nil && job.Result.Metrics != nil {
			records = append(records, job.Result.Metrics)
		}
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "no completed syncs to export")
		return
	}

	path, err := s.exporter.Export(records, s.headers)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file": path})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
