package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abverdict/abverdict/internal/period"
	"github.com/abverdict/abverdict/internal/stats"
	"github.com/abverdict/abverdict/internal/store"
)

const maxBodyBytes = 1 << 20

type HealthResponse struct {
	Status           string `json:"status"`
	ExperimentsCount int    `json:"experiments_count"`
	DBSizeBytes      int64  `json:"db_size_bytes,omitempty"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := s.store.CountExperiments(ctx)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	// Get database size when the store is SQLite-backed
	var dbSize int64
	if sized, ok := s.store.(interface{ DB() *sql.DB }); ok {
		row := sized.DB().QueryRowContext(ctx, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
		if err := row.Scan(&dbSize); err != nil {
			dbSize = 0
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:           "ok",
		ExperimentsCount: count,
		DBSizeBytes:      dbSize,
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
	})
}

// AnalyzeRequest carries counts in one of three shapes: control plus
// variants, the older control plus single variant, or a report table with
// the names of its trials and successes metrics.
type AnalyzeRequest struct {
	Control  *stats.Arm  `json:"control,omitempty"`
	Variants []stats.Arm `json:"variants,omitempty"`
	Variant  *stats.Arm  `json:"variant,omitempty"`

	Table           *stats.Table `json:"table,omitempty"`
	TrialsMetric    string       `json:"trials_metric,omitempty"`
	SuccessesMetric string       `json:"successes_metric,omitempty"`

	ConfidenceThreshold float64  `json:"confidence_threshold,omitempty"`
	DurationDays        float64  `json:"duration_days,omitempty"`
	DateRange           string   `json:"date_range,omitempty"`
	DailyTraffic        *float64 `json:"daily_traffic,omitempty"`
}

func (req AnalyzeRequest) arms() (stats.Arm, []stats.Arm, error) {
	switch {
	case req.Table != nil:
		if req.TrialsMetric == "" || req.SuccessesMetric == "" {
			return stats.Arm{}, nil, &stats.ValidationError{Reason: "trials_metric and successes_metric are required with a table"}
		}
		return stats.ResolveSegments(*req.Table, req.TrialsMetric, req.SuccessesMetric)
	case req.Control == nil:
		return stats.Arm{}, nil, &stats.ValidationError{Reason: "missing control or variant group"}
	case len(req.Variants) == 0 && req.Variant != nil:
		control, variants := stats.LegacyReport{Control: *req.Control, Variant: *req.Variant}.Normalize()
		return control, variants, nil
	}
	return *req.Control, req.Variants, nil
}

func (req AnalyzeRequest) durationDays() (float64, error) {
	if req.DurationDays > 0 || req.DateRange == "" {
		return req.DurationDays, nil
	}
	rng, err := period.ParseDateRange(req.DateRange, time.Now().UTC().Year())
	if err != nil {
		return 0, err
	}
	return float64(rng.Days()), nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	control, variants, err := req.arms()
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	days, err := req.durationDays()
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	runner := s.runner
	if req.DailyTraffic != nil {
		runner = runner.WithDailyTraffic(*req.DailyTraffic)
	}

	res, err := runner.Analyze(r.Context(), control, variants, req.ConfidenceThreshold, days)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	experiments, err := s.store.ListExperiments(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiments": experiments})
}

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	periods, err := s.store.ListPeriods(r.Context(), name)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiment": name, "periods": periods})
}

func (s *Server) handleAddPeriod(w http.ResponseWriter, r *http.Request) {
	var p period.Period
	if err := decodeJSON(r, &p); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	stored, err := s.runner.Periods().AddPeriod(r.Context(), chi.URLParam(r, "name"), p)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleRemovePeriod(w http.ResponseWriter, r *http.Request) {
	err := s.store.RemovePeriod(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type consolidateRequest struct {
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	var req consolidateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.writeDomainError(w, r, err)
		return
	}

	res, err := s.runner.Consolidate(r.Context(), chi.URLParam(r, "name"), req.ConfidenceThreshold)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	res, err := s.runner.Results(r.Context(), chi.URLParam(r, "name"), 0)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeJSON decodes the request body into v. An empty body yields io.EOF
// unwrapped so callers with optional bodies can ignore it.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return &stats.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps validation errors to 400 and missing records to 404.
// Anything else is logged and reported as a 500 without details.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "request body is required")
	case stats.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", requestIDFromContext(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
