package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	collectionapp "meter-collector/internal/collection/application"
	collection "meter-collector/internal/collection/domain"
)

// PathPrefix is where the handler is mounted.
const PathPrefix = "/api/v1/collection/"

const maxIntervalMinutes = 24 * 60

// Controller is the engine surface exposed over HTTP.
type Controller interface {
	Start(ctx context.Context, cfg collection.ScheduleConfig) error
	Stop(ctx context.Context) error
	RunOnce(ctx context.Context) (*collectionapp.PassReport, error)
	Status() collection.EngineState
	IsWithinSchedule() *bool
}

// Handler provides collection control endpoints.
type Handler struct {
	engine Controller
}

// NewHandler constructs a handler.
func NewHandler(engine Controller) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("collection handler: nil engine")
	}
	return &Handler{engine: engine}, nil
}

// ServeHTTP handles /api/v1/collection/{start,stop,run-now,status}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, PathPrefix), "/")
	switch action {
	case "start":
		h.requireMethod(w, r, http.MethodPost, h.handleStart)
	case "stop":
		h.requireMethod(w, r, http.MethodPost, h.handleStop)
	case "run-now":
		h.requireMethod(w, r, http.MethodPost, h.handleRunNow)
	case "status":
		h.requireMethod(w, r, http.MethodGet, h.handleStatus)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) requireMethod(w http.ResponseWriter, r *http.Request, method string, next http.HandlerFunc) {
	if r.Method != method {
		w.Header().Set("Allow", method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	next(w, r)
}

type scheduleRequest struct {
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	IntervalMinutes *int   `json:"interval_minutes"`
	IntervalSeconds *int   `json:"interval_seconds"`
}

func (req scheduleRequest) config() (collection.ScheduleConfig, error) {
	var seconds int
	switch {
	case req.IntervalSeconds != nil:
		seconds = *req.IntervalSeconds
	case req.IntervalMinutes != nil:
		if *req.IntervalMinutes < 1 || *req.IntervalMinutes > maxIntervalMinutes {
			return collection.ScheduleConfig{}, errors.New("interval_minutes must be between 1 and 1440")
		}
		seconds = *req.IntervalMinutes * 60
	default:
		return collection.ScheduleConfig{}, errors.New("interval_minutes or interval_seconds required")
	}
	return collection.NewScheduleConfig(req.StartTime, req.EndTime, seconds)
}

type lifecycleResponse struct {
	Message   string `json:"message"`
	IsRunning bool   `json:"is_running"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req scheduleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	cfg, err := req.config()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.engine.Start(r.Context(), cfg); err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lifecycleResponse{Message: "Collection started", IsRunning: true})
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Stop(r.Context()); err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lifecycleResponse{Message: "Collection stopped", IsRunning: false})
}

type failureResponse struct {
	MeterID      int64  `json:"meter_id"`
	SerialNumber string `json:"serial_number"`
	Error        string `json:"error"`
}

type runNowResponse struct {
	Message   string            `json:"message"`
	RunID     string            `json:"run_id"`
	Timestamp time.Time         `json:"timestamp"`
	Meters    int               `json:"meters"`
	Failed    int               `json:"failed"`
	Failures  []failureResponse `json:"failures"`
}

func (h *Handler) handleRunNow(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.RunOnce(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := runNowResponse{
		Message:   "Data collection completed",
		RunID:     report.RunID,
		Timestamp: report.FinishedAt,
		Meters:    len(report.Outcomes),
		Failures:  []failureResponse{},
	}
	for _, outcome := range report.Failures() {
		resp.Failures = append(resp.Failures, failureResponse{
			MeterID:      outcome.MeterID,
			SerialNumber: outcome.SerialNumber,
			Error:        outcome.Err.Error(),
		})
	}
	resp.Failed = len(resp.Failures)
	writeJSON(w, http.StatusOK, resp)
}

type scheduleResponse struct {
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	IntervalSeconds int    `json:"interval_seconds"`
	IntervalMinutes int    `json:"interval_minutes"`
}

type statusResponse struct {
	IsRunning        bool              `json:"is_running"`
	Schedule         *scheduleResponse `json:"schedule"`
	LastRun          *time.Time        `json:"last_run"`
	NextRun          *time.Time        `json:"next_run"`
	IsWithinSchedule *bool             `json:"is_within_schedule"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	state := h.engine.Status()
	resp := statusResponse{
		IsRunning:        state.IsRunning,
		LastRun:          state.LastRunAt,
		NextRun:          state.NextRunAt,
		IsWithinSchedule: h.engine.IsWithinSchedule(),
	}
	if cfg := state.ActiveSchedule; cfg != nil {
		resp.Schedule = &scheduleResponse{
			StartTime:       cfg.StartTime.String(),
			EndTime:         cfg.EndTime.String(),
			IntervalSeconds: cfg.IntervalSeconds,
			IntervalMinutes: cfg.IntervalSeconds / 60,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, collection.ErrStateConflict), errors.Is(err, collection.ErrConfigInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
