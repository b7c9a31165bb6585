package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kyle-bartlett/job-ops-sub000/internal/repository"
	"github.com/kyle-bartlett/job-ops-sub000/internal/service"
)

const maxJobIDLength = 255

// TracerAnalyticsHandler serves the dashboard-facing analytics API.
type TracerAnalyticsHandler struct {
	analytics *service.AnalyticsService
	log       *zap.Logger
}

// NewTracerAnalyticsHandler creates a new analytics handler.
func NewTracerAnalyticsHandler(analytics *service.AnalyticsService, log *zap.Logger) *TracerAnalyticsHandler {
	return &TracerAnalyticsHandler{analytics: analytics, log: log}
}

// HandleAnalytics serves GET /api/tracer-links/analytics.
func (h *TracerAnalyticsHandler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.log, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter, validationErr := parseAnalyticsFilter(r.URL.Query())
	if validationErr != "" {
		writeError(w, h.log, validationErr, http.StatusBadRequest)
		return
	}

	response, err := h.analytics.GetTracerAnalytics(r.Context(), filter)
	if err != nil {
		h.log.Error("failed to get tracer analytics", zap.Error(err))
		writeError(w, h.log, "Failed to retrieve analytics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, response, http.StatusOK)
}

// HandleJobAnalytics serves GET /api/tracer-links/jobs/{jobId}.
func (h *TracerAnalyticsHandler) HandleJobAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.log, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/tracer-links/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeError(w, h.log, "Job id is required", http.StatusBadRequest)
		return
	}
	if len(jobID) > maxJobIDLength {
		writeError(w, h.log, "Job id must be at most 255 characters", http.StatusBadRequest)
		return
	}

	filter, validationErr := parseAnalyticsFilter(r.URL.Query())
	if validationErr != "" {
		writeError(w, h.log, validationErr, http.StatusBadRequest)
		return
	}

	response, err := h.analytics.GetJobTracerLinks(r.Context(), jobID, filter)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			writeError(w, h.log, "Job not found", http.StatusNotFound)
			return
		}
		h.log.Error("failed to get job tracer links", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, h.log, "Failed to retrieve job analytics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, response, http.StatusOK)
}

// parseAnalyticsFilter validates the shared query parameter shape. It returns
// a non-empty message on validation failure; validation errors never reach
// the store.
func parseAnalyticsFilter(query url.Values) (repository.TracerAnalyticsFilter, string) {
	var filter repository.TracerAnalyticsFilter

	jobID := query.Get("jobId")
	if len(jobID) > maxJobIDLength {
		return filter, "jobId must be at most 255 characters"
	}
	filter.JobID = jobID

	if raw := query.Get("from"); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value < 0 {
			return filter, "from must be a non-negative integer"
		}
		filter.From = &value
	}
	if raw := query.Get("to"); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value < 0 {
			return filter, "to must be a non-negative integer"
		}
		filter.To = &value
	}
	if filter.From != nil && filter.To != nil && *filter.From > *filter.To {
		return filter, "from must be less than or equal to to"
	}

	filter.IncludeBots = parseBoolParam(query.Get("includeBots"))

	if raw := query.Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return filter, "limit must be an integer"
		}
		// Out-of-range limits are clamped, not rejected.
		if value < 1 {
			value = 1
		}
		filter.Limit = value
	}

	return filter, ""
}

// parseBoolParam coerces "1"/"true"/"yes" (case-insensitive) to true;
// anything else, including absence, is false.
func parseBoolParam(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
