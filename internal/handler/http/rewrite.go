package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kyle-bartlett/job-ops-sub000/internal/repository"
	"github.com/kyle-bartlett/job-ops-sub000/internal/service"
)

// RewriteHandler exposes the link-rewriting engine to the resume/tailoring
// side, which calls it at PDF generation time with the tailored document.
type RewriteHandler struct {
	tracer    *service.TracerService
	analytics *service.AnalyticsService
	storage   repository.Storage
	log       *zap.Logger
}

// NewRewriteHandler creates a new rewrite handler.
func NewRewriteHandler(tracer *service.TracerService, analytics *service.AnalyticsService, storage repository.Storage, log *zap.Logger) *RewriteHandler {
	return &RewriteHandler{tracer: tracer, analytics: analytics, storage: storage, log: log}
}

// RewriteRequestBody is the POST /api/tracer-links/rewrite payload.
type RewriteRequestBody struct {
	JobID       string                 `json:"jobId"`
	CompanyName string                 `json:"companyName,omitempty"`
	ResumeData  map[string]interface{} `json:"resumeData"`
}

// RewriteResponseBody returns the mutated document alongside the rewrite
// count. TracerLinksEnabled is false when the job has tracing switched off,
// in which case the document is returned untouched.
type RewriteResponseBody struct {
	RewrittenLinks     int                    `json:"rewrittenLinks"`
	TracerLinksEnabled bool                   `json:"tracerLinksEnabled"`
	ResumeData         map[string]interface{} `json:"resumeData"`
}

// HandleRewrite serves POST /api/tracer-links/rewrite.
func (h *RewriteHandler) HandleRewrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.log, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body RewriteRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.log, "Invalid request format", http.StatusBadRequest)
		return
	}
	if body.JobID == "" || len(body.JobID) > maxJobIDLength {
		writeError(w, h.log, "jobId is required and must be at most 255 characters", http.StatusBadRequest)
		return
	}
	if body.ResumeData == nil {
		writeError(w, h.log, "resumeData is required", http.StatusBadRequest)
		return
	}

	job, err := h.storage.GetJobByID(r.Context(), body.JobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			writeError(w, h.log, "Job not found", http.StatusNotFound)
			return
		}
		h.log.Error("failed to look up job for rewrite", zap.String("job_id", body.JobID), zap.Error(err))
		writeError(w, h.log, "Internal server error", http.StatusInternalServerError)
		return
	}

	if !job.TracerLinksEnabled {
		writeJSON(w, h.log, RewriteResponseBody{
			RewrittenLinks:     0,
			TracerLinksEnabled: false,
			ResumeData:         body.ResumeData,
		}, http.StatusOK)
		return
	}

	baseURL := h.analytics.ResolvePublicBaseURL(requestOrigin(r))
	if baseURL == "" {
		h.log.Error("no public base URL available for link generation")
		writeError(w, h.log, "Public base URL is not configured", http.StatusInternalServerError)
		return
	}

	result, err := h.tracer.RewriteResumeLinks(r.Context(), service.RewriteRequest{
		JobID:         body.JobID,
		ResumeData:    body.ResumeData,
		PublicBaseURL: baseURL,
		CompanyName:   body.CompanyName,
	})
	if err != nil {
		h.log.Error("failed to rewrite resume links", zap.String("job_id", body.JobID), zap.Error(err))
		writeError(w, h.log, "Failed to rewrite resume links", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, RewriteResponseBody{
		RewrittenLinks:     result.RewrittenLinks,
		TracerLinksEnabled: true,
		ResumeData:         body.ResumeData,
	}, http.StatusOK)
}

// requestOrigin derives the caller-facing origin, honoring the Origin header
// and proxy scheme hints.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	if r.Host == "" {
		return ""
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + r.Host
}
