package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kyle-bartlett/job-ops-sub000/internal/config"
	"github.com/kyle-bartlett/job-ops-sub000/internal/repository"
)

// AnalyticsService assembles the store's aggregate queries into the response
// shapes consumed by the dashboard, and owns public base URL resolution for
// link generation.
type AnalyticsService struct {
	storage repository.Storage
	// envBaseURL is the already-normalized configured fallback ("" when the
	// configured value was missing or invalid).
	envBaseURL string
	log        *zap.Logger
}

// NewAnalyticsService creates a new analytics service. The configured base
// URL is normalized once here instead of being re-read from the environment
// deeper in the stack.
func NewAnalyticsService(storage repository.Storage, cfg *config.Tracer, log *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		storage:    storage,
		envBaseURL: normalizeBaseURL(cfg.PublicBaseURL),
		log:        log,
	}
}

// EffectiveFilters echoes the filters an aggregate response was computed
// with, so the dashboard can tell "no data in range" from "request malformed".
type EffectiveFilters struct {
	JobID       string `json:"jobId,omitempty"`
	From        *int64 `json:"from,omitempty"`
	To          *int64 `json:"to,omitempty"`
	IncludeBots bool   `json:"includeBots"`
	Limit       int    `json:"limit"`
}

// TracerAnalyticsResponse is the dashboard-wide analytics payload.
type TracerAnalyticsResponse struct {
	Filters    EffectiveFilters                   `json:"filters"`
	Totals     repository.TracerAnalyticsTotals   `json:"totals"`
	TimeSeries []repository.TracerTimeSeriesPoint `json:"timeSeries"`
	TopJobs    []repository.TracerTopJobRow       `json:"topJobs"`
	TopLinks   []repository.TracerTopLinkRow      `json:"topLinks"`
}

// JobSummary is the job header of the per-job drilldown.
type JobSummary struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Employer           string `json:"employer"`
	TracerLinksEnabled bool   `json:"tracerLinksEnabled"`
}

// JobTracerTotals are per-job sums over the per-link stats. UniqueOpens is the
// sum of per-link unique-open counts, so a visitor who clicked two different
// links of the same job counts twice.
type JobTracerTotals struct {
	Links       int64 `json:"links"`
	Clicks      int64 `json:"clicks"`
	UniqueOpens int64 `json:"uniqueOpens"`
	BotClicks   int64 `json:"botClicks"`
	HumanClicks int64 `json:"humanClicks"`
}

// JobTracerLinksResponse is the per-job drilldown payload.
type JobTracerLinksResponse struct {
	Job    JobSummary                   `json:"job"`
	Totals JobTracerTotals              `json:"totals"`
	Links  []repository.TracerLinkStats `json:"links"`
}

// ResolvePublicBaseURL prefers the request-derived origin over the configured
// fallback. Both are validated as absolute http(s) URLs with the trailing
// slash stripped; "" means no usable base URL and generation must fail.
func (s *AnalyticsService) ResolvePublicBaseURL(requestOrigin string) string {
	if normalized := normalizeBaseURL(requestOrigin); normalized != "" {
		return normalized
	}
	return s.envBaseURL
}

// GetTracerAnalytics runs the four aggregate queries concurrently with one
// shared normalized filter and assembles them with an echo of the effective
// filters.
func (s *AnalyticsService) GetTracerAnalytics(ctx context.Context, filter repository.TracerAnalyticsFilter) (*TracerAnalyticsResponse, error) {
	filter.Limit = filter.ClampedLimit()

	var (
		wg         sync.WaitGroup
		totals     *repository.TracerAnalyticsTotals
		timeSeries []repository.TracerTimeSeriesPoint
		topJobs    []repository.TracerTopJobRow
		topLinks   []repository.TracerTopLinkRow

		totalsErr, seriesErr, jobsErr, linksErr error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		totals, totalsErr = s.storage.GetTracerAnalyticsTotals(ctx, filter)
	}()
	go func() {
		defer wg.Done()
		timeSeries, seriesErr = s.storage.GetTracerAnalyticsTimeSeries(ctx, filter)
	}()
	go func() {
		defer wg.Done()
		topJobs, jobsErr = s.storage.GetTracerAnalyticsTopJobs(ctx, filter)
	}()
	go func() {
		defer wg.Done()
		topLinks, linksErr = s.storage.GetTracerAnalyticsTopLinks(ctx, filter)
	}()
	wg.Wait()

	for _, err := range []error{totalsErr, seriesErr, jobsErr, linksErr} {
		if err != nil {
			return nil, fmt.Errorf("failed to query tracer analytics: %w", err)
		}
	}

	return &TracerAnalyticsResponse{
		Filters: EffectiveFilters{
			JobID:       filter.JobID,
			From:        filter.From,
			To:          filter.To,
			IncludeBots: filter.IncludeBots,
			Limit:       filter.Limit,
		},
		Totals:     *totals,
		TimeSeries: timeSeries,
		TopJobs:    topJobs,
		TopLinks:   topLinks,
	}, nil
}

// GetJobTracerLinks fetches one job's tracer links with their stats and
// reduces them into job-level totals. Returns repository.ErrJobNotFound when
// the job does not exist.
func (s *AnalyticsService) GetJobTracerLinks(ctx context.Context, jobID string, filter repository.TracerAnalyticsFilter) (*JobTracerLinksResponse, error) {
	job, err := s.storage.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	filter.JobID = jobID
	links, err := s.storage.ListTracerLinkStatsByJob(ctx, jobID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracer link stats: %w", err)
	}

	totals := JobTracerTotals{Links: int64(len(links))}
	for _, link := range links {
		totals.Clicks += link.Clicks
		totals.UniqueOpens += link.UniqueOpens
		totals.BotClicks += link.BotClicks
		totals.HumanClicks += link.HumanClicks
	}

	if links == nil {
		links = []repository.TracerLinkStats{}
	}

	return &JobTracerLinksResponse{
		Job: JobSummary{
			ID:                 job.ID,
			Title:              job.Title,
			Employer:           job.Employer,
			TracerLinksEnabled: job.TracerLinksEnabled,
		},
		Totals: totals,
		Links:  links,
	}, nil
}
