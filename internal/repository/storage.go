package repository

import (
	"context"
	"errors"

	"github.com/kyle-bartlett/job-ops-sub000/internal/domain"
)

var (
	// ErrTokenNotFound is returned for unknown or deactivated redirect tokens.
	// Callers must not be able to distinguish the two cases.
	ErrTokenNotFound = errors.New("tracer token not found")
	// ErrJobNotFound is returned when the referenced job does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrCreateConflict is returned when tracer link creation still conflicts
	// after the bounded retries are exhausted.
	ErrCreateConflict = errors.New("tracer link creation conflict not resolved")
)

// Limits applied to the top-N aggregate queries.
const (
	DefaultAnalyticsLimit = 20
	MaxAnalyticsLimit     = 500
)

// CreateTracerLinkParams identifies one outbound link discovered in a resume
// document. The (JobID, SourcePath, DestinationURLHash) triple is the
// idempotency key.
type CreateTracerLinkParams struct {
	JobID              string
	SourcePath         string
	SourceLabel        string
	DestinationURL     string
	DestinationURLHash string
	// SlugPrefix is a human-readable hint embedded in generated tokens,
	// not a uniqueness guarantee.
	SlugPrefix string
}

// TracerAnalyticsFilter is the common filter shape for all aggregate queries.
// From/To bound clicked_at inclusively (unix seconds). When IncludeBots is
// false, bot click rows are excluded from clicks/uniqueOpens but BotClicks is
// still reported over the unfiltered scope.
type TracerAnalyticsFilter struct {
	JobID       string
	From        *int64
	To          *int64
	IncludeBots bool
	Limit       int
}

// ClampedLimit returns the effective top-N limit: defaulted, floored at 1 and
// capped at MaxAnalyticsLimit. Inputs above the cap are clamped, not rejected.
func (f TracerAnalyticsFilter) ClampedLimit() int {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultAnalyticsLimit
	}
	if limit > MaxAnalyticsLimit {
		limit = MaxAnalyticsLimit
	}
	return limit
}

// TracerAnalyticsTotals are the scope-wide click counters.
type TracerAnalyticsTotals struct {
	Clicks      int64 `json:"clicks"`
	UniqueOpens int64 `json:"uniqueOpens"`
	BotClicks   int64 `json:"botClicks"`
	HumanClicks int64 `json:"humanClicks"`
}

// TracerTimeSeriesPoint is one UTC day of click activity.
type TracerTimeSeriesPoint struct {
	Date        string `json:"date"`
	Clicks      int64  `json:"clicks"`
	UniqueOpens int64  `json:"uniqueOpens"`
}

// TracerTopJobRow is one job in the most-clicked-jobs list.
type TracerTopJobRow struct {
	JobID       string `json:"jobId"`
	Title       string `json:"title"`
	Employer    string `json:"employer"`
	Clicks      int64  `json:"clicks"`
	UniqueOpens int64  `json:"uniqueOpens"`
	LastClickAt int64  `json:"lastClickAt"`
}

// TracerTopLinkRow is one link in the most-clicked-links list.
type TracerTopLinkRow struct {
	TracerLinkID   string `json:"tracerLinkId"`
	Token          string `json:"token"`
	JobID          string `json:"jobId"`
	SourceLabel    string `json:"sourceLabel"`
	DestinationURL string `json:"destinationUrl"`
	Clicks         int64  `json:"clicks"`
	UniqueOpens    int64  `json:"uniqueOpens"`
	LastClickAt    int64  `json:"lastClickAt"`
}

// TracerLinkStats is one tracer link with its click counters, used by the
// per-job drilldown. Links without any clicks in scope are still listed.
type TracerLinkStats struct {
	Link        domain.TracerLink `json:"link"`
	Clicks      int64             `json:"clicks"`
	UniqueOpens int64             `json:"uniqueOpens"`
	BotClicks   int64             `json:"botClicks"`
	HumanClicks int64             `json:"humanClicks"`
	LastClickAt *int64            `json:"lastClickAt,omitempty"`
}

// Storage is the persistence surface for tracer links and click events.
type Storage interface {
	// GetOrCreateTracerLink returns the existing link for the params' triple
	// or creates one with a fresh token. Concurrent creators race on the
	// unique index; the loser re-queries and both observe the same row.
	GetOrCreateTracerLink(ctx context.Context, params CreateTracerLinkParams) (*domain.TracerLink, error)

	// FindActiveTracerLinkByToken returns ErrTokenNotFound for missing or
	// deactivated tokens.
	FindActiveTracerLinkByToken(ctx context.Context, token string) (*domain.TracerLink, error)

	// InsertTracerClickEvent appends one click event. No dedup, no rate
	// limiting: every resolved redirect produces exactly one row.
	InsertTracerClickEvent(ctx context.Context, event *domain.TracerClickEvent) error

	// Aggregate queries.
	GetTracerAnalyticsTotals(ctx context.Context, filter TracerAnalyticsFilter) (*TracerAnalyticsTotals, error)
	GetTracerAnalyticsTimeSeries(ctx context.Context, filter TracerAnalyticsFilter) ([]TracerTimeSeriesPoint, error)
	GetTracerAnalyticsTopJobs(ctx context.Context, filter TracerAnalyticsFilter) ([]TracerTopJobRow, error)
	GetTracerAnalyticsTopLinks(ctx context.Context, filter TracerAnalyticsFilter) ([]TracerTopLinkRow, error)
	ListTracerLinkStatsByJob(ctx context.Context, jobID string, filter TracerAnalyticsFilter) ([]TracerLinkStats, error)

	// Jobs collaborator surface.
	GetJobByID(ctx context.Context, id string) (*domain.Job, error)

	// Ping reports storage health for readiness checks.
	Ping(ctx context.Context) error
}
