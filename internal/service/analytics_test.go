package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kyle-bartlett/job-ops-sub000/internal/config"
	"github.com/kyle-bartlett/job-ops-sub000/internal/domain"
	"github.com/kyle-bartlett/job-ops-sub000/internal/fingerprint"
	"github.com/kyle-bartlett/job-ops-sub000/internal/repository"
	"github.com/kyle-bartlett/job-ops-sub000/internal/repository/memory"
)

// filterAll is the widest filter: bots included, default limit.
func filterAll() repository.TracerAnalyticsFilter {
	return repository.TracerAnalyticsFilter{IncludeBots: true}
}

func strPtr(s string) *string { return &s }

// seedClickFixture stores one job with one link carrying one human and one
// bot click on the same day.
func seedClickFixture(t *testing.T) (*memory.MemStorage, *domain.TracerLink) {
	t.Helper()
	storage := memory.New()
	storage.PutJob(&domain.Job{ID: "job-1", Title: "Backend Engineer", Employer: "Acme", TracerLinksEnabled: true})

	link := seedLink(t, storage, "job-1", "https://ada.example.com")

	human := &domain.TracerClickEvent{
		TracerLinkID:          link.ID,
		ClickedAt:             1709294400, // 2024-03-01T12:00:00Z
		DayBucket:             "2024-03-01",
		IsLikelyBot:           false,
		DeviceType:            "desktop",
		UAFamily:              "chrome",
		OSFamily:              "windows",
		UniqueFingerprintHash: strPtr(fingerprint.HashText("human-fp")),
	}
	bot := &domain.TracerClickEvent{
		TracerLinkID:          link.ID,
		ClickedAt:             1709294460,
		DayBucket:             "2024-03-01",
		IsLikelyBot:           true,
		DeviceType:            "unknown",
		UAFamily:              "bot",
		OSFamily:              "unknown",
		UniqueFingerprintHash: strPtr(fingerprint.HashText("bot-fp")),
	}
	require.NoError(t, storage.InsertTracerClickEvent(context.Background(), human))
	require.NoError(t, storage.InsertTracerClickEvent(context.Background(), bot))

	return storage, link
}

func newAnalyticsService(storage repository.Storage, envBaseURL string) *AnalyticsService {
	return NewAnalyticsService(storage, &config.Tracer{PublicBaseURL: envBaseURL}, zap.NewNop())
}

func TestResolvePublicBaseURL_Precedence(t *testing.T) {
	svc := newAnalyticsService(memory.New(), "https://fallback.example.com/")

	// Request origin wins when valid.
	assert.Equal(t, "https://app.example.com", svc.ResolvePublicBaseURL("https://app.example.com"))
	// Env fallback is normalized (trailing slash stripped).
	assert.Equal(t, "https://fallback.example.com", svc.ResolvePublicBaseURL(""))
	assert.Equal(t, "https://fallback.example.com", svc.ResolvePublicBaseURL("not a url"))
}

func TestResolvePublicBaseURL_NoUsableValue(t *testing.T) {
	svc := newAnalyticsService(memory.New(), "ftp://bad")
	assert.Equal(t, "", svc.ResolvePublicBaseURL(""))
}

func TestGetTracerAnalytics_BotExclusion(t *testing.T) {
	storage, _ := seedClickFixture(t)
	svc := newAnalyticsService(storage, "")

	excluded, err := svc.GetTracerAnalytics(context.Background(), repository.TracerAnalyticsFilter{IncludeBots: false})
	require.NoError(t, err)
	assert.Equal(t, int64(1), excluded.Totals.Clicks)
	assert.Equal(t, int64(1), excluded.Totals.UniqueOpens)
	// Bot and human counters are always reported, even when bot rows are
	// hidden from the other totals.
	assert.Equal(t, int64(1), excluded.Totals.BotClicks)
	assert.Equal(t, int64(1), excluded.Totals.HumanClicks)

	included, err := svc.GetTracerAnalytics(context.Background(), repository.TracerAnalyticsFilter{IncludeBots: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), included.Totals.Clicks)
	assert.Equal(t, int64(2), included.Totals.UniqueOpens)
	assert.Equal(t, int64(1), included.Totals.BotClicks)
	assert.Equal(t, int64(1), included.Totals.HumanClicks)
}

func TestGetTracerAnalytics_AssemblesAllSections(t *testing.T) {
	storage, link := seedClickFixture(t)
	svc := newAnalyticsService(storage, "")

	response, err := svc.GetTracerAnalytics(context.Background(), filterAll())
	require.NoError(t, err)

	// Filters are echoed with the effective limit.
	assert.True(t, response.Filters.IncludeBots)
	assert.Equal(t, repository.DefaultAnalyticsLimit, response.Filters.Limit)

	require.Len(t, response.TimeSeries, 1)
	assert.Equal(t, "2024-03-01", response.TimeSeries[0].Date)
	assert.Equal(t, int64(2), response.TimeSeries[0].Clicks)

	require.Len(t, response.TopJobs, 1)
	assert.Equal(t, "job-1", response.TopJobs[0].JobID)
	assert.Equal(t, "Backend Engineer", response.TopJobs[0].Title)
	assert.Equal(t, int64(2), response.TopJobs[0].Clicks)

	require.Len(t, response.TopLinks, 1)
	assert.Equal(t, link.Token, response.TopLinks[0].Token)
	assert.Equal(t, "https://ada.example.com", response.TopLinks[0].DestinationURL)
}

func TestGetTracerAnalytics_LimitClamped(t *testing.T) {
	storage, _ := seedClickFixture(t)
	svc := newAnalyticsService(storage, "")

	response, err := svc.GetTracerAnalytics(context.Background(), repository.TracerAnalyticsFilter{
		IncludeBots: true,
		Limit:       100000,
	})
	require.NoError(t, err)
	assert.Equal(t, repository.MaxAnalyticsLimit, response.Filters.Limit)
}

func TestGetJobTracerLinks(t *testing.T) {
	storage, link := seedClickFixture(t)
	svc := newAnalyticsService(storage, "")

	response, err := svc.GetJobTracerLinks(context.Background(), "job-1", repository.TracerAnalyticsFilter{IncludeBots: true})
	require.NoError(t, err)

	assert.Equal(t, "job-1", response.Job.ID)
	assert.Equal(t, "Backend Engineer", response.Job.Title)
	assert.Equal(t, "Acme", response.Job.Employer)
	assert.True(t, response.Job.TracerLinksEnabled)

	require.Len(t, response.Links, 1)
	assert.Equal(t, link.Token, response.Links[0].Link.Token)
	assert.Equal(t, int64(2), response.Links[0].Clicks)
	assert.Equal(t, int64(1), response.Links[0].BotClicks)

	assert.Equal(t, int64(1), response.Totals.Links)
	assert.Equal(t, int64(2), response.Totals.Clicks)
	assert.Equal(t, int64(1), response.Totals.BotClicks)
	assert.Equal(t, int64(1), response.Totals.HumanClicks)
}

func TestGetJobTracerLinks_BotExcludedDrilldown(t *testing.T) {
	storage, _ := seedClickFixture(t)
	svc := newAnalyticsService(storage, "")

	response, err := svc.GetJobTracerLinks(context.Background(), "job-1", repository.TracerAnalyticsFilter{IncludeBots: false})
	require.NoError(t, err)

	require.Len(t, response.Links, 1)
	assert.Equal(t, int64(1), response.Links[0].Clicks)
	assert.Equal(t, int64(1), response.Links[0].BotClicks)
	assert.Equal(t, int64(1), response.Links[0].HumanClicks)
	assert.Equal(t, int64(1), response.Totals.Clicks)
}

func TestGetJobTracerLinks_JobNotFound(t *testing.T) {
	svc := newAnalyticsService(memory.New(), "")

	_, err := svc.GetJobTracerLinks(context.Background(), "missing-job", filterAll())
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}
