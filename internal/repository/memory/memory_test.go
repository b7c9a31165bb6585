package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyle-bartlett/job-ops-sub000/internal/domain"
	"github.com/kyle-bartlett/job-ops-sub000/internal/fingerprint"
	"github.com/kyle-bartlett/job-ops-sub000/internal/repository"
)

func linkParams(jobID, sourcePath, destination string) repository.CreateTracerLinkParams {
	return repository.CreateTracerLinkParams{
		JobID:              jobID,
		SourcePath:         sourcePath,
		SourceLabel:        sourcePath,
		DestinationURL:     destination,
		DestinationURLHash: fingerprint.HashText(destination),
		SlugPrefix:         "ada-acme",
	}
}

func TestGetOrCreateTracerLink_ConcurrentSameTriple(t *testing.T) {
	storage := New()
	params := linkParams("job-1", "basics.url.href", "https://ada.example.com")

	const goroutines = 32
	results := make([]*domain.TracerLink, goroutines)
	errs := make([]error, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = storage.GetOrCreateTracerLink(context.Background(), params)
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		// Every caller observes the same row.
		assert.Equal(t, results[0].ID, results[i].ID)
		assert.Equal(t, results[0].Token, results[i].Token)
	}

	assert.Len(t, storage.linksByID, 1)
}

func TestGetOrCreateTracerLink_ConcurrentDistinctTriples(t *testing.T) {
	storage := New()

	paramSets := []repository.CreateTracerLinkParams{
		linkParams("job-1", "basics.url.href", "https://ada.example.com"),
		linkParams("job-1", "sections.profiles.items[0].url.href", "https://github.com/ada"),
		linkParams("job-2", "basics.url.href", "https://ada.example.com"),
	}

	var wg sync.WaitGroup
	for _, params := range paramSets {
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(p repository.CreateTracerLinkParams) {
				defer wg.Done()
				_, err := storage.GetOrCreateTracerLink(context.Background(), p)
				assert.NoError(t, err)
			}(params)
		}
	}
	wg.Wait()

	assert.Len(t, storage.linksByID, len(paramSets))
}

func TestConcurrentClickInserts(t *testing.T) {
	storage := New()
	link, err := storage.GetOrCreateTracerLink(context.Background(),
		linkParams("job-1", "basics.url.href", "https://ada.example.com"))
	require.NoError(t, err)

	const clicks = 50
	var wg sync.WaitGroup
	wg.Add(clicks)
	for i := 0; i < clicks; i++ {
		go func(i int) {
			defer wg.Done()
			err := storage.InsertTracerClickEvent(context.Background(), &domain.TracerClickEvent{
				TracerLinkID: link.ID,
				ClickedAt:    int64(1709294400 + i),
				DayBucket:    "2024-03-01",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	events := storage.ClickEvents()
	require.Len(t, events, clicks)
	for _, event := range events {
		assert.NotEmpty(t, event.ID)
	}

	totals, err := storage.GetTracerAnalyticsTotals(context.Background(), repository.TracerAnalyticsFilter{IncludeBots: true})
	require.NoError(t, err)
	assert.Equal(t, int64(clicks), totals.Clicks)
}

func TestListTracerLinkStatsByJob_TieBreakByRecency(t *testing.T) {
	storage := New()

	older, err := storage.GetOrCreateTracerLink(context.Background(),
		linkParams("job-1", "basics.url.href", "https://ada.example.com"))
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	newer, err := storage.GetOrCreateTracerLink(context.Background(),
		linkParams("job-1", "sections.profiles.items[0].url.href", "https://github.com/ada"))
	require.NoError(t, err)

	// Both links have zero clicks; the newer record sorts first, matching the
	// database ordering.
	stats, err := storage.ListTracerLinkStatsByJob(context.Background(), "job-1",
		repository.TracerAnalyticsFilter{IncludeBots: true})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, newer.ID, stats[0].Link.ID)
	assert.Equal(t, older.ID, stats[1].Link.ID)
}

func TestFindActiveTracerLinkByToken_Lifecycle(t *testing.T) {
	storage := New()
	link, err := storage.GetOrCreateTracerLink(context.Background(),
		linkParams("job-1", "basics.url.href", "https://ada.example.com"))
	require.NoError(t, err)

	found, err := storage.FindActiveTracerLinkByToken(context.Background(), link.Token)
	require.NoError(t, err)
	assert.Equal(t, link.ID, found.ID)

	storage.DeactivateTracerLink(link.Token)

	_, err = storage.FindActiveTracerLinkByToken(context.Background(), link.Token)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
}
