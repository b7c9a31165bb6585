// Package memory provides an in-memory Storage implementation mirroring the
// database semantics. It backs service and handler tests and local runs
// without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kyle-bartlett/job-ops-sub000/internal/domain"
	"github.com/kyle-bartlett/job-ops-sub000/internal/repository"
	"github.com/kyle-bartlett/job-ops-sub000/pkg/random"
)

type MemStorage struct {
	mu          sync.RWMutex
	linksByID   map[string]*domain.TracerLink
	tokenLength int
	events      []*domain.TracerClickEvent
	jobs        map[string]*domain.Job
}

func New() *MemStorage {
	return &MemStorage{
		linksByID:   make(map[string]*domain.TracerLink),
		tokenLength: 16,
		jobs:        make(map[string]*domain.Job),
	}
}

// PutJob registers a job so GetJobByID and link creation can see it.
func (s *MemStorage) PutJob(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// --- Tracer Link Methods ---

func (s *MemStorage) GetOrCreateTracerLink(_ context.Context, params repository.CreateTracerLinkParams) (*domain.TracerLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, link := range s.linksByID {
		if link.JobID == params.JobID &&
			link.SourcePath == params.SourcePath &&
			link.DestinationURLHash == params.DestinationURLHash {
			copied := *link
			return &copied, nil
		}
	}

	suffix, err := random.NewRandomString(s.tokenLength)
	if err != nil {
		return nil, err
	}
	token := suffix
	if params.SlugPrefix != "" {
		token = params.SlugPrefix + "-" + suffix
	}

	now := time.Now()
	link := &domain.TracerLink{
		ID:                 uuid.NewString(),
		Token:              token,
		JobID:              params.JobID,
		SourcePath:         params.SourcePath,
		SourceLabel:        params.SourceLabel,
		DestinationURL:     params.DestinationURL,
		DestinationURLHash: params.DestinationURLHash,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.linksByID[link.ID] = link

	copied := *link
	return &copied, nil
}

func (s *MemStorage) FindActiveTracerLinkByToken(_ context.Context, token string) (*domain.TracerLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, link := range s.linksByID {
		if link.Token == token && link.IsActive {
			copied := *link
			return &copied, nil
		}
	}
	return nil, repository.ErrTokenNotFound
}

// DeactivateTracerLink flips is_active off; test helper for the
// inactive-token redirect path.
func (s *MemStorage) DeactivateTracerLink(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range s.linksByID {
		if link.Token == token {
			link.IsActive = false
			link.UpdatedAt = time.Now()
		}
	}
}

func (s *MemStorage) InsertTracerClickEvent(_ context.Context, event *domain.TracerClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

// ClickEvents returns a snapshot of all recorded events; test helper.
func (s *MemStorage) ClickEvents() []domain.TracerClickEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TracerClickEvent, len(s.events))
	for i, event := range s.events {
		out[i] = *event
	}
	return out
}

// --- Aggregate Queries ---

// inScope applies the job/time bounds shared by all aggregates.
func (s *MemStorage) inScope(event *domain.TracerClickEvent, filter repository.TracerAnalyticsFilter) bool {
	if filter.JobID != "" {
		link, ok := s.linksByID[event.TracerLinkID]
		if !ok || link.JobID != filter.JobID {
			return false
		}
	}
	if filter.From != nil && event.ClickedAt < *filter.From {
		return false
	}
	if filter.To != nil && event.ClickedAt > *filter.To {
		return false
	}
	return true
}

func (s *MemStorage) GetTracerAnalyticsTotals(_ context.Context, filter repository.TracerAnalyticsFilter) (*repository.TracerAnalyticsTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := &repository.TracerAnalyticsTotals{}
	fingerprints := make(map[string]struct{})
	for _, event := range s.events {
		if !s.inScope(event, filter) {
			continue
		}
		if event.IsLikelyBot {
			totals.BotClicks++
		} else {
			totals.HumanClicks++
		}
		if event.IsLikelyBot && !filter.IncludeBots {
			continue
		}
		totals.Clicks++
		if event.UniqueFingerprintHash != nil {
			fingerprints[*event.UniqueFingerprintHash] = struct{}{}
		}
	}
	totals.UniqueOpens = int64(len(fingerprints))
	return totals, nil
}

func (s *MemStorage) GetTracerAnalyticsTimeSeries(_ context.Context, filter repository.TracerAnalyticsFilter) ([]repository.TracerTimeSeriesPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type bucket struct {
		clicks       int64
		fingerprints map[string]struct{}
	}
	buckets := make(map[string]*bucket)
	for _, event := range s.events {
		if !s.inScope(event, filter) || (event.IsLikelyBot && !filter.IncludeBots) {
			continue
		}
		b, ok := buckets[event.DayBucket]
		if !ok {
			b = &bucket{fingerprints: make(map[string]struct{})}
			buckets[event.DayBucket] = b
		}
		b.clicks++
		if event.UniqueFingerprintHash != nil {
			b.fingerprints[*event.UniqueFingerprintHash] = struct{}{}
		}
	}

	points := make([]repository.TracerTimeSeriesPoint, 0, len(buckets))
	for day, b := range buckets {
		points = append(points, repository.TracerTimeSeriesPoint{
			Date:        day,
			Clicks:      b.clicks,
			UniqueOpens: int64(len(b.fingerprints)),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

type groupAgg struct {
	clicks       int64
	fingerprints map[string]struct{}
	lastClickAt  int64
}

func (s *MemStorage) aggregateByLink(filter repository.TracerAnalyticsFilter) map[string]*groupAgg {
	byLink := make(map[string]*groupAgg)
	for _, event := range s.events {
		if !s.inScope(event, filter) || (event.IsLikelyBot && !filter.IncludeBots) {
			continue
		}
		agg, ok := byLink[event.TracerLinkID]
		if !ok {
			agg = &groupAgg{fingerprints: make(map[string]struct{})}
			byLink[event.TracerLinkID] = agg
		}
		agg.clicks++
		if event.UniqueFingerprintHash != nil {
			agg.fingerprints[*event.UniqueFingerprintHash] = struct{}{}
		}
		if event.ClickedAt > agg.lastClickAt {
			agg.lastClickAt = event.ClickedAt
		}
	}
	return byLink
}

func (s *MemStorage) GetTracerAnalyticsTopJobs(_ context.Context, filter repository.TracerAnalyticsFilter) ([]repository.TracerTopJobRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byJob := make(map[string]*groupAgg)
	for _, event := range s.events {
		if !s.inScope(event, filter) || (event.IsLikelyBot && !filter.IncludeBots) {
			continue
		}
		link, ok := s.linksByID[event.TracerLinkID]
		if !ok {
			continue
		}
		agg, ok := byJob[link.JobID]
		if !ok {
			agg = &groupAgg{fingerprints: make(map[string]struct{})}
			byJob[link.JobID] = agg
		}
		agg.clicks++
		if event.UniqueFingerprintHash != nil {
			agg.fingerprints[*event.UniqueFingerprintHash] = struct{}{}
		}
		if event.ClickedAt > agg.lastClickAt {
			agg.lastClickAt = event.ClickedAt
		}
	}

	rows := make([]repository.TracerTopJobRow, 0, len(byJob))
	for jobID, agg := range byJob {
		row := repository.TracerTopJobRow{
			JobID:       jobID,
			Clicks:      agg.clicks,
			UniqueOpens: int64(len(agg.fingerprints)),
			LastClickAt: agg.lastClickAt,
		}
		if job, ok := s.jobs[jobID]; ok {
			row.Title = job.Title
			row.Employer = job.Employer
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Clicks != rows[j].Clicks {
			return rows[i].Clicks > rows[j].Clicks
		}
		if rows[i].LastClickAt != rows[j].LastClickAt {
			return rows[i].LastClickAt > rows[j].LastClickAt
		}
		iJob, jJob := s.jobs[rows[i].JobID], s.jobs[rows[j].JobID]
		if iJob != nil && jJob != nil && !iJob.CreatedAt.Equal(jJob.CreatedAt) {
			return iJob.CreatedAt.After(jJob.CreatedAt)
		}
		return rows[i].JobID < rows[j].JobID
	})
	if limit := filter.ClampedLimit(); len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *MemStorage) GetTracerAnalyticsTopLinks(_ context.Context, filter repository.TracerAnalyticsFilter) ([]repository.TracerTopLinkRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byLink := s.aggregateByLink(filter)
	rows := make([]repository.TracerTopLinkRow, 0, len(byLink))
	for linkID, agg := range byLink {
		link, ok := s.linksByID[linkID]
		if !ok {
			continue
		}
		rows = append(rows, repository.TracerTopLinkRow{
			TracerLinkID:   linkID,
			Token:          link.Token,
			JobID:          link.JobID,
			SourceLabel:    link.SourceLabel,
			DestinationURL: link.DestinationURL,
			Clicks:         agg.clicks,
			UniqueOpens:    int64(len(agg.fingerprints)),
			LastClickAt:    agg.lastClickAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Clicks != rows[j].Clicks {
			return rows[i].Clicks > rows[j].Clicks
		}
		if rows[i].LastClickAt != rows[j].LastClickAt {
			return rows[i].LastClickAt > rows[j].LastClickAt
		}
		iLink, jLink := s.linksByID[rows[i].TracerLinkID], s.linksByID[rows[j].TracerLinkID]
		if iLink != nil && jLink != nil && !iLink.CreatedAt.Equal(jLink.CreatedAt) {
			return iLink.CreatedAt.After(jLink.CreatedAt)
		}
		return rows[i].TracerLinkID < rows[j].TracerLinkID
	})
	if limit := filter.ClampedLimit(); len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *MemStorage) ListTracerLinkStatsByJob(_ context.Context, jobID string, filter repository.TracerAnalyticsFilter) ([]repository.TracerLinkStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats []repository.TracerLinkStats
	for _, link := range s.linksByID {
		if link.JobID != jobID {
			continue
		}
		row := repository.TracerLinkStats{Link: *link}
		fingerprints := make(map[string]struct{})
		for _, event := range s.events {
			if event.TracerLinkID != link.ID || !s.inScope(event, filter) {
				continue
			}
			if event.IsLikelyBot {
				row.BotClicks++
			} else {
				row.HumanClicks++
			}
			if event.IsLikelyBot && !filter.IncludeBots {
				continue
			}
			row.Clicks++
			if event.UniqueFingerprintHash != nil {
				fingerprints[*event.UniqueFingerprintHash] = struct{}{}
			}
			if row.LastClickAt == nil || event.ClickedAt > *row.LastClickAt {
				clickedAt := event.ClickedAt
				row.LastClickAt = &clickedAt
			}
		}
		row.UniqueOpens = int64(len(fingerprints))
		stats = append(stats, row)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Clicks != stats[j].Clicks {
			return stats[i].Clicks > stats[j].Clicks
		}
		iLast, jLast := int64(0), int64(0)
		if stats[i].LastClickAt != nil {
			iLast = *stats[i].LastClickAt
		}
		if stats[j].LastClickAt != nil {
			jLast = *stats[j].LastClickAt
		}
		if iLast != jLast {
			return iLast > jLast
		}
		if !stats[i].Link.CreatedAt.Equal(stats[j].Link.CreatedAt) {
			return stats[i].Link.CreatedAt.After(stats[j].Link.CreatedAt)
		}
		return stats[i].Link.ID < stats[j].Link.ID
	})
	return stats, nil
}

// --- Jobs Collaborator ---

func (s *MemStorage) GetJobByID(_ context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *MemStorage) Ping(_ context.Context) error {
	return nil
}
