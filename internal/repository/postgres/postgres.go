package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kyle-bartlett/job-ops-sub000/internal/domain"
	"github.com/kyle-bartlett/job-ops-sub000/internal/repository"
	"github.com/kyle-bartlett/job-ops-sub000/pkg/random"
)

const (
	defaultTokenLength   = 16
	defaultCreateRetries = 5
)

// PostgresStorage implements the Storage interface on top of GORM.
type PostgresStorage struct {
	db            *gorm.DB
	log           *zap.Logger
	tokenLength   int
	createRetries int
}

// New creates a new PostgreSQL storage instance. tokenLength and
// createRetries fall back to defaults when non-positive.
func New(db *gorm.DB, log *zap.Logger, tokenLength, createRetries int) *PostgresStorage {
	if tokenLength <= 0 {
		tokenLength = defaultTokenLength
	}
	if createRetries <= 0 {
		createRetries = defaultCreateRetries
	}
	return &PostgresStorage{
		db:            db,
		log:           log,
		tokenLength:   tokenLength,
		createRetries: createRetries,
	}
}

// --- Tracer Link Methods ---

// GetOrCreateTracerLink looks up the link by its idempotency triple and
// creates it when missing. A uniqueness conflict means a concurrent creator
// won the race; the loop re-queries so both callers observe the same row.
// The lookup does not update an existing row even if the destination URL's
// surface string differs: the hash is authoritative.
func (s *PostgresStorage) GetOrCreateTracerLink(ctx context.Context, params repository.CreateTracerLinkParams) (*domain.TracerLink, error) {
	for attempt := 0; attempt < s.createRetries; attempt++ {
		var link domain.TracerLink
		err := s.db.WithContext(ctx).
			Where("job_id = ? AND source_path = ? AND destination_url_hash = ?",
				params.JobID, params.SourcePath, params.DestinationURLHash).
			First(&link).Error
		if err == nil {
			return &link, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Error("failed to look up tracer link",
				zap.String("job_id", params.JobID),
				zap.String("source_path", params.SourcePath),
				zap.Error(err))
			return nil, fmt.Errorf("failed to look up tracer link: %w", err)
		}

		token, err := newToken(params.SlugPrefix, s.tokenLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate tracer token: %w", err)
		}

		link = domain.TracerLink{
			ID:                 uuid.NewString(),
			Token:              token,
			JobID:              params.JobID,
			SourcePath:         params.SourcePath,
			SourceLabel:        params.SourceLabel,
			DestinationURL:     params.DestinationURL,
			DestinationURLHash: params.DestinationURLHash,
			IsActive:           true,
		}

		err = s.db.WithContext(ctx).Create(&link).Error
		if err == nil {
			s.log.Info("created tracer link",
				zap.String("token", link.Token),
				zap.String("job_id", link.JobID),
				zap.String("source_path", link.SourcePath))
			return &link, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			s.log.Error("failed to create tracer link",
				zap.String("job_id", params.JobID),
				zap.String("source_path", params.SourcePath),
				zap.Error(err))
			return nil, fmt.Errorf("failed to create tracer link: %w", err)
		}

		// Either the triple was inserted concurrently or the token collided.
		// Loop back to re-query the triple (and regenerate a token if needed).
		s.log.Debug("tracer link creation conflict, retrying",
			zap.String("job_id", params.JobID),
			zap.String("source_path", params.SourcePath),
			zap.Int("attempt", attempt+1))
	}

	return nil, repository.ErrCreateConflict
}

// FindActiveTracerLinkByToken returns the active link for a token. Inactive
// and nonexistent tokens are indistinguishable to the caller.
func (s *PostgresStorage) FindActiveTracerLinkByToken(ctx context.Context, token string) (*domain.TracerLink, error) {
	var link domain.TracerLink

	err := s.db.WithContext(ctx).
		Where("token = ? AND is_active = ?", token, true).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrTokenNotFound
	}
	if err != nil {
		s.log.Error("failed to look up tracer link by token", zap.Error(err))
		return nil, fmt.Errorf("failed to look up tracer link by token: %w", err)
	}

	return &link, nil
}

// InsertTracerClickEvent appends one click event row.
func (s *PostgresStorage) InsertTracerClickEvent(ctx context.Context, event *domain.TracerClickEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		s.log.Error("failed to insert click event",
			zap.String("tracer_link_id", event.TracerLinkID),
			zap.Error(err))
		return fmt.Errorf("failed to insert click event: %w", err)
	}

	return nil
}

// --- Aggregate Queries ---

// clickQuery builds a fresh click-event query scoped by the filter's job and
// time bounds. Bot exclusion is applied per call site because botClicks is
// always computed over the unfiltered scope.
func (s *PostgresStorage) clickQuery(ctx context.Context, filter repository.TracerAnalyticsFilter, excludeBots bool) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&domain.TracerClickEvent{}).
		Joins("JOIN tracer_links ON tracer_links.id = tracer_click_events.tracer_link_id")
	if filter.JobID != "" {
		q = q.Where("tracer_links.job_id = ?", filter.JobID)
	}
	if filter.From != nil {
		q = q.Where("tracer_click_events.clicked_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("tracer_click_events.clicked_at <= ?", *filter.To)
	}
	if excludeBots {
		q = q.Where("tracer_click_events.is_likely_bot = ?", false)
	}
	return q
}

// GetTracerAnalyticsTotals returns the scope-wide counters. BotClicks and
// HumanClicks are computed over the bot-unfiltered scope so they are reported
// even when IncludeBots hides bot rows from Clicks/UniqueOpens.
func (s *PostgresStorage) GetTracerAnalyticsTotals(ctx context.Context, filter repository.TracerAnalyticsFilter) (*repository.TracerAnalyticsTotals, error) {
	var totals repository.TracerAnalyticsTotals

	if err := s.clickQuery(ctx, filter, !filter.IncludeBots).Count(&totals.Clicks).Error; err != nil {
		return nil, fmt.Errorf("failed to count clicks: %w", err)
	}

	if err := s.clickQuery(ctx, filter, !filter.IncludeBots).
		Where("tracer_click_events.unique_fingerprint_hash IS NOT NULL").
		Distinct("tracer_click_events.unique_fingerprint_hash").
		Count(&totals.UniqueOpens).Error; err != nil {
		return nil, fmt.Errorf("failed to count unique opens: %w", err)
	}

	if err := s.clickQuery(ctx, filter, false).
		Where("tracer_click_events.is_likely_bot = ?", true).
		Count(&totals.BotClicks).Error; err != nil {
		return nil, fmt.Errorf("failed to count bot clicks: %w", err)
	}

	if err := s.clickQuery(ctx, filter, false).
		Where("tracer_click_events.is_likely_bot = ?", false).
		Count(&totals.HumanClicks).Error; err != nil {
		return nil, fmt.Errorf("failed to count human clicks: %w", err)
	}

	return &totals, nil
}

// GetTracerAnalyticsTimeSeries returns per-UTC-day click counts ordered by day.
func (s *PostgresStorage) GetTracerAnalyticsTimeSeries(ctx context.Context, filter repository.TracerAnalyticsFilter) ([]repository.TracerTimeSeriesPoint, error) {
	points := []repository.TracerTimeSeriesPoint{}

	err := s.clickQuery(ctx, filter, !filter.IncludeBots).
		Select("tracer_click_events.day_bucket AS date, COUNT(*) AS clicks, COUNT(DISTINCT tracer_click_events.unique_fingerprint_hash) AS unique_opens").
		Group("tracer_click_events.day_bucket").
		Order("tracer_click_events.day_bucket ASC").
		Scan(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query click time series: %w", err)
	}

	return points, nil
}

// GetTracerAnalyticsTopJobs returns the most-clicked jobs in scope.
func (s *PostgresStorage) GetTracerAnalyticsTopJobs(ctx context.Context, filter repository.TracerAnalyticsFilter) ([]repository.TracerTopJobRow, error) {
	rows := []repository.TracerTopJobRow{}

	err := s.clickQuery(ctx, filter, !filter.IncludeBots).
		Joins("JOIN jobs ON jobs.id = tracer_links.job_id").
		Select("tracer_links.job_id AS job_id, jobs.title AS title, jobs.employer AS employer, " +
			"COUNT(*) AS clicks, COUNT(DISTINCT tracer_click_events.unique_fingerprint_hash) AS unique_opens, " +
			"MAX(tracer_click_events.clicked_at) AS last_click_at").
		Group("tracer_links.job_id, jobs.title, jobs.employer, jobs.created_at").
		Order("clicks DESC, last_click_at DESC, jobs.created_at DESC").
		Limit(filter.ClampedLimit()).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query top jobs: %w", err)
	}

	return rows, nil
}

// GetTracerAnalyticsTopLinks returns the most-clicked tracer links in scope.
func (s *PostgresStorage) GetTracerAnalyticsTopLinks(ctx context.Context, filter repository.TracerAnalyticsFilter) ([]repository.TracerTopLinkRow, error) {
	rows := []repository.TracerTopLinkRow{}

	err := s.clickQuery(ctx, filter, !filter.IncludeBots).
		Select("tracer_links.id AS tracer_link_id, tracer_links.token AS token, tracer_links.job_id AS job_id, " +
			"tracer_links.source_label AS source_label, tracer_links.destination_url AS destination_url, " +
			"COUNT(*) AS clicks, COUNT(DISTINCT tracer_click_events.unique_fingerprint_hash) AS unique_opens, " +
			"MAX(tracer_click_events.clicked_at) AS last_click_at").
		Group("tracer_links.id, tracer_links.token, tracer_links.job_id, tracer_links.source_label, tracer_links.destination_url, tracer_links.created_at").
		Order("clicks DESC, last_click_at DESC, tracer_links.created_at DESC").
		Limit(filter.ClampedLimit()).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query top links: %w", err)
	}

	return rows, nil
}

// linkStatsRow is the scan target for the per-job drilldown.
type linkStatsRow struct {
	domain.TracerLink `gorm:"embedded"`
	Clicks            int64
	UniqueOpens       int64
	BotClicks         int64
	HumanClicks       int64
	LastClickAt       *int64
}

// ListTracerLinkStatsByJob lists every tracer link of one job with its click
// counters. Links with no clicks in scope still appear with zero counts.
// BotClicks/HumanClicks are computed over the bot-unfiltered scope.
func (s *PostgresStorage) ListTracerLinkStatsByJob(ctx context.Context, jobID string, filter repository.TracerAnalyticsFilter) ([]repository.TracerLinkStats, error) {
	// Time bounds live in the join condition so that out-of-range clicks do
	// not drop the link row itself.
	join := "LEFT JOIN tracer_click_events ON tracer_click_events.tracer_link_id = tracer_links.id"
	var joinArgs []interface{}
	if filter.From != nil {
		join += " AND tracer_click_events.clicked_at >= ?"
		joinArgs = append(joinArgs, *filter.From)
	}
	if filter.To != nil {
		join += " AND tracer_click_events.clicked_at <= ?"
		joinArgs = append(joinArgs, *filter.To)
	}

	scope := "tracer_click_events.is_likely_bot = FALSE"
	if filter.IncludeBots {
		scope = "tracer_click_events.id IS NOT NULL"
	}

	var rows []linkStatsRow
	err := s.db.WithContext(ctx).Model(&domain.TracerLink{}).
		Select(fmt.Sprintf(`tracer_links.*,
			COUNT(CASE WHEN %[1]s THEN tracer_click_events.id END) AS clicks,
			COUNT(DISTINCT CASE WHEN %[1]s THEN tracer_click_events.unique_fingerprint_hash END) AS unique_opens,
			COUNT(CASE WHEN tracer_click_events.is_likely_bot = TRUE THEN tracer_click_events.id END) AS bot_clicks,
			COUNT(CASE WHEN tracer_click_events.is_likely_bot = FALSE THEN tracer_click_events.id END) AS human_clicks,
			MAX(CASE WHEN %[1]s THEN tracer_click_events.clicked_at END) AS last_click_at`, scope)).
		Joins(join, joinArgs...).
		Where("tracer_links.job_id = ?", jobID).
		Group("tracer_links.id").
		Order("clicks DESC, last_click_at DESC, tracer_links.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query link stats for job: %w", err)
	}

	stats := make([]repository.TracerLinkStats, len(rows))
	for i, row := range rows {
		stats[i] = repository.TracerLinkStats{
			Link:        row.TracerLink,
			Clicks:      row.Clicks,
			UniqueOpens: row.UniqueOpens,
			BotClicks:   row.BotClicks,
			HumanClicks: row.HumanClicks,
			LastClickAt: row.LastClickAt,
		}
	}

	return stats, nil
}

// --- Jobs Collaborator ---

// GetJobByID returns the job slice used for link-generation gating and the
// per-job analytics header.
func (s *PostgresStorage) GetJobByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job

	err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrJobNotFound
	}
	if err != nil {
		s.log.Error("failed to get job", zap.String("job_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// Ping reports database health.
func (s *PostgresStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// newToken builds a public token from the human-readable slug prefix and an
// unguessable random suffix.
func newToken(slugPrefix string, length int) (string, error) {
	suffix, err := random.NewRandomString(length)
	if err != nil {
		return "", err
	}
	if slugPrefix == "" {
		return suffix, nil
	}
	return slugPrefix + "-" + suffix, nil
}
