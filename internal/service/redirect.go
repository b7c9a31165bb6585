package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kyle-bartlett/job-ops-sub000/internal/domain"
	"github.com/kyle-bartlett/job-ops-sub000/internal/fingerprint"
	"github.com/kyle-bartlett/job-ops-sub000/internal/repository"
)

// Column caps for client-controlled event fields; must match the
// domain.TracerClickEvent sizes so arbitrary header values cannot fail the
// insert on drivers that enforce varchar lengths.
const (
	maxRequestIDLength    = 64
	maxReferrerHostLength = 255
)

// RedirectService resolves tracer tokens to their destinations and records
// one click event per resolved request.
type RedirectService struct {
	storage repository.Storage
	log     *zap.Logger
	now     func() time.Time
}

// NewRedirectService creates a new redirect resolver.
func NewRedirectService(storage repository.Storage, log *zap.Logger) *RedirectService {
	return &RedirectService{storage: storage, log: log, now: time.Now}
}

// RedirectRequest carries the untrusted request metadata of one redirect hit.
type RedirectRequest struct {
	Token     string
	RequestID string
	IP        string
	UserAgent string
	Referrer  string
}

// RedirectResult is the resolved destination for the HTTP layer to redirect to.
type RedirectResult struct {
	DestinationURL string
	JobID          string
}

// Resolve looks up the active link for a token, classifies the request and
// records the click before returning. The click insert is synchronous on
// purpose: the redirect must not be issued until the click is durable, so a
// client that never follows the redirect still counts.
//
// Unknown or deactivated tokens return repository.ErrTokenNotFound; this is
// expected traffic, not an error condition worth logging loudly.
func (s *RedirectService) Resolve(ctx context.Context, req RedirectRequest) (*RedirectResult, error) {
	link, err := s.storage.FindActiveTracerLinkByToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	clickedAt := s.now().Unix()
	dayBucket := fingerprint.DayBucketFromUnixSeconds(clickedAt)

	event := &domain.TracerClickEvent{
		TracerLinkID: link.ID,
		ClickedAt:    clickedAt,
		DayBucket:    dayBucket,
		IsLikelyBot:  fingerprint.IsLikelyBotUserAgent(req.UserAgent),
		DeviceType:   fingerprint.ClassifyDeviceType(req.UserAgent),
		UAFamily:     fingerprint.ClassifyUAFamily(req.UserAgent),
		OSFamily:     fingerprint.ClassifyOSFamily(req.UserAgent),
	}

	if req.RequestID != "" {
		requestID := truncateRunes(req.RequestID, maxRequestIDLength)
		event.RequestID = &requestID
	}

	if host := fingerprint.ReferrerHost(req.Referrer); host != "" {
		host = truncateRunes(host, maxReferrerHostLength)
		event.ReferrerHost = &host
	}

	// Only the coarsened prefix is ever hashed; the raw IP is dropped here.
	ipPrefix := fingerprint.NormalizeIPPrefix(req.IP)
	if ipPrefix != "" {
		ipHash := fingerprint.HashText(ipPrefix)
		event.IPHash = &ipHash
	}
	if fpHash := fingerprint.UniqueFingerprintHash(ipPrefix, req.UserAgent, dayBucket); fpHash != "" {
		event.UniqueFingerprintHash = &fpHash
	}

	if err := s.storage.InsertTracerClickEvent(ctx, event); err != nil {
		// A dropped redirect is preferable to silent undercounting.
		return nil, fmt.Errorf("failed to record click event: %w", err)
	}

	s.log.Info("resolved tracer redirect",
		zap.String("token", req.Token),
		zap.String("job_id", link.JobID),
		zap.String("device_type", event.DeviceType),
		zap.Bool("is_likely_bot", event.IsLikelyBot))

	return &RedirectResult{
		DestinationURL: link.DestinationURL,
		JobID:          link.JobID,
	}, nil
}
