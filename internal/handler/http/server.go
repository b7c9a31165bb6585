package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kyle-bartlett/job-ops-sub000/internal/repository"
	"github.com/kyle-bartlett/job-ops-sub000/internal/service"
)

// Server wires the HTTP handlers together.
type Server struct {
	redirectHandler  *RedirectHandler
	analyticsHandler *TracerAnalyticsHandler
	rewriteHandler   *RewriteHandler
	healthHandler    *HealthHandler
	log              *zap.Logger
}

// NewServer creates the HTTP server facade over the tracer services.
func NewServer(
	storage repository.Storage,
	redirects *service.RedirectService,
	tracer *service.TracerService,
	analytics *service.AnalyticsService,
	log *zap.Logger,
) *Server {
	return &Server{
		redirectHandler:  NewRedirectHandler(redirects, log),
		analyticsHandler: NewTracerAnalyticsHandler(analytics, log),
		rewriteHandler:   NewRewriteHandler(tracer, analytics, storage, log),
		healthHandler:    NewHealthHandler(storage, log),
		log:              log,
	}
}

// SetupRoutes registers all routes and returns the root handler.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Probes
	mux.HandleFunc("/health", s.healthHandler.Health)
	mux.HandleFunc("/ready", s.healthHandler.Ready)

	// Dashboard API
	mux.HandleFunc("/api/tracer-links/analytics", s.analyticsHandler.HandleAnalytics)
	mux.HandleFunc("/api/tracer-links/jobs/", s.analyticsHandler.HandleJobAnalytics)

	// Resume-generation collaborator API
	mux.HandleFunc("/api/tracer-links/rewrite", s.rewriteHandler.HandleRewrite)

	// Public redirect endpoint, unauthenticated.
	mux.HandleFunc(service.PublicRedirectPrefix+"/", s.redirectHandler.HandleRedirect)

	return RequestID(mux)
}
