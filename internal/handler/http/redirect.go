package http

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kyle-bartlett/job-ops-sub000/internal/repository"
	"github.com/kyle-bartlett/job-ops-sub000/internal/service"
	"github.com/kyle-bartlett/job-ops-sub000/pkg/useragent"
)

// RedirectHandler serves the public tracer redirect endpoint. It must answer
// correctly and fast under arbitrary untrusted traffic, bots included.
type RedirectHandler struct {
	redirects *service.RedirectService
	log       *zap.Logger
}

// NewRedirectHandler creates a new redirect handler.
func NewRedirectHandler(redirects *service.RedirectService, log *zap.Logger) *RedirectHandler {
	return &RedirectHandler{redirects: redirects, log: log}
}

// HandleRedirect resolves /t/{token} to a 302, or a 404 that does not reveal
// whether the token ever existed.
func (h *RedirectHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := strings.TrimPrefix(r.URL.Path, service.PublicRedirectPrefix+"/")
	if token == "" || strings.Contains(token, "/") {
		http.NotFound(w, r)
		return
	}

	userAgent := r.UserAgent()

	// Rich family detail for debugging only; stored classification comes
	// from the deterministic heuristics inside the resolver.
	if parser := useragent.GetGlobalParser(); parser != nil {
		info := parser.Parse(userAgent)
		h.log.Debug("parsed redirect user agent",
			zap.String("browser", info.Browser),
			zap.String("os", info.OS),
			zap.String("device", info.Device))
	}

	result, err := h.redirects.Resolve(r.Context(), service.RedirectRequest{
		Token:     token,
		RequestID: RequestIDFromContext(r.Context()),
		IP:        extractIPAddress(r),
		UserAgent: userAgent,
		Referrer:  extractReferrer(r),
	})
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			h.log.Debug("tracer token not found", zap.String("token", token))
			http.NotFound(w, r)
			return
		}
		h.log.Error("failed to process redirect", zap.String("token", token), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, result.DestinationURL, http.StatusFound)
}

// extractReferrer reads the standard (misspelled) Referer header and falls
// back to the correctly spelled Referrer variant some clients send.
func extractReferrer(r *http.Request) string {
	if referrer := r.Referer(); referrer != "" {
		return referrer
	}
	return r.Header.Get("Referrer")
}

// extractIPAddress extracts the client IP, trusting proxy headers in priority
// order before falling back to the connection address.
func extractIPAddress(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		// X-Forwarded-For may carry a comma-separated chain; the first entry
		// is the originating client.
		if parts := strings.Split(ip, ","); len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	if ip := r.Header.Get("X-Client-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
