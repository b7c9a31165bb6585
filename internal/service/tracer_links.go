package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kyle-bartlett/job-ops-sub000/internal/fingerprint"
	"github.com/kyle-bartlett/job-ops-sub000/internal/repository"
)

// PublicRedirectPrefix is the public path segment for tracer redirects. The
// rewrite engine and the HTTP route registration both use this constant so
// generated links and the redirect endpoint can never drift apart.
const PublicRedirectPrefix = "/t"

const (
	maxSourceLabelLength = 200
	maxSlugNameLength    = 20
	maxSlugCompanyLength = 30
)

// ErrInvalidBaseURL is returned when link generation runs without a valid
// absolute http(s) base URL to embed in rewritten links.
var ErrInvalidBaseURL = errors.New("public base URL is not a valid absolute http(s) URL")

// TracerService rewrites outbound links in tailored resume documents to point
// at tracer redirect URLs.
type TracerService struct {
	storage repository.Storage
	log     *zap.Logger
}

// NewTracerService creates a new tracer link rewriting service.
func NewTracerService(storage repository.Storage, log *zap.Logger) *TracerService {
	return &TracerService{storage: storage, log: log}
}

// RewriteRequest carries one resume document to rewrite for one job.
type RewriteRequest struct {
	JobID         string
	ResumeData    map[string]interface{}
	PublicBaseURL string
	CompanyName   string
}

// RewriteResult reports how many link fields were rewritten. Zero is a valid
// outcome for documents without qualifying links.
type RewriteResult struct {
	RewrittenLinks int `json:"rewrittenLinks"`
}

// rewriteTarget is one discovered {label, href} url node.
type rewriteTarget struct {
	node        map[string]interface{}
	sourcePath  string
	sourceLabel string
	destination string
}

// RewriteResumeLinks walks the resume document, finds every url node with an
// http(s) href, obtains or creates a tracer link per target and mutates the
// node in place to point at "{base}{PublicRedirectPrefix}/{token}".
//
// Targets are processed sequentially: resume documents carry at most a
// handful of URLs, and sequential get-or-create keeps conflict retries simple
// to reason about per target.
func (s *TracerService) RewriteResumeLinks(ctx context.Context, req RewriteRequest) (*RewriteResult, error) {
	base := normalizeBaseURL(req.PublicBaseURL)
	if base == "" {
		return nil, ErrInvalidBaseURL
	}

	var targets []rewriteTarget
	collectTargets(req.ResumeData, "", &targets)
	if len(targets) == 0 {
		return &RewriteResult{RewrittenLinks: 0}, nil
	}

	slugPrefix := buildSlugPrefix(req.ResumeData, req.CompanyName)

	for _, target := range targets {
		params := repository.CreateTracerLinkParams{
			JobID:              req.JobID,
			SourcePath:         target.sourcePath,
			SourceLabel:        target.sourceLabel,
			DestinationURL:     target.destination,
			DestinationURLHash: fingerprint.HashText(target.destination),
			SlugPrefix:         slugPrefix,
		}

		link, err := s.storage.GetOrCreateTracerLink(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("failed to get or create tracer link for %s: %w", target.sourcePath, err)
		}

		redirectURL := base + PublicRedirectPrefix + "/" + link.Token
		target.node["href"] = redirectURL
		target.node["label"] = redirectURL
	}

	s.log.Info("rewrote resume links with tracers",
		zap.String("job_id", req.JobID),
		zap.Int("rewritten_links", len(targets)))

	return &RewriteResult{RewrittenLinks: len(targets)}, nil
}

// collectTargets walks the document depth-first. A key literally named "url"
// whose value is an object is inspected for a valid http(s) href; matched or
// not, the walk never descends into url objects. Map keys are visited in
// sorted order so source paths and store calls are deterministic.
func collectTargets(value interface{}, path string, targets *[]rewriteTarget) {
	switch node := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(node))
		for key := range node {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			child := node[key]
			childPath := key
			if path != "" {
				childPath = path + "." + key
			}

			if key == "url" {
				if urlNode, ok := child.(map[string]interface{}); ok {
					if target, ok := qualifyURLNode(urlNode, childPath); ok {
						*targets = append(*targets, target)
					}
					continue
				}
			}

			collectTargets(child, childPath, targets)
		}
	case []interface{}:
		for i, element := range node {
			collectTargets(element, fmt.Sprintf("%s[%d]", path, i), targets)
		}
	}
}

// qualifyURLNode decides whether a url object is a rewrite target. Non-http(s)
// schemes (mailto:, tel:) are never collected and stay untouched.
func qualifyURLNode(node map[string]interface{}, urlPath string) (rewriteTarget, bool) {
	href, _ := node["href"].(string)
	if !isHTTPURL(href) {
		return rewriteTarget{}, false
	}

	sourcePath := urlPath + ".href"

	label, _ := node["label"].(string)
	label = strings.TrimSpace(label)
	if label == "" {
		label = sourcePath
	}
	label = truncateRunes(label, maxSourceLabelLength)

	return rewriteTarget{
		node:        node,
		sourcePath:  sourcePath,
		sourceLabel: label,
		destination: href,
	}, true
}

// isHTTPURL reports whether the string parses as an absolute http(s) URL.
func isHTTPURL(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// buildSlugPrefix derives the "{name}-{company}" token hint from the resume's
// basics.name and the company name.
func buildSlugPrefix(resumeData map[string]interface{}, companyName string) string {
	name := "candidate"
	if basics, ok := resumeData["basics"].(map[string]interface{}); ok {
		if fullName, ok := basics["name"].(string); ok {
			if fields := strings.Fields(fullName); len(fields) > 0 {
				if sanitized := sanitizeSlugPart(fields[0], maxSlugNameLength); sanitized != "" {
					name = sanitized
				}
			}
		}
	}

	company := "company"
	if sanitized := sanitizeSlugPart(companyName, maxSlugCompanyLength); sanitized != "" {
		company = sanitized
	}

	return name + "-" + company
}

// truncateRunes caps s at max runes, never splitting a multi-byte rune.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// sanitizeSlugPart keeps lowercased ASCII letters only, capped at maxLen.
func sanitizeSlugPart(raw string, maxLen int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
		if b.Len() >= maxLen {
			break
		}
	}
	return b.String()
}

// normalizeBaseURL validates and normalizes an absolute http(s) base URL,
// stripping any trailing slash. Returns "" for invalid input.
func normalizeBaseURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ""
	}
	return strings.TrimRight(trimmed, "/")
}
