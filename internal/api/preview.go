package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/smartlink-preview/internal/config"
	"github.com/JakeFAU/smartlink-preview/internal/hash/sha256"
	"github.com/JakeFAU/smartlink-preview/internal/metrics"
	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

const (
	fallbackHeader   = "X-Preview-Fallback"
	noStore          = "no-store"
	htmlContentType  = "text/html; charset=utf-8"
	sitemapCacheCtrl = "public, max-age=3600"
)

func slugParam(r *http.Request) string {
	if slug := chi.URLParam(r, "slug"); slug != "" {
		return slug
	}
	return r.URL.Query().Get("slug")
}

// preview serves the Open Graph document for a slug. Crawlers and humans get
// the same page unless preview.redirect_humans is set.
func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	isBot := s.deps.Bots.IsBot(r.UserAgent())
	slug, err := smartlink.NormalizeSlug(slugParam(r))
	if err != nil {
		metrics.ObservePreview(metrics.OutcomeInvalid, isBot)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.cfg.Preview.RedirectHumans {
		w.Header().Set("Vary", "User-Agent")
		if !isBot {
			metrics.ObservePreview(metrics.OutcomeRedirect, false)
			w.Header().Set("Cache-Control", noStore)
			http.Redirect(w, r, s.deps.Renderer.AppURL(slug), http.StatusFound)
			return
		}
	}

	md, err := s.deps.Resolver.Resolve(r.Context(), slug)
	if err == nil {
		body, renderErr := s.deps.Renderer.Page(md)
		if renderErr == nil {
			metrics.ObservePreview(metrics.OutcomeResolved, isBot)
			if notModified(w, r, body, s.cfg.Preview.CacheControl) {
				return
			}
			s.writeHTML(w, http.StatusOK, body, false)
			return
		}
		err = renderErr
	}
	if errors.Is(err, smartlink.ErrInvalid) {
		metrics.ObservePreview(metrics.OutcomeInvalid, isBot)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, outcome := s.fallbackStatus(err)
	metrics.ObservePreview(outcome, isBot)
	if outcome == metrics.OutcomeError {
		s.log(r).Warn("preview resolution failed", zap.String("slug", slug), zap.Error(err))
	}
	body, renderErr := s.deps.Renderer.Fallback(slug)
	if renderErr != nil {
		s.log(r).Error("fallback render failed", zap.String("slug", slug), zap.Error(renderErr))
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	s.writeHTML(w, status, body, true)
}

// fallbackStatus applies preview.error_mode to a resolution failure.
func (s *Server) fallbackStatus(err error) (int, string) {
	notFound := errors.Is(err, smartlink.ErrNotFound)
	outcome := metrics.OutcomeError
	if notFound {
		outcome = metrics.OutcomeNotFound
	}
	if s.cfg.Preview.ErrorMode != config.ErrorModeStrict {
		return http.StatusOK, outcome
	}
	if notFound {
		return http.StatusNotFound, outcome
	}
	return http.StatusBadGateway, outcome
}

func (s *Server) writeHTML(w http.ResponseWriter, status int, body []byte, fallback bool) {
	h := w.Header()
	h.Set("Content-Type", htmlContentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	if h.Get("Cache-Control") == "" {
		if status == http.StatusOK {
			h.Set("Cache-Control", s.cfg.Preview.CacheControl)
		} else {
			h.Set("Cache-Control", noStore)
		}
	}
	if fallback {
		h.Set(fallbackHeader, "1")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// notModified sets the body's ETag and answers 304 when the client already
// holds it. The 304 repeats cacheControl.
func notModified(w http.ResponseWriter, r *http.Request, body []byte, cacheControl string) bool {
	tag := sha256.ETag(body)
	w.Header().Set("ETag", tag)
	if !sha256.Matches(r.Header.Get("If-None-Match"), tag) {
		return false
	}
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}
	w.WriteHeader(http.StatusNotModified)
	return true
}

type metaResponse struct {
	smartlink.Metadata
	IsBot        bool   `json:"is_bot"`
	MatchedToken string `json:"matched_token,omitempty"`
}

// meta returns the resolved metadata and the caller's crawler classification.
func (s *Server) meta(w http.ResponseWriter, r *http.Request) {
	md, err := s.deps.Resolver.Resolve(r.Context(), slugParam(r))
	if err != nil {
		s.writeFailure(w, r, "resolve metadata failed", err)
		return
	}
	token, isBot := s.deps.Bots.Match(r.UserAgent())
	writeJSON(w, http.StatusOK, metaResponse{Metadata: md, IsBot: isBot, MatchedToken: token})
}
