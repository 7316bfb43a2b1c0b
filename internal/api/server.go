package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/JakeFAU/smartlink-preview/internal/analytics"
	"github.com/JakeFAU/smartlink-preview/internal/auth"
	"github.com/JakeFAU/smartlink-preview/internal/bot"
	"github.com/JakeFAU/smartlink-preview/internal/config"
	"github.com/JakeFAU/smartlink-preview/internal/metrics"
	"github.com/JakeFAU/smartlink-preview/internal/policy/ratelimit"
	"github.com/JakeFAU/smartlink-preview/internal/render"
	"github.com/JakeFAU/smartlink-preview/internal/sitemap"
	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

const maxBodyBytes = 64 << 10

// EventRecorder accepts tracking requests from the SPA.
type EventRecorder interface {
	Record(ctx context.Context, in analytics.Input) (smartlink.Event, error)
}

// Deps lists everything the handlers use. Recorder, Verifier, Limiter and
// Ready are optional; the routes they back answer 503 (or skip the check)
// when they are nil.
type Deps struct {
	Config        config.Config
	Resolver      smartlink.MetadataResolver
	Renderer      *render.Renderer
	Bots          *bot.Classifier
	Links         smartlink.LinkStore
	Events        smartlink.EventStore
	Subscriptions smartlink.SubscriptionStore
	Sitemap       *sitemap.Builder
	Recorder      EventRecorder
	Verifier      *auth.Verifier
	Limiter       *ratelimit.Limiter
	IDs           smartlink.IDGenerator
	Clock         smartlink.Clock
	Ready         func(ctx context.Context) error
	Logger        *zap.Logger
}

// Server wires HTTP handlers to the resolver, stores and analytics hub.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) (*Server, error) {
	switch {
	case deps.Resolver == nil:
		return nil, fmt.Errorf("resolver is required")
	case deps.Renderer == nil:
		return nil, fmt.Errorf("renderer is required")
	case deps.Links == nil || deps.Events == nil || deps.Subscriptions == nil:
		return nil, fmt.Errorf("link, event and subscription stores are required")
	case deps.Sitemap == nil:
		return nil, fmt.Errorf("sitemap builder is required")
	case deps.IDs == nil || deps.Clock == nil:
		return nil, fmt.Errorf("id generator and clock are required")
	}
	if deps.Bots == nil {
		deps.Bots = bot.New(deps.Config.Preview.ExtraBotTokens...)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Server{deps: deps, cfg: deps.Config, logger: deps.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(s.cfg.RequestTimeout()))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/sitemap.xml", s.sitemapXML)
	r.Get("/robots.txt", s.robotsTXT)

	r.Get("/preview", s.preview)
	r.Get("/preview/{slug}", s.preview)
	r.Get("/s/{slug}", s.preview)

	r.Route("/api", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			if deps.Limiter != nil {
				r.Use(deps.Limiter.Middleware("/api/events"))
			}
			r.Post("/view", s.recordEvent(smartlink.EventView))
			r.Post("/click", s.recordEvent(smartlink.EventClick))
		})
		r.Route("/smart-links/{slug}", func(r chi.Router) {
			r.Get("/meta", s.meta)
			r.Group(func(r chi.Router) {
				r.Use(s.requireUser)
				r.Get("/stats", s.stats)
				r.Put("/platforms", s.updatePlatforms)
			})
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(auth.APIKeyMiddleware(s.cfg.Auth.APIKey))
		r.Put("/subscriptions/{user_id}", s.putSubscription)
		r.Get("/subscriptions/{user_id}", s.getSubscription)
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.log(r).Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// requireUser applies JWT auth, or refuses the route when no verifier is
// configured.
func (s *Server) requireUser(next http.Handler) http.Handler {
	if s.deps.Verifier == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusServiceUnavailable, "authentication not configured")
		})
	}
	return s.deps.Verifier.Middleware(next)
}

// statusFor maps sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, smartlink.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, smartlink.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, smartlink.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, analytics.ErrDropped):
		return http.StatusServiceUnavailable
	case errors.Is(err, smartlink.ErrUpstream), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure logs server-side failures and hides their details.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log(r).Error(msg, zap.Error(err))
		writeError(w, status, msg)
		return
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", smartlink.ErrInvalid)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
