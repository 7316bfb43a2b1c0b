package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/smartlink-preview/internal/analytics"
	"github.com/JakeFAU/smartlink-preview/internal/auth"
	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

const (
	defaultStatsDays = 30
	maxStatsDays     = 365
)

type eventRequest struct {
	Slug     string `json:"slug"`
	Platform string `json:"platform"`
	Referrer string `json:"referrer"`
}

// recordEvent handles POST /api/events/{view,click}. Accepted events are
// queued, not yet persisted, so the response is 202.
func (s *Server) recordEvent(kind smartlink.EventKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Recorder == nil {
			writeError(w, http.StatusServiceUnavailable, "analytics disabled")
			return
		}
		var req eventRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		referrer := req.Referrer
		if referrer == "" {
			referrer = r.Referer()
		}
		evt, err := s.deps.Recorder.Record(r.Context(), analytics.Input{
			Kind:      kind,
			Slug:      req.Slug,
			Platform:  req.Platform,
			Referrer:  referrer,
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			s.writeFailure(w, r, "record event failed", err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": evt.ID})
	}
}

type statsResponse struct {
	Slug  string    `json:"slug"`
	Days  int       `json:"days"`
	Since time.Time `json:"since"`
	smartlink.LinkStats
}

// stats handles GET /api/smart-links/{slug}/stats?days=. Only the link owner
// may read it.
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query().Get("days"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	link, err := s.ownedLink(r)
	if err != nil {
		s.writeFailure(w, r, "load smart link failed", err)
		return
	}
	today := s.deps.Clock.Now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))
	stats, err := s.deps.Events.LinkStats(r.Context(), link.ID, since)
	if err != nil {
		s.writeFailure(w, r, "load stats failed", err)
		return
	}
	if stats.ClicksByPlatform == nil {
		stats.ClicksByPlatform = map[smartlink.Platform]int64{}
	}
	if stats.Daily == nil {
		stats.Daily = []smartlink.DailyCount{}
	}
	writeJSON(w, http.StatusOK, statsResponse{Slug: link.Slug, Days: days, Since: since, LinkStats: stats})
}

func parseDays(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultStatsDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 0, fmt.Errorf("invalid days")
	}
	if days > maxStatsDays {
		return 0, fmt.Errorf("days must be <= %d", maxStatsDays)
	}
	return days, nil
}

// ownedLink loads the slug from the route and checks it belongs to the
// authenticated user.
func (s *Server) ownedLink(r *http.Request) (smartlink.SmartLink, error) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		return smartlink.SmartLink{}, fmt.Errorf("%w: no authenticated user", smartlink.ErrForbidden)
	}
	slug, err := smartlink.NormalizeSlug(slugParam(r))
	if err != nil {
		return smartlink.SmartLink{}, err
	}
	link, err := s.deps.Links.GetBySlug(r.Context(), slug)
	if err != nil {
		return smartlink.SmartLink{}, err
	}
	if link.UserID == "" || link.UserID != userID {
		return smartlink.SmartLink{}, fmt.Errorf("%w: not the owner of %s", smartlink.ErrForbidden, slug)
	}
	return link, nil
}
