package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/smartlink-preview/internal/auth"
	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

type platformUpdate struct {
	Platform string `json:"platform"`
	Enabled  *bool  `json:"enabled"`
	Position *int   `json:"position"`
}

// updatePlatforms handles PUT /api/smart-links/{slug}/platforms. The caller
// must own the link and hold an active Pro subscription.
func (s *Server) updatePlatforms(w http.ResponseWriter, r *http.Request) {
	var req []platformUpdate
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updates, err := toPlatformLinks(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	link, err := s.ownedLink(r)
	if err != nil {
		s.writeFailure(w, r, "load smart link failed", err)
		return
	}
	if err := s.requirePro(r); err != nil {
		s.writeFailure(w, r, "load subscription failed", err)
		return
	}
	if err := s.deps.Links.ReplacePlatforms(r.Context(), link.ID, updates); err != nil {
		if errors.Is(err, smartlink.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "platform is not configured on this link")
			return
		}
		s.writeFailure(w, r, "update platforms failed", err)
		return
	}
	s.deps.Sitemap.Invalidate()

	updated, err := s.deps.Links.GetByID(r.Context(), link.ID)
	if err != nil {
		s.writeFailure(w, r, "reload smart link failed", err)
		return
	}
	s.log(r).Info("platform links updated",
		zap.String("slug", link.Slug),
		zap.Int("platforms", len(updates)),
	)
	writeJSON(w, http.StatusOK, map[string]any{"slug": updated.Slug, "platforms": updated.Platforms})
}

func toPlatformLinks(req []platformUpdate) ([]smartlink.PlatformLink, error) {
	if len(req) == 0 {
		return nil, fmt.Errorf("at least one platform is required")
	}
	seen := make(map[smartlink.Platform]struct{}, len(req))
	out := make([]smartlink.PlatformLink, 0, len(req))
	for i, u := range req {
		platform, ok := smartlink.ParsePlatform(u.Platform)
		if !ok {
			return nil, fmt.Errorf("unknown platform %q", u.Platform)
		}
		if _, dup := seen[platform]; dup {
			return nil, fmt.Errorf("duplicate platform %q", platform)
		}
		seen[platform] = struct{}{}
		if u.Enabled == nil {
			return nil, fmt.Errorf("enabled is required for %q", platform)
		}
		position := i
		if u.Position != nil {
			if *u.Position < 0 {
				return nil, fmt.Errorf("position must be >= 0 for %q", platform)
			}
			position = *u.Position
		}
		out = append(out, smartlink.PlatformLink{Platform: platform, Enabled: *u.Enabled, Position: position})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Server) requirePro(r *http.Request) error {
	userID, _ := auth.UserID(r.Context())
	sub, err := s.deps.Subscriptions.Active(r.Context(), userID)
	if err != nil {
		if errors.Is(err, smartlink.ErrNotFound) {
			return fmt.Errorf("%w: pro subscription required", smartlink.ErrForbidden)
		}
		return err
	}
	if !sub.IsPro(s.deps.Clock.Now()) {
		return fmt.Errorf("%w: pro subscription required", smartlink.ErrForbidden)
	}
	return nil
}
