package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/smartlink-preview/internal/id/uuid"
	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

type subscriptionRequest struct {
	ID                   string     `json:"id"`
	Tier                 string     `json:"tier"`
	Status               string     `json:"status"`
	PeriodStart          *time.Time `json:"current_period_start"`
	PeriodEnd            *time.Time `json:"current_period_end"`
	StripeCustomerID     string     `json:"stripe_customer_id"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
}

// putSubscription handles PUT /internal/subscriptions/{user_id}. Activating a
// row deactivates the user's other active rows in the same transaction.
func (s *Server) putSubscription(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
	var req subscriptionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sub := smartlink.Subscription{
		ID:                   strings.TrimSpace(req.ID),
		UserID:               userID,
		Tier:                 smartlink.Tier(strings.ToLower(req.Tier)),
		Status:               smartlink.SubscriptionStatus(strings.ToLower(req.Status)),
		StripeCustomerID:     req.StripeCustomerID,
		StripeSubscriptionID: req.StripeSubscriptionID,
	}
	if sub.Status == "" {
		sub.Status = smartlink.StatusActive
	}
	if req.PeriodStart != nil {
		sub.PeriodStart = req.PeriodStart.UTC()
	}
	if req.PeriodEnd != nil {
		sub.PeriodEnd = req.PeriodEnd.UTC()
	}
	if err := sub.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !uuid.IsUUID(userID) || (sub.ID != "" && !uuid.IsUUID(sub.ID)) {
		writeError(w, http.StatusBadRequest, "user_id and id must be UUIDs")
		return
	}
	if sub.ID == "" {
		id, err := s.deps.IDs.NewID()
		if err != nil {
			s.writeFailure(w, r, "generate subscription id failed", err)
			return
		}
		sub.ID = id
	}
	if err := s.deps.Subscriptions.Activate(r.Context(), sub); err != nil {
		s.writeFailure(w, r, "activate subscription failed", fmt.Errorf("user %s: %w", userID, err))
		return
	}
	s.log(r).Info("subscription stored",
		zap.String("user_id", userID),
		zap.String("subscription_id", sub.ID),
		zap.String("tier", string(sub.Tier)),
		zap.String("status", string(sub.Status)),
	)
	sub.UpdatedAt = s.deps.Clock.Now().UTC()
	writeJSON(w, http.StatusOK, sub)
}

// getSubscription handles GET /internal/subscriptions/{user_id}.
func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
	if !uuid.IsUUID(userID) {
		writeError(w, http.StatusBadRequest, "user_id must be a UUID")
		return
	}
	sub, err := s.deps.Subscriptions.Active(r.Context(), userID)
	if err != nil {
		s.writeFailure(w, r, "load subscription failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscription": sub,
		"is_pro":       sub.IsPro(s.deps.Clock.Now()),
	})
}
