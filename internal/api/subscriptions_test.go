package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternalSubscriptionsRequireAPIKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/internal/subscriptions/"+ownerID, "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/internal/subscriptions/"+ownerID, "", map[string]string{"X-API-Key": "wrong"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPutSubscriptionKeepsSingleActiveRow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	key := map[string]string{"X-API-Key": testAPIKey}

	rec := env.do(t, http.MethodPut, "/internal/subscriptions/"+ownerID,
		`{"tier":"free","status":"active"}`, key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/internal/subscriptions/"+ownerID,
		`{"tier":"pro","status":"active","current_period_start":"2024-05-01T00:00:00Z","current_period_end":"2024-06-01T00:00:00Z","stripe_customer_id":"cus_1"}`,
		key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, env.subs.ActiveCount(ownerID))

	rec = env.do(t, http.MethodGet, "/internal/subscriptions/"+ownerID, "", key)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Subscription struct {
			Tier             string `json:"tier"`
			StripeCustomerID string `json:"stripe_customer_id"`
		} `json:"subscription"`
		IsPro bool `json:"is_pro"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "pro", got.Subscription.Tier)
	require.Equal(t, "cus_1", got.Subscription.StripeCustomerID)
	require.True(t, got.IsPro)
}

func TestPutSubscriptionValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	key := map[string]string{"X-API-Key": testAPIKey}
	tests := []struct {
		name   string
		target string
		body   string
	}{
		{name: "bad tier", target: "/internal/subscriptions/" + ownerID, body: `{"tier":"gold"}`},
		{name: "bad status", target: "/internal/subscriptions/" + ownerID, body: `{"tier":"pro","status":"paused"}`},
		{name: "bad user", target: "/internal/subscriptions/not-a-uuid", body: `{"tier":"pro"}`},
		{name: "bad id", target: "/internal/subscriptions/" + ownerID, body: `{"id":"sub_1","tier":"pro"}`},
		{name: "period inverted", target: "/internal/subscriptions/" + ownerID,
			body: `{"tier":"pro","current_period_start":"2024-06-01T00:00:00Z","current_period_end":"2024-05-01T00:00:00Z"}`},
		{name: "invalid json", target: "/internal/subscriptions/" + ownerID, body: `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := env.do(t, http.MethodPut, tt.target, tt.body, key)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestGetSubscriptionNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/internal/subscriptions/"+strangerID, "", map[string]string{"X-API-Key": testAPIKey})
	require.Equal(t, http.StatusNotFound, rec.Code)
}
