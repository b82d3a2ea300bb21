package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crowdfund-escrow/backend/internal/auth"
	"github.com/crowdfund-escrow/backend/internal/clock"
	"github.com/crowdfund-escrow/backend/internal/config"
	"github.com/crowdfund-escrow/backend/internal/custody"
	"github.com/crowdfund-escrow/backend/internal/escrow"
	"github.com/crowdfund-escrow/backend/internal/escrow/memstore"
	"github.com/crowdfund-escrow/backend/internal/events"
	apphttp "github.com/crowdfund-escrow/backend/internal/http"
	"github.com/crowdfund-escrow/backend/internal/http/handlers"
	"github.com/crowdfund-escrow/backend/internal/middleware"
	"github.com/crowdfund-escrow/backend/internal/models"
)

const (
	jwtSecret = "router-test-secret"
	creator   = "0:1111111111111111111111111111111111111111111111111111111111111111"
	alice     = "0:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob       = "0:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type noPayloads struct{}

func (noPayloads) Create(context.Context, time.Duration) (*models.TonProofPayload, error) {
	return &models.TonProofPayload{Payload: "nonce", ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (noPayloads) Consume(context.Context, string) (*models.TonProofPayload, error) {
	return nil, assert.AnError
}

type noSubscriber struct{}

func (noSubscriber) Subscribe(context.Context, string, func(events.Event)) error { return nil }

type envelope struct {
	OK        bool            `json:"ok"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Code      string          `json:"code"`
	RequestID string          `json:"request_id"`
}

type testAPI struct {
	t     *testing.T
	app   *fiber.App
	store *memstore.Store
	clock *clock.Manual
}

// memCounter is a windowless in-process rate limit counter.
type memCounter struct {
	mu   sync.Mutex
	hits map[string]int64
}

func (m *memCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hits == nil {
		m.hits = map[string]int64{}
	}
	m.hits[key]++
	return m.hits[key], nil
}

func (m *memCounter) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.hits {
		out = append(out, k)
	}
	return out
}

func newTestAPI(t *testing.T) *testAPI {
	return newLimitedTestAPI(t, nil, 0)
}

func newLimitedTestAPI(t *testing.T, limiter middleware.Counter, perMinute int) *testAPI {
	t.Helper()
	log := zap.NewNop()
	cfg := &config.Config{
		JWTSecret:          jwtSecret,
		JWTExpiration:      time.Hour,
		TONProofPayloadTTL: time.Minute,
		RateLimitPerMinute: perMinute,
	}

	store := memstore.New(custody.NewDeriver("router-test", 0))
	store.Deposit(alice, 5_000)
	store.Deposit(bob, 5_000)
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))

	svc := escrow.NewService(store, store, auth.ContextVerifier{}, clk, events.NopPublisher{}, &memstore.AuditLog{}, log)

	app := fiber.New()
	apphttp.SetupRouter(app, cfg, log, limiter,
		handlers.NewAuthHandler(noPayloads{}, cfg, log),
		handlers.NewCampaignHandler(svc, log),
		handlers.NewAccountHandler(svc, "EQ-hot-wallet", log),
		handlers.NewWSHub(noSubscriber{}, log),
	)
	return &testAPI{t: t, app: app, store: store, clock: clk}
}

func (a *testAPI) do(method, path, account string, body any) (int, envelope) {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		token, err := auth.GenerateJWT(jwtSecret, account, time.Hour)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (a *testAPI) createCampaign(title string, target, days uint64) uuid.UUID {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/api/v1/campaigns", creator, map[string]any{
		"title": title, "description": "d", "target_amount": target, "duration_days": days,
	})
	require.Equal(a.t, http.StatusCreated, status, env.Error)

	var c models.Campaign
	require.NoError(a.t, json.Unmarshal(env.Data, &c))
	return c.ID
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	resp, err := api.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	status, env := api.do(http.MethodPost, "/api/v1/campaigns", "", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", env.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/balance", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := api.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other, err := auth.GenerateJWT("another-secret", alice, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/me/balance?token="+other, nil)
	resp, err = api.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	id := api.createCampaign("Roof", 1_000, 30)
	path := "/api/v1/campaigns/" + id.String()

	tests := []struct {
		name       string
		method     string
		path       string
		account    string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"zero target", http.MethodPost, "/api/v1/campaigns", creator,
			map[string]any{"title": "t", "target_amount": 0, "duration_days": 1}, http.StatusBadRequest, "invalid_target_amount"},
		{"duplicate title", http.MethodPost, "/api/v1/campaigns", creator,
			map[string]any{"title": "Roof", "target_amount": 5, "duration_days": 1}, http.StatusConflict, "campaign_exists"},
		{"bad id", http.MethodGet, "/api/v1/campaigns/nope", "", nil, http.StatusBadRequest, "invalid_id"},
		{"unknown campaign", http.MethodGet, "/api/v1/campaigns/" + uuid.NewString(), "", nil, http.StatusNotFound, "campaign_not_found"},
		{"over target", http.MethodPost, path + "/contribute", alice,
			map[string]any{"amount": 1_001}, http.StatusBadRequest, "exceeds_target"},
		{"zero contribution", http.MethodPost, path + "/contribute", alice,
			map[string]any{"amount": 0}, http.StatusBadRequest, "invalid_contribution_amount"},
		{"stranger withdraw", http.MethodPost, path + "/withdraw", bob, nil, http.StatusForbidden, "unauthorized_withdrawal"},
		{"early withdraw", http.MethodPost, path + "/withdraw", creator, nil, http.StatusConflict, "withdrawal_conditions_not_met"},
		{"early refund", http.MethodPost, path + "/refund", alice, nil, http.StatusConflict, "campaign_still_active"},
		{"no contribution", http.MethodGet, "/api/v1/me/contributions/" + id.String(), bob, nil, http.StatusNotFound, "contribution_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := api.do(tt.method, tt.path, tt.account, tt.body)
			assert.Equal(t, tt.wantStatus, status, env.Error)
			assert.Equal(t, tt.wantCode, env.Code)
			assert.NotEmpty(t, env.RequestID)
		})
	}
}

func TestContributeAndWithdrawFlow(t *testing.T) {
	api := newTestAPI(t)
	id := api.createCampaign("Garden", 1_000, 7)
	path := "/api/v1/campaigns/" + id.String()

	status, env := api.do(http.MethodPost, path+"/contribute", alice, map[string]any{"amount": 600})
	require.Equal(t, http.StatusOK, status, env.Error)
	var receipt escrow.ContributionReceipt
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, uint64(600), receipt.TotalRaised)
	assert.False(t, receipt.IsSuccessful)

	status, env = api.do(http.MethodPost, path+"/contribute", bob, map[string]any{"amount": 400})
	require.Equal(t, http.StatusOK, status, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.True(t, receipt.IsSuccessful)

	status, env = api.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, status)
	var view struct {
		State        string `json:"state"`
		VaultBalance uint64 `json:"vault_balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, models.CampaignStateSuccessful, view.State)
	assert.Equal(t, uint64(1_000), view.VaultBalance)

	status, env = api.do(http.MethodPost, path+"/withdraw", creator, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, uint64(1_000), api.store.Balance(creator))

	status, env = api.do(http.MethodPost, path+"/withdraw", creator, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_withdrawn", env.Code)

	status, env = api.do(http.MethodGet, "/api/v1/me/balance", alice, nil)
	require.Equal(t, http.StatusOK, status)
	var bal struct {
		Balance     uint64 `json:"balance"`
		DepositMemo string `json:"deposit_memo"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &bal))
	assert.Equal(t, uint64(4_400), bal.Balance)
	assert.Equal(t, "deposit:"+alice, bal.DepositMemo)

	status, env = api.do(http.MethodGet, "/api/v1/me/transfers", alice, nil)
	require.Equal(t, http.StatusOK, status)
	var transfers []models.CustodyTransfer
	require.NoError(t, json.Unmarshal(env.Data, &transfers))
	require.Len(t, transfers, 2)
	assert.Equal(t, models.TransferKindIn, transfers[0].Kind)
	assert.Equal(t, uint64(600), transfers[0].Amount)
	assert.Equal(t, models.TransferKindDeposit, transfers[1].Kind)
}

func TestRefundFlow(t *testing.T) {
	api := newTestAPI(t)
	id := api.createCampaign("Bridge", 1_000, 1)
	path := "/api/v1/campaigns/" + id.String()

	status, env := api.do(http.MethodPost, path+"/contribute", alice, map[string]any{"amount": 300})
	require.Equal(t, http.StatusOK, status, env.Error)

	api.clock.Advance(24 * time.Hour)

	status, env = api.do(http.MethodPost, path+"/contribute", bob, map[string]any{"amount": 1})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "campaign_ended", env.Code)

	status, env = api.do(http.MethodPost, path+"/refund", alice, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, uint64(5_000), api.store.Balance(alice))

	status, env = api.do(http.MethodPost, path+"/refund", alice, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "nothing_to_refund", env.Code)

	status, env = api.do(http.MethodGet, path+"/contributions", "", nil)
	require.Equal(t, http.StatusOK, status)
	var list []models.Contribution
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Zero(t, list[0].Amount)
}

func TestListMyContributions(t *testing.T) {
	api := newTestAPI(t)
	first := api.createCampaign("One", 1_000, 7)
	second := api.createCampaign("Two", 1_000, 7)

	for _, id := range []uuid.UUID{first, second} {
		status, env := api.do(http.MethodPost, "/api/v1/campaigns/"+id.String()+"/contribute", alice, map[string]any{"amount": 10})
		require.Equal(t, http.StatusOK, status, env.Error)
	}

	status, env := api.do(http.MethodGet, "/api/v1/me/contributions", alice, nil)
	require.Equal(t, http.StatusOK, status)
	var list []models.Contribution
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 2)

	status, env = api.do(http.MethodGet, "/api/v1/me/contributions", bob, nil)
	require.Equal(t, http.StatusOK, status)
	list = nil
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list)
}

func TestRateLimitKeysProtectedRoutesByAccount(t *testing.T) {
	limiter := &memCounter{}
	api := newLimitedTestAPI(t, limiter, 1)

	// Both callers share the test IP; each account gets its own bucket.
	status, _ := api.do(http.MethodGet, "/api/v1/me/balance", alice, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodGet, "/api/v1/me/balance", bob, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env := api.do(http.MethodGet, "/api/v1/me/balance", alice, nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", env.Code)

	assert.ElementsMatch(t, []string{
		"rl:/api/v1/me/balance:" + alice,
		"rl:/api/v1/me/balance:" + bob,
	}, limiter.keys())
}

func TestRateLimitKeysPublicRoutesByIP(t *testing.T) {
	limiter := &memCounter{}
	api := newLimitedTestAPI(t, limiter, 1)

	status, _ := api.do(http.MethodGet, "/api/v1/campaigns", "", nil)
	assert.Equal(t, http.StatusOK, status)

	// A token does not buy a separate bucket on a public route.
	status, env := api.do(http.MethodGet, "/api/v1/campaigns", alice, nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", env.Code)

	require.Len(t, limiter.keys(), 1)
	assert.NotContains(t, limiter.keys()[0], alice)
}
