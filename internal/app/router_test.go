package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiusage/disclosure/internal/accounts"
	"github.com/aiusage/disclosure/internal/observability"
	"github.com/aiusage/disclosure/internal/rbac"
	_ "github.com/aiusage/disclosure/testing"
)

const routerSecret = "router-secret"

type stubUsers map[string]rbac.UserRecord

func (s stubUsers) FindUser(_ context.Context, id string) (rbac.UserRecord, error) {
	rec, ok := s[id]
	if !ok {
		return rbac.UserRecord{}, rbac.ErrUserNotFound
	}
	return rec, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, db Pinger) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := stubUsers{"s-1": {ID: "s-1", Role: rbac.RoleStudent, PrivacyAckVersion: 1}}
	return NewRouter(RouterParams{
		Logger: logger,
		Config: &Config{AppEnv: "development", RateLimitPerMin: 1000},
		RBACMiddleware: rbac.Middleware{
			Gate:     rbac.NewGate(nil, logger),
			Resolver: rbac.NewTokenResolver(routerSecret, users),
			Logger:   logger,
		},
		MeHandler: rbac.NewHandler(),
		Metrics:   observability.NewMetrics(),
		Database:  db,
	})
}

func TestInTestMode(t *testing.T) {
	assert.True(t, InTestMode())
}

func TestHealthz(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, stubPinger{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	newTestRouter(t, stubPinger{err: errors.New("down")}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	token, err := rbac.IssueToken(routerSecret, "s-1", time.Hour, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"role":"student"`)
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestUnknownRouteIsProblem(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "disclosure_http_requests_total")
}

type brokenAccounts struct{}

func (brokenAccounts) FindByEmail(context.Context, string) (accounts.Account, bool, error) {
	return accounts.Account{}, false, errors.New("connection refused")
}

func (brokenAccounts) Create(context.Context, accounts.Account) error { return nil }

func (brokenAccounts) SetPrivacyAck(context.Context, string, int) error { return nil }

func loginAgainstBrokenStore(t *testing.T, env string) *httptest.ResponseRecorder {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: env, RateLimitPerMin: 1000}
	c := &Container{
		Accounts: accounts.NewService(brokenAccounts{}, nil, accounts.Config{Secret: routerSecret, TokenTTL: time.Hour, BcryptCost: 4}, logger),
	}
	router := NewRouter(c.RouterParams(cfg, logger, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@example.edu","password":"secret-pass"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-Proto", "https")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestInternalErrorDetailOutsideProduction(t *testing.T) {
	rr := loginAgainstBrokenStore(t, "development")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "connection refused")

	rr = loginAgainstBrokenStore(t, "production")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}
