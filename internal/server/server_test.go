package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-box/internal/app"
	"github.com/sakif/snippet-box/internal/auth"
	"github.com/sakif/snippet-box/internal/config"
)

const testSecret = "server-test-secret-0123456789"

func newTestServer(t *testing.T, secret string) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Store.Driver = config.DriverMemory
	cfg.Auth.Secret = secret

	a, err := app.New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	s, err := New(a, logger)
	require.NoError(t, err)
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("Content-Type"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	serve(s, httptest.NewRequest(http.MethodPost, "/api/snippets/refresh", nil))

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "snippetbox_http_requests_total")
	assert.Contains(t, body, `snippetbox_operations_total{op="refresh",result="ok"} 1`)
}

func TestAPI_OpenWithoutSecret(t *testing.T) {
	s := newTestServer(t, "")

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/snippets", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAPI_RequiresTokenWithSecret(t *testing.T) {
	s := newTestServer(t, testSecret)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/snippets", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Health stays public.
	rr = serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)
	token, err := tokens.Issue("test")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/snippets", strings.NewReader(`{"title":"authed"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr = serve(s, req)
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestNew_ShortSecretRejected(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Store.Driver = config.DriverMemory
	cfg.Auth.Secret = "short"

	a, err := app.New(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer a.Close()

	_, err = New(a, logger)
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := newTestServer(t, "")
	s.app.Config.Server.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}

func TestRefreshThroughPalette(t *testing.T) {
	s := newTestServer(t, "")

	serve(s, httptest.NewRequest(http.MethodPost, "/api/palette/open", nil))
	rr := serve(s, httptest.NewRequest(http.MethodPost, "/api/palette/activate", strings.NewReader(`{"index":1}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Merged")

	assert.NotEmpty(t, s.app.Snippets.Snippets())
	assert.False(t, s.Controller().State().Palette.Open)
}
