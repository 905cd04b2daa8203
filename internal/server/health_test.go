package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"rendezvous/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	live := env.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, live.StatusCode)

	ready := env.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, ready.StatusCode)
	body := decode[map[string]any](t, ready)
	assert.Equal(t, "healthy", body["status"])

	env.mr.Close()
	down := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, down.StatusCode)
}

func TestWebsocket_RequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)
	me := testutil.CreateUser(t, env.db)

	resp := env.authed(t, http.MethodGet, "/api/ws", env.tokenFor(t, me))
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)

	anon := env.do(t, httptest.NewRequest(http.MethodGet, "/api/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, anon.StatusCode)
}
