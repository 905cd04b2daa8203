package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"rendezvous/internal/config"
	"rendezvous/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupMiddleware_SecurityHeaders(t *testing.T) {
	srv := &Server{config: &config.Config{}}
	app := fiber.New()
	srv.SetupMiddleware(app)
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "cross-origin", resp.Header.Get("Cross-Origin-Resource-Policy"))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestSetupMiddleware_RecoversFromPanics(t *testing.T) {
	srv := &Server{config: &config.Config{}}
	app := fiber.New()
	srv.SetupMiddleware(app)
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("boom")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

const frontendOrigin = "https://app.rendezvous.example"

func newCORSEnv(t *testing.T) *testEnv {
	env := newTestEnv(t)
	env.srv.config.AllowedOrigins = frontendOrigin
	return env
}

func fromFrontend(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Origin", frontendOrigin)
	return req
}

func TestApp_LimiterResponseKeepsCORSHeaders(t *testing.T) {
	env := newCORSEnv(t)

	for i := 0; i < 100; i++ {
		require.Equal(t, http.StatusOK, env.do(t, fromFrontend(http.MethodGet, "/health/live")).StatusCode, "request %d", i+1)
	}

	resp := env.do(t, fromFrontend(http.MethodGet, "/health/live"))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, frontendOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, models.CodeRateLimitExceeded, decode[models.ErrorResponse](t, resp).Code)
}

func TestApp_PreflightSkipsLimiter(t *testing.T) {
	env := newCORSEnv(t)

	for i := 0; i < 100; i++ {
		env.do(t, fromFrontend(http.MethodPost, "/api/logout"))
	}
	require.Equal(t, http.StatusTooManyRequests, env.do(t, fromFrontend(http.MethodPost, "/api/logout")).StatusCode)

	req := fromFrontend(http.MethodOptions, "/api/login")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	resp := env.do(t, req)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, frontendOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestApp_UnknownOriginGetsNoCORSHeaders(t *testing.T) {
	env := newCORSEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("Origin", "https://evil.example")

	resp := env.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
