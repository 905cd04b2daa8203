package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToken(t *testing.T) {
	app := fiber.New()
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString(ExtractToken(c))
	})

	tests := []struct {
		name       string
		cookie     string
		authHeader string
		expected   string
	}{
		{name: "Cookie", cookie: "cookie-token", expected: "cookie-token"},
		{name: "Bearer Header", authHeader: "Bearer header-token", expected: "header-token"},
		{name: "Cookie Wins Over Header", cookie: "cookie-token", authHeader: "Bearer header-token", expected: "cookie-token"},
		{name: "Lowercase Scheme", authHeader: "bearer header-token", expected: "header-token"},
		{name: "Basic Scheme", authHeader: "Basic dXNlcjpwYXNz", expected: ""},
		{name: "Malformed Header", authHeader: "Bearer", expected: ""},
		{name: "Nothing", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tt.cookie})
			}
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(body))
		})
	}
}

func TestCurrentUserID(t *testing.T) {
	app := fiber.New()
	app.Get("/anon", func(c *fiber.Ctx) error {
		_, ok := CurrentUserID(c)
		return c.JSON(fiber.Map{"ok": ok})
	})
	app.Get("/auth", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(7))
		uid, ok := CurrentUserID(c)
		return c.JSON(fiber.Map{"ok": ok, "uid": uid})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/anon", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"ok":false}`, string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/auth", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"ok":true,"uid":7}`, string(body))
}
