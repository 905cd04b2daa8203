// Package middleware provides request-scoped HTTP middleware for the application.
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AccessTokenCookie is the cookie carrying the access token set at login.
const AccessTokenCookie = "users_access_token"

// ExtractToken returns the access token of the request: the cookie first,
// then an "Authorization: Bearer <token>" header. Empty when neither is present.
func ExtractToken(c *fiber.Ctx) string {
	if token := strings.TrimSpace(c.Cookies(AccessTokenCookie)); token != "" {
		return token
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return ""
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// CurrentUserID returns the authenticated user ID stored by the auth middleware.
func CurrentUserID(c *fiber.Ctx) (uint, bool) {
	uid, ok := c.Locals("userID").(uint)
	return uid, ok && uid != 0
}
