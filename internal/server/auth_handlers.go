package server

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"rendezvous/internal/middleware"
	"rendezvous/internal/models"
	"rendezvous/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/clients/create with a multipart form.
func (s *Server) Register(c *fiber.Ctx) error {
	avatar, err := s.readAvatar(c)
	if err != nil {
		return s.respondServiceError(c, err)
	}

	user, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		Email:           c.FormValue("email"),
		Password:        c.FormValue("password"),
		PasswordConfirm: c.FormValue("password_confirm"),
		FirstName:       c.FormValue("first_name"),
		LastName:        c.FormValue("last_name"),
		Gender:          models.Gender(strings.ToLower(strings.TrimSpace(c.FormValue("gender")))),
		Address:         c.FormValue("address"),
		Avatar:          avatar,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "user registered",
		slog.Uint64("user_id", uint64(user.ID)), slog.Bool("has_position", user.HasPosition()))
	return c.Status(fiber.StatusCreated).JSON(user)
}

// readAvatar returns the uploaded avatar bytes, or nil when none was sent.
func (s *Server) readAvatar(c *fiber.Ctx) ([]byte, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// Urlencoded registrations carry no file.
		return nil, nil
	}
	files := form.File["avatar"]
	if len(files) == 0 || files[0].Size == 0 {
		return nil, nil
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, models.NewValidationError("Invalid avatar upload")
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewValidationError("Invalid avatar upload")
	}
	return content, nil
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Login handles POST /api/login. It accepts a form or JSON body and sets the
// access token cookie.
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Email and password are required"))
	}

	user, err := s.auth.Authenticate(c.UserContext(), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		if models.HasCode(err, models.CodeUnauthorized) {
			return models.RespondWithError(c, fiber.StatusBadRequest, err)
		}
		return s.respondServiceError(c, err)
	}

	token, exp, err := s.auth.IssueToken(user.ID)
	if err != nil {
		return s.respondServiceError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.JSON(fiber.Map{
		"ok":            true,
		"access_token":  token,
		"refresh_token": nil,
		"message":       "Authorization successful!",
	})
}

// Logout handles POST /api/logout. The cookie is always cleared; a valid
// token is revoked until it expires.
func (s *Server) Logout(c *fiber.Ctx) error {
	if token := middleware.ExtractToken(c); token != "" {
		if claims, err := s.auth.ParseToken(c.UserContext(), token); err == nil {
			if err := s.auth.Revoke(c.UserContext(), claims); err != nil {
				middleware.Logger.WarnContext(c.UserContext(), "token revocation failed",
					slog.String("error", err.Error()))
			}
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"message": "User successfully logged out"})
}

// GetMe handles GET /api/me.
func (s *Server) GetMe(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)
	user, err := s.userService.GetUserByID(c.UserContext(), userID)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(user)
}
