package server

import (
	"math"
	"strconv"
	"strings"

	"rendezvous/internal/middleware"
	"rendezvous/internal/models"
	"rendezvous/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListUsers handles GET /api/list.
// Query: first_name, last_name, gender, sort_by_date (default true), distance in meters.
func (s *Server) ListUsers(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)

	filter := service.ListFilter{
		FirstName:     strings.TrimSpace(c.Query("first_name")),
		LastName:      strings.TrimSpace(c.Query("last_name")),
		Gender:        models.Gender(strings.ToLower(strings.TrimSpace(c.Query("gender")))),
		SortByRecency: c.QueryBool("sort_by_date", true),
	}
	if raw := strings.TrimSpace(c.Query("distance")); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsInf(d, 0) {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("distance must be a number of meters"))
		}
		filter.MaxDistance = &d
	}

	users, err := s.userService.ListUsers(c.UserContext(), userID, filter)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(users)
}
