package server

import (
	"rendezvous/internal/middleware"
	"rendezvous/internal/models"
	"rendezvous/internal/service"

	"github.com/gofiber/fiber/v2"
)

type matchPartnerView struct {
	ID        uint   `json:"id"`
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Avatar    string `json:"avatar"`
}

type matchResponse struct {
	Status   service.LikeStatus `json:"status"`
	Message  string             `json:"message"`
	Like     *models.Like       `json:"like,omitempty"`
	Notified bool               `json:"notified"`
	// Match is only disclosed on a mutual match.
	Match *matchPartnerView `json:"match,omitempty"`
}

// Match handles POST (and GET) /api/clients/:id/match.
func (s *Server) Match(c *fiber.Ctx) error {
	targetID, err := s.parseID(c)
	if err != nil {
		return nil
	}
	userID, _ := middleware.CurrentUserID(c)

	res, err := s.matchService.RegisterLike(c.UserContext(), userID, targetID, s.now())
	if err != nil {
		return s.respondServiceError(c, err)
	}

	out := matchResponse{
		Status:   res.Status,
		Message:  "Like recorded",
		Like:     res.Like,
		Notified: res.Notified,
	}
	if res.Status == service.StatusMutualMatch {
		out.Message = "It's a match!"
		out.Match = &matchPartnerView{
			ID:        res.Target.ID,
			FirstName: res.Target.FirstName,
			Email:     res.Target.Email,
			Avatar:    res.Target.Avatar,
		}
	}
	return c.JSON(out)
}

// GetMyLikes handles GET /api/likes, oldest first.
func (s *Server) GetMyLikes(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)
	likes, err := s.matchService.History(c.UserContext(), userID)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(likes)
}
