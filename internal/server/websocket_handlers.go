package server

import (
	"log/slog"

	"rendezvous/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// UpgradeRequired rejects plain HTTP requests on websocket routes.
func (s *Server) UpgradeRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if s.hub == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "realtime notifications unavailable")
		}
		return c.Next()
	}
}

// WebsocketHandler relays the user's notification channel to the socket.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals(localUserID).(uint)
		if !ok || uid == 0 {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration rejected",
				slog.Uint64("user_id", uint64(uid)), slog.String("error", err.Error()))
			_ = conn.WriteJSON(map[string]string{"error": err.Error()})
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
