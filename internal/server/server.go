// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rendezvous/internal/config"
	"rendezvous/internal/geo"
	"rendezvous/internal/middleware"
	"rendezvous/internal/models"
	"rendezvous/internal/notifications"
	"rendezvous/internal/repository"
	"rendezvous/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const localUserID = "userID"

// Deps are the runtime dependencies of a Server. Redis, Geocoder and
// MatchNotifier are optional.
type Deps struct {
	DB            *gorm.DB
	Redis         *redis.Client
	Geocoder      geo.Geocoder
	MatchNotifier notifications.MatchNotifier
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	likeRepo       repository.LikeRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	auth           *service.AuthService
	avatars        *service.AvatarService
	userService    *service.UserService
	matchService   *service.MatchService
	now            func() time.Time
}

// NewServer wires repositories and services on top of already connected stores.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, errors.New("database is required")
	}

	userRepo := repository.NewUserRepository(deps.DB)
	likeRepo := repository.NewLikeRepository(deps.DB)

	auth, err := service.NewAuthService(userRepo, deps.Redis, cfg)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	avatars, err := service.NewAvatarService(cfg)
	if err != nil {
		return nil, fmt.Errorf("avatar service: %w", err)
	}

	s := &Server{
		config:         cfg,
		db:             deps.DB,
		redis:          deps.Redis,
		promMiddleware: middleware.InitMetrics("rendezvous-api"),
		userRepo:       userRepo,
		likeRepo:       likeRepo,
		auth:           auth,
		avatars:        avatars,
		now:            func() time.Time { return time.Now().UTC() },
	}
	s.userService = service.NewUserService(userRepo, auth, avatars, deps.Geocoder, cfg.DefaultAddress)

	var matchNotifier notifications.MatchNotifier = notifications.LogNotifier{}
	if deps.MatchNotifier != nil {
		matchNotifier = deps.MatchNotifier
	}
	if deps.Redis != nil {
		s.notifier = notifications.NewNotifier(deps.Redis)
		s.hub = notifications.NewHub()
		// Realtime push failures do not affect Notified.
		matchNotifier = notifications.Fanout{
			matchNotifier,
			notifications.BestEffort{Notifier: notifications.NewRealtimeNotifier(s.notifier)},
		}
	}
	s.matchService = service.NewMatchService(deps.DB, userRepo, likeRepo, matchNotifier, service.MatchConfig{
		DailyLikeLimit: cfg.DailyLikeLimit,
		NotifyTimeout:  cfg.NotifyTimeout,
	})

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Avatars are served from this origin to other origins.
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  models.CodeRateLimitExceeded,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Static(service.AvatarPublicPrefix, s.avatars.Dir(), fiber.Static{
		MaxAge: 3600,
	})

	api := app.Group("/api")

	api.Post("/clients/create", middleware.RateLimit(s.redis, 3, 10*time.Minute, "register"), s.Register)
	api.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	api.Post("/logout", s.Logout)

	protected := api.Group("", s.AuthRequired())
	protected.Get("/me", s.GetMe)
	protected.Get("/list", s.ListUsers)
	protected.Get("/likes", s.GetMyLikes)
	protected.Post("/clients/:id/match", s.Match)
	protected.Get("/clients/:id/match", s.Match)
	protected.Get("/ws", s.UpgradeRequired(), s.WebsocketHandler())
}

// App returns the configured Fiber application, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	bodyLimit := 10 * 1024 * 1024
	if s.config.AvatarMaxUploadMB > 0 {
		// Leave room for the other form fields.
		bodyLimit = (s.config.AvatarMaxUploadMB + 1) * 1024 * 1024
	}
	app := fiber.New(fiber.Config{
		AppName:   "Rendezvous API",
		BodyLimit: bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database and Redis answer.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired verifies the access token and loads its owner. The user ID is
// stored in locals and in the user context.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := middleware.ExtractToken(c)
		if token == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token missing"))
		}

		claims, err := s.auth.ParseToken(c.UserContext(), token)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		if _, err := s.userRepo.GetByID(c.UserContext(), claims.UserID); err != nil {
			if models.HasCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("User not found"))
			}
			return s.respondServiceError(c, err)
		}

		c.Locals(localUserID, claims.UserID)
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, claims.UserID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// Start wires the realtime relay and listens on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring",
					slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub",
				slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
