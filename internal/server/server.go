package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/BenhadineKaoutar/picorpixel/internal/config"
	"github.com/BenhadineKaoutar/picorpixel/internal/game"
	"github.com/BenhadineKaoutar/picorpixel/internal/msgcat"
	"github.com/BenhadineKaoutar/picorpixel/internal/obslog"
	"github.com/BenhadineKaoutar/picorpixel/internal/store"
	"github.com/BenhadineKaoutar/picorpixel/pkg/gamedto"
)

// Server owns the HTTP surface: routing, auth, rate limiting and the
// translation between domain types and wire DTOs.
type Server struct {
	app          *fiber.App
	orchestrator *game.Orchestrator
	kv           store.KV
	messages     *msgcat.Catalog
	jwtSecret    string
	limiter      *clientLimiter
	defaultLimit int
	maxLimit     int
}

func New(cfg *config.AppConfig, orchestrator *game.Orchestrator, kv store.KV, messages *msgcat.Catalog) *Server {
	s := &Server{
		orchestrator: orchestrator,
		kv:           kv,
		messages:     messages,
		jwtSecret:    cfg.JWTSecret,
		limiter:      newClientLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		defaultLimit: cfg.LeaderboardDefaultLimit,
		maxLimit:     cfg.LeaderboardMaxLimit,
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		BodyLimit:    256 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == "" {
		corsOrigins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins,
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Use(s.RateLimitMiddleware)

	app.Get("/healthz", s.Healthz)

	api := app.Group("/api")
	api.Get("/challenge/daily", s.GetDailyChallenge)
	api.Get("/leaderboard", s.GetLeaderboard)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws/leaderboard", websocket.New(s.LeaderboardFeed))

	gameGroup := api.Group("/game")
	gameGroup.Use(s.AuthMiddleware)
	gameGroup.Post("/start", s.StartGame)
	gameGroup.Post("/guess", s.SubmitGuess)
	gameGroup.Post("/complete", s.CompleteGame)

	userGroup := api.Group("/users")
	userGroup.Use(s.AuthMiddleware)
	userGroup.Get("/stats", s.GetUserStats)
	userGroup.Get("/privacy", s.GetPrivacy)
	userGroup.Put("/privacy", s.PutPrivacy)

	s.app = app
	return s
}

// Listen blocks serving requests until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests and stops the limiter sweeper.
func (s *Server) Shutdown() error {
	s.limiter.close()
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Healthz pings the store; a failing store surfaces as 503.
func (s *Server) Healthz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	if err := s.kv.Ping(ctx); err != nil {
		obslog.L().Error("healthz_store_error", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// respondError maps domain errors to HTTP statuses. Store failures are
// logged with full detail but surface as a generic 503/504 payload.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, game.ErrInvalidArgs):
		return c.Status(fiber.StatusBadRequest).JSON(gamedto.ErrorResponse{
			Error: gamedto.DomainError{Code: gamedto.CodeValidation, Message: s.messages.Get("error.validation")},
		})
	case errors.Is(err, game.ErrChallengeNotFound):
		return c.Status(fiber.StatusNotFound).JSON(gamedto.ErrorResponse{
			Error: gamedto.DomainError{Code: gamedto.CodeNotFound, Message: s.messages.Get("error.challenge_not_found")},
		})
	case errors.Is(err, game.ErrImageNotFound):
		return c.Status(fiber.StatusNotFound).JSON(gamedto.ErrorResponse{
			Error: gamedto.DomainError{Code: gamedto.CodeNotFound, Message: s.messages.Get("error.image_not_found")},
		})
	case errors.Is(err, game.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(gamedto.ErrorResponse{
			Error: gamedto.DomainError{Code: gamedto.CodeNotFound, Message: s.messages.Get("error.session_not_found")},
		})
	case errors.Is(err, game.ErrSessionCompleted):
		return c.Status(fiber.StatusConflict).JSON(gamedto.ErrorResponse{
			Error: gamedto.DomainError{Code: gamedto.CodeConflict, Message: s.messages.Get("error.session_completed")},
		})
	case errors.Is(err, context.DeadlineExceeded):
		obslog.L().Error("store_timeout", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusGatewayTimeout).JSON(gamedto.ErrorResponse{
			Error: gamedto.DomainError{Code: gamedto.CodeTimeout, Message: s.messages.Get("error.store_unavailable"), Retryable: true},
		})
	default:
		obslog.L().Error("store_error", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(gamedto.ErrorResponse{
			Error: gamedto.DomainError{Code: gamedto.CodeServiceUnavailable, Message: s.messages.Get("error.store_unavailable"), Retryable: true},
		})
	}
}
