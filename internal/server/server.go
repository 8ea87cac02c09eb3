// Package server exposes the engine over HTTP: generation intake, project
// and team reads, roster mutations, and the realtime event stream.
package server

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/devstory-labs/devstory-engine/internal/health"
	"github.com/devstory-labs/devstory-engine/internal/metrics"
	"github.com/devstory-labs/devstory-engine/internal/orchestrator"
	"github.com/devstory-labs/devstory-engine/internal/requestid"
	"github.com/devstory-labs/devstory-engine/internal/store"
	"github.com/devstory-labs/devstory-engine/internal/team"
)

// Config holds the HTTP server's settings.
type Config struct {
	ListenAddr  string
	CORSOrigins string
}

// Server is the engine's Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   Config
}

// NewServer creates and configures the HTTP server.
func NewServer(
	cfg Config,
	orch *orchestrator.Orchestrator,
	roster *team.Service,
	st *store.Store,
	checker *health.Checker,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	handlers := NewHandlers(orch, roster, st, checker, m, logger)

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, logger)
	s.setupRoutes(handlers)

	return s
}

func (s *Server) setupMiddleware(cfg Config, logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware
	s.app.Use(func(c *fiber.Ctx) error {
		_, reqID := requestid.New(c.Context())
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
			AllowMethods: "GET, POST, PATCH, PUT, OPTIONS",
		}))
	}

	// Request logging, skipping noisy probes
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" {
			return c.Next()
		}

		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Str("request_id", c.Locals("request_id").(string)).
			Msg("api request")

		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers) {
	s.app.Get("/healthz", h.Liveness)
	s.app.Get("/readyz", h.Readiness)

	v1 := s.app.Group("/api/v1")

	// Generation
	v1.Post("/generate", h.Generate)

	// Project reads
	v1.Get("/projects", h.ListProjects)
	v1.Get("/projects/:id", h.GetProject)

	// Teams and rosters
	v1.Post("/teams", h.CreateTeam)
	v1.Get("/teams/:id", h.GetTeam)
	v1.Get("/teams/:id/projects", h.ListTeamProjects)
	v1.Patch("/teams/:id", h.RenameTeam)
	v1.Get("/teams/:id/members", h.GetTeamMembers)
	v1.Post("/teams/:id/members", h.AddTeamMember)
	v1.Get("/teams/:id/activity", h.ListActivity)
	v1.Get("/teams/:id/stream", h.StreamTeam)

	// Users
	v1.Put("/users/:uid", h.RegisterProfile)
	v1.Get("/users/:uid/projects", h.ListUserProjects)
	v1.Get("/users/:uid/teams", h.GetUserTeams)
	v1.Get("/users/:uid/stream", h.StreamUser)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("http server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("http server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}

		return c.Status(code).JSON(fiber.Map{"error": detail})
	}
}
