package api

import (
	"strings"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	if !s.config.Server.Production {
		s.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Security.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	s.app.Use(s.metricsMiddleware())

	s.app.Get("/api/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	s.app.Get("/api/metrics", s.handleMetricsJSON)

	api := s.app.Group("/api")

	api.Post("/auth/login", s.handleLogin)

	protected := api.Use(s.authMiddleware())

	protected.Post("/inventori/process-nota", s.handleProcessNota)
	protected.Post("/inventori/parse-text", s.handleParseText)
	protected.Post("/inventori/save-nota", s.handleSaveNota)

	protected.Get("/inventori/low-stock", s.handleLowStock)
	protected.Get("/inventori/export", s.handleExport)
	protected.Get("/inventori", s.handleListItems)
	protected.Post("/inventori", s.handleCreateItem)
	protected.Put("/inventori", s.handleUpdateItem)
	protected.Delete("/inventori", s.handleDeleteItem)

	protected.Get("/notas", s.handleListNotas)
	protected.Get("/notas/:id", s.handleGetNota)
}
