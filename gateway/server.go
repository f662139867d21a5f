// Package gateway exposes the pipeline over HTTP. Route wiring and request
// binding live here, all semantics live in the docflow facade.
package gateway

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/siherrmann/docflow"
)

// Server wires the gateway endpoints onto a fiber app.
type Server struct {
	app          *fiber.App
	flow         *docflow.Docflow
	log          *slog.Logger
	readyTimeout time.Duration
}

// NewServer creates a gateway server around the given Docflow instance.
func NewServer(flow *docflow.Docflow, log *slog.Logger) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "docflow",
			DisableStartupMessage: true,
		}),
		flow:         flow,
		log:          log,
		readyTimeout: 2 * time.Second,
	}

	s.app.Use(logger.New())

	s.app.Post("/detect-language", s.DetectLanguage)
	s.app.Post("/classify-intent", s.ClassifyIntent)
	s.app.Post("/scan", s.Scan)
	s.app.Post("/chunk-embed", s.ChunkEmbed)
	s.app.Post("/retrieve", s.Retrieve)
	s.app.Post("/rerank", s.Rerank)
	s.app.Post("/citations", s.Citations)
	s.app.Post("/documents", s.CreateDocument)

	s.app.Post("/dlq/reprocess", s.Reprocess)
	s.app.Get("/dlq/depth", s.Depth)
	s.app.Post("/dlq/release", s.Release)
	s.app.Get("/dlq/jobs", s.Jobs)

	s.app.Get("/health/live", s.Live)
	s.app.Get("/health/ready", s.Ready)

	return s
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves the gateway on the given address until Shutdown.
func (s *Server) Listen(address string) error {
	s.log.Info("Gateway listening", slog.String("address", address))
	return s.app.Listen(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
