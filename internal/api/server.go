package api

import (
	"context"
	"time"

	"github.com/gmsas95/notakopi/internal/config"
	"github.com/gmsas95/notakopi/internal/inventory"
	"github.com/gmsas95/notakopi/internal/metrics"
	"github.com/gmsas95/notakopi/internal/nota"
	"github.com/gmsas95/notakopi/internal/ocr"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// NotaService is the OCR and parsing flow behind the nota endpoints
type NotaService interface {
	ProcessNota(ctx context.Context, filename string, data []byte) (*nota.ParsedReceipt, string, error)
	ParseText(text string) *nota.ParsedReceipt
	SaveNota(ctx context.Context, receipt *nota.ParsedReceipt, source, rawText string) (*inventory.SaveResult, error)
}

// Deps are the collaborators the server needs
type Deps struct {
	Config      *config.Config
	Notas       NotaService
	Inventory   *inventory.Store
	Metrics     *metrics.Metrics
	Upload      ocr.UploadPolicy
	OCRProvider string
	Version     string
	Logger      *zap.Logger
}

// Server handles the HTTP API
type Server struct {
	app       *fiber.App
	config    *config.Config
	notas     NotaService
	inventory *inventory.Store
	metrics   *metrics.Metrics
	upload    ocr.UploadPolicy
	provider  string
	version   string
	logger    *zap.Logger
}

// New creates a new API server
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Default()
	}

	readTimeout := time.Duration(d.Config.Server.ReadTimeout) * time.Second
	writeTimeout := time.Duration(d.Config.Server.WriteTimeout) * time.Second

	app := fiber.New(fiber.Config{
		ReadTimeout:           readTimeout,
		WriteTimeout:          writeTimeout,
		IdleTimeout:           120 * time.Second,
		BodyLimit:             int(d.Config.Upload.MaxBytes) + 1<<20,
		DisableStartupMessage: d.Config.Server.Production,
	})

	s := &Server{
		app:       app,
		config:    d.Config,
		notas:     d.Notas,
		inventory: d.Inventory,
		metrics:   d.Metrics,
		upload:    d.Upload,
		provider:  d.OCRProvider,
		version:   d.Version,
		logger:    d.Logger,
	}

	s.setupRoutes()
	return s
}

// App exposes the fiber app, mostly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the server
func (s *Server) Start() error {
	return s.app.Listen(s.config.Addr())
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
