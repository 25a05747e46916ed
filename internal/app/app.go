package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gmsas95/notakopi/internal/api"
	"github.com/gmsas95/notakopi/internal/batch"
	"github.com/gmsas95/notakopi/internal/config"
	"github.com/gmsas95/notakopi/internal/cron"
	apperrors "github.com/gmsas95/notakopi/internal/errors"
	"github.com/gmsas95/notakopi/internal/inbox"
	"github.com/gmsas95/notakopi/internal/inventory"
	"github.com/gmsas95/notakopi/internal/metrics"
	"github.com/gmsas95/notakopi/internal/nota"
	"github.com/gmsas95/notakopi/internal/ocr"
	"github.com/gmsas95/notakopi/internal/store"
	"go.uber.org/zap"
)

// Scheduled job names
const (
	JobInboxSweep  = "inbox-sweep"
	JobStockReport = "stock-report"
)

const (
	sourceOCR  = "ocr"
	sourceText = "text"

	stockReportKey = "report:low-stock"
	inboxResultKey = "inbox:"
)

type App struct {
	Config     *config.Config
	Store      *store.Store
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Parser     *nota.Parser
	OCR        ocr.Extractor
	Upload     ocr.UploadPolicy
	Inventory  *inventory.Service
	Inbox      *inbox.Inbox
	CronRunner *cron.Runner
	Version    string
}

// New wires the services on top of an opened store. A misconfigured OCR
// provider is not fatal: text parsing and inventory keep working.
func New(cfg *config.Config, st *store.Store, logger *zap.Logger, version string) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	invStore, err := inventory.NewStore(st.DB())
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory: %w", err)
	}

	app := &App{
		Config:    cfg,
		Store:     st,
		Logger:    logger,
		Metrics:   metrics.Default(),
		Parser:    nota.NewParser(logger.Named("nota")),
		Inventory: inventory.NewService(invStore, logger.Named("inventory")),
		Upload: ocr.UploadPolicy{
			MaxBytes:     cfg.Upload.MaxBytes,
			AllowedTypes: cfg.Upload.AllowedTypes,
		},
		Version: version,
	}

	extractor, err := ocr.New(cfg.OCR, st, logger.Named("ocr"))
	if err != nil {
		logger.Warn("OCR disabled", zap.String("provider", cfg.OCR.Provider), zap.Error(err))
	} else {
		app.OCR = ocr.Instrument(extractor, app.Metrics)
	}

	app.Inbox = inbox.New(cfg.Inbox, app.handleInboxFile, logger.Named("inbox"))
	return app, nil
}

// OCRProvider names the active OCR backend, or "none"
func (app *App) OCRProvider() string {
	if app.OCR == nil {
		return "none"
	}
	return app.OCR.Name()
}

// ProcessNota runs OCR over an uploaded file and parses the text. The
// normalized OCR text is returned with the receipt.
func (app *App) ProcessNota(ctx context.Context, filename string, data []byte) (*nota.ParsedReceipt, string, error) {
	if app.OCR == nil {
		app.Metrics.RecordNota(sourceOCR, 0, apperrors.ErrOCRNotConfigured)
		return nil, "", apperrors.ErrOCRNotConfigured
	}

	text, err := app.OCR.ExtractText(ctx, filename, data)
	if err != nil {
		app.Metrics.RecordNota(sourceOCR, 0, err)
		return nil, "", err
	}

	text = ocr.Normalize(text)
	receipt := app.parse(text)
	app.Metrics.RecordNota(sourceOCR, receipt.ItemCount(), nil)

	app.Logger.Info("Processed nota",
		zap.String("file", filename),
		zap.Int("items", receipt.ItemCount()),
		zap.String("supplier", receipt.Supplier),
	)
	return receipt, text, nil
}

// ParseText parses text that was already extracted elsewhere
func (app *App) ParseText(text string) *nota.ParsedReceipt {
	receipt := app.parse(ocr.Normalize(text))
	app.Metrics.RecordNota(sourceText, receipt.ItemCount(), nil)
	return receipt
}

func (app *App) parse(text string) *nota.ParsedReceipt {
	start := time.Now()
	receipt := app.Parser.Parse(text)
	app.Metrics.RecordParseDuration(time.Since(start))
	return receipt
}

// SaveNota applies a parsed receipt to the inventory
func (app *App) SaveNota(ctx context.Context, receipt *nota.ParsedReceipt, source, rawText string) (*inventory.SaveResult, error) {
	result, err := app.Inventory.SaveNota(ctx, receipt, source, rawText)
	if err != nil {
		return nil, err
	}
	app.Metrics.RecordInventorySave(len(result.Created), len(result.Merged))
	return result, nil
}

// handleInboxFile processes one dropped file. Without auto_save the parsed
// receipt is kept in the KV store for review instead of touching stock.
func (app *App) handleInboxFile(ctx context.Context, path string, data []byte) error {
	name := filepath.Base(path)

	var (
		receipt *nota.ParsedReceipt
		raw     string
	)
	if strings.EqualFold(filepath.Ext(name), ".txt") {
		raw = string(data)
		receipt = app.ParseText(raw)
	} else {
		if _, err := app.Upload.Check(name, "", data); err != nil {
			return err
		}
		var err error
		if receipt, raw, err = app.ProcessNota(ctx, name, data); err != nil {
			return err
		}
	}

	if receipt.ItemCount() == 0 {
		return apperrors.New(apperrors.ErrEmptyNota.Code, fmt.Sprintf("no items found in %s", name))
	}

	if !app.Config.Inbox.AutoSave {
		return app.Store.SetKV(inboxResultKey+name, store.ToJSON(receipt))
	}

	result, err := app.SaveNota(ctx, receipt, "inbox:"+name, raw)
	if err != nil {
		return err
	}
	app.Logger.Info("Saved inbox nota",
		zap.String("file", name),
		zap.Int("created", len(result.Created)),
		zap.Int("merged", len(result.Merged)),
	)
	return nil
}

// InboxResult returns the receipt parsed from an inbox file that was not
// saved automatically.
func (app *App) InboxResult(name string) (*nota.ParsedReceipt, error) {
	data, err := app.Store.GetKV(inboxResultKey + name)
	if err != nil {
		return nil, err
	}
	var receipt nota.ParsedReceipt
	if err := store.FromJSON(data, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// StockReport is the stored result of the low-stock job
type StockReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Threshold   float64          `json:"threshold"`
	Items       []inventory.Item `json:"items"`
}

// LowStockReport lists items at or below the configured threshold and keeps
// the result for the API. Its signature matches a cron job.
func (app *App) LowStockReport(ctx context.Context) (processed, failed int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	threshold := app.Config.Inbox.LowStockThreshold
	items, err := app.Inventory.LowStock(threshold)
	if err != nil {
		return 0, 0, err
	}

	report := StockReport{
		GeneratedAt: time.Now(),
		Threshold:   threshold,
		Items:       items,
	}
	if err := app.Store.SetKV(stockReportKey, store.ToJSON(report)); err != nil {
		return 0, 0, err
	}

	for _, item := range items {
		app.Logger.Warn("Low stock",
			zap.String("code", item.Code),
			zap.String("name", item.Name),
			zap.Float64("quantity", item.Quantity),
			zap.String("unit", item.Unit),
		)
	}
	return len(items), 0, nil
}

// LatestStockReport returns the last stored low-stock report
func (app *App) LatestStockReport() (*StockReport, error) {
	data, err := app.Store.GetKV(stockReportKey)
	if err != nil {
		return nil, err
	}
	var report StockReport
	if err := store.FromJSON(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SetupCron registers the scheduled jobs without starting them
func (app *App) SetupCron() error {
	runner := cron.NewRunner(app.Store, app.Metrics, app.Logger.Named("cron"))

	if app.Config.Inbox.Enabled && app.Config.Inbox.SweepSchedule != "" {
		if err := runner.Add(cron.Job{
			Name:     JobInboxSweep,
			Schedule: app.Config.Inbox.SweepSchedule,
			Run:      app.Inbox.Sweep,
		}); err != nil {
			return err
		}
	}

	if app.Config.Inbox.StockReportSchedule != "" {
		if err := runner.Add(cron.Job{
			Name:     JobStockReport,
			Schedule: app.Config.Inbox.StockReportSchedule,
			Timeout:  time.Minute,
			Run:      app.LowStockReport,
		}); err != nil {
			return err
		}
	}

	app.CronRunner = runner
	return nil
}

// NewBatchProcessor creates a batch processor that runs files through this
// app's OCR and parser.
func (app *App) NewBatchProcessor(cfg batch.Config) *batch.Processor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = app.Config.Batch.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = app.Config.Batch.Timeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = app.Config.Batch.RequestsPerMinute
	}
	return batch.NewProcessor(app, app.Parser, cfg, app.Logger.Named("batch"))
}

// StartInbox sweeps the inbox once and then watches it until ctx is done.
func (app *App) StartInbox(ctx context.Context) error {
	if err := app.Inbox.EnsureDirs(); err != nil {
		return err
	}

	go func() {
		processed, failed, err := app.Inbox.Sweep(ctx)
		if err != nil {
			app.Logger.Error("Initial inbox sweep failed", zap.Error(err))
		} else if processed+failed > 0 {
			app.Logger.Info("Initial inbox sweep",
				zap.Int("processed", processed),
				zap.Int("failed", failed),
			)
		}
		if err := app.Inbox.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.Logger.Error("Inbox watcher stopped", zap.Error(err))
		}
	}()

	app.Logger.Info("Watching inbox", zap.String("dir", app.Inbox.Dir()))
	return nil
}

// NewServer builds the HTTP API over this app
func (app *App) NewServer() *api.Server {
	return api.New(api.Deps{
		Config:      app.Config,
		Notas:       app,
		Inventory:   app.Inventory.Store(),
		Metrics:     app.Metrics,
		Upload:      app.Upload,
		OCRProvider: app.OCRProvider(),
		Version:     app.Version,
		Logger:      app.Logger.Named("api"),
	})
}

// RunServer serves the API, inbox and scheduler until SIGINT or SIGTERM.
func (app *App) RunServer() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if app.Config.Inbox.Enabled {
		if err := app.StartInbox(ctx); err != nil {
			return err
		}
	}

	if err := app.SetupCron(); err != nil {
		return err
	}
	if err := app.CronRunner.Start(); err != nil {
		app.Logger.Error("Failed to start cron runner", zap.Error(err))
	}

	server := app.NewServer()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	app.Logger.Info("Server started",
		zap.String("address", app.Config.Server.Address),
		zap.Int("port", app.Config.Server.Port),
		zap.String("url", fmt.Sprintf("http://localhost:%d", app.Config.Server.Port)),
		zap.String("ocr", app.OCRProvider()),
		zap.Bool("auth", app.Config.AuthEnabled()),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
		app.Logger.Error("Server error", zap.Error(serveErr))
	}

	app.Logger.Info("Shutting down...")
	cancel()

	if app.CronRunner != nil {
		app.CronRunner.Stop()
	}

	if err := server.Shutdown(); err != nil {
		app.Logger.Error("Server shutdown error", zap.Error(err))
	}
	return serveErr
}
