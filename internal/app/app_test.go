package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gmsas95/notakopi/internal/batch"
	"github.com/gmsas95/notakopi/internal/config"
	apperrors "github.com/gmsas95/notakopi/internal/errors"
	"github.com/gmsas95/notakopi/internal/inventory"
	"github.com/gmsas95/notakopi/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testNota = "Toko Sumber Rejeki\r\n08/11/2024\r\nKopi Robusta 2 Kg 90000\r\nGula Pasir 5 kg 75.000\r\nTotal Rp 165.000\r\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	inboxDir := filepath.Join(dir, "inbox")
	return &config.Config{
		Server:  config.ServerConfig{Address: "127.0.0.1", Port: 8080, ReadTimeout: 5, WriteTimeout: 5, Production: true},
		Storage: config.StorageConfig{DataDir: dir},
		OCR:     config.OCRConfig{Provider: config.ProviderMock},
		Security: config.SecurityConfig{
			JWTSecret:    "test-secret",
			AllowOrigins: []string{"*"},
			TokenTTL:     time.Hour,
		},
		Upload: config.UploadConfig{
			MaxBytes:     1 << 20,
			AllowedTypes: []string{"image/jpeg", "image/png", "application/pdf"},
		},
		Inbox: config.InboxConfig{
			Enabled:             true,
			Dir:                 inboxDir,
			ProcessedDir:        filepath.Join(inboxDir, "processed"),
			FailedDir:           filepath.Join(inboxDir, "failed"),
			SweepSchedule:       "*/15 * * * *",
			StockReportSchedule: "0 7 * * *",
			LowStockThreshold:   5,
		},
		Batch: config.BatchConfig{Concurrency: 2, Timeout: time.Minute},
	}
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: ":memory:"}, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	kv, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}

	st, err := store.Open(db, kv, time.Hour)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func setupTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := New(cfg, setupTestStore(t), nil, "test")
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{
			name:    "create app with version",
			version: "1.0.0",
		},
		{
			name:    "create app with dev version",
			version: "dev",
		},
		{
			name:    "create app with empty version",
			version: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := New(testConfig(t), setupTestStore(t), nil, tt.version)
			if err != nil {
				t.Fatalf("expected app to be created, got %v", err)
			}
			if app.Version != tt.version {
				t.Errorf("expected version %q, got %q", tt.version, app.Version)
			}
			if app.OCRProvider() != config.ProviderMock {
				t.Errorf("expected mock OCR, got %q", app.OCRProvider())
			}
			if app.Inbox == nil || app.Inventory == nil || app.Parser == nil {
				t.Error("expected services to be wired")
			}
		})
	}
}

func TestNew_WithoutOCR(t *testing.T) {
	cfg := testConfig(t)
	cfg.OCR.Provider = config.ProviderOCRSpace

	app := setupTestApp(t, cfg)
	if app.OCRProvider() != "none" {
		t.Errorf("expected no OCR provider, got %q", app.OCRProvider())
	}

	_, _, err := app.ProcessNota(context.Background(), "nota.png", []byte("img"))
	if !errors.Is(err, apperrors.ErrOCRNotConfigured) {
		t.Errorf("expected OCR_001, got %v", err)
	}

	if got := app.ParseText(testNota).ItemCount(); got != 2 {
		t.Errorf("expected text parsing to keep working, got %d items", got)
	}
}

func TestProcessNota(t *testing.T) {
	app := setupTestApp(t, testConfig(t))

	receipt, raw, err := app.ProcessNota(context.Background(), "nota.png", []byte(testNota))
	if err != nil {
		t.Fatalf("ProcessNota failed: %v", err)
	}
	if receipt.ItemCount() != 2 {
		t.Fatalf("expected 2 items, got %d", receipt.ItemCount())
	}
	if receipt.Supplier != "Sumber Rejeki" {
		t.Errorf("expected supplier Sumber Rejeki, got %q", receipt.Supplier)
	}
	if receipt.TotalAmount != 165000 {
		t.Errorf("expected total 165000, got %d", receipt.TotalAmount)
	}
	for _, c := range raw {
		if c == '\r' {
			t.Fatal("expected raw text to be normalized")
		}
	}
}

func TestSaveNota(t *testing.T) {
	app := setupTestApp(t, testConfig(t))
	ctx := context.Background()

	before := app.Metrics.Snapshot().ItemsCreated
	result, err := app.SaveNota(ctx, app.ParseText(testNota), "test", testNota)
	if err != nil {
		t.Fatalf("SaveNota failed: %v", err)
	}
	if len(result.Created) != 2 {
		t.Errorf("expected 2 created items, got %d", len(result.Created))
	}
	if got := app.Metrics.Snapshot().ItemsCreated - before; got != 2 {
		t.Errorf("expected 2 items counted as created, got %d", got)
	}
}

func TestHandleInboxFile(t *testing.T) {
	ctx := context.Background()

	t.Run("auto save", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Inbox.AutoSave = true
		app := setupTestApp(t, cfg)

		if err := app.handleInboxFile(ctx, "/inbox/nota.txt", []byte(testNota)); err != nil {
			t.Fatalf("handleInboxFile failed: %v", err)
		}
		items, err := app.Inventory.Store().List(inventory.ListFilter{})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(items) != 2 {
			t.Errorf("expected 2 inventory items, got %d", len(items))
		}
	})

	t.Run("kept for review", func(t *testing.T) {
		app := setupTestApp(t, testConfig(t))

		if err := app.handleInboxFile(ctx, "/inbox/scan.png", []byte("\x89PNG\r\n\x1a\n"+testNota)); err != nil {
			t.Fatalf("handleInboxFile failed: %v", err)
		}
		receipt, err := app.InboxResult("scan.png")
		if err != nil {
			t.Fatalf("InboxResult failed: %v", err)
		}
		if receipt.ItemCount() != 2 {
			t.Errorf("expected 2 stored items, got %d", receipt.ItemCount())
		}
		items, _ := app.Inventory.Store().List(inventory.ListFilter{})
		if len(items) != 0 {
			t.Errorf("expected inventory untouched, got %d items", len(items))
		}
	})

	t.Run("no items", func(t *testing.T) {
		app := setupTestApp(t, testConfig(t))

		err := app.handleInboxFile(ctx, "/inbox/empty.txt", []byte("Terima kasih"))
		if !errors.Is(err, apperrors.ErrEmptyNota) {
			t.Errorf("expected NOTA_003, got %v", err)
		}
	})

	t.Run("unsupported content", func(t *testing.T) {
		app := setupTestApp(t, testConfig(t))

		err := app.handleInboxFile(ctx, "/inbox/anim.png", []byte("GIF89a......"))
		if !errors.Is(err, apperrors.ErrUnsupportedFile) {
			t.Errorf("expected NOTA_001, got %v", err)
		}
	})
}

func TestLowStockReport(t *testing.T) {
	app := setupTestApp(t, testConfig(t))
	st := app.Inventory.Store()

	for _, item := range []*inventory.Item{
		{Name: "Susu UHT", Quantity: 1, Unit: "liter"},
		{Name: "Gula Aren", Quantity: 5, Unit: "kg"},
		{Name: "Paper Cup", Quantity: 200, Unit: "pcs"},
	} {
		if err := st.Create(item); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	processed, failed, err := app.LowStockReport(context.Background())
	if err != nil {
		t.Fatalf("LowStockReport failed: %v", err)
	}
	if processed != 2 || failed != 0 {
		t.Errorf("expected 2 processed and 0 failed, got %d/%d", processed, failed)
	}

	report, err := app.LatestStockReport()
	if err != nil {
		t.Fatalf("LatestStockReport failed: %v", err)
	}
	if len(report.Items) != 2 || report.Items[0].Name != "Susu UHT" {
		t.Errorf("unexpected report items: %+v", report.Items)
	}
	if report.Threshold != 5 {
		t.Errorf("expected threshold 5, got %v", report.Threshold)
	}
}

func TestLatestStockReport_Missing(t *testing.T) {
	app := setupTestApp(t, testConfig(t))

	if _, err := app.LatestStockReport(); !errors.Is(err, badger.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSetupCron(t *testing.T) {
	app := setupTestApp(t, testConfig(t))

	if err := app.SetupCron(); err != nil {
		t.Fatalf("SetupCron failed: %v", err)
	}
	entries := app.CronRunner.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(entries))
	}
	if entries[0].Name != JobInboxSweep || entries[1].Name != JobStockReport {
		t.Errorf("unexpected jobs: %+v", entries)
	}

	run, err := app.CronRunner.RunNow(context.Background(), JobStockReport)
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if run == nil || run.Status != store.JobStatusCompleted {
		t.Errorf("expected a successful run record, got %+v", run)
	}
}

func TestSetupCron_InboxDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Inbox.Enabled = false
	app := setupTestApp(t, cfg)

	if err := app.SetupCron(); err != nil {
		t.Fatalf("SetupCron failed: %v", err)
	}
	if n := len(app.CronRunner.Entries()); n != 1 {
		t.Errorf("expected only the stock report job, got %d", n)
	}
}

func TestSetupCron_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Inbox.SweepSchedule = "every now and then"
	app := setupTestApp(t, cfg)

	err := app.SetupCron()
	if apperrors.GetCode(err) != apperrors.ErrConfigInvalid.Code {
		t.Errorf("expected CONFIG_002, got %v", err)
	}
}

func TestNewBatchProcessor(t *testing.T) {
	app := setupTestApp(t, testConfig(t))

	dir := t.TempDir()
	img := filepath.Join(dir, "nota.png")
	if err := os.WriteFile(img, []byte(testNota), 0644); err != nil {
		t.Fatal(err)
	}

	p := app.NewBatchProcessor(batch.Config{})
	result := p.Process(context.Background(), []batch.InputItem{
		{ID: "text", Text: testNota},
		{ID: "image", Path: img},
	})

	if result.Success != 2 {
		t.Fatalf("expected 2 successes, got %d: %+v", result.Success, result.Outputs)
	}
	if result.Items != 4 {
		t.Errorf("expected 4 parsed items, got %d", result.Items)
	}
}

func TestNewServer(t *testing.T) {
	app := setupTestApp(t, testConfig(t))
	if app.NewServer() == nil {
		t.Fatal("expected server")
	}
}
