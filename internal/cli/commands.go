package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/gmsas95/notakopi/internal/app"
	"github.com/gmsas95/notakopi/internal/config"
	"github.com/gmsas95/notakopi/internal/export"
	"github.com/gmsas95/notakopi/internal/inventory"
	"github.com/gmsas95/notakopi/internal/nota"
	"github.com/gmsas95/notakopi/internal/ocr"
	"github.com/gmsas95/notakopi/internal/store"
	"go.uber.org/zap"
)

var Version = "dev"

// Set from the global -config and -data flags.
var (
	ConfigPath string
	DataDir    string
)

// exit prints err and terminates. Flag help is not an error.
func exit(err error) {
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// parseArgs parses fs over args, allowing flags after positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// quietLogger logs warnings and errors to stderr so command output stays
// clean.
func quietLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// loadApp opens config and store and wires the app. The returned func
// releases the store.
func loadApp(logger *zap.Logger) (*app.App, func(), error) {
	cfg, err := config.Load(ConfigPath, DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	st, err := store.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing store: %w", err)
	}

	application, err := app.New(cfg, st, logger, Version)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	return application, func() {
		st.Close()
		logger.Sync()
	}, nil
}

func HandleParseCommand(args []string) {
	exit(runParse(args, os.Stdin, os.Stdout))
}

// runParse parses OCR text from a file or stdin. No config or store is
// needed.
func runParse(args []string, stdin io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	format := fs.String("format", "", "Output format: table, json or yaml")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	var data []byte
	if len(positional) == 0 || positional[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(positional[0])
	}
	if err != nil {
		return err
	}

	receipt := nota.NewParser(nil).Parse(ocr.Normalize(string(data)))
	return writeReceipt(out, receipt, resolveFormat(*format, out))
}

func HandleScanCommand(args []string) {
	exit(runScan(args, os.Stdout))
}

// runScan runs OCR and parsing over one image, optionally saving the
// result to the inventory.
func runScan(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	format := fs.String("format", "", "Output format: table, json or yaml")
	save := fs.Bool("save", false, "Add the parsed items to the inventory")
	raw := fs.Bool("raw", false, "Print the OCR text instead of the parsed nota")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("usage: notakopi scan <image> [--save] [--format table|json|yaml]")
	}
	path := positional[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	application, cleanup, err := loadApp(quietLogger())
	if err != nil {
		return err
	}
	defer cleanup()

	name := filepath.Base(path)
	if _, err := application.Upload.Check(name, "", data); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	receipt, text, err := application.ProcessNota(ctx, name, data)
	if err != nil {
		return err
	}

	if *raw {
		_, err := fmt.Fprintln(out, text)
		return err
	}
	if err := writeReceipt(out, receipt, resolveFormat(*format, out)); err != nil {
		return err
	}

	if *save {
		result, err := application.SaveNota(ctx, receipt, "cli:"+name, text)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Saved nota %s: %d new, %d merged\n",
			result.Nota.ID, len(result.Created), len(result.Merged))
	}
	return nil
}

func HandleInventoryCommand(args []string) {
	if len(args) == 0 {
		PrintInventoryHelp()
		return
	}
	exit(runInventory(args, os.Stdout))
}

func runInventory(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("inventory", flag.ContinueOnError)
	format := fs.String("format", "", "Output format: table, json or yaml")
	category := fs.String("kategori", "", "Only items in this category")
	search := fs.String("search", "", "Match name or code")
	limit := fs.Int("limit", 0, "Maximum rows")
	threshold := fs.Float64("threshold", -1, "Low stock threshold (default from config)")
	output := fs.String("o", "", "Output file for export")
	positional, err := parseArgs(fs, args[1:])
	if err != nil {
		return err
	}
	if len(positional) > 0 {
		return fmt.Errorf("unexpected argument %q", positional[0])
	}

	application, cleanup, err := loadApp(quietLogger())
	if err != nil {
		return err
	}
	defer cleanup()

	st := application.Inventory.Store()
	f := resolveFormat(*format, out)

	switch args[0] {
	case "list", "ls":
		items, err := st.List(inventory.ListFilter{Category: *category, Search: *search, Limit: *limit})
		if err != nil {
			return err
		}
		return writeItems(out, items, f)

	case "low":
		t := *threshold
		if t < 0 {
			t = application.Config.Inbox.LowStockThreshold
		}
		items, err := st.LowStock(t)
		if err != nil {
			return err
		}
		return writeItems(out, items, f)

	case "notas":
		notas, err := st.ListNotas(*limit)
		if err != nil {
			return err
		}
		if f == FormatTable {
			for _, n := range notas {
				fmt.Fprintf(out, "%s  %-24s %-12s %3d items  %s\n",
					n.CreatedAt.Format("2006-01-02 15:04"), n.Supplier, n.Date, n.ItemCount, n.Total)
			}
			return nil
		}
		return encode(out, notas, f)

	case "export":
		if *output == "" {
			return fmt.Errorf("usage: notakopi inventory export -o <file.xlsx>")
		}
		items, err := st.List(inventory.ListFilter{Category: *category})
		if err != nil {
			return err
		}
		notas, err := st.ListNotas(0)
		if err != nil {
			return err
		}
		data, err := export.Workbook(items, notas)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*output, data, 0644); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Exported %d items and %d notas to %s\n", len(items), len(notas), *output)
		return nil

	default:
		return fmt.Errorf("unknown inventory command %q (use list, low, notas or export)", args[0])
	}
}

func HandleConfigCommand(args []string) {
	if len(args) == 0 {
		PrintConfigHelp()
		return
	}
	exit(runConfig(args, os.Stdout))
}

func runConfig(args []string, out io.Writer) error {
	cfg, err := config.Load(ConfigPath, DataDir)
	if err != nil {
		return err
	}

	configPath := ConfigPath
	if configPath == "" {
		configPath = filepath.Join(cfg.Storage.DataDir, "notakopi.yaml")
	}

	switch args[0] {
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: notakopi config get <key>")
		}
		v, ok := configValue(cfg, args[1])
		if !ok {
			return fmt.Errorf("unknown key %s", args[1])
		}
		fmt.Fprintln(out, v)

	case "path":
		fmt.Fprintln(out, configPath)

	case "show", "view":
		data, err := os.ReadFile(configPath)
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(out, "No config file at %s, using defaults\n", configPath)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))

	default:
		PrintConfigHelp()
	}
	return nil
}

func configValue(cfg *config.Config, key string) (interface{}, bool) {
	switch key {
	case "server.port":
		return cfg.Server.Port, true
	case "server.address":
		return cfg.Server.Address, true
	case "storage.data_dir":
		return cfg.Storage.DataDir, true
	case "ocr.provider":
		return cfg.OCR.Provider, true
	case "ocr.api_key":
		return maskToken(cfg.OCR.APIKey), true
	case "ocr.language":
		return cfg.OCR.Language, true
	case "upload.max_bytes":
		return cfg.Upload.MaxBytes, true
	case "inbox.enabled":
		return cfg.Inbox.Enabled, true
	case "inbox.dir":
		return cfg.Inbox.Dir, true
	case "inbox.auto_save":
		return cfg.Inbox.AutoSave, true
	default:
		return nil, false
	}
}

func HandleStatusCommand() {
	exit(runStatus(os.Stdout))
}

func runStatus(out io.Writer) error {
	cfg, err := config.Load(ConfigPath, DataDir)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "notakopi status")
	fmt.Fprintln(out, "===============")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Version: %s\n", Version)
	fmt.Fprintf(out, "Data:    %s\n", cfg.Storage.DataDir)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Server:")
	fmt.Fprintf(out, "  Address: %s\n", cfg.Addr())
	fmt.Fprintf(out, "  Auth:    %s\n", enabledStatus(cfg.AuthEnabled()))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "OCR:")
	fmt.Fprintf(out, "  Provider: %s\n", cfg.OCR.Provider)
	if cfg.OCR.Provider == config.ProviderOCRSpace {
		fmt.Fprintf(out, "  API key:  %s\n", maskToken(cfg.OCR.APIKey))
	}
	fmt.Fprintf(out, "  Cache:    %s\n", enabledStatus(cfg.OCR.CacheEnabled))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Inbox:")
	fmt.Fprintf(out, "  Watcher:   %s\n", enabledStatus(cfg.Inbox.Enabled))
	if cfg.Inbox.Enabled {
		fmt.Fprintf(out, "  Directory: %s\n", cfg.Inbox.Dir)
		fmt.Fprintf(out, "  Auto save: %s\n", enabledStatus(cfg.Inbox.AutoSave))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run 'notakopi doctor' for diagnostics")
	return nil
}

func HandleDoctorCommand() {
	if issues := runDoctor(os.Stdout); issues > 0 {
		os.Exit(1)
	}
}

// runDoctor prints environment checks and returns the number of issues.
func runDoctor(out io.Writer) int {
	fmt.Fprintln(out, "notakopi diagnostics")
	fmt.Fprintln(out, "====================")
	fmt.Fprintln(out)

	cfg, err := config.Load(ConfigPath, DataDir)
	if err != nil {
		fmt.Fprintln(out, "❌ Config: Error loading configuration")
		fmt.Fprintf(out, "   %v\n", err)
		return 1
	}
	fmt.Fprintln(out, "✅ Config: Loaded successfully")

	issues := 0
	if _, err := os.Stat(cfg.Storage.DataDir); err != nil {
		fmt.Fprintln(out, "❌ Data Directory: Does not exist")
		issues++
	} else {
		fmt.Fprintln(out, "✅ Data Directory: Exists")
	}

	switch cfg.OCR.Provider {
	case config.ProviderOCRSpace:
		if cfg.OCR.APIKey == "" {
			fmt.Fprintln(out, "⚠️  OCR.space: No API key")
			fmt.Fprintln(out, "   Set OCR_SPACE_API_KEY or ocr.api_key")
			issues++
		} else {
			fmt.Fprintf(out, "✅ OCR.space: API key %s\n", maskToken(cfg.OCR.APIKey))
		}
	case config.ProviderTesseract:
		if !ocr.NewTesseract(cfg.OCR.TesseractPath, cfg.OCR.TesseractLang, nil).IsAvailable() {
			fmt.Fprintln(out, "⚠️  tesseract: Not found")
			fmt.Fprintln(out, "   Install: sudo apt-get install tesseract-ocr tesseract-ocr-ind")
			issues++
		} else {
			fmt.Fprintln(out, "✅ tesseract: Found")
		}
	default:
		fmt.Fprintf(out, "⚠️  OCR: Using the %s provider\n", cfg.OCR.Provider)
	}

	if cfg.Inbox.Enabled {
		if _, err := os.Stat(cfg.Inbox.Dir); err != nil {
			fmt.Fprintf(out, "⚠️  Inbox: %s does not exist yet (created on serve)\n", cfg.Inbox.Dir)
		} else {
			fmt.Fprintln(out, "✅ Inbox: Exists")
		}
	}

	if !cfg.AuthEnabled() {
		fmt.Fprintln(out, "⚠️  Auth: API is open, set security.admin_password to protect it")
	}

	fmt.Fprintln(out)
	if issues == 0 {
		fmt.Fprintln(out, "✅ All checks passed!")
	} else {
		fmt.Fprintf(out, "⚠️  Found %d issue(s).\n", issues)
	}
	return issues
}

func enabledStatus(enabled bool) string {
	if enabled {
		return "✅ enabled"
	}
	return "❌ disabled"
}

func maskToken(token string) string {
	if len(token) < 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
