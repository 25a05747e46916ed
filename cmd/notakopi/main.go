package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gmsas95/notakopi/internal/app"
	"github.com/gmsas95/notakopi/internal/cli"
	"github.com/gmsas95/notakopi/internal/config"
	"github.com/gmsas95/notakopi/internal/store"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

func main() {
	flag.Usage = cli.PrintExtendedHelp
	flag.Parse()

	if err := config.LoadEnvFiles(*dataDir); err != nil {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	cli.Version = version
	cli.ConfigPath = *configPath
	cli.DataDir = *dataDir

	args := flag.Args()
	command := "serve"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "serve", "server":
		runServer()
	case "parse":
		cli.HandleParseCommand(args)
	case "scan":
		cli.HandleScanCommand(args)
	case "batch":
		cli.HandleBatchCommand(args)
	case "inventory", "inv":
		cli.HandleInventoryCommand(args)
	case "config":
		cli.HandleConfigCommand(args)
	case "status":
		cli.HandleStatusCommand()
	case "doctor":
		cli.HandleDoctorCommand()
	case "help", "--help", "-h":
		cli.PrintExtendedHelp()
	case "version", "--version", "-v":
		fmt.Printf("notakopi version %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		cli.PrintExtendedHelp()
		os.Exit(1)
	}
}

func runServer() {
	application := initApp()
	defer application.Store.Close()

	if err := application.RunServer(); err != nil {
		application.Logger.Fatal("Server error", zap.Error(err))
	}
}

func initApp() *app.App {
	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Server.Production)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Info("Starting notakopi",
		zap.String("version", version),
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.String("ocr", cfg.OCR.Provider),
	)

	st, err := store.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}

	application, err := app.New(cfg, st, logger, version)
	if err != nil {
		logger.Fatal("Failed to initialize app", zap.Error(err))
	}

	return application
}

func newLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
