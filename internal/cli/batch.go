package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/gmsas95/notakopi/internal/batch"
)

func HandleBatchCommand(args []string) {
	if len(args) == 0 {
		PrintBatchHelp()
		return
	}
	exit(runBatch(args, os.Stdout, os.Stderr))
}

// runBatch processes a JSONL file, path list or directory. The report goes
// to -o when given, otherwise to out.
func runBatch(args []string, out, status io.Writer) error {
	var input, output, format string
	var concurrency, timeout, rpm int

	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.StringVar(&input, "i", "", "Input JSONL file, path list or directory")
	fs.StringVar(&input, "input", "", "Input JSONL file, path list or directory")
	fs.StringVar(&output, "o", "", "Report file (.json or .yaml)")
	fs.StringVar(&output, "output", "", "Report file (.json or .yaml)")
	fs.StringVar(&format, "format", batch.FormatJSON, "Report format on stdout: json or yaml")
	fs.IntVar(&concurrency, "c", 0, "Concurrent workers (default from config)")
	fs.IntVar(&concurrency, "concurrency", 0, "Concurrent workers (default from config)")
	fs.IntVar(&timeout, "t", 0, "Per-item timeout in seconds (default from config)")
	fs.IntVar(&timeout, "timeout", 0, "Per-item timeout in seconds (default from config)")
	fs.IntVar(&rpm, "rpm", 0, "OCR requests per minute (default from config)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	if input == "" {
		return fmt.Errorf("input is required\nUsage: notakopi batch -i <input> [-o <report>]")
	}
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("input not found: %s", input)
	}

	application, cleanup, err := loadApp(quietLogger())
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := batch.DefaultConfig()
	cfg.MaxConcurrency = concurrency
	cfg.Timeout = time.Duration(timeout) * time.Second
	cfg.RequestsPerMinute = rpm
	processor := application.NewBatchProcessor(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(status, "Processing batch: %s\n", input)
	result, err := processor.ProcessFile(ctx, input, output)
	if err != nil {
		return err
	}

	fmt.Fprint(status, result.Summary())
	if output != "" {
		fmt.Fprintf(status, "✓ Report saved to: %s\n", output)
	} else if err := batch.WriteReport(out, result, format); err != nil {
		return err
	}

	if result.Failed > 0 {
		fmt.Fprintln(status, "\nFailed items:")
		for _, item := range result.Outputs {
			if !item.Success && !item.Skipped {
				fmt.Fprintf(status, "  - %s: %s\n", item.ID, item.Error)
			}
		}
	}
	return nil
}
