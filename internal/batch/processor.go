// Package batch runs many notas through OCR and parsing with bounded
// concurrency and an optional request rate limit.
package batch

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/gmsas95/notakopi/internal/errors"
	"github.com/gmsas95/notakopi/internal/nota"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Handler runs OCR and parsing for one file. *app.App satisfies it.
type Handler interface {
	ProcessNota(ctx context.Context, filename string, data []byte) (*nota.ParsedReceipt, string, error)
}

type Config struct {
	MaxConcurrency    int
	Timeout           time.Duration
	RetryCount        int
	RetryDelay        time.Duration
	SkipInvalid       bool
	RequestsPerMinute int
	Burst             int
	ProgressEvery     int
}

type InputItem struct {
	ID   string `json:"id" yaml:"id"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

type OutputItem struct {
	ID        string              `json:"id" yaml:"id"`
	Source    string              `json:"source" yaml:"source"`
	Receipt   *nota.ParsedReceipt `json:"receipt,omitempty" yaml:"receipt,omitempty"`
	ItemCount int                 `json:"item_count" yaml:"item_count"`
	Duration  time.Duration       `json:"duration" yaml:"duration"`
	Attempts  int                 `json:"attempts" yaml:"attempts"`
	Success   bool                `json:"success" yaml:"success"`
	Skipped   bool                `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Error     string              `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp time.Time           `json:"timestamp" yaml:"timestamp"`

	index int
}

type Result struct {
	Total     int           `json:"total" yaml:"total"`
	Success   int           `json:"success" yaml:"success"`
	Failed    int           `json:"failed" yaml:"failed"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Items     int           `json:"items_parsed" yaml:"items_parsed"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	EndTime   time.Time     `json:"end_time" yaml:"end_time"`
	Outputs   []OutputItem  `json:"outputs" yaml:"outputs"`
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        90 * time.Second,
		RetryCount:     2,
		RetryDelay:     2 * time.Second,
		SkipInvalid:    true,
		Burst:          1,
		ProgressEvery:  10,
	}
}

type Processor struct {
	handler Handler
	parser  *nota.Parser
	config  Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewProcessor creates a processor. Items that carry text are parsed
// directly; only file items reach handler.
func NewProcessor(handler Handler, parser *nota.Parser, cfg Config, logger *zap.Logger) *Processor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if parser == nil {
		parser = nota.NewParser(logger)
	}

	p := &Processor{
		handler: handler,
		parser:  parser,
		config:  cfg,
		logger:  logger,
	}
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}
	return p
}

// ProcessFile loads inputPath (JSONL, path list or directory), processes
// every item and writes the report to outputPath when it is not empty.
func (p *Processor) ProcessFile(ctx context.Context, inputPath, outputPath string) (*Result, error) {
	items, err := LoadInput(inputPath, p.config.SkipInvalid)
	if err != nil {
		return nil, fmt.Errorf("failed to load input: %w", err)
	}

	result := p.Process(ctx, items)

	if outputPath != "" {
		if err := SaveReport(outputPath, result); err != nil {
			return result, fmt.Errorf("failed to save report: %w", err)
		}
	}
	return result, nil
}

// Process runs items through a worker pool. Outputs keep input order.
func (p *Processor) Process(ctx context.Context, items []InputItem) *Result {
	result := &Result{
		Total:     len(items),
		StartTime: time.Now(),
		Outputs:   make([]OutputItem, 0, len(items)),
	}

	concurrency := min(p.config.MaxConcurrency, max(len(items), 1))
	p.logger.Info("Starting batch",
		zap.Int("total_items", len(items)),
		zap.Int("concurrency", concurrency),
		zap.Int("rpm_limit", p.config.RequestsPerMinute),
	)

	progress := &ProgressTracker{Total: len(items), StartTime: result.StartTime}

	type job struct {
		index int
		item  InputItem
	}
	jobs := make(chan job, len(items))
	outputs := make(chan OutputItem, len(items))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				out := p.processItem(ctx, j.item)
				out.index = j.index
				outputs <- out

				if done := progress.Increment(); done%p.config.ProgressEvery == 0 {
					p.logger.Info("Batch progress",
						zap.Int("completed", done),
						zap.Int("total", progress.Total),
						zap.Float64("percent", progress.Percent()),
						zap.Duration("eta", progress.ETA()),
					)
				}
			}
		}()
	}

	for i, item := range items {
		jobs <- job{index: i, item: item}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outputs)
	}()

	for out := range outputs {
		switch {
		case out.Success:
			result.Success++
			result.Items += out.ItemCount
		case out.Skipped:
			result.Skipped++
		default:
			result.Failed++
		}
		result.Outputs = append(result.Outputs, out)
	}
	sort.Slice(result.Outputs, func(i, j int) bool {
		return result.Outputs[i].index < result.Outputs[j].index
	})

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	p.logger.Info("Batch complete",
		zap.Int("total", result.Total),
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("items_parsed", result.Items),
		zap.Duration("duration", result.Duration),
	)
	return result
}

func (p *Processor) processItem(ctx context.Context, item InputItem) (out OutputItem) {
	out = OutputItem{
		ID:        item.ID,
		Source:    item.Path,
		Timestamp: time.Now(),
	}
	start := time.Now()
	defer func() { out.Duration = time.Since(start) }()

	if item.Text != "" {
		out.Source = "text"
		out.Attempts = 1
		p.finish(&out, p.parser.Parse(item.Text))
		return out
	}

	if item.Path == "" {
		out.Error = "item has neither path nor text"
		out.Skipped = p.config.SkipInvalid
		return out
	}

	data, err := os.ReadFile(item.Path)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	// Plain text files skip OCR.
	if strings.EqualFold(filepath.Ext(item.Path), ".txt") {
		out.Attempts = 1
		p.finish(&out, p.parser.Parse(string(data)))
		return out
	}

	if p.handler == nil {
		out.Error = apperrors.ErrOCRNotConfigured.Error()
		return out
	}

	var receipt *nota.ParsedReceipt
	for attempt := 0; attempt <= p.config.RetryCount; attempt++ {
		out.Attempts = attempt + 1

		if p.limiter != nil {
			if err = p.limiter.Wait(ctx); err != nil {
				break
			}
		}

		itemCtx, cancel := p.itemContext(ctx)
		receipt, _, err = p.handler.ProcessNota(itemCtx, filepath.Base(item.Path), data)
		cancel()

		if err == nil || !retryable(err) || ctx.Err() != nil {
			break
		}
		if attempt < p.config.RetryCount {
			p.logger.Debug("Retrying batch item", zap.String("id", item.ID), zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(p.config.RetryDelay):
			}
		}
	}

	if err != nil {
		out.Error = err.Error()
		return out
	}
	p.finish(&out, receipt)
	return out
}

func (p *Processor) itemContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.Timeout > 0 {
		return context.WithTimeout(ctx, p.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func (p *Processor) finish(out *OutputItem, receipt *nota.ParsedReceipt) {
	if receipt == nil {
		receipt = &nota.ParsedReceipt{Items: []nota.LineItem{}}
	}
	out.Receipt = receipt
	out.ItemCount = len(receipt.Items)
	out.Success = true
}

// retryable reports whether another attempt could succeed. Rejected files
// and unreadable receipts fail the same way every time.
func retryable(err error) bool {
	for _, permanent := range []error{
		apperrors.ErrUnsupportedFile,
		apperrors.ErrFileTooLarge,
		apperrors.ErrEmptyNota,
		apperrors.ErrOCRNoText,
		apperrors.ErrOCRNotConfigured,
		context.Canceled,
	} {
		if stderrors.Is(err, permanent) {
			return false
		}
	}
	return true
}

func (r *Result) Summary() string {
	var sb strings.Builder
	sb.WriteString("=== Batch Summary ===\n")
	sb.WriteString(fmt.Sprintf("Total:     %d\n", r.Total))
	sb.WriteString(fmt.Sprintf("Success:   %d\n", r.Success))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", r.Failed))
	sb.WriteString(fmt.Sprintf("Skipped:   %d\n", r.Skipped))
	sb.WriteString(fmt.Sprintf("Items:     %d\n", r.Items))
	sb.WriteString(fmt.Sprintf("Duration:  %v\n", r.Duration.Round(time.Millisecond)))
	return sb.String()
}

// ProgressTracker tracks batch progress
type ProgressTracker struct {
	Total     int
	StartTime time.Time

	mu        sync.RWMutex
	completed int
}

// Increment marks one item done and returns the new count.
func (p *ProgressTracker) Increment() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
	return p.completed
}

func (p *ProgressTracker) Completed() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.completed
}

func (p *ProgressTracker) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed()) / float64(p.Total) * 100
}

func (p *ProgressTracker) ETA() time.Duration {
	completed := p.Completed()
	if completed == 0 {
		return 0
	}
	elapsed := time.Since(p.StartTime)
	perItem := elapsed / time.Duration(completed)
	return perItem * time.Duration(p.Total-completed)
}
