// Package ocr extracts plain text from receipt images and PDFs. The nota
// parser only ever sees the text produced here.
package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gmsas95/notakopi/internal/config"
	apperrors "github.com/gmsas95/notakopi/internal/errors"
	"go.uber.org/zap"
)

// Extractor turns an uploaded file into text.
type Extractor interface {
	ExtractText(ctx context.Context, filename string, data []byte) (string, error)
	Name() string
}

// Recorder receives one observation per extraction.
type Recorder interface {
	RecordOCR(provider string, d time.Duration, err error)
}

// New builds the extractor selected by cfg. A non-nil cache wraps it with
// content-addressed caching when enabled.
func New(cfg config.OCRConfig, cache Cache, logger *zap.Logger) (Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var ext Extractor
	switch cfg.Provider {
	case config.ProviderOCRSpace:
		client, err := NewSpaceClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		ext = client
	case config.ProviderTesseract:
		ext = NewTesseract(cfg.TesseractPath, cfg.TesseractLang, logger)
	case config.ProviderMock:
		ext = NewMock("")
	default:
		return nil, apperrors.New(apperrors.ErrOCRNotConfigured.Code, fmt.Sprintf("unknown OCR provider %q", cfg.Provider))
	}

	if cache != nil && cfg.CacheEnabled {
		ext = NewCached(ext, cache, logger)
	}
	return ext, nil
}

// Hash returns the cache key for a file's content.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reRuleLine   = regexp.MustCompile(`(?m)^\s*[_\-=*]{3,}\s*$`)
)

// Normalize collapses noisy whitespace and drop separator rules while
// keeping line breaks, which the parser depends on.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reRuleLine.ReplaceAllString(s, "")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

type instrumented struct {
	next     Extractor
	recorder Recorder
}

// Instrument reports the duration and outcome of every call to r.
func Instrument(next Extractor, r Recorder) Extractor {
	if r == nil {
		return next
	}
	return &instrumented{next: next, recorder: r}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) ExtractText(ctx context.Context, filename string, data []byte) (string, error) {
	start := time.Now()
	text, err := i.next.ExtractText(ctx, filename, data)
	i.recorder.RecordOCR(i.next.Name(), time.Since(start), err)
	return text, err
}
