package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gmsas95/notakopi/internal/config"
	apperrors "github.com/gmsas95/notakopi/internal/errors"
	"go.uber.org/zap"
)

// Tesseract runs a local tesseract binary. It reads images only.
type Tesseract struct {
	binaryPath string
	lang       string
	logger     *zap.Logger
}

// NewTesseract creates a tesseract extractor
func NewTesseract(binaryPath, lang string, logger *zap.Logger) *Tesseract {
	if binaryPath == "" {
		binaryPath = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tesseract{binaryPath: binaryPath, lang: lang, logger: logger}
}

func (t *Tesseract) Name() string { return config.ProviderTesseract }

// IsAvailable checks if tesseract is installed
func (t *Tesseract) IsAvailable() bool {
	_, err := exec.LookPath(t.binaryPath)
	return err == nil
}

// ExtractText writes data to a temp file and runs tesseract over it.
func (t *Tesseract) ExtractText(ctx context.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".pdf" {
		return "", apperrors.New(apperrors.ErrUnsupportedFile.Code, "tesseract cannot read PDF files, use the ocrspace provider")
	}
	if ext == "" {
		ext = ".png"
	}

	dir, err := os.MkdirTemp("", "notakopi-ocr-")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrOCRFailed.Code, "create temp dir")
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "nota"+ext)
	if err := os.WriteFile(input, data, 0600); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrOCRFailed.Code, "write temp file")
	}

	args := []string{
		input,
		"stdout",
		"-l", t.lang,
		"--psm", "6", // Assume single uniform block of text
	}

	cmd := exec.CommandContext(ctx, t.binaryPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", apperrors.Wrap(fmt.Errorf("%w (stderr: %s)", err, truncate(stderr.String(), 200)),
			apperrors.ErrOCRFailed.Code, "tesseract failed")
	}

	text := strings.TrimSpace(string(out))
	t.logger.Debug("Tesseract parsed file",
		zap.String("filename", filename),
		zap.Int("chars", len(text)),
	)
	return text, nil
}
