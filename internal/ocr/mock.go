package ocr

import (
	"context"
	"sync/atomic"

	"github.com/gmsas95/notakopi/internal/config"
)

// Mock returns canned text, for development and tests.
type Mock struct {
	Text  string
	Err   error
	calls atomic.Int64
}

// NewMock creates a mock extractor. Empty text returns the bytes as text,
// which lets .txt fixtures flow through the whole pipeline.
func NewMock(text string) *Mock {
	return &Mock{Text: text}
}

func (m *Mock) Name() string { return config.ProviderMock }

// Calls returns how many times ExtractText ran.
func (m *Mock) Calls() int {
	return int(m.calls.Load())
}

func (m *Mock) ExtractText(ctx context.Context, filename string, data []byte) (string, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Text == "" {
		return string(data), nil
	}
	return m.Text, nil
}
