package ocr

import (
	"context"

	"go.uber.org/zap"
)

// Cache stores OCR output by content hash.
type Cache interface {
	GetOCRText(hash string) (string, bool)
	PutOCRText(hash, text string) error
}

// Cached skips the OCR call for files it has already seen.
type Cached struct {
	next   Extractor
	cache  Cache
	logger *zap.Logger
}

// NewCached wraps next with cache
func NewCached(next Extractor, cache Cache, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, cache: cache, logger: logger}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) ExtractText(ctx context.Context, filename string, data []byte) (string, error) {
	key := Hash(data)
	if text, ok := c.cache.GetOCRText(key); ok {
		c.logger.Debug("OCR cache hit", zap.String("filename", filename), zap.String("hash", key[:12]))
		return text, nil
	}

	text, err := c.next.ExtractText(ctx, filename, data)
	if err != nil {
		return "", err
	}
	// Empty results are not cached so a retry can hit the provider again.
	if text != "" {
		if err := c.cache.PutOCRText(key, text); err != nil {
			c.logger.Warn("Failed to cache OCR text", zap.Error(err))
		}
	}
	return text, nil
}
