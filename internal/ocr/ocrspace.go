package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gmsas95/notakopi/internal/config"
	apperrors "github.com/gmsas95/notakopi/internal/errors"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultSpaceEndpoint = "https://api.ocr.space/parse/image"

// SpaceClient calls the OCR.space parse/image API.
type SpaceClient struct {
	apiKey     string
	endpoint   string
	language   string
	engine     int
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[string]
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewSpaceClient creates an OCR.space client. An API key is required.
func NewSpaceClient(cfg config.OCRConfig, logger *zap.Logger) (*SpaceClient, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.New(apperrors.ErrOCRNotConfigured.Code, "ocr.api_key (OCR_SPACE_API_KEY) is not set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultSpaceEndpoint
	}
	language := cfg.Language
	if language == "" {
		language = "eng"
	}
	engine := cfg.Engine
	if engine == 0 {
		engine = 2
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	threshold := cfg.Breaker.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}

	c := &SpaceClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		language:   language,
		engine:     engine,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "ocrspace",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A receipt OCR.space could not read says nothing about the service.
		IsSuccessful: func(err error) bool {
			return err == nil || stderrors.Is(err, apperrors.ErrOCRNoText) || stderrors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("OCR circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	return c, nil
}

func (c *SpaceClient) Name() string { return config.ProviderOCRSpace }

// State exposes the breaker state for health reporting.
func (c *SpaceClient) State() string {
	return c.breaker.State().String()
}

// ExtractText uploads data and returns the parsed text of the first page.
func (c *SpaceClient) ExtractText(ctx context.Context, filename string, data []byte) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrOCRFailed.Code, "rate limiter")
		}
	}

	text, err := c.breaker.Execute(func() (string, error) {
		return c.do(ctx, filename, data)
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", apperrors.Wrap(err, apperrors.ErrOCRUnavailable.Code, "OCR.space temporarily disabled")
	}
	return text, err
}

type spaceResponse struct {
	ParsedResults []struct {
		ParsedText   string `json:"ParsedText"`
		ErrorMessage string `json:"ErrorMessage"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool        `json:"IsErroredOnProcessing"`
	ErrorMessage          messageList `json:"ErrorMessage"`
	ProcessingTimeMs      stringOrInt `json:"ProcessingTimeInMilliseconds"`
}

// messageList accepts both a string and an array of strings.
type messageList []string

func (m *messageList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*m = list
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	if one != "" {
		*m = []string{one}
	}
	return nil
}

func (m messageList) first() string {
	if len(m) == 0 {
		return ""
	}
	return m[0]
}

type stringOrInt int

func (s *stringOrInt) UnmarshalJSON(b []byte) error {
	v, err := strconv.Atoi(strings.Trim(string(b), `"`))
	if err != nil {
		return nil
	}
	*s = stringOrInt(v)
	return nil
}

func (c *SpaceClient) do(ctx context.Context, filename string, data []byte) (string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	part, err := w.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrOCRFailed.Code, "build request")
	}
	if _, err := part.Write(data); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrOCRFailed.Code, "build request")
	}

	fields := map[string]string{
		"language":          c.language,
		"isOverlayRequired": "false",
		"detectOrientation": "true",
		"scale":             "true",
		"OCREngine":         strconv.Itoa(c.engine),
	}
	if ft := fileType(filename); ft != "" {
		fields["filetype"] = ft
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrOCRFailed.Code, "build request")
		}
	}
	if err := w.Close(); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrOCRFailed.Code, "build request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrOCRFailed.Code, "build request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrOCRFailed.Code, "OCR.space request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrOCRFailed.Code, "read OCR.space response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.New(apperrors.ErrOCRFailed.Code,
			fmt.Sprintf("OCR.space returned %d: %s", resp.StatusCode, truncate(string(raw), 200)))
	}

	var parsed spaceResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrOCRFailed.Code, "decode OCR.space response")
	}

	if parsed.IsErroredOnProcessing || len(parsed.ParsedResults) == 0 {
		msg := parsed.ErrorMessage.first()
		if msg == "" {
			msg = "no parsed results"
		}
		return "", apperrors.New(apperrors.ErrOCRNoText.Code, msg)
	}

	c.logger.Debug("OCR.space parsed file",
		zap.String("filename", filename),
		zap.Int("chars", len(parsed.ParsedResults[0].ParsedText)),
		zap.Int("processing_ms", int(parsed.ProcessingTimeMs)),
	)
	return parsed.ParsedResults[0].ParsedText, nil
}

func fileType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "PDF"
	case ".png":
		return "PNG"
	case ".jpg", ".jpeg":
		return "JPG"
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
