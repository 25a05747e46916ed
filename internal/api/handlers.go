package api

import (
	"crypto/subtle"
	"errors"
	"io"
	"strings"
	"time"

	apperrors "github.com/gmsas95/notakopi/internal/errors"
	"github.com/gmsas95/notakopi/internal/nota"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   s.version,
		"ocr":       s.provider,
		"auth":      s.config.AuthEnabled(),
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleMetricsJSON(c *fiber.Ctx) error {
	return c.JSON(s.metrics.Snapshot())
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	if s.config.AuthEnabled() {
		want := []byte(s.config.Security.AdminPassword)
		if subtle.ConstantTimeCompare([]byte(req.Password), want) != 1 {
			s.logger.Warn("Rejected login", zap.String("ip", c.IP()))
			return c.Status(401).JSON(fiber.Map{"error": "invalid password"})
		}
	}

	ttl := s.config.Security.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.Security.JWTSecret))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to generate token"})
	}

	return c.JSON(fiber.Map{"token": tokenString, "expires_at": now.Add(ttl).Unix()})
}

func (s *Server) handleProcessNota(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "No file provided"})
	}

	f, err := file.Open()
	if err != nil {
		return s.fail(c, err, "failed to read upload")
	}
	defer f.Close()

	// One byte past the limit is enough for the size check to trip.
	data, err := io.ReadAll(io.LimitReader(f, s.upload.MaxBytes+1))
	if err != nil {
		return s.fail(c, err, "failed to read upload")
	}

	if _, err := s.upload.Check(file.Filename, file.Header.Get("Content-Type"), data); err != nil {
		return s.fail(c, err, "invalid upload")
	}

	receipt, rawText, err := s.notas.ProcessNota(c.UserContext(), file.Filename, data)
	if err != nil {
		return s.fail(c, err, "Failed to process nota")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    receipt,
		"rawText": rawText,
	})
}

func (s *Server) handleParseText(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.Status(400).JSON(fiber.Map{"error": "text is required"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    s.notas.ParseText(req.Text),
	})
}

type saveNotaRequest struct {
	nota.ParsedReceipt
	Source  string `json:"source"`
	RawText string `json:"rawText"`
}

func (s *Server) handleSaveNota(c *fiber.Ctx) error {
	var req saveNotaRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.Source == "" {
		req.Source = "api"
	}

	result, err := s.notas.SaveNota(c.UserContext(), &req.ParsedReceipt, req.Source, req.RawText)
	if err != nil {
		return s.fail(c, err, "Gagal menyimpan nota")
	}

	return c.Status(201).JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

func (s *Server) handleListNotas(c *fiber.Ctx) error {
	notas, err := s.inventory.ListNotas(c.QueryInt("limit", 50))
	if err != nil {
		return s.fail(c, err, "failed to list notas")
	}
	return c.JSON(fiber.Map{"data": notas})
}

func (s *Server) handleGetNota(c *fiber.Ctx) error {
	rec, err := s.inventory.GetNota(c.Params("id"))
	if err != nil {
		return s.fail(c, err, "failed to get nota")
	}
	receipt, err := rec.Receipt()
	if err != nil {
		s.logger.Warn("Stored nota payload is unreadable", zap.String("id", rec.ID), zap.Error(err))
	}
	return c.JSON(fiber.Map{"data": rec, "receipt": receipt})
}

// fail answers with the status mapped from err's code. Application errors
// carry their own message; anything else gets fallback.
func (s *Server) fail(c *fiber.Ctx, err error, fallback string) error {
	status := apperrors.HTTPStatus(err)
	msg := fallback
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		msg = appErr.Message
	}
	if status >= 500 {
		s.logger.Error(fallback, zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"code":  apperrors.GetCode(err),
	})
}
