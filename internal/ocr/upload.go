package ocr

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	apperrors "github.com/gmsas95/notakopi/internal/errors"
)

// UploadPolicy limits what may be sent for OCR.
type UploadPolicy struct {
	MaxBytes     int64
	AllowedTypes []string
}

var extTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
}

// Check validates an upload and returns its effective content type. The
// declared type wins; otherwise the content is sniffed, then the extension.
func (p UploadPolicy) Check(filename, declared string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperrors.ErrEmptyNota
	}
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return "", apperrors.New(apperrors.ErrFileTooLarge.Code,
			fmt.Sprintf("file is %d bytes, limit is %d", len(data), p.MaxBytes))
	}

	contentType := mediaType(declared)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mediaType(http.DetectContentType(data))
	}
	if contentType == "application/octet-stream" || contentType == "text/plain" {
		if t, ok := extTypes[strings.ToLower(filepath.Ext(filename))]; ok {
			contentType = t
		}
	}

	if len(p.AllowedTypes) > 0 && !slices.Contains(p.AllowedTypes, contentType) {
		return "", apperrors.New(apperrors.ErrUnsupportedFile.Code,
			fmt.Sprintf("%s is not allowed, use JPG, PNG or PDF", contentType))
	}
	return contentType, nil
}

func mediaType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}
