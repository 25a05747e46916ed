package ocr

import (
	"bytes"
	"testing"

	apperrors "github.com/gmsas95/notakopi/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpgHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	pdfHeader = []byte("%PDF-1.4\n%âãÏÓ\n")
)

func TestUploadPolicy_Check(t *testing.T) {
	policy := UploadPolicy{
		MaxBytes:     64,
		AllowedTypes: []string{"image/jpeg", "image/png", "application/pdf"},
	}

	tests := []struct {
		name     string
		filename string
		declared string
		data     []byte
		expected string
		code     string
	}{
		{"sniffed png", "nota.png", "", pngHeader, "image/png", ""},
		{"sniffed jpeg", "nota.jpg", "application/octet-stream", jpgHeader, "image/jpeg", ""},
		{"declared type wins", "scan", "image/png; charset=binary", pngHeader, "image/png", ""},
		{"pdf", "nota.pdf", "", pdfHeader, "application/pdf", ""},
		{"empty", "nota.jpg", "", nil, "", apperrors.ErrEmptyNota.Code},
		{"too large", "nota.png", "", bytes.Repeat([]byte("a"), 65), "", apperrors.ErrFileTooLarge.Code},
		{"text not allowed", "nota.txt", "", []byte("Kopi 1 kg"), "", apperrors.ErrUnsupportedFile.Code},
		{"gif not allowed", "nota.gif", "image/gif", []byte("GIF89a"), "", apperrors.ErrUnsupportedFile.Code},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := policy.Check(test.filename, test.declared, test.data)
			if test.code != "" {
				require.Error(t, err)
				assert.Equal(t, test.code, apperrors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, got)
		})
	}
}

func TestUploadPolicy_NoLimits(t *testing.T) {
	got, err := UploadPolicy{}.Check("nota.txt", "", []byte("Teh 1 pack 12.000"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", got)
}
