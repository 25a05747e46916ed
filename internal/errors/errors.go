package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError with the same code, so wrapped copies of the
// sentinels below still satisfy errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrOCRNotConfigured = &AppError{Code: "OCR_001", Message: "no OCR provider configured"}
	ErrOCRFailed        = &AppError{Code: "OCR_002", Message: "OCR request failed"}
	ErrOCRNoText        = &AppError{Code: "OCR_003", Message: "OCR returned no text"}
	ErrOCRUnavailable   = &AppError{Code: "OCR_004", Message: "OCR provider unavailable"}

	ErrUnsupportedFile = &AppError{Code: "NOTA_001", Message: "unsupported file type"}
	ErrFileTooLarge    = &AppError{Code: "NOTA_002", Message: "file too large"}
	ErrEmptyNota       = &AppError{Code: "NOTA_003", Message: "nota is empty"}

	ErrItemNotFound = &AppError{Code: "INV_001", Message: "inventory item not found"}
	ErrItemInvalid  = &AppError{Code: "INV_002", Message: "invalid inventory item"}

	ErrUnauthorized = &AppError{Code: "AUTH_001", Message: "unauthorized"}
	ErrForbidden    = &AppError{Code: "AUTH_002", Message: "forbidden"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// HTTPStatus maps an error code family to the status the API answers with.
func HTTPStatus(err error) int {
	code := GetCode(err)
	switch {
	case code == ErrFileTooLarge.Code:
		return http.StatusRequestEntityTooLarge
	case code == ErrUnsupportedFile.Code, code == ErrEmptyNota.Code, code == ErrItemInvalid.Code, code == ErrBadRequest.Code:
		return http.StatusBadRequest
	case code == ErrItemNotFound.Code, code == ErrNotFound.Code:
		return http.StatusNotFound
	case code == ErrUnauthorized.Code:
		return http.StatusUnauthorized
	case code == ErrForbidden.Code:
		return http.StatusForbidden
	case code == ErrOCRNoText.Code:
		return http.StatusUnprocessableEntity
	case strings.HasPrefix(code, "OCR_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
