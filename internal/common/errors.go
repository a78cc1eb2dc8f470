package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline stage failures. Every stage error wraps exactly one of these so
// the boundary can record a short human-readable reason on the job.
var (
	ErrFetch               = errors.New("document fetch failed")
	ErrRasterize           = errors.New("rasterization failed")
	ErrOCR                 = errors.New("ocr failed")
	ErrMalformedExtraction = errors.New("malformed extraction response")
	ErrSchemaViolation     = errors.New("extraction schema violation")
	ErrPersistence         = errors.New("persistence failed")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// StageMessage returns the short operator-facing reason recorded on the job
// document when a pipeline stage fails.
func StageMessage(err error) string {
	switch {
	case errors.Is(err, ErrFetch):
		return "document fetch failed"
	case errors.Is(err, ErrRasterize):
		return "rasterization failed"
	case errors.Is(err, ErrOCR):
		return "OCR failed"
	case errors.Is(err, ErrMalformedExtraction), errors.Is(err, ErrSchemaViolation):
		return "LLM extraction failed"
	case errors.Is(err, ErrPersistence):
		return "persistence failed"
	default:
		return err.Error()
	}
}
