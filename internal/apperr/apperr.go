// Package apperr implements the error taxonomy from the platform design:
// kinds, not types. Every component maps its errors to one of these kinds,
// and StatusFor turns them into the HTTP surface's status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and status-code purposes.
type Kind int

const (
	KindClient Kind = iota
	KindIngestProcessing
	KindRetrievalDegradation
	KindTransientInfra
	KindConflict
	KindFatal
)

// Error wraps an underlying cause with a Kind and an actionable message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel errors for conditions callers commonly branch on.
var (
	ErrNotFound        = errors.New("document not found")
	ErrConflict        = errors.New("registry version conflict")
	ErrNoText          = errors.New("parser extracted no text")
	ErrParserFailed    = errors.New("all parsers in fallback chain failed")
	ErrEmbeddingFailed = errors.New("embedding provider failed permanently")
	ErrGenerationFailed = errors.New("generator unavailable after retries")
	ErrUnknownSources  = errors.New("no requested active_sources are known")
)

// StatusFor maps an error to the HTTP status code the Gateway's REST
// surface reports for it. The MCP surface does not use it.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnknownSources):
		return http.StatusOK // degrades, does not fail, per spec §8
	}
	var ae *Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case KindClient:
			return http.StatusBadRequest
		case KindConflict:
			return http.StatusConflict
		case KindTransientInfra:
			return http.StatusServiceUnavailable
		case KindIngestProcessing, KindRetrievalDegradation:
			return http.StatusOK
		case KindFatal:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
