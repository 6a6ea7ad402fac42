package errorutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes rendered to clients.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeCrossTenant        = "CROSS_TENANT_VIOLATION"
	CodeConflict           = "CONFLICT"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeAnalysisInProgress = "ANALYSIS_IN_PROGRESS"
	CodeUpstream           = "UPSTREAM_UNAVAILABLE"
	CodeTimeout            = "REQUEST_TIMEOUT"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewCrossTenant rejects a reference that resolves outside the caller's organization.
func NewCrossTenant(resource string, details map[string]any) error {
	return NewDomainError(CodeCrossTenant, fmt.Sprintf("%s belongs to another organization", resource), http.StatusForbidden, details)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewInvalidTransition rejects a state change that is not allowed from the current state.
func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("cannot transition from %s to %s", from, to),
		http.StatusConflict,
		map[string]any{"from": from, "to": to})
}

func NewAnalysisInProgress(orgID string) error {
	return NewDomainError(CodeAnalysisInProgress, "knowledge analysis already running", http.StatusConflict,
		map[string]any{"organization_id": orgID})
}

// NewUpstreamUnavailable wraps a similarity or generation backend failure.
func NewUpstreamUnavailable(service string, err error) error {
	return &DomainError{
		Code:       CodeUpstream,
		Message:    fmt.Sprintf("%s unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return &DomainError{
			Code:       CodeNotFound,
			Message:    "resource not found",
			HTTPStatus: http.StatusNotFound,
			Details:    map[string]any{},
			Err:        err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &DomainError{
			Code:       CodeTimeout,
			Message:    "request timed out",
			HTTPStatus: http.StatusGatewayTimeout,
			Err:        err,
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
