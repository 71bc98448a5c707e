// Package errors provides the categorized error taxonomy for the privacy
// engine and its mapping onto HTTP status codes.
package errors

import (
	"fmt"
	"net/http"

	"github.com/privacy-engine/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents rejected input (out-of-range, malformed)
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents unknown entity references
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents mutations of immutable or contended state
	CategoryConflict ErrorCategory = "conflict"
	// CategoryPersistence represents store failures (retryable)
	CategoryPersistence ErrorCategory = "persistence"
	// CategoryAudit represents audit-write degradation (non-fatal)
	CategoryAudit ErrorCategory = "audit"
	// CategoryAuthorization represents missing or invalid caller identity
	CategoryAuthorization ErrorCategory = "authorization"
	// CategorySystem represents unexpected internal failures
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Validation errors (4xx)

// NewOutOfRangeError rejects a privacy level outside 0-100. The message
// names the offending field and the allowed range.
func NewOutOfRangeError(field string, level int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "OUT_OF_RANGE",
		Message:    fmt.Sprintf("invalid %s: %d (must be between 0 and 100)", field, level),
		Details: map[string]interface{}{
			"field": field,
			"value": level,
			"min":   int(types.MinPrivacyLevel),
			"max":   int(types.MaxPrivacyLevel),
		},
	}
}

// NewInvalidParameterError rejects a malformed input field.
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewUnknownClusterError rejects a reference to a cluster id absent from
// the current catalog.
func NewUnknownClusterError(clusterID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "UNKNOWN_CLUSTER",
		Message:    fmt.Sprintf("unknown cluster: %s", clusterID),
		Details: map[string]interface{}{
			"clusterId": clusterID,
		},
	}
}

// NewUnknownSubclusterError rejects a reference to a subcluster id absent
// from its cluster's current definition.
func NewUnknownSubclusterError(clusterID, subclusterID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "UNKNOWN_SUBCLUSTER",
		Message:    fmt.Sprintf("unknown subcluster %s in cluster %s", subclusterID, clusterID),
		Details: map[string]interface{}{
			"clusterId":    clusterID,
			"subclusterId": subclusterID,
		},
	}
}

// NewNotFoundError names the missing entity id without revealing whether
// it belongs to another user.
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       "CONFLICT",
		Message:    message,
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// System errors (5xx)

// NewPersistenceError wraps a store failure; the operation had no effect
// and the caller may retry.
func NewPersistenceError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPersistence,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "PERSISTENCE_ERROR",
		Message:    fmt.Sprintf("store error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
			"retryable": true,
		},
	}
}

// NewAuditDegradedError marks an audit-write failure. It is surfaced as a
// warning-level degradation and never fails the primary operation.
func NewAuditDegradedError(action string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAudit,
		StatusCode: http.StatusInternalServerError,
		Code:       "AUDIT_WRITE_DEGRADED",
		Message:    fmt.Sprintf("audit write failed for %s", action),
		Cause:      cause,
		Details: map[string]interface{}{
			"action": action,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}

	if svcErr, ok := err.(*types.ServiceError); ok {
		return categorizeServiceError(svcErr)
	}

	return NewInternalError("unexpected error", err)
}

// categorizeServiceError categorizes a ServiceError
func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	switch err.Code {
	case "OUT_OF_RANGE", "INVALID_PARAMETER", "UNKNOWN_CLUSTER", "UNKNOWN_SUBCLUSTER":
		return &CategorizedError{
			Category:   CategoryValidation,
			StatusCode: http.StatusBadRequest,
			Code:       err.Code,
			Message:    err.Message,
			Details:    err.Details,
		}
	case "NOT_FOUND":
		return &CategorizedError{
			Category:   CategoryNotFound,
			StatusCode: http.StatusNotFound,
			Code:       err.Code,
			Message:    err.Message,
			Details:    err.Details,
		}
	case "CONFLICT":
		return &CategorizedError{
			Category:   CategoryConflict,
			StatusCode: http.StatusConflict,
			Code:       err.Code,
			Message:    err.Message,
			Details:    err.Details,
		}
	case "UNAUTHORIZED":
		return &CategorizedError{
			Category:   CategoryAuthorization,
			StatusCode: http.StatusUnauthorized,
			Code:       err.Code,
			Message:    err.Message,
			Details:    err.Details,
		}
	case "PERSISTENCE_ERROR":
		return &CategorizedError{
			Category:   CategoryPersistence,
			StatusCode: http.StatusServiceUnavailable,
			Code:       err.Code,
			Message:    err.Message,
			Details:    err.Details,
		}
	default:
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       err.Code,
			Message:    err.Message,
			Details:    err.Details,
		}
	}
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryPersistence, CategoryAudit:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable
	default:
		return false
	}
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
