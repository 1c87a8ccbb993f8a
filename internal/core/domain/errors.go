// Package domain defines the core domain models for kvwait.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes follow the format KV-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "KV-WAIT-4990")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Blocking operation errors
// ============================================================================

var (
	// ErrAdmissionCancelled indicates a connection gave up waiting for a session slot.
	ErrAdmissionCancelled = NewDomainError("KV-ADM-4990", "admission wait cancelled")

	// ErrWaitCancelled indicates a conditional read was cancelled before its condition held.
	ErrWaitCancelled = NewDomainError("KV-WAIT-4990", "conditional wait cancelled")
)

// ============================================================================
// Request and configuration errors
// ============================================================================

var (
	// ErrProtocolViolation indicates a peer sent a frame the server cannot accept.
	ErrProtocolViolation = NewDomainError("KV-PROTO-4000", "protocol violation")

	// ErrInvalidConfig indicates the process configuration is unusable.
	ErrInvalidConfig = NewDomainError("KV-CONF-4000", "invalid configuration")

	// ErrCredentialHash indicates a password could not be hashed.
	ErrCredentialHash = NewDomainError("KV-AUTH-5000", "credential hashing failed")
)
