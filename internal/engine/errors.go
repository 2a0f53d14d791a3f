package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while the substrate runs.
//
// Runtime errors include:
//   - Stream not found: a synchronized draw named an undeclared key
//   - Unsynced mint: an identifier was requested outside replicated execution
//   - No session / session active: lifecycle calls made in the wrong state
//   - Session terminated: the session was torn down by an earlier violation
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Key identifies the stream or queue involved, if any.
	Key string

	// Cause is the violation that terminated the session (SESSION_TERMINATED only).
	Cause error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStreamNotFound indicates a draw for a key no descriptor declared.
	ErrCodeStreamNotFound RuntimeErrorCode = "STREAM_NOT_FOUND"

	// ErrCodeUnsyncedMint indicates an identifier request outside replicated execution.
	ErrCodeUnsyncedMint RuntimeErrorCode = "UNSYNCED_MINT"

	// ErrCodeNoSession indicates a replicated operation without an active session.
	ErrCodeNoSession RuntimeErrorCode = "NO_SESSION"

	// ErrCodeSessionActive indicates StartSession while a session is running.
	ErrCodeSessionActive RuntimeErrorCode = "SESSION_ACTIVE"

	// ErrCodeSessionTerminated indicates the session was ended by a contract violation.
	ErrCodeSessionTerminated RuntimeErrorCode = "SESSION_TERMINATED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Key != "" {
		msg = fmt.Sprintf("%s (key=%s)", msg, e.Key)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes the terminating violation.
func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// NewStreamNotFoundError creates a RuntimeError for an undeclared stream key.
func NewStreamNotFoundError(key string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStreamNotFound,
		Message: "synchronized draw for undeclared stream",
		Key:     key,
	}
}

// NewUnsyncedMintError creates a RuntimeError for minting outside replicated execution.
func NewUnsyncedMintError() *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnsyncedMint,
		Message: "identifier minted outside replicated command",
	}
}

// NewNoSessionError creates a RuntimeError for an operation that needs a session.
func NewNoSessionError(op string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNoSession,
		Message: fmt.Sprintf("%s requires an active replicated session", op),
	}
}

// NewSessionTerminatedError wraps the violation that ended the session.
func NewSessionTerminatedError(cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSessionTerminated,
		Message: "replicated session was terminated",
		Cause:   cause,
	}
}

// IsContractViolation returns true if err must terminate the replicated session.
// Uses errors.As to handle wrapped errors.
func IsContractViolation(err error) bool {
	var re *RuntimeError
	if !errors.As(err, &re) {
		return false
	}
	switch re.Code {
	case ErrCodeStreamNotFound, ErrCodeUnsyncedMint, ErrCodeSessionTerminated:
		return true
	}
	return false
}

// IsStreamNotFound returns true if the error is an undeclared stream error.
func IsStreamNotFound(err error) bool {
	return hasCode(err, ErrCodeStreamNotFound)
}

// IsSessionTerminated returns true if the error reports a terminated session.
func IsSessionTerminated(err error) bool {
	return hasCode(err, ErrCodeSessionTerminated)
}

// IsNoSession returns true if the error reports a missing session.
func IsNoSession(err error) bool {
	return hasCode(err, ErrCodeNoSession)
}

// hasCode walks the chain, including the cause of a terminated session.
func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	for errors.As(err, &re) {
		if re.Code == code {
			return true
		}
		err = re.Cause
	}
	return false
}
