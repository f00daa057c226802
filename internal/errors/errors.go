// Package errors provides centralized error definitions and error handling
// utilities for the Human Hunter server. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// Domain-specific errors represent errors from specific subsystems:
//   - RoomError: errors related to room lifecycle and game actions
//   - AgentError: errors related to the agent decision capability
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// Errors can be classified by severity and behavior: retryable errors are
// transient and may succeed on retry; user-facing errors are safe to surface
// through a client adapter.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Room-related sentinel errors
var (
	// ErrRoomNotFound indicates that a room could not be found.
	ErrRoomNotFound = New("room not found")
	// ErrRoomFull indicates that a room has no free human slots.
	ErrRoomFull = New("room is full")
	// ErrGameInProgress indicates that a room's game has already started.
	ErrGameInProgress = New("game already in progress")
	// ErrGameCompleted indicates that a room's game has finished.
	ErrGameCompleted = New("game already completed")
	// ErrGameOver indicates that the session is terminal and rejects player actions.
	ErrGameOver = New("game is over")
)

// Game-action sentinel errors
var (
	// ErrWrongPhase indicates an action was attempted outside its owning phase.
	ErrWrongPhase = New("action not allowed in current phase")
	// ErrAlreadyVoted indicates the voter already has a vote entry this phase.
	ErrAlreadyVoted = New("already voted")
	// ErrIneligibleTarget indicates a vote target is eliminated, unknown, or the voter itself.
	ErrIneligibleTarget = New("ineligible vote target")
	// ErrPlayerNotFound indicates that a player is not part of the session.
	ErrPlayerNotFound = New("player not found")
	// ErrPlayerEliminated indicates that an eliminated player attempted an action.
	ErrPlayerEliminated = New("player is eliminated")
)

// Agent capability sentinel errors
var (
	// ErrMalformedOutput indicates the capability returned output that could not be decoded.
	ErrMalformedOutput = New("malformed capability output")
	// ErrCapabilityUnavailable indicates the capability backend could not be reached.
	ErrCapabilityUnavailable = New("capability unavailable")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// GameError is the base interface for all Human Hunter errors.
// It extends the standard error interface with classification methods.
type GameError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to surface
	// through a client adapter.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) IsRetryable() bool  { return e.retryable }
func (e *baseError) IsUserFacing() bool { return e.userFacing }

// RoomError represents errors related to room lifecycle and game actions.
//
// Example:
//
//	err := errors.NewRoomError("vote rejected", errors.ErrAlreadyVoted).
//		WithRoomCode("AB12CD").WithPlayerID("Player 3")
type RoomError struct {
	baseError
	RoomCode string
	PlayerID string
}

// NewRoomError creates a new RoomError.
func NewRoomError(message string, cause error) *RoomError {
	return &RoomError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithRoomCode adds a room code to the error context.
func (e *RoomError) WithRoomCode(code string) *RoomError {
	e.RoomCode = code
	return e
}

// WithPlayerID adds a player ID to the error context.
func (e *RoomError) WithPlayerID(id string) *RoomError {
	e.PlayerID = id
	return e
}

// WithSeverity sets the error severity.
func (e *RoomError) WithSeverity(s Severity) *RoomError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *RoomError) Error() string {
	var parts []string
	if e.RoomCode != "" {
		parts = append(parts, fmt.Sprintf("room=%s", e.RoomCode))
	}
	if e.PlayerID != "" {
		parts = append(parts, fmt.Sprintf("player=%s", e.PlayerID))
	}

	prefix := "room error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("room error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *RoomError) Is(target error) bool {
	if _, ok := target.(*RoomError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AgentError represents errors from the agent decision capability.
// These are recovered locally with deterministic fallbacks and logged only.
type AgentError struct {
	baseError
	AgentID   string
	Operation string // "decide", "message", or "vote"
}

// NewAgentError creates a new AgentError.
func NewAgentError(message string, cause error) *AgentError {
	return &AgentError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityInfo,
			retryable:  true,
			userFacing: false,
		},
	}
}

// WithAgentID adds an agent ID to the error context.
func (e *AgentError) WithAgentID(id string) *AgentError {
	e.AgentID = id
	return e
}

// WithOperation adds the capability operation to the error context.
func (e *AgentError) WithOperation(op string) *AgentError {
	e.Operation = op
	return e
}

// Error returns the formatted error message.
func (e *AgentError) Error() string {
	var parts []string
	if e.AgentID != "" {
		parts = append(parts, fmt.Sprintf("agent=%s", e.AgentID))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Operation))
	}

	prefix := "agent error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("agent error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *AgentError) Is(target error) bool {
	if _, ok := target.(*AgentError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("room", "AB12CD")
//	fmt.Println(err) // "room 'AB12CD' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if errors.Is(target, ErrRoomNotFound) && e.ResourceType == "room" {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var gameErr GameError
	if As(err, &gameErr) {
		return gameErr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to surface through
// a client adapter.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var gameErr GameError
	if As(err, &gameErr) {
		return gameErr.IsUserFacing()
	}

	// Game-action sentinels are always safe to show players.
	switch {
	case Is(err, ErrAlreadyVoted), Is(err, ErrWrongPhase), Is(err, ErrIneligibleTarget),
		Is(err, ErrRoomNotFound), Is(err, ErrRoomFull), Is(err, ErrGameInProgress),
		Is(err, ErrGameCompleted), Is(err, ErrGameOver):
		return true
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement GameError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var gameErr GameError
	if As(err, &gameErr) {
		return gameErr.Severity()
	}

	return SeverityError
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
