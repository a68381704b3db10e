package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for common session and server error conditions.
var (
	// ErrSessionClosed is returned when an operation is attempted on a closed session.
	ErrSessionClosed = errors.New("server: session closed")

	// ErrInvalidHandshake is returned when the WebSocket handshake fails.
	ErrInvalidHandshake = errors.New("server: invalid handshake")

	// ErrMaxSessionsReached is returned when the maximum number of sessions is reached.
	ErrMaxSessionsReached = errors.New("server: max sessions reached")

	// ErrNotAuthorized is returned when the handshake token does not match.
	ErrNotAuthorized = errors.New("server: not authorized")

	// ErrShuttingDown is returned when a session is created during shutdown.
	ErrShuttingDown = errors.New("server: shutting down")
)

// SessionError wraps an error with session context for debugging.
type SessionError struct {
	SessionID string
	Op        string // Operation that failed
	Err       error  // Underlying error
}

// Error returns the error message with session context.
func (e *SessionError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError creates a new SessionError.
func NewSessionError(sessionID, op string, err error) *SessionError {
	return &SessionError{
		SessionID: sessionID,
		Op:        op,
		Err:       err,
	}
}

// ProtocolError represents a malformed frame from native.
type ProtocolError struct {
	SessionID string
	Op        string
	Err       error
}

// Error returns the error message.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("server: protocol error in session %s: %s: %v",
		e.SessionID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}
