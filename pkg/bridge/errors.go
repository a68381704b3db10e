package bridge

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrContextDisposed rejects calls that were pending at, or issued after, Dispose.
	ErrContextDisposed = errors.New("bridge: context disposed")

	// ErrTransportClosed is returned by transports that can no longer send.
	ErrTransportClosed = errors.New("bridge: transport closed")

	// ErrUnknownMethod is returned by Invoke for unregistered entity methods.
	ErrUnknownMethod = errors.New("bridge: unknown entity method")
)

// NativeError is a failure reported by the native side for one call.
type NativeError struct {
	Module  string
	Method  string
	Code    uint16
	Message string
}

// Error returns the error message.
func (e *NativeError) Error() string {
	return fmt.Sprintf("bridge: %s.%s failed (code %d): %s", e.Module, e.Method, e.Code, e.Message)
}

// PanicError wraps a panic raised by an entity method or dispatched function.
type PanicError struct {
	ContextID string
	Method    string
	Panic     any
	Stack     []byte
}

// Error returns the error message.
func (e *PanicError) Error() string {
	return fmt.Sprintf("bridge: panic in context %s, method %s: %v", e.ContextID, e.Method, e.Panic)
}
