package protocol

// ErrorCode identifies a protocol level failure.
type ErrorCode uint16

const (
	ErrUnknown         ErrorCode = 0x0000 // Unknown error
	ErrInvalidFrame    ErrorCode = 0x0001 // Malformed frame
	ErrInvalidRequest  ErrorCode = 0x0002 // Malformed request or response
	ErrMethodNotFound  ErrorCode = 0x0003 // No entity method registered
	ErrHandlerPanic    ErrorCode = 0x0004 // Entity method panicked
	ErrContextDisposed ErrorCode = 0x0005 // Bridge context already torn down
	ErrUnknownCall     ErrorCode = 0x0006 // Reply for a call id that is not pending
	ErrServerError     ErrorCode = 0x0100 // Internal server error
	ErrNotAuthorized   ErrorCode = 0x0101 // Not authorized
)

// String returns the string representation of the error code.
func (ec ErrorCode) String() string {
	switch ec {
	case ErrUnknown:
		return "Unknown"
	case ErrInvalidFrame:
		return "InvalidFrame"
	case ErrInvalidRequest:
		return "InvalidRequest"
	case ErrMethodNotFound:
		return "MethodNotFound"
	case ErrHandlerPanic:
		return "HandlerPanic"
	case ErrContextDisposed:
		return "ContextDisposed"
	case ErrUnknownCall:
		return "UnknownCall"
	case ErrServerError:
		return "ServerError"
	case ErrNotAuthorized:
		return "NotAuthorized"
	default:
		return "Unknown"
	}
}

// ErrorMessage is sent in a FrameError when something is wrong with the
// connection itself rather than with a single call.
type ErrorMessage struct {
	Code    ErrorCode // Error code
	Message string    // Human-readable error message
	Fatal   bool      // If true, connection should be closed
}

// EncodeErrorMessage encodes an ErrorMessage to bytes.
func EncodeErrorMessage(em *ErrorMessage) []byte {
	e := NewEncoder()
	e.WriteUint16(uint16(em.Code))
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
	return e.Bytes()
}

// DecodeErrorMessage decodes an ErrorMessage from bytes.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)

	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	message, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	fatal, err := d.ReadBool()
	if err != nil {
		return nil, err
	}

	return &ErrorMessage{Code: ErrorCode(code), Message: message, Fatal: fatal}, nil
}

// NewError creates a new non-fatal ErrorMessage.
func NewError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message}
}

// NewFatalError creates a new fatal ErrorMessage.
func NewFatalError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message, Fatal: true}
}

// Error implements the error interface.
func (em *ErrorMessage) Error() string {
	if em.Fatal {
		return "fatal: " + em.Code.String() + ": " + em.Message
	}
	return em.Code.String() + ": " + em.Message
}
