package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

// Frame constants.
const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 6

	// MaxPayloadSize is the largest payload a frame may carry.
	MaxPayloadSize = HardMaxAllocation
)

// FrameType identifies the type of frame.
type FrameType uint8

const (
	FrameHandshake FrameType = 0x00 // Connection setup
	FrameCall      FrameType = 0x01 // Go → native request
	FrameReply     FrameType = 0x02 // Native → Go response
	FrameInvoke    FrameType = 0x03 // Native → Go request
	FrameResult    FrameType = 0x04 // Go → native response
	FrameControl   FrameType = 0x05 // Control messages (ping, close)
	FrameError     FrameType = 0x06 // Error message
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameHandshake:
		return "Handshake"
	case FrameCall:
		return "Call"
	case FrameReply:
		return "Reply"
	case FrameInvoke:
		return "Invoke"
	case FrameResult:
		return "Result"
	case FrameControl:
		return "Control"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Valid reports whether ft is a known frame type.
func (ft FrameType) Valid() bool {
	return ft <= FrameError
}

// FrameFlags are optional flags for frame processing.
type FrameFlags uint8

const (
	FlagCompressed FrameFlags = 0x01 // Payload is gzip compressed
	FlagFinal      FrameFlags = 0x04 // Last frame in batch
)

// Has returns true if the flags contain the specified flag.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

// Frame errors.
var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType = errors.New("protocol: invalid frame type")
)

// Frame represents a protocol frame with header and payload.
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// Encode encodes the frame to bytes including the header.
func (f *Frame) Encode() []byte {
	buf := make([]byte, FrameHeaderSize+len(f.Payload))
	buf[0] = byte(f.Type)
	buf[1] = byte(f.Flags)
	binary.BigEndian.PutUint32(buf[2:FrameHeaderSize], uint32(len(f.Payload)))
	copy(buf[FrameHeaderSize:], f.Payload)
	return buf
}

// DecodeFrame decodes a frame from bytes.
// The input must contain the full header and payload.
func DecodeFrame(data []byte) (*Frame, error) {
	ft, flags, length, err := DecodeFrameHeader(data)
	if err != nil {
		return nil, err
	}
	if len(data)-FrameHeaderSize < length {
		return nil, io.ErrUnexpectedEOF
	}

	payload := make([]byte, length)
	copy(payload, data[FrameHeaderSize:FrameHeaderSize+length])

	return &Frame{Type: ft, Flags: flags, Payload: payload}, nil
}

// DecodeFrameHeader decodes just the frame header, returning type, flags, and payload length.
func DecodeFrameHeader(data []byte) (FrameType, FrameFlags, int, error) {
	if len(data) < FrameHeaderSize {
		return 0, 0, 0, io.ErrUnexpectedEOF
	}

	ft := FrameType(data[0])
	if !ft.Valid() {
		return 0, 0, 0, ErrInvalidFrameType
	}
	length := binary.BigEndian.Uint32(data[2:FrameHeaderSize])
	if length > MaxPayloadSize {
		return 0, 0, 0, ErrFrameTooLarge
	}

	return ft, FrameFlags(data[1]), int(length), nil
}

// ReadFrame reads a complete frame from an io.Reader.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	ft, flags, length, err := DecodeFrameHeader(header)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	return &Frame{Type: ft, Flags: flags, Payload: payload}, nil
}

// WriteFrame writes a complete frame to an io.Writer.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return ErrFrameTooLarge
	}
	_, err := w.Write(f.Encode())
	return err
}

// NewFrame creates a new frame with the given type and payload.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}
