package protocol

import (
	"encoding/json"
	"fmt"
)

// ResponseStatus tells whether a Response carries a result or a failure.
type ResponseStatus uint8

const (
	StatusOK    ResponseStatus = 0x00
	StatusError ResponseStatus = 0x01
)

// Response answers a Request with the same ID. Native → Go replies travel in
// FrameReply, Go → native results in FrameResult.
type Response struct {
	ID     uint64
	Status ResponseStatus

	// Result is the JSON result for StatusOK. Empty means null.
	Result json.RawMessage

	// Code and Message describe a StatusError failure.
	Code    uint16
	Message string
}

// OK reports whether the response carries a result.
func (r *Response) OK() bool {
	return r.Status == StatusOK
}

// EncodeResponse encodes a Response to bytes.
func EncodeResponse(r *Response) []byte {
	e := NewEncoderWithCap(16 + len(r.Result) + len(r.Message))
	EncodeResponseTo(e, r)
	return e.Bytes()
}

// EncodeResponseTo encodes a Response using the provided encoder.
func EncodeResponseTo(e *Encoder, r *Response) {
	e.WriteUvarint(r.ID)
	e.WriteByte(byte(r.Status))
	if r.Status == StatusOK {
		result := r.Result
		if len(result) == 0 {
			result = nullResult
		}
		e.WriteLenBytes(result)
		return
	}
	e.WriteUint16(r.Code)
	e.WriteString(r.Message)
}

var nullResult = json.RawMessage("null")

// DecodeResponse decodes a Response from bytes.
func DecodeResponse(data []byte) (*Response, error) {
	d := NewDecoder(data)
	r := &Response{}
	var err error

	if r.ID, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	status, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	r.Status = ResponseStatus(status)

	switch r.Status {
	case StatusOK:
		result, err := d.ReadLenBytes()
		if err != nil {
			return nil, err
		}
		r.Result = result
	case StatusError:
		if r.Code, err = d.ReadUint16(); err != nil {
			return nil, err
		}
		if r.Message, err = d.ReadString(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("protocol: invalid response status 0x%02x", status)
	}

	if err := d.done(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewResult creates a successful Response.
func NewResult(id uint64, result json.RawMessage) *Response {
	return &Response{ID: id, Status: StatusOK, Result: result}
}

// NewFailure creates a failed Response.
func NewFailure(id uint64, code uint16, message string) *Response {
	return &Response{ID: id, Status: StatusError, Code: code, Message: message}
}
