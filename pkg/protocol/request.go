package protocol

import (
	"encoding/json"
	"errors"
)

// ErrEmptyMethod is returned when a request names no method.
var ErrEmptyMethod = errors.New("protocol: request has empty method")

// Request is a call in either direction. Go → native requests travel in
// FrameCall, native → Go requests in FrameInvoke.
type Request struct {
	// ID is unique per direction within one context. Replies echo it.
	ID uint64

	// Module is the native capability ("shader", "modal", "imageDecoder").
	// Native → Go invocations leave it empty.
	Module string

	// Method is the capability method or entity method name.
	Method string

	// Args is a JSON array of positional arguments.
	Args json.RawMessage
}

// EncodeRequest encodes a Request to bytes.
func EncodeRequest(r *Request) []byte {
	e := NewEncoderWithCap(16 + len(r.Module) + len(r.Method) + len(r.Args))
	EncodeRequestTo(e, r)
	return e.Bytes()
}

// EncodeRequestTo encodes a Request using the provided encoder.
func EncodeRequestTo(e *Encoder, r *Request) {
	e.WriteUvarint(r.ID)
	e.WriteString(r.Module)
	e.WriteString(r.Method)
	args := r.Args
	if len(args) == 0 {
		args = emptyArgs
	}
	e.WriteLenBytes(args)
}

var emptyArgs = json.RawMessage("[]")

// DecodeRequest decodes a Request from bytes.
func DecodeRequest(data []byte) (*Request, error) {
	d := NewDecoder(data)
	r := &Request{}
	var err error

	if r.ID, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if r.Module, err = d.readName(); err != nil {
		return nil, err
	}
	if r.Method, err = d.readName(); err != nil {
		return nil, err
	}
	if r.Method == "" {
		return nil, ErrEmptyMethod
	}
	args, err := d.ReadLenBytes()
	if err != nil {
		return nil, err
	}
	r.Args = args

	if err := d.done(); err != nil {
		return nil, err
	}
	return r, nil
}

// String returns module.method, or just the method for invocations.
func (r *Request) String() string {
	if r.Module == "" {
		return r.Method
	}
	return r.Module + "." + r.Method
}
