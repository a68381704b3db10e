package vtest

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/vnative/pkg/bridge"
	"github.com/vango-dev/vnative/pkg/protocol"
)

// Responder answers one native method. Returning an error that is a
// *bridge.NativeError sends its code and message; any other error is sent
// with code 500.
type Responder func(args []json.RawMessage) (any, error)

// Native is a fake native peer implementing bridge.Transport.
type Native struct {
	mu         sync.Mutex
	target     *bridge.Context
	responders map[string]Responder
	requests   []*protocol.Request
	held       map[uint64]*protocol.Response
	holding    bool
	closed     bool
	sendErr    error
	notify     chan struct{}
}

// NewNative creates a fake native peer.
func NewNative() *Native {
	return &Native{
		responders: make(map[string]Responder),
		held:       make(map[uint64]*protocol.Response),
		notify:     make(chan struct{}, 1),
	}
}

// Context creates a bridge.Context wired to n and disposes it when the test
// ends.
func (n *Native) Context(t testing.TB) *bridge.Context {
	t.Helper()
	bc := bridge.NewContext("test-"+t.Name(), n, nil)
	n.Attach(bc)
	t.Cleanup(bc.Dispose)
	return bc
}

// Attach routes replies to bc.
func (n *Native) Attach(bc *bridge.Context) {
	n.mu.Lock()
	n.target = bc
	n.mu.Unlock()
}

// On scripts module.method.
func (n *Native) On(module, method string, r Responder) {
	n.mu.Lock()
	n.responders[module+"."+method] = r
	n.mu.Unlock()
}

// Fail scripts module.method to reply with a native failure.
func (n *Native) Fail(module, method string, code uint16, message string) {
	n.On(module, method, func([]json.RawMessage) (any, error) {
		return nil, &bridge.NativeError{Module: module, Method: method, Code: code, Message: message}
	})
}

// FailSends makes every later Send return err without recording.
func (n *Native) FailSends(err error) {
	n.mu.Lock()
	n.sendErr = err
	n.mu.Unlock()
}

// Hold keeps replies back until Release.
func (n *Native) Hold() {
	n.mu.Lock()
	n.holding = true
	n.mu.Unlock()
}

// Release delivers held replies for ids in the given order. With no ids it
// delivers every held reply in call id order and stops holding.
func (n *Native) Release(ids ...uint64) {
	n.mu.Lock()
	if len(ids) == 0 {
		for id := range n.held {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		n.holding = false
	}
	var out []*protocol.Response
	for _, id := range ids {
		if resp, ok := n.held[id]; ok {
			out = append(out, resp)
			delete(n.held, id)
		}
	}
	target := n.target
	n.mu.Unlock()

	for _, resp := range out {
		target.Resolve(resp)
	}
}

// Send implements bridge.Transport.
func (n *Native) Send(_ context.Context, req *protocol.Request) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return bridge.ErrTransportClosed
	}
	if n.sendErr != nil {
		err := n.sendErr
		n.mu.Unlock()
		return err
	}
	n.requests = append(n.requests, req)
	r := n.responders[req.Module+"."+req.Method]
	holding := n.holding
	target := n.target
	n.mu.Unlock()

	select {
	case n.notify <- struct{}{}:
	default:
	}

	resp := respond(req, r)
	if holding {
		n.mu.Lock()
		n.held[req.ID] = resp
		n.mu.Unlock()
		return nil
	}
	if target != nil {
		target.Resolve(resp)
	}
	return nil
}

func respond(req *protocol.Request, r Responder) *protocol.Response {
	if r == nil {
		return protocol.NewResult(req.ID, nil)
	}
	var args []json.RawMessage
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return protocol.NewFailure(req.ID, 400, err.Error())
	}
	value, err := r(args)
	if err != nil {
		if nerr, ok := err.(*bridge.NativeError); ok {
			return protocol.NewFailure(req.ID, nerr.Code, nerr.Message)
		}
		return protocol.NewFailure(req.ID, 500, err.Error())
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return protocol.NewFailure(req.ID, 500, err.Error())
	}
	return protocol.NewResult(req.ID, raw)
}

// Close implements bridge.Transport.
func (n *Native) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (n *Native) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

// Requests returns the requests received so far, in wire order.
func (n *Native) Requests() []*protocol.Request {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.requests)
}

// Methods returns "module.method" for every request received so far.
func (n *Native) Methods() []string {
	reqs := n.Requests()
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.String()
	}
	return out
}

// WaitRequests waits until at least count requests arrived, failing the test
// after two seconds.
func (n *Native) WaitRequests(t testing.TB, count int) []*protocol.Request {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if reqs := n.Requests(); len(reqs) >= count {
			return reqs
		}
		select {
		case <-n.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("vtest: got %d requests, want %d: %v", len(n.Requests()), count, n.Methods())
			return nil
		}
	}
}

// Invoke calls a Go entity method as native would, encoding args as a JSON
// array.
func (n *Native) Invoke(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	n.mu.Lock()
	target := n.target
	n.mu.Unlock()

	if args == nil {
		args = []any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	resp := target.Serve(ctx, &protocol.Request{Method: method, Args: raw})
	if !resp.OK() {
		return nil, &bridge.NativeError{Method: method, Code: resp.Code, Message: resp.Message}
	}
	return resp.Result, nil
}

// ExpectMethods fails the test unless the requests received so far are
// exactly want, as "module.method" strings.
func ExpectMethods(t testing.TB, n *Native, want ...string) {
	t.Helper()
	if got := n.Methods(); !slices.Equal(got, want) {
		t.Errorf("native requests = %v, want %v", got, want)
	}
}
