package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/vango-dev/vnative/pkg/protocol"
)

// Transport writes requests to the native peer. Replies come back through
// Context.Resolve, from whatever goroutine reads the peer.
type Transport interface {
	Send(ctx context.Context, req *protocol.Request) error
	Close() error
}

// HandlerFunc serves a native → Go entity method. Args are the positional
// JSON arguments. Handlers run on the context loop.
type HandlerFunc func(ctx context.Context, args []json.RawMessage) (any, error)

// Options configures a Context.
type Options struct {
	// Logger receives lifecycle and failure logs. Nil means slog.Default().
	Logger *slog.Logger

	// Observer is notified of every outbound call and inbound invocation.
	Observer Observer
}

// DefaultOptions returns Options with defaults.
func DefaultOptions() *Options {
	return &Options{}
}

// Clone returns a copy of the Options.
func (o *Options) Clone() *Options {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

// Context is one native context: its pending calls, its outbox and its loop.
type Context struct {
	id        string
	transport Transport
	logger    *slog.Logger
	observer  Observer

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]*Call
	outbox   []*Call
	tasks    []func()
	disposed bool

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc

	outboxWake chan struct{}
	taskWake   chan struct{}
	done       chan struct{}
}

// NewContext creates a context bound to transport and starts its outbox
// writer and loop goroutines. Dispose stops them.
func NewContext(id string, transport Transport, opts *Options) *Context {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	c := &Context{
		id:         id,
		transport:  transport,
		logger:     logger.With("context_id", id),
		observer:   observer,
		pending:    make(map[uint64]*Call),
		handlers:   make(map[string]HandlerFunc),
		outboxWake: make(chan struct{}, 1),
		taskWake:   make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go c.writeLoop()
	go c.runLoop()
	return c
}

// ID returns the context id.
func (c *Context) ID() string {
	return c.id
}

// Logger returns the context-scoped logger.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// Done is closed by Dispose.
func (c *Context) Done() <-chan struct{} {
	return c.done
}

// Disposed reports whether Dispose has been called.
func (c *Context) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// Pending returns the number of calls awaiting a reply.
func (c *Context) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// CallNative issues module.method(args...) to native and returns immediately.
// Args are encoded as a JSON array. Encoding failures, a disposed context and
// send failures reject the returned call. Calls are written in the order
// CallNative was called.
func (c *Context) CallNative(ctx context.Context, module, method string, args ...any) *Call {
	call := newCall(module, method)
	call.finish = c.observer.ObserveCall(ctx, CallInfo{
		ContextID: c.id,
		Module:    module,
		Method:    method,
		Direction: Outbound,
	})

	if args == nil {
		args = []any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		call.resolve(nil, fmt.Errorf("bridge: encode %s.%s args: %w", module, method, err))
		return call
	}
	call.args = raw
	call.sendCtx = context.WithoutCancel(ctx)

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		call.resolve(nil, ErrContextDisposed)
		return call
	}
	c.nextID++
	call.ID = c.nextID
	c.pending[call.ID] = call
	c.outbox = append(c.outbox, call)
	c.mu.Unlock()

	wake(c.outboxWake)
	return call
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// writeLoop is the only goroutine that calls Transport.Send.
func (c *Context) writeLoop() {
	for {
		select {
		case <-c.outboxWake:
		case <-c.done:
			return
		}

		for {
			c.mu.Lock()
			if len(c.outbox) == 0 || c.disposed {
				c.mu.Unlock()
				break
			}
			call := c.outbox[0]
			c.outbox[0] = nil
			c.outbox = c.outbox[1:]
			c.mu.Unlock()

			req := &protocol.Request{
				ID:     call.ID,
				Module: call.Module,
				Method: call.Method,
				Args:   call.args,
			}
			if err := c.transport.Send(call.sendCtx, req); err != nil {
				c.logger.Error("bridge send failed", "call", call.String(), "error", err)
				c.reject(call.ID, fmt.Errorf("bridge: send %s: %w", call, err))
			}
		}
	}
}

func (c *Context) reject(id uint64, err error) {
	c.mu.Lock()
	call, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		call.resolve(nil, err)
	}
}

// Resolve completes the pending call resp answers. It reports false for
// replies to unknown or already completed calls.
func (c *Context) Resolve(resp *protocol.Response) bool {
	c.mu.Lock()
	call, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("reply for unknown call", "call_id", resp.ID)
		return false
	}

	if resp.OK() {
		call.resolve(resp.Result, nil)
		return true
	}
	call.resolve(nil, &NativeError{
		Module:  call.Module,
		Method:  call.Method,
		Code:    resp.Code,
		Message: resp.Message,
	})
	return true
}

// Dispose rejects every pending call with ErrContextDisposed, stops the
// goroutines and closes the transport. Later calls are rejected immediately.
// Dispose is idempotent and may be called from the loop.
func (c *Context) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	pending := c.pending
	c.pending = make(map[uint64]*Call)
	c.outbox = nil
	c.tasks = nil
	c.mu.Unlock()

	close(c.done)

	ids := make([]uint64, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		pending[id].resolve(nil, ErrContextDisposed)
	}

	if err := c.transport.Close(); err != nil && !errors.Is(err, ErrTransportClosed) {
		c.logger.Debug("transport close", "error", err)
	}
	c.logger.Info("bridge context disposed", "rejected", len(ids))
}

// Handle registers an entity method native can invoke.
func (c *Context) Handle(method string, h HandlerFunc) {
	c.handlersMu.Lock()
	c.handlers[method] = h
	c.handlersMu.Unlock()
}

// Dispatch queues fn on the context loop. It reports false if the context
// is disposed.
func (c *Context) Dispatch(fn func()) bool {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return false
	}
	c.tasks = append(c.tasks, fn)
	c.mu.Unlock()
	wake(c.taskWake)
	return true
}

func (c *Context) runLoop() {
	for {
		select {
		case <-c.taskWake:
		case <-c.done:
			return
		}

		for {
			c.mu.Lock()
			if len(c.tasks) == 0 || c.disposed {
				c.mu.Unlock()
				break
			}
			fn := c.tasks[0]
			c.tasks[0] = nil
			c.tasks = c.tasks[1:]
			c.mu.Unlock()

			c.runTask(fn)
		}
	}
}

func (c *Context) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic on context loop", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

type outcome struct {
	value any
	err   error
}

// Invoke runs the entity method on the context loop and waits for its result.
// Args is the JSON argument array; empty means no arguments.
func (c *Context) Invoke(ctx context.Context, method string, args json.RawMessage) (any, error) {
	c.handlersMu.RLock()
	h, ok := c.handlers[method]
	c.handlersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}

	var argv []json.RawMessage
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argv); err != nil {
			return nil, fmt.Errorf("bridge: %s args: %w", method, err)
		}
	}

	finish := c.observer.ObserveCall(ctx, CallInfo{
		ContextID: c.id,
		Method:    method,
		Direction: Inbound,
	})

	result := make(chan outcome, 1)
	queued := c.Dispatch(func() {
		defer func() {
			if r := recover(); r != nil {
				result <- outcome{err: &PanicError{
					ContextID: c.id,
					Method:    method,
					Panic:     r,
					Stack:     debug.Stack(),
				}}
			}
		}()
		v, err := h(ctx, argv)
		result <- outcome{value: v, err: err}
	})
	if !queued {
		finish(ErrContextDisposed)
		return nil, ErrContextDisposed
	}

	select {
	case o := <-result:
		finish(o.err)
		return o.value, o.err
	case <-c.done:
		finish(ErrContextDisposed)
		return nil, ErrContextDisposed
	case <-ctx.Done():
		finish(ctx.Err())
		return nil, ctx.Err()
	}
}

// Serve answers a native request: it invokes the entity method and encodes
// its outcome as a Response.
func (c *Context) Serve(ctx context.Context, req *protocol.Request) *protocol.Response {
	value, err := c.Invoke(ctx, req.Method, req.Args)
	if err != nil {
		code := protocol.ErrServerError
		var perr *PanicError
		switch {
		case errors.Is(err, ErrUnknownMethod):
			code = protocol.ErrMethodNotFound
		case errors.Is(err, ErrContextDisposed):
			code = protocol.ErrContextDisposed
		case errors.As(err, &perr):
			code = protocol.ErrHandlerPanic
			c.logger.Error("entity method panic", "method", req.Method, "panic", perr.Panic, "stack", string(perr.Stack))
		default:
			c.logger.Warn("entity method failed", "method", req.Method, "error", err)
		}
		return protocol.NewFailure(req.ID, uint16(code), err.Error())
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return protocol.NewFailure(req.ID, uint16(protocol.ErrServerError),
			fmt.Sprintf("bridge: encode %s result: %v", req.Method, err))
	}
	return protocol.NewResult(req.ID, raw)
}
