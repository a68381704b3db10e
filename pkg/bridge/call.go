package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Call is the pending result of a CallNative.
type Call struct {
	ID     uint64
	Module string
	Method string

	args    json.RawMessage
	sendCtx context.Context

	once   sync.Once
	done   chan struct{}
	result json.RawMessage
	err    error
	finish func(error)
}

func newCall(module, method string) *Call {
	return &Call{
		Module: module,
		Method: method,
		done:   make(chan struct{}),
		finish: func(error) {},
	}
}

// resolve completes the call. Only the first resolution counts. The observer
// sees the outcome before any waiter does.
func (c *Call) resolve(result json.RawMessage, err error) {
	c.once.Do(func() {
		c.result, c.err = result, err
		c.finish(err)
		close(c.done)
	})
}

// Done is closed once the call has completed.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Await waits for the result. Cancelling ctx stops the wait but not the call.
func (c *Call) Await(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the call's error once it has completed, nil before that.
func (c *Call) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// String returns module.method#id.
func (c *Call) String() string {
	return fmt.Sprintf("%s.%s#%d", c.Module, c.Method, c.ID)
}

// Decode awaits call and unmarshals its result into T.
func Decode[T any](ctx context.Context, call *Call) (T, error) {
	var out T
	raw, err := call.Await(ctx)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("bridge: decode %s.%s result: %w", call.Module, call.Method, err)
	}
	return out, nil
}
