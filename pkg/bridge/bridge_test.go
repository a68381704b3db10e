package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/vnative/pkg/bridge"
	"github.com/vango-dev/vnative/pkg/protocol"
	"github.com/vango-dev/vnative/pkg/vtest"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCallNativeOrdering(t *testing.T) {
	ctx := testCtx(t)
	native := vtest.NewNative()
	bc := native.Context(t)

	calls := []*bridge.Call{
		bc.CallNative(ctx, "shader", "render", map[string]any{"id": "root"}),
		bc.CallNative(ctx, "modal", "toast", "hi", 2),
		bc.CallNative(ctx, "navbar", "setTitle"),
	}
	for _, c := range calls {
		if _, err := c.Await(ctx); err != nil {
			t.Fatalf("%s: %v", c, err)
		}
	}

	vtest.ExpectMethods(t, native, "shader.render", "modal.toast", "navbar.setTitle")

	reqs := native.Requests()
	for i, r := range reqs {
		if r.ID != uint64(i+1) {
			t.Errorf("request %d id = %d, want %d", i, r.ID, i+1)
		}
	}
	if string(reqs[1].Args) != `["hi",2]` {
		t.Errorf("args = %s", reqs[1].Args)
	}
	if string(reqs[2].Args) != `[]` {
		t.Errorf("empty args = %s, want []", reqs[2].Args)
	}
}

func TestOutOfOrderReplies(t *testing.T) {
	ctx := testCtx(t)
	native := vtest.NewNative()
	native.On("m", "a", func([]json.RawMessage) (any, error) { return "A", nil })
	native.On("m", "b", func([]json.RawMessage) (any, error) { return "B", nil })
	native.Hold()
	bc := native.Context(t)

	a := bc.CallNative(ctx, "m", "a")
	b := bc.CallNative(ctx, "m", "b")
	native.WaitRequests(t, 2)

	native.Release(b.ID)
	if got, err := bridge.Decode[string](ctx, b); err != nil || got != "B" {
		t.Fatalf("b = %q, %v", got, err)
	}
	select {
	case <-a.Done():
		t.Fatal("a resolved before its reply was released")
	default:
	}
	if bc.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", bc.Pending())
	}

	native.Release(a.ID)
	if got, err := bridge.Decode[string](ctx, a); err != nil || got != "A" {
		t.Fatalf("a = %q, %v", got, err)
	}
}

func TestResolveUnknownCall(t *testing.T) {
	bc := vtest.NewNative().Context(t)
	if bc.Resolve(protocol.NewResult(99, nil)) {
		t.Error("Resolve of an unknown id should report false")
	}
}

func TestNativeFailure(t *testing.T) {
	ctx := testCtx(t)
	native := vtest.NewNative()
	native.Fail("imageDecoder", "loadResource", 404, "no such resource")
	bc := native.Context(t)

	_, err := bc.CallNative(ctx, "imageDecoder", "loadResource", "x.png").Await(ctx)
	var nerr *bridge.NativeError
	if !errors.As(err, &nerr) {
		t.Fatalf("error = %v, want NativeError", err)
	}
	want := &bridge.NativeError{Module: "imageDecoder", Method: "loadResource", Code: 404, Message: "no such resource"}
	if diff := cmp.Diff(want, nerr); diff != "" {
		t.Errorf("NativeError mismatch (-want +got):\n%s", diff)
	}
}

func TestSendFailureRejects(t *testing.T) {
	ctx := testCtx(t)
	native := vtest.NewNative()
	sendErr := errors.New("pipe broken")
	native.FailSends(sendErr)
	bc := native.Context(t)

	_, err := bc.CallNative(ctx, "m", "x").Await(ctx)
	if !errors.Is(err, sendErr) {
		t.Errorf("error = %v, want wrapped send error", err)
	}
	if bc.Pending() != 0 {
		t.Errorf("Pending() = %d after send failure", bc.Pending())
	}
}

func TestEncodeFailureRejects(t *testing.T) {
	ctx := testCtx(t)
	native := vtest.NewNative()
	bc := native.Context(t)

	_, err := bc.CallNative(ctx, "m", "x", make(chan int)).Await(ctx)
	if err == nil {
		t.Fatal("unencodable args should reject the call")
	}
	if len(native.Requests()) != 0 {
		t.Error("rejected call must not reach native")
	}
}

func TestDisposeRejectsPending(t *testing.T) {
	ctx := testCtx(t)
	native := vtest.NewNative()
	native.Hold()
	bc := native.Context(t)

	a := bc.CallNative(ctx, "m", "a")
	b := bc.CallNative(ctx, "m", "b")
	native.WaitRequests(t, 2)

	bc.Dispose()
	bc.Dispose()

	for _, c := range []*bridge.Call{a, b} {
		if _, err := c.Await(ctx); !errors.Is(err, bridge.ErrContextDisposed) {
			t.Errorf("%s error = %v, want ErrContextDisposed", c, err)
		}
	}
	if _, err := bc.CallNative(ctx, "m", "c").Await(ctx); !errors.Is(err, bridge.ErrContextDisposed) {
		t.Errorf("call after Dispose error = %v", err)
	}
	if !native.Closed() {
		t.Error("Dispose should close the transport")
	}
	if !bc.Disposed() {
		t.Error("Disposed() = false")
	}

	// Late replies are ignored.
	native.Release()
	if bc.Pending() != 0 {
		t.Errorf("Pending() = %d", bc.Pending())
	}
}

func TestAwaitCancelled(t *testing.T) {
	native := vtest.NewNative()
	native.Hold()
	bc := native.Context(t)

	ctx, cancel := context.WithCancel(context.Background())
	call := bc.CallNative(ctx, "m", "slow")
	cancel()
	if _, err := call.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Await error = %v, want Canceled", err)
	}

	// The call itself survives cancellation of the wait.
	native.WaitRequests(t, 1)
	native.Release()
	if _, err := call.Await(testCtx(t)); err != nil {
		t.Errorf("call failed after release: %v", err)
	}
}

func TestInvokeRunsOnLoop(t *testing.T) {
	ctx := testCtx(t)
	native := vtest.NewNative()
	bc := native.Context(t)

	var mu sync.Mutex
	active, maxActive := 0, 0
	bc.Handle("__sum__", func(_ context.Context, args []json.RawMessage) (any, error) {
		mu.Lock()
		active++
		maxActive = max(maxActive, active)
		mu.Unlock()
		time.Sleep(time.Millisecond)

		total := 0
		for _, a := range args {
			var n int
			if err := json.Unmarshal(a, &n); err != nil {
				return nil, err
			}
			total += n
		}
		mu.Lock()
		active--
		mu.Unlock()
		return total, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := native.Invoke(ctx, "__sum__", 1, 2, 3)
			if err != nil || string(raw) != "6" {
				t.Errorf("Invoke = %s, %v", raw, err)
			}
		}()
	}
	wg.Wait()
	if maxActive != 1 {
		t.Errorf("handlers overlapped: %d ran at once", maxActive)
	}
}

func TestInvokeErrors(t *testing.T) {
	ctx := testCtx(t)
	native := vtest.NewNative()
	bc := native.Context(t)
	bc.Handle("__boom__", func(context.Context, []json.RawMessage) (any, error) {
		panic("kaboom")
	})
	bc.Handle("__fail__", func(context.Context, []json.RawMessage) (any, error) {
		return nil, errors.New("nope")
	})

	tests := []struct {
		method string
		code   protocol.ErrorCode
	}{
		{"__missing__", protocol.ErrMethodNotFound},
		{"__boom__", protocol.ErrHandlerPanic},
		{"__fail__", protocol.ErrServerError},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			_, err := native.Invoke(ctx, tt.method)
			var nerr *bridge.NativeError
			if !errors.As(err, &nerr) || nerr.Code != uint16(tt.code) {
				t.Errorf("Invoke error = %v, want code %d", err, tt.code)
			}
		})
	}

	// The loop survives a panicking handler.
	bc.Handle("__ok__", func(context.Context, []json.RawMessage) (any, error) { return true, nil })
	if raw, err := native.Invoke(ctx, "__ok__"); err != nil || string(raw) != "true" {
		t.Errorf("Invoke after panic = %s, %v", raw, err)
	}

	_, err := bc.Invoke(ctx, "__missing__", nil)
	if !errors.Is(err, bridge.ErrUnknownMethod) {
		t.Errorf("Invoke error = %v, want ErrUnknownMethod", err)
	}

	bc.Dispose()
	if _, err := bc.Invoke(ctx, "__ok__", nil); !errors.Is(err, bridge.ErrContextDisposed) {
		t.Errorf("Invoke after Dispose = %v", err)
	}
}

func TestDispatch(t *testing.T) {
	bc := vtest.NewNative().Context(t)
	done := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		bc.Dispatch(func() { done <- i })
	}
	for want := 0; want < 3; want++ {
		select {
		case got := <-done:
			if got != want {
				t.Errorf("task %d ran in position %d", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("dispatched task never ran")
		}
	}
	bc.Dispose()
	if bc.Dispatch(func() {}) {
		t.Error("Dispatch after Dispose should report false")
	}
}

func TestScoped(t *testing.T) {
	ctx := testCtx(t)
	acquireErr := errors.New("acquire")
	useErr := errors.New("use")
	releaseErr := errors.New("release")

	t.Run("acquire fails", func(t *testing.T) {
		ran := false
		err := bridge.Scoped(ctx,
			func(context.Context) (int, error) { return 0, acquireErr },
			func(context.Context, int) error { ran = true; return nil },
			func(context.Context, int) error { ran = true; return nil },
		)
		if !errors.Is(err, acquireErr) || ran {
			t.Errorf("err = %v, ran = %v", err, ran)
		}
	})

	t.Run("use fails", func(t *testing.T) {
		released := 0
		err := bridge.Scoped(ctx,
			func(context.Context) (int, error) { return 7, nil },
			func(context.Context, int) error { return useErr },
			func(_ context.Context, r int) error { released = r; return releaseErr },
		)
		if !errors.Is(err, useErr) || !errors.Is(err, releaseErr) {
			t.Errorf("err = %v, want both errors joined", err)
		}
		if released != 7 {
			t.Errorf("release got %d", released)
		}
	})

	t.Run("cancelled context still releases", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		var relCtxErr error
		_ = bridge.Scoped(cctx,
			func(context.Context) (int, error) { return 1, nil },
			func(context.Context, int) error { cancel(); return nil },
			func(rctx context.Context, _ int) error { relCtxErr = rctx.Err(); return nil },
		)
		if relCtxErr != nil {
			t.Errorf("release context error = %v, want live context", relCtxErr)
		}
	})

	t.Run("panic in use releases", func(t *testing.T) {
		released := false
		func() {
			defer func() { _ = recover() }()
			_ = bridge.Scoped(ctx,
				func(context.Context) (int, error) { return 1, nil },
				func(context.Context, int) error { panic("use") },
				func(context.Context, int) error { released = true; return nil },
			)
		}()
		if !released {
			t.Error("release did not run after panic")
		}
	})
}

func TestDecode(t *testing.T) {
	ctx := testCtx(t)
	native := vtest.NewNative()
	native.On("device", "info", func([]json.RawMessage) (any, error) {
		return map[string]any{"width": 390, "height": 844}, nil
	})
	native.On("device", "bad", func([]json.RawMessage) (any, error) { return "oops", nil })
	bc := native.Context(t)

	type size struct{ Width, Height int }
	got, err := bridge.Decode[size](ctx, bc.CallNative(ctx, "device", "info"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(size{390, 844}, got); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}

	if _, err := bridge.Decode[size](ctx, bc.CallNative(ctx, "device", "bad")); err == nil {
		t.Error("Decode of a mismatched result should fail")
	}
}

func TestObserver(t *testing.T) {
	ctx := testCtx(t)
	var mu sync.Mutex
	var seen []string
	obs := bridge.ObserverFunc(func(_ context.Context, info bridge.CallInfo) func(error) {
		return func(err error) {
			mu.Lock()
			defer mu.Unlock()
			s := info.Direction.String() + " " + info.Module + "." + info.Method
			if err != nil {
				s += " error"
			}
			seen = append(seen, s)
		}
	})

	native := vtest.NewNative()
	native.Fail("m", "bad", 1, "x")
	bc := bridge.NewContext("obs", native, &bridge.Options{Observer: bridge.Observers(obs, nil)})
	native.Attach(bc)
	t.Cleanup(bc.Dispose)
	bc.Handle("__ping__", func(context.Context, []json.RawMessage) (any, error) { return "pong", nil })

	_, _ = bc.CallNative(ctx, "m", "good").Await(ctx)
	_, _ = bc.CallNative(ctx, "m", "bad").Await(ctx)
	_, _ = native.Invoke(ctx, "__ping__")

	mu.Lock()
	defer mu.Unlock()
	want := []string{"outbound m.good", "outbound m.bad error", "inbound .__ping__"}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("observed calls mismatch (-want +got):\n%s", diff)
	}
}
