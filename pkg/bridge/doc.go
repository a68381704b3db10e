// Package bridge implements the asynchronous channel between Go and a native
// renderer.
//
// A Context is created per native context. Go issues calls with CallNative,
// which never blocks: the call is queued on an ordered outbox, written by a
// single goroutine, and completed when the native reply arrives through
// Resolve. Native invokes Go entity methods through Invoke, which runs the
// registered handler on the context's loop. Everything that touches a view
// tree runs on that loop, one function at a time.
//
//	bc := bridge.NewContext(id, transport, nil)
//	bc.Handle("__init__", func(ctx context.Context, args []json.RawMessage) (any, error) {
//	    return nil, nil
//	})
//
//	call := bc.CallNative(ctx, "modal", "toast", map[string]any{"msg": "saved"})
//	if _, err := call.Await(ctx); err != nil {
//	    var nerr *bridge.NativeError
//	    if errors.As(err, &nerr) { ... }
//	}
//
// The bridge has no timeouts. Await only bounds how long the caller waits;
// the call itself stays pending until native answers or Dispose rejects it.
package bridge
