// Package vtest provides a scripted native peer for testing code that talks
// to a bridge.Context.
//
// # Quick Start
//
//	func TestToast(t *testing.T) {
//	    native := vtest.NewNative()
//	    native.On("modal", "toast", func(args []json.RawMessage) (any, error) {
//	        return nil, nil
//	    })
//	    bc := native.Context(t)
//
//	    if _, err := bc.CallNative(ctx, "modal", "toast", "hi").Await(ctx); err != nil {
//	        t.Fatal(err)
//	    }
//	    vtest.ExpectMethods(t, native, "modal.toast")
//	}
//
// # Out-of-order replies
//
// Hold keeps replies back until Release delivers them, in the order given:
//
//	native.Hold()
//	a := bc.CallNative(ctx, "m", "a")
//	b := bc.CallNative(ctx, "m", "b")
//	native.WaitRequests(t, 2)
//	native.Release(b.ID, a.ID)
//
// # Failures
//
// Fail scripts a NativeError reply; unscripted methods answer null.
//
//	native.Fail("imageDecoder", "loadResource", 404, "no such resource")
package vtest
