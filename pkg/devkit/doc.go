// Package devkit implements the development side channel between native
// peers and the developer's machine.
//
// The devkit server accepts WebSocket connections from devices and from a
// local debugger. Devices report exceptions and log lines; a device that
// enters debugging hands its context id to the server, which records it in
// <projectHome>/build/context and tells the device to switch over once a
// debugger attaches.
//
// Messages are JSON objects of the form
//
//	{"cmd": "LOG", "data": {"type": "WARN", "message": "low memory"}}
//
// with cmd one of DEBUG, EXCEPTION, LOG and SWITCH_TO_DEBUG.
//
// Every message received is appended to a LogStore (bbolt) so `vnative logs`
// can replay a session, and exceptions can be archived to S3 through
// S3Archive.
//
// Go programs report to a devkit with Client, or route their slog output to
// it with NewHandler:
//
//	c, err := devkit.Dial(ctx, "ws://192.168.1.20:7777/")
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(slog.New(devkit.NewHandler(c, nil)))
package devkit
