// Package protocol implements the binary wire protocol spoken between a Go
// host and a native renderer peer.
//
// The Go side issues bridge calls (render deltas, shader commands, plugin
// methods) and the native side invokes entity methods on the Go side (window
// requests, callback responses, lifecycle hooks). Both directions use the same
// Request and Response payloads carried in different frame types.
//
// # Wire Format
//
// All messages are framed with a 6-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (4 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// # Frame Types
//
//   - FrameHandshake (0x00): ClientHello / ServerHello
//   - FrameCall (0x01): Go → native request
//   - FrameReply (0x02): native → Go response to a Call
//   - FrameInvoke (0x03): native → Go request
//   - FrameResult (0x04): Go → native response to an Invoke
//   - FrameControl (0x05): ping, pong, close
//   - FrameError (0x06): protocol level error
//
// # Payloads
//
// A Request is
//
//	[ID: uvarint][Module: len-prefixed][Method: len-prefixed][Args: len-prefixed JSON array]
//
// and a Response is
//
//	[ID: uvarint][Status: byte][Result: len-prefixed JSON]          (StatusOK)
//	[ID: uvarint][Status: byte][Code: uint16][Message: len-prefixed] (StatusError)
//
// Argument and result bodies are JSON so that payloads stay readable on both
// sides; the framing around them is binary.
package protocol
