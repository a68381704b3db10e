// Package server is the host endpoint native peers connect to over WebSocket.
//
// Each connection completes a handshake and becomes a Session. The session
// owns one bridge.Context and is that context's transport, so everything the
// bridge package guarantees (ordered outbound calls, id-matched replies, a
// single loop for entity methods) holds per connection.
//
// # Architecture
//
//   - Server: chi router with the WebSocket endpoint, /healthz and an optional
//     /metrics handler; handshake and graceful shutdown
//   - SessionManager: live sessions, limits, statistics and lifecycle hooks
//   - Session: frame I/O for one native peer
//   - MetricsCollector: frame and error counters shared by all sessions
//
// # Handshake
//
// The native peer sends a Handshake frame carrying ClientHello. The server
// rejects incompatible protocol versions, wrong tokens (when AuthToken is
// set) and connections beyond MaxSessions, answering with a ServerHello
// whose status says why. On success the AppFunc binds the session (usually
// to a panel) before ServerHello is written and the session starts reading.
//
// # Session Loops
//
// The session runs two goroutines:
//   - ReadLoop: decodes frames. Reply frames resolve pending calls directly;
//     Invoke frames are served on their own goroutine and answered with a
//     Result frame; control frames handle ping, pong and close
//   - HeartbeatLoop: sends pings at HeartbeatInterval
//
// When the connection ends the session disposes its bridge context, which
// rejects every pending call with bridge.ErrContextDisposed.
//
// # Usage
//
//	srv := server.New(server.DefaultServerConfig().WithAddress(":7070"))
//	srv.SetApp(func(s *server.Session) {
//	    panel.New(s.Bridge(), panel.Config{Build: buildRoot})
//	})
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
