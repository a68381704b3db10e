// Package middleware provides production-grade observers for vnative bridge
// traffic.
//
// This package includes:
//   - OpenTelemetry tracing of bridge calls
//   - Prometheus metrics for bridge calls and sessions
//
// Both are bridge.Observer values. Attach them to every session through
// server.ServerConfig.Observer, or to a single context through
// bridge.Options.Observer. Combine them with bridge.Observers.
//
// # OpenTelemetry
//
// Every outbound call becomes a client span that ends when native replies,
// and every entity method invocation becomes a server span:
//
//	config.Observer = middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithCallFilter(func(info bridge.CallInfo) bool {
//	        return info.Method != "__renderBunchedItems__"
//	    }),
//	)
//
// # Prometheus Metrics
//
// The Prometheus observer collects:
//   - vnative_bridge_calls_total: Calls by direction, method and status
//   - vnative_bridge_call_duration_seconds: Call duration histogram
//   - vnative_bridge_call_errors_total: Failed calls by error type
//   - vnative_active_sessions: Current number of connected native peers
//
// Session gauges are driven by the session manager hooks:
//
//	m := middleware.Prometheus()
//	srv.Sessions().SetOnSessionCreate(func(*server.Session) { m.SessionOpened() })
//	srv.Sessions().SetOnSessionClose(func(*server.Session) { m.SessionClosed() })
//
// Expose the registry with m.Handler(), or mount it through
// server.ServerConfig.MetricsHandler.
package middleware
