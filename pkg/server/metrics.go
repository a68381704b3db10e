package server

import (
	"sync/atomic"
	"time"
)

// ServerMetrics aggregates metrics across the server.
type ServerMetrics struct {
	// Sessions
	ActiveSessions int64
	TotalSessions  int64
	SessionCloses  int64
	PeakSessions   int64

	// Frames
	FramesSent     int64
	FramesReceived int64
	Invokes        int64

	// Network
	BytesSent     int64
	BytesReceived int64

	// Errors
	HandlerPanics  int64
	WriteErrors    int64
	ReadErrors     int64
	ProtocolErrors int64

	// Timestamp
	CollectedAt time.Time
}

// Metrics collects and returns server metrics.
func (s *Server) Metrics() *ServerMetrics {
	stats := s.sessions.Stats()
	m := s.sessions.Collector().Snapshot()

	m.ActiveSessions = int64(stats.Active)
	m.TotalSessions = int64(stats.TotalCreated)
	m.SessionCloses = int64(stats.TotalClosed)
	m.PeakSessions = int64(stats.Peak)
	return m
}

// MetricsCollector counts frame-level activity across sessions.
type MetricsCollector struct {
	framesSent     atomic.Int64
	framesReceived atomic.Int64
	invokes        atomic.Int64
	bytesSent      atomic.Int64
	bytesReceived  atomic.Int64
	handlerPanics  atomic.Int64
	writeErrors    atomic.Int64
	readErrors     atomic.Int64
	protocolErrors atomic.Int64

	onError atomic.Pointer[func(kind string)]
}

// NewMetricsCollector creates a new MetricsCollector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordFrameSent records an outgoing frame of n bytes.
func (m *MetricsCollector) RecordFrameSent(n int) {
	m.framesSent.Add(1)
	m.bytesSent.Add(int64(n))
}

// RecordFrameReceived records an incoming frame of n bytes.
func (m *MetricsCollector) RecordFrameReceived(n int) {
	m.framesReceived.Add(1)
	m.bytesReceived.Add(int64(n))
}

// RecordInvoke records an entity method invocation from native.
func (m *MetricsCollector) RecordInvoke() {
	m.invokes.Add(1)
}

// RecordHandlerPanic records a panicking entity method.
func (m *MetricsCollector) RecordHandlerPanic() {
	m.handlerPanics.Add(1)
}

// RecordWriteError records a write error.
func (m *MetricsCollector) RecordWriteError() {
	m.writeErrors.Add(1)
	m.reportError("write")
}

// RecordReadError records a read error.
func (m *MetricsCollector) RecordReadError() {
	m.readErrors.Add(1)
	m.reportError("read")
}

// RecordProtocolError records a frame that could not be decoded.
func (m *MetricsCollector) RecordProtocolError() {
	m.protocolErrors.Add(1)
	m.reportError("protocol")
}

// SetOnError sets a function called with "write", "read" or "protocol" for
// every recorded error, e.g. to feed an external metrics system.
func (m *MetricsCollector) SetOnError(fn func(kind string)) {
	if fn == nil {
		m.onError.Store(nil)
		return
	}
	m.onError.Store(&fn)
}

func (m *MetricsCollector) reportError(kind string) {
	if fn := m.onError.Load(); fn != nil {
		(*fn)(kind)
	}
}

// Snapshot returns the current counter values.
func (m *MetricsCollector) Snapshot() *ServerMetrics {
	return &ServerMetrics{
		FramesSent:     m.framesSent.Load(),
		FramesReceived: m.framesReceived.Load(),
		Invokes:        m.invokes.Load(),
		BytesSent:      m.bytesSent.Load(),
		BytesReceived:  m.bytesReceived.Load(),
		HandlerPanics:  m.handlerPanics.Load(),
		WriteErrors:    m.writeErrors.Load(),
		ReadErrors:     m.readErrors.Load(),
		ProtocolErrors: m.protocolErrors.Load(),
		CollectedAt:    time.Now(),
	}
}

// Reset zeroes all counters.
func (m *MetricsCollector) Reset() {
	m.framesSent.Store(0)
	m.framesReceived.Store(0)
	m.invokes.Store(0)
	m.bytesSent.Store(0)
	m.bytesReceived.Store(0)
	m.handlerPanics.Store(0)
	m.writeErrors.Store(0)
	m.readErrors.Store(0)
	m.protocolErrors.Store(0)
}
