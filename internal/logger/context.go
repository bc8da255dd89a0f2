package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds connection-scoped logging context: which worker is
// handling a socket, which session (if any) it is authenticated as, and the
// trace correlating it to a dispatch span.
type LogContext struct {
	TraceID    string // OpenTelemetry trace ID
	SpanID     string // OpenTelemetry span ID
	WorkerID   int    // Worker goroutine index
	SessionID  uint32 // Session ID, 0 before authentication
	RemoteAddr string // Peer address (host:port)
	ConnID     string // Per-connection correlation ID, stamped when a worker admits the connection
	Command    string // Protocol command currently being dispatched

	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a freshly accepted connection.
func NewLogContext(remoteAddr string) *LogContext {
	return &LogContext{
		RemoteAddr: remoteAddr,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:    lc.TraceID,
		SpanID:     lc.SpanID,
		WorkerID:   lc.WorkerID,
		SessionID:  lc.SessionID,
		RemoteAddr: lc.RemoteAddr,
		ConnID:     lc.ConnID,
		Command:    lc.Command,
		StartTime:  lc.StartTime,
	}
}

// WithWorker returns a copy with the worker ID set.
func (lc *LogContext) WithWorker(workerID int) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.WorkerID = workerID
	}
	return clone
}

// WithSession returns a copy with the session ID set.
func (lc *LogContext) WithSession(sessionID uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SessionID = sessionID
	}
	return clone
}

// WithCommand returns a copy with the current command set.
func (lc *LogContext) WithCommand(command string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Command = command
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
