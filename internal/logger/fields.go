package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the connection-dispatch
// engine. Use these consistently so log aggregation/querying stays uniform
// across acceptor, dispatch, session, auth, and storage log lines.
const (
	// Distributed tracing.
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Connection / dispatch.
	KeyWorkerID    = "worker_id"
	KeySlot        = "slot"
	KeyRemoteAddr  = "remote_addr"
	KeyConnID      = "conn_id"
	KeyCommand     = "command"

	// Session.
	KeySessionID   = "session_id"
	KeyPermissions = "permissions"
	KeyUsername    = "username"

	// Queues.
	KeyQueueDepth = "queue_depth"
	KeyQueueCap   = "queue_cap"

	// Storage.
	KeyStorageKey = "storage_key"

	// Generic.
	KeyErrorCode = "error_code"
	KeyDuration  = "duration_ms"
	KeySource    = "source"
	KeyAttempt   = "attempt"
)

// TraceID returns a trace_id attribute for request correlation.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a span_id attribute for operation tracking.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// WorkerID returns a worker_id attribute identifying which pool worker is
// acting.
func WorkerID(id int) slog.Attr {
	return slog.Int(KeyWorkerID, id)
}

// Slot returns a slot attribute identifying a connection's index within a
// worker's poll set.
func Slot(i int) slog.Attr {
	return slog.Int(KeySlot, i)
}

// RemoteAddr returns a remote_addr attribute for the peer address of a
// connection.
func RemoteAddr(addr string) slog.Attr {
	return slog.String(KeyRemoteAddr, addr)
}

// ConnID returns a conn_id attribute, a per-connection correlation ID
// stamped when a worker admits the connection from the handoff queue.
func ConnID(id string) slog.Attr {
	return slog.String(KeyConnID, id)
}

// Command returns a command attribute for the dispatched protocol command.
func Command(name string) slog.Attr {
	return slog.String(KeyCommand, name)
}

// SessionID returns a session_id attribute.
func SessionID(id uint32) slog.Attr {
	return slog.Uint64(KeySessionID, uint64(id))
}

// Permissions returns a permissions attribute.
func Permissions(p uint8) slog.Attr {
	return slog.Int(KeyPermissions, int(p))
}

// Username returns a username attribute.
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// QueueDepth returns a queue_depth attribute.
func QueueDepth(n int) slog.Attr {
	return slog.Int(KeyQueueDepth, n)
}

// QueueCap returns a queue_cap attribute.
func QueueCap(n int) slog.Attr {
	return slog.Int(KeyQueueCap, n)
}

// StorageKey returns a storage_key attribute.
func StorageKey(key string) slog.Attr {
	return slog.String(KeyStorageKey, key)
}

// ErrorCode returns an error_code attribute.
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}

// DurationMs returns a duration_ms attribute.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDuration, ms)
}

// Err returns an error attribute using slog's standard key.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Source returns a source attribute (e.g. which component logged a line).
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}

// Attempt returns an attempt attribute for retry-style operations.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}
