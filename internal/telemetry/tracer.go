package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys stamped on dispatch spans.
const (
	AttrClientAddr = "client.address"
	AttrWorkerID   = "dispatch.worker_id"
	AttrSessionID  = "dispatch.session_id"
	AttrCommand    = "dispatch.command"
	AttrOutcome    = "dispatch.outcome"

	AttrAuthUsername = "auth.username"
	AttrAuthMethod   = "auth.method"

	AttrStorageKey = "storage.key"
)

// Span names.
const (
	SpanDispatch    = "vaultd.dispatch"
	SpanAcceptorRun = "vaultd.acceptor"
	SpanAuthLookup  = "vaultd.auth.lookup"
	SpanStorageOp   = "vaultd.storage"
)

// ClientAddr returns an attribute for the remote connection address.
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// WorkerID returns an attribute identifying which worker dispatched a call.
func WorkerID(id int) attribute.KeyValue {
	return attribute.Int(AttrWorkerID, id)
}

// SessionID returns an attribute for the session a dispatch is acting under.
func SessionID(id uint32) attribute.KeyValue {
	return attribute.Int64(AttrSessionID, int64(id))
}

// Command returns an attribute for the protocol command being dispatched.
func Command(name string) attribute.KeyValue {
	return attribute.String(AttrCommand, name)
}

// AuthUsername returns an attribute for the username an auth lookup acted on.
func AuthUsername(name string) attribute.KeyValue {
	return attribute.String(AttrAuthUsername, name)
}

// AuthMethod returns an attribute for the hash function used by an auth op.
func AuthMethod(method string) attribute.KeyValue {
	return attribute.String(AttrAuthMethod, method)
}

// StorageKey returns an attribute for the storage-table key an op acted on.
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrStorageKey, key)
}

// Outcome returns an attribute recording a dispatch span's protocol.Outcome
// (as its String() form, "keep_open" or "close_conn").
func Outcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

// StartDispatchSpan starts the span wrapping one serve() dispatch.
func StartDispatchSpan(ctx context.Context, workerID int, clientAddr string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanDispatch, trace.WithAttributes(
		WorkerID(workerID),
		ClientAddr(clientAddr),
	))
}

// StartAcceptorSpan starts the span wrapping one accept-loop iteration.
func StartAcceptorSpan(ctx context.Context) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanAcceptorRun)
}
