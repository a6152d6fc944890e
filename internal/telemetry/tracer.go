package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used across bridge spans.
const (
	attrCommand   = "bridge.command"
	attrRequestID = "bridge.request_id"
	attrPath      = "bridge.path"
	attrOffset    = "bridge.offset"
	attrLength    = "bridge.length"
	attrBytes     = "bridge.bytes"
	attrChunks    = "bridge.chunks"
	attrSession   = "bridge.session_id"
)

// CommandName returns the wire command attribute.
func CommandName(name string) attribute.KeyValue {
	return attribute.String(attrCommand, name)
}

// RequestID returns the request correlation id attribute.
func RequestID(id uint32) attribute.KeyValue {
	return attribute.Int64(attrRequestID, int64(id))
}

// Path returns the requested file path attribute.
func Path(path string) attribute.KeyValue {
	return attribute.String(attrPath, path)
}

// Offset returns the read offset attribute.
func Offset(offset uint64) attribute.KeyValue {
	return attribute.Int64(attrOffset, int64(offset))
}

// Length returns the requested length attribute.
func Length(length uint64) attribute.KeyValue {
	return attribute.Int64(attrLength, int64(length))
}

// Bytes returns the served byte count attribute.
func Bytes(n uint64) attribute.KeyValue {
	return attribute.Int64(attrBytes, int64(n))
}

// Chunks returns the response frame count attribute.
func Chunks(n int) attribute.KeyValue {
	return attribute.Int(attrChunks, n)
}

// SessionID returns the serve session id attribute.
func SessionID(id string) attribute.KeyValue {
	return attribute.String(attrSession, id)
}

// StartRequestSpan starts a span for one inbound request.
func StartRequestSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
}
