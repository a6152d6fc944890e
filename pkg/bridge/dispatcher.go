// Package bridge contains the request processing core: the command
// dispatcher and the file read executor behind it.
//
// The dispatcher is stateless across requests. It receives one decoded
// byte buffer per inbound message from the transport and returns the
// outbound frames for it; the serve loop in pkg/server owns ordering and
// flow control between those frames.
package bridge

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/filebridge-dev/filebridge/internal/logger"
	"github.com/filebridge-dev/filebridge/internal/telemetry"
	"github.com/filebridge-dev/filebridge/pkg/metrics"
	proto "github.com/filebridge-dev/filebridge/pkg/protocol/bridge"
)

// Dispatcher routes decoded frames to their handlers.
type Dispatcher struct {
	executor *Executor
	metrics  metrics.BridgeMetrics
}

// NewDispatcher creates a dispatcher backed by the given executor.
// Metrics may be nil to disable collection.
func NewDispatcher(executor *Executor, m metrics.BridgeMetrics) *Dispatcher {
	return &Dispatcher{
		executor: executor,
		metrics:  m,
	}
}

// Dispatch processes one raw inbound frame buffer and returns the
// outbound frames it produced, in the order they must be written.
//
// Every outcome yields at least one frame: a frame that cannot be decoded
// at all surfaces as a single INVALID_REQUEST error with request id 0,
// since the id could not be recovered from the broken header. Dispatch
// never panics on hostile input; a handler panic is caught and converted
// into an IO_ERROR frame.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) (frames [][]byte) {
	start := time.Now()

	header, err := proto.DecodeHeader(raw)
	if err != nil {
		logger.Warn("Rejecting malformed frame", "error", err, "bytes", len(raw))
		if d.metrics != nil {
			d.metrics.RecordRequest("MALFORMED", time.Since(start), proto.ErrInvalidRequest.String())
		}
		return [][]byte{proto.EncodeError(0, proto.ErrInvalidRequest, "malformed frame")}
	}

	command := header.Command.String()
	if d.metrics != nil {
		d.metrics.RecordRequestStart(command)
		defer d.metrics.RecordRequestEnd(command)
	}

	ctx, span := telemetry.StartRequestSpan(ctx, "bridge.dispatch",
		telemetry.CommandName(command),
		telemetry.RequestID(header.RequestID),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Request handler panicked",
				"command", command,
				"request_id", header.RequestID,
				"panic", r)
			telemetry.SetStatus(ctx, codes.Error, "handler panic")
			frames = [][]byte{proto.EncodeError(header.RequestID, proto.ErrIOError, "internal error")}
		}
		if d.metrics != nil {
			d.metrics.RecordRequest(command, time.Since(start), errorCodeOf(frames))
		}
	}()

	payload := header.Payload(raw)

	switch header.Command {
	case proto.CmdPing:
		logger.Debug("Ping", "request_id", header.RequestID)
		return [][]byte{proto.EncodePong(header.RequestID)}

	case proto.CmdRead:
		return d.executor.Execute(ctx, header.RequestID, payload)

	default:
		logger.Warn("Unknown command",
			"command", fmt.Sprintf("0x%02X", uint8(header.Command)),
			"request_id", header.RequestID)
		return [][]byte{proto.EncodeError(header.RequestID, proto.ErrInvalidRequest,
			fmt.Sprintf("unknown command 0x%02X", uint8(header.Command)))}
	}
}

// errorCodeOf extracts the error code name if the response is a single
// ERROR frame, or empty for successful outcomes.
func errorCodeOf(frames [][]byte) string {
	if len(frames) != 1 {
		return ""
	}
	header, err := proto.DecodeHeader(frames[0])
	if err != nil || header.Command != proto.CmdError {
		return ""
	}
	code, _, err := proto.DecodeError(header.Payload(frames[0]))
	if err != nil {
		return ""
	}
	return code.String()
}
