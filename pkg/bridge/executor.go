package bridge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"go.opentelemetry.io/otel/codes"

	"github.com/filebridge-dev/filebridge/internal/logger"
	"github.com/filebridge-dev/filebridge/internal/telemetry"
	"github.com/filebridge-dev/filebridge/pkg/metrics"
	"github.com/filebridge-dev/filebridge/pkg/mmap"
	proto "github.com/filebridge-dev/filebridge/pkg/protocol/bridge"
	"github.com/filebridge-dev/filebridge/pkg/sandbox"
)

// DefaultMaxChunkSize is the largest data payload a single READ_RESPONSE
// frame carries. Reads longer than this are split across frames.
const DefaultMaxChunkSize = 8 << 20

// Executor performs the file read behind a READ frame.
//
// Each invocation maps the target file read-only, slices the requested
// range out of the mapping, and releases the mapping before returning.
// Nothing is cached across requests.
type Executor struct {
	policies     *sandbox.Store
	maxChunkSize uint64
	metrics      metrics.BridgeMetrics
}

// NewExecutor creates an executor that authorizes paths against the
// policies store and splits responses into chunks of at most
// maxChunkSize bytes. A maxChunkSize of zero selects the default.
func NewExecutor(policies *sandbox.Store, maxChunkSize uint64, m metrics.BridgeMetrics) *Executor {
	if maxChunkSize == 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	return &Executor{
		policies:     policies,
		maxChunkSize: maxChunkSize,
		metrics:      m,
	}
}

// Execute handles the payload of a READ frame and returns the outbound
// frames for it: one or more READ_RESPONSE frames in ascending offset
// order with the final one flagged last, or exactly one ERROR frame.
//
// The returned slice is never empty.
func (e *Executor) Execute(ctx context.Context, requestID uint32, payload []byte) [][]byte {
	ctx, span := telemetry.StartRequestSpan(ctx, "bridge.read")
	defer span.End()

	req, err := proto.DecodeReadRequest(payload)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return e.fail(requestID, proto.ErrInvalidRequest, err.Error())
	}

	telemetry.SetAttributes(ctx,
		telemetry.Path(req.Path),
		telemetry.Offset(req.Offset),
		telemetry.Length(req.Length),
	)

	canonical, denial := e.policies.Current().Check(req.Path)
	if denial != sandbox.Allowed {
		logger.Warn("Read denied by sandbox policy",
			"request_id", requestID,
			"path", req.Path,
			"reason", string(denial))
		if e.metrics != nil {
			e.metrics.RecordDenial(string(denial))
		}
		telemetry.SetStatus(ctx, codes.Error, string(denial))
		return e.fail(requestID, proto.ErrPermissionDenied, "path is not allowed")
	}

	m, err := mmap.Open(canonical)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return e.fail(requestID, openErrorCode(err), openErrorMessage(err))
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			logger.Warn("Failed to release file mapping", "path", canonical, "error", cerr)
		}
	}()

	fileLength := m.Len()
	if req.Offset >= fileLength {
		return e.fail(requestID, proto.ErrInvalidRequest,
			fmt.Sprintf("offset %d beyond end of file (%d bytes)", req.Offset, fileLength))
	}

	// Over-long requests clamp to the available tail rather than erroring.
	actualLength := req.Length
	if remaining := fileLength - req.Offset; actualLength > remaining {
		actualLength = remaining
	}

	frames := e.chunkFrames(requestID, req.Offset, m.Slice(req.Offset, actualLength))

	if e.metrics != nil {
		e.metrics.RecordBytesRead(actualLength)
		e.metrics.RecordChunks(len(frames))
	}
	telemetry.SetAttributes(ctx,
		telemetry.Bytes(actualLength),
		telemetry.Chunks(len(frames)),
	)

	logger.Debug("Read served",
		"request_id", requestID,
		"path", canonical,
		"offset", req.Offset,
		"bytes", actualLength,
		"chunks", len(frames))

	return frames
}

// chunkFrames splits data into READ_RESPONSE frames of at most
// maxChunkSize bytes each. A zero-length range still produces one empty
// frame so the caller always sees a last-flagged response.
func (e *Executor) chunkFrames(requestID uint32, offset uint64, data []byte) [][]byte {
	if len(data) == 0 {
		return [][]byte{proto.EncodeReadResponse(requestID, offset, nil, true)}
	}

	chunkSize := int(e.maxChunkSize)
	count := (len(data) + chunkSize - 1) / chunkSize
	frames := make([][]byte, 0, count)

	for start := 0; start < len(data); start += chunkSize {
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		isLast := end == len(data)
		frames = append(frames, proto.EncodeReadResponse(requestID, offset+uint64(start), data[start:end], isLast))
	}

	return frames
}

// fail builds the single ERROR frame for a failed read.
func (e *Executor) fail(requestID uint32, code proto.ErrorCode, message string) [][]byte {
	return [][]byte{proto.EncodeError(requestID, code, message)}
}

// openErrorCode maps an open or stat failure to a wire error code.
func openErrorCode(err error) proto.ErrorCode {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return proto.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return proto.ErrPermissionDenied
	default:
		return proto.ErrIOError
	}
}

// openErrorMessage produces the wire message for an open failure.
//
// Raw OS error strings can disclose filesystem layout beyond the
// validated path, so anything that is not a plain not-found or
// permission failure is generalized.
func openErrorMessage(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "file not found"
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	default:
		return "failed to read file"
	}
}
