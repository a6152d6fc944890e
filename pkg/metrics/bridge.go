package metrics

import (
	"time"
)

// BridgeMetrics provides observability for request dispatch and file reads.
//
// The interface is optional. Pass nil to disable metrics collection with
// zero overhead; every call site nil-checks before recording.
type BridgeMetrics interface {
	// RecordRequest records a completed request with its command name,
	// duration, and outcome.
	//
	// Parameters:
	//   - command: wire command name (e.g., "PING", "READ")
	//   - duration: time taken to process the request
	//   - errorCode: error code name if the request failed (e.g.,
	//     "NOT_FOUND"), empty if successful
	RecordRequest(command string, duration time.Duration, errorCode string)

	// RecordRequestStart increments the in-flight request gauge.
	RecordRequestStart(command string)

	// RecordRequestEnd decrements the in-flight request gauge.
	RecordRequestEnd(command string)

	// RecordBytesRead records bytes served from a mapped file.
	RecordBytesRead(bytes uint64)

	// RecordChunks records how many response frames one read produced.
	RecordChunks(count int)

	// RecordDenial records a sandbox policy rejection by reason.
	RecordDenial(reason string)
}
