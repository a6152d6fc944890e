package nativemsg

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/filebridge-dev/filebridge/internal/logger"
	"github.com/filebridge-dev/filebridge/pkg/bufpool"
)

// DefaultMaxMessageSize bounds the inbound envelope size. Requests are
// small (a header plus a path); anything near this limit is hostile or
// corrupt.
const DefaultMaxMessageSize = 1 << 20

// Reader decodes length-prefixed envelopes from a byte stream.
type Reader struct {
	r       io.Reader
	maxSize uint32
}

// NewReader wraps r. A maxMessageSize of zero selects the default.
func NewReader(r io.Reader, maxMessageSize uint32) *Reader {
	if maxMessageSize == 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &Reader{r: r, maxSize: maxMessageSize}
}

// Next returns the next decoded message from the stream.
//
// Envelopes that cannot be decoded are logged and skipped, not surfaced
// as errors: a zero or oversized length prefix and unparsable JSON both
// drop the offending message and keep reading, so one corrupt envelope
// cannot take the channel down. Oversized bodies are drained from the
// stream to preserve framing. Next returns io.EOF when the peer closes
// its end; any other returned error is an unrecoverable stream failure.
func (r *Reader) Next() (Message, error) {
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read length prefix: %w", err)
		}

		// The host writes the prefix in its native byte order.
		msgLen := binary.NativeEndian.Uint32(lenBuf[:])

		if msgLen == 0 {
			logger.Warn("Dropping envelope with zero length prefix")
			continue
		}
		if msgLen > r.maxSize {
			logger.Warn("Dropping oversized envelope", "bytes", msgLen, "limit", r.maxSize)
			if _, err := io.CopyN(io.Discard, r.r, int64(msgLen)); err != nil {
				return nil, fmt.Errorf("drain oversized envelope: %w", err)
			}
			continue
		}

		body := bufpool.GetUint32(msgLen)
		if _, err := io.ReadFull(r.r, body); err != nil {
			bufpool.Put(body)
			return nil, fmt.Errorf("read envelope body: %w", err)
		}

		msg, err := decodeMessage(body)
		bufpool.Put(body)
		if err != nil {
			logger.Warn("Dropping unparsable envelope", "error", err)
			continue
		}

		return msg, nil
	}
}
