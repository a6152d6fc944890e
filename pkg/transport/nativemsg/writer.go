package nativemsg

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Writer encodes outbound frames into length-prefixed envelopes.
//
// Writes are buffered and flushed per message so the host never observes
// a partial envelope.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteFrame wraps one protocol frame in a binary envelope and writes it.
func (w *Writer) WriteFrame(frame []byte) error {
	body, err := json.Marshal(envelope{Type: typeBinary, Data: frame})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	var lenBuf [4]byte
	binary.NativeEndian.PutUint32(lenBuf[:], uint32(len(body)))

	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.w.Write(body); err != nil {
		return fmt.Errorf("write envelope body: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush envelope: %w", err)
	}
	return nil
}
