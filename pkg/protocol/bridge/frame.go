package bridge

import (
	"encoding/binary"
	"fmt"
)

// Header is the decoded 16-byte frame header.
type Header struct {
	// Command selects the handler for this frame.
	Command Command

	// Flags is a bitset; only FlagLastChunk is defined.
	Flags uint8

	// RequestID is a correlation token chosen by the caller and echoed
	// back on every response frame produced for the request.
	RequestID uint32

	// PayloadLength is the nominal payload length declared by the sender.
	// It is not trusted: use Payload to extract the actual bytes.
	PayloadLength uint32
}

// MalformedFrameError reports a buffer that cannot be interpreted as a
// frame at all (too short for a header, or wrong magic). It is never sent
// on the wire; the dispatcher translates it into a generic
// INVALID_REQUEST error frame.
type MalformedFrameError struct {
	Reason string
}

func (e *MalformedFrameError) Error() string {
	return "malformed frame: " + e.Reason
}

// DecodeHeader parses the fixed 16-byte header from buf.
//
// It requires at least HeaderSize bytes and a matching magic constant;
// anything else yields a *MalformedFrameError. PayloadLength is decoded
// as declared but not bounds-checked here; callers must extract the
// payload via Payload, which clamps to the bytes actually present.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, &MalformedFrameError{Reason: fmt.Sprintf("need %d header bytes, got %d", HeaderSize, len(buf))}
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return nil, &MalformedFrameError{Reason: fmt.Sprintf("bad magic 0x%08X", magic)}
	}

	return &Header{
		Command:       Command(buf[4]),
		Flags:         buf[5],
		RequestID:     binary.LittleEndian.Uint32(buf[8:12]),
		PayloadLength: binary.LittleEndian.Uint32(buf[12:16]),
	}, nil
}

// Payload returns the payload bytes for a decoded header.
//
// The declared length is clamped against the bytes actually present after
// the header: a nominal length that exceeds availability degrades to an
// empty payload rather than an error. A lying length prefix must not
// crash the bridge.
func (h *Header) Payload(buf []byte) []byte {
	if h.PayloadLength == 0 {
		return nil
	}
	end := HeaderSize + int(h.PayloadLength)
	if end > len(buf) {
		return nil
	}
	return buf[HeaderSize:end]
}

// putHeader writes a header into the first HeaderSize bytes of dst.
// dst must be at least HeaderSize bytes.
func putHeader(dst []byte, cmd Command, flags uint8, requestID, payloadLen uint32) {
	binary.LittleEndian.PutUint32(dst[0:4], Magic)
	dst[4] = uint8(cmd)
	dst[5] = flags
	dst[6] = 0
	dst[7] = 0
	binary.LittleEndian.PutUint32(dst[8:12], requestID)
	binary.LittleEndian.PutUint32(dst[12:16], payloadLen)
}

// putUint64Halves encodes a u64 as two little-endian u32 halves, low
// first. The split encoding is a protocol invariant inherited from hosts
// whose numeric type cannot address 64-bit integers directly.
func putUint64Halves(dst []byte, v uint64) {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(v))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(v>>32))
}

// uint64Halves reassembles a u64 from two little-endian u32 halves.
func uint64Halves(src []byte) uint64 {
	low := uint64(binary.LittleEndian.Uint32(src[0:4]))
	high := uint64(binary.LittleEndian.Uint32(src[4:8]))
	return low + high<<32
}
