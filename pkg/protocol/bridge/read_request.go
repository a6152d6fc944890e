package bridge

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// ReadRequest is the decoded payload of a READ frame.
type ReadRequest struct {
	// Offset is the byte offset in the file to start reading from.
	Offset uint64

	// Length is the number of bytes requested. A length running past the
	// end of the file is clamped by the executor, not rejected.
	Length uint64

	// Path is the absolute file path to read. Authorization against the
	// sandbox policy happens in the executor, not here.
	Path string
}

// readRequestFixedSize is the size of the offset and length fields that
// precede the path in a READ payload.
const readRequestFixedSize = 16

// DecodeReadRequest parses a READ payload.
//
// Layout: offset u64 as two u32 LE halves, length u64 as two u32 LE
// halves, then the UTF-8 path occupying the remainder. The payload must
// be at least 16 bytes and the path must be valid UTF-8.
func DecodeReadRequest(payload []byte) (*ReadRequest, error) {
	if len(payload) < readRequestFixedSize {
		return nil, fmt.Errorf("read payload too short: need %d bytes, got %d", readRequestFixedSize, len(payload))
	}

	offset := uint64Halves(payload[0:8])
	length := uint64Halves(payload[8:16])

	pathBytes := payload[readRequestFixedSize:]
	if !utf8.Valid(pathBytes) {
		return nil, fmt.Errorf("read path is not valid UTF-8")
	}

	return &ReadRequest{
		Offset: offset,
		Length: length,
		Path:   string(pathBytes),
	}, nil
}

// EncodeReadRequest builds a READ frame. The bridge itself never sends
// READ; this is the client half of the codec, used by hosts and tests.
func EncodeReadRequest(requestID uint32, offset, length uint64, path string) []byte {
	payloadLen := readRequestFixedSize + len(path)
	buf := make([]byte, HeaderSize+payloadLen)
	putHeader(buf, CmdRead, 0, requestID, uint32(payloadLen))
	putUint64Halves(buf[HeaderSize:], offset)
	putUint64Halves(buf[HeaderSize+8:], length)
	copy(buf[HeaderSize+readRequestFixedSize:], path)
	return buf
}

// EncodePing builds a header-only PING frame. Client half of the codec.
func EncodePing(requestID uint32) []byte {
	buf := make([]byte, HeaderSize)
	putHeader(buf, CmdPing, 0, requestID, 0)
	return buf
}

// DecodeReadResponse parses a READ_RESPONSE payload into the chunk's file
// offset and data. Client half of the codec, used by hosts and tests.
func DecodeReadResponse(payload []byte) (offset uint64, data []byte, err error) {
	if len(payload) < 8 {
		return 0, nil, fmt.Errorf("read response payload too short: need 8 bytes, got %d", len(payload))
	}
	return uint64Halves(payload[0:8]), payload[8:], nil
}

// DecodeError parses an ERROR payload into its code and message. Client
// half of the codec, used by hosts and tests.
func DecodeError(payload []byte) (ErrorCode, string, error) {
	if len(payload) < 4 {
		return 0, "", fmt.Errorf("error payload too short: need 4 bytes, got %d", len(payload))
	}
	code := ErrorCode(binary.LittleEndian.Uint32(payload[0:4]))
	return code, string(payload[4:]), nil
}
