package bridge

import "encoding/binary"

// EncodePong builds a header-only PONG frame echoing requestID.
func EncodePong(requestID uint32) []byte {
	buf := make([]byte, HeaderSize)
	putHeader(buf, CmdPong, 0, requestID, 0)
	return buf
}

// EncodeReadResponse builds a READ_RESPONSE frame for one chunk.
//
// The payload is the 8-byte file offset this chunk begins at (two u32 LE
// halves) followed by the chunk bytes. isLast sets FlagLastChunk to mark
// the chunk that completes the requested range.
func EncodeReadResponse(requestID uint32, offset uint64, chunk []byte, isLast bool) []byte {
	var flags uint8
	if isLast {
		flags = FlagLastChunk
	}

	payloadLen := 8 + len(chunk)
	buf := make([]byte, HeaderSize+payloadLen)
	putHeader(buf, CmdReadResponse, flags, requestID, uint32(payloadLen))
	putUint64Halves(buf[HeaderSize:], offset)
	copy(buf[HeaderSize+8:], chunk)
	return buf
}

// EncodeError builds an ERROR frame.
//
// The payload is the 4-byte error code followed by a UTF-8 message with
// no terminator; its extent is implied by the header's payload length.
func EncodeError(requestID uint32, code ErrorCode, message string) []byte {
	payloadLen := 4 + len(message)
	buf := make([]byte, HeaderSize+payloadLen)
	putHeader(buf, CmdError, 0, requestID, uint32(payloadLen))
	binary.LittleEndian.PutUint32(buf[HeaderSize:], uint32(code))
	copy(buf[HeaderSize+4:], message)
	return buf
}
