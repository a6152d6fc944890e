// Package bridge implements the binary sub-protocol spoken between the
// FileBridge process and the sandboxed host application.
//
// Every message is a Frame: a fixed 16-byte little-endian header followed
// by a command-specific payload. The outer native-messaging envelope that
// carries frames across the host boundary lives in pkg/transport/nativemsg;
// this package deals only in decoded byte buffers.
//
// Wire layout (all multi-byte integers little-endian):
//
//	Offset  Size  Field
//	0       4     magic constant
//	4       1     command
//	5       1     flags
//	6       2     reserved
//	8       4     request id
//	12      4     payload length
//	16      N     payload
package bridge

// Magic identifies the protocol. On the wire it appears as the
// little-endian byte sequence "LPER".
const Magic uint32 = 0x5245504C

// HeaderSize is the fixed size of the frame header in bytes.
const HeaderSize = 16

// Command identifies the operation a frame carries.
type Command uint8

// Protocol commands.
const (
	CmdPing         Command = 0x00
	CmdPong         Command = 0x01
	CmdRead         Command = 0x02
	CmdReadResponse Command = 0x03
	CmdError        Command = 0xFF
)

// String returns the command mnemonic for logging.
func (c Command) String() string {
	switch c {
	case CmdPing:
		return "PING"
	case CmdPong:
		return "PONG"
	case CmdRead:
		return "READ"
	case CmdReadResponse:
		return "READ_RESPONSE"
	case CmdError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Frame flags.
const (
	// FlagLastChunk marks the final READ_RESPONSE frame of a read.
	FlagLastChunk uint8 = 0x02
)

// ErrorCode is the wire error code carried by ERROR frames.
type ErrorCode uint32

// Wire error codes.
const (
	ErrNotFound         ErrorCode = 1
	ErrPermissionDenied ErrorCode = 2
	ErrIOError          ErrorCode = 3
	ErrInvalidRequest   ErrorCode = 4
)

// String returns the error code mnemonic for logging.
func (e ErrorCode) String() string {
	switch e {
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrPermissionDenied:
		return "PERMISSION_DENIED"
	case ErrIOError:
		return "IO_ERROR"
	case ErrInvalidRequest:
		return "INVALID_REQUEST"
	default:
		return "UNKNOWN"
	}
}
