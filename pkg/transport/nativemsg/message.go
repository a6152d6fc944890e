// Package nativemsg implements the native-messaging envelope that carries
// protocol frames between the bridge and its sandboxed host.
//
// Each message on the stream is a 4-byte length prefix in machine byte
// order followed by a JSON document. The prefix byte order is a property
// of the host runtime on the local machine, deliberately unlike the inner
// frame protocol, which is little-endian everywhere.
//
// The JSON document carries a type tag. Binary frames travel as an array
// of byte values because the host's JSON channel cannot carry raw bytes.
package nativemsg

import (
	"encoding/json"
	"strconv"
)

// Message is an inbound envelope, decoded into one of three variants:
// Binary (a protocol frame), Ack (flow-control acknowledgment, produces
// no response), or Unknown (unrecognized tag, logged and dropped).
type Message interface {
	isMessage()
}

// Binary carries one protocol frame.
type Binary struct {
	Frame []byte
}

// Ack is the flow-control acknowledgment the host sends after consuming
// a response frame. It never produces an output frame.
type Ack struct{}

// Unknown is an envelope whose type tag is not recognized.
type Unknown struct {
	Type string
}

func (Binary) isMessage()  {}
func (Ack) isMessage()     {}
func (Unknown) isMessage() {}

// Envelope type tags.
const (
	typeBinary = "binary"
	typeAck    = "ack"
)

// byteList marshals a byte slice as a JSON array of numbers instead of
// the base64 string encoding/json would produce. The host reads and
// writes plain number arrays.
type byteList []byte

func (b byteList) MarshalJSON() ([]byte, error) {
	if len(b) == 0 {
		return []byte("[]"), nil
	}

	// 4 bytes per element covers "255," and the brackets.
	out := make([]byte, 0, len(b)*4+2)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	out = append(out, ']')
	return out, nil
}

func (b *byteList) UnmarshalJSON(data []byte) error {
	var raw []uint64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]byte, len(raw))
	for i, v := range raw {
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// envelope is the JSON document inside a length-prefixed message.
type envelope struct {
	Type string   `json:"type"`
	Data byteList `json:"data,omitempty"`
}

// decodeMessage parses an envelope body into its Message variant.
func decodeMessage(body []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case typeBinary:
		return Binary{Frame: env.Data}, nil
	case typeAck:
		return Ack{}, nil
	default:
		return Unknown{Type: env.Type}, nil
	}
}
