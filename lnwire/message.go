package lnwire

// code derived from https://github.com/btcsuite/btcd/blob/master/wire/message.go

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessagePayload is the maximum bytes a frame's payload can be,
// regardless of other individual limits imposed by messages themselves.
const MaxMessagePayload = 65535 // 64KB

// FrameType tags whether a Frame carries an outbound Request or a
// Response to a previously-received Request (spec §6).
type FrameType string

const (
	FrameRequest  FrameType = "REQUEST"
	FrameResponse FrameType = "RESPONSE"
)

// Frame is the length-prefixed JSON envelope every SWAP-protocol message
// travels in: `{type, id, payload}` (spec §6). Payload is re-marshaled
// against RequestPayload or ResponsePayload depending on Type.
type Frame struct {
	Type    FrameType       `json:"type"`
	Id      uint32          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// RequestPayload is the body of a Frame whose Type is FrameRequest. Only
// one message type, "SWAP", is currently defined (spec §4.7).
type RequestPayload struct {
	Type    string          `json:"type"`
	Headers json.RawMessage `json:"headers"`
	Body    json.RawMessage `json:"body"`
}

// Status is the three-letter response class of a ResponsePayload: "OK"
// for acceptance, "SE" for a sender (requester-side) rejection, "RE" for
// a responder-internal error (spec §4.7).
type Status string

const (
	StatusOK Status = "OK"
	StatusSE Status = "SE"
	StatusRE Status = "RE"
)

// Well-known (status, code) pairs from spec §4.7.
const (
	CodeAccepted           uint8 = 20
	CodeDecline            uint8 = 20
	CodeUnsupportedPair    uint8 = 22
	CodeMalformed          uint8 = 0
	CodeUnsupportedHeaders uint8 = 1
	CodeInternalError      uint8 = 0
)

// ResponsePayload is the body of a Frame whose Type is FrameResponse.
type ResponsePayload struct {
	Status  Status          `json:"status"`
	Code    uint8           `json:"code"`
	Headers json.RawMessage `json:"headers,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// Message is the interface every SWAP-protocol payload implements: a
// request body (SwapRequest) or a response body (SwapAccept/
// SwapDecline), self-describing its framing.
type Message interface {
	// MsgType identifies which concrete type this is, for logging and
	// for the caller to select how to decode a Frame's Payload.
	MsgType() string
}

// WriteMessage frames msg as a length-prefixed JSON Frame and writes it
// to w: a big-endian uint32 byte-length header followed by the JSON
// document, so a reader can buffer exactly one frame at a time without
// scanning for a delimiter.
func WriteMessage(w io.Writer, frame Frame) (int, error) {
	encoded, err := json.Marshal(frame)
	if err != nil {
		return 0, err
	}
	if len(encoded) > MaxMessagePayload {
		return 0, fmt.Errorf("frame payload too large: %d bytes exceeds maximum of %d",
			len(encoded), MaxMessagePayload)
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(encoded)))

	n, err := w.Write(lenPrefix[:])
	if err != nil {
		return n, err
	}
	m, err := w.Write(encoded)
	return n + m, err
}

// ReadMessage reads one length-prefixed JSON Frame from r.
func ReadMessage(r io.Reader) (Frame, error) {
	var frame Frame

	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	var lenPrefix [4]byte
	if _, err := io.ReadFull(br, lenPrefix[:]); err != nil {
		return frame, err
	}
	length := binary.BigEndian.Uint32(lenPrefix[:])
	if length > MaxMessagePayload {
		return frame, fmt.Errorf("frame payload too large: %d bytes exceeds maximum of %d",
			length, MaxMessagePayload)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(br, buf); err != nil {
		return frame, err
	}

	if err := json.Unmarshal(buf, &frame); err != nil {
		return frame, err
	}
	return frame, nil
}
