// Package protocol defines the fixed-framed wire contract of the compression
// service: an 8-byte big-endian header (magic, payload size, code) followed by
// at most MaxPayload bytes of payload.
package protocol

import (
	"encoding/binary"
	"errors"
)

const (
	// Magic is the signature every well-formed frame starts with ("STRY").
	Magic uint32 = 0x53545259

	HeaderSize = 8
	MaxPayload = 1 << 13
	MaxMessage = HeaderSize + MaxPayload

	// MaxMessagePadded sizes the receive buffers slightly past MaxMessage so
	// an oversized frame is observable rather than silently truncated.
	MaxMessagePadded = MaxMessage + 8
)

var ErrPayloadOverflow = errors.New("protocol: payload exceeds message capacity")

// Message is a view over a caller-supplied buffer: the first HeaderSize bytes
// are the header, the remainder is payload capacity. Accessors and mutators
// read and write the underlying buffer directly in network byte order; the
// view never copies or allocates. The payload view may be longer than the
// declared payload size; the size field of the header is authoritative.
type Message struct {
	buf []byte
}

// Parse wraps buf as a Message. It fails when buf cannot hold a header.
func Parse(buf []byte) (Message, bool) {
	if len(buf) < HeaderSize {
		return Message{}, false
	}
	return Message{buf: buf}, true
}

func (m Message) Sign() uint32 {
	return binary.BigEndian.Uint32(m.buf[0:4])
}

func (m Message) Size() uint16 {
	return binary.BigEndian.Uint16(m.buf[4:6])
}

func (m Message) Code() uint16 {
	return binary.BigEndian.Uint16(m.buf[6:8])
}

// Payload is the payload region of the underlying buffer.
func (m Message) Payload() []byte {
	return m.buf[HeaderSize:]
}

func (m Message) SetSign(sign uint32) {
	binary.BigEndian.PutUint32(m.buf[0:4], sign)
}

func (m Message) SetSize(size uint16) {
	binary.BigEndian.PutUint16(m.buf[4:6], size)
}

func (m Message) SetCode(code uint16) {
	binary.BigEndian.PutUint16(m.buf[6:8], code)
}

func (m Message) SetHeader(sign uint32, size uint16, code uint16) {
	m.SetSign(sign)
	m.SetSize(size)
	m.SetCode(code)
}

// SetPayload copies bytes into the payload region. It fails when the input is
// longer than the region; given the length checks performed during validation
// that indicates a framing invariant violation, not client input.
func (m Message) SetPayload(bytes []byte) error {
	if len(bytes) > len(m.Payload()) {
		return ErrPayloadOverflow
	}
	copy(m.Payload(), bytes)
	return nil
}

// ValidateHeader checks the header alone: magic, code resolution, and the
// zero-length-vs-non-zero-length rule for the resolved request.
func (m Message) ValidateHeader() Response {
	if m.Sign() != Magic {
		return MessageHeaderHasBadMagic
	}
	req, ok := RequestFromCode(m.Code())
	if !ok {
		return UnsupportedRequestType
	}
	size := m.Size()
	if req == Compress {
		switch {
		case size == 0:
			return CompressionRequestRequiresNonZeroLength
		case size > MaxPayload:
			return MessageTooLarge
		default:
			return Ok
		}
	}
	if size != 0 {
		return RequestKindRequiresZeroLength
	}
	return Ok
}

// Validate checks a received frame given the number of bytes actually read.
// The checks are ordered; the first failure wins.
func (m Message) Validate(bytesRead int) Response {
	if bytesRead < HeaderSize {
		return MessageTooSmall
	}
	if bytesRead > MaxMessage {
		return MessageTooLarge
	}
	if int(m.Size()) != PayloadLen(bytesRead) {
		return MessageHeaderSizeMismatch
	}

	resp := m.ValidateHeader()
	if resp != Ok {
		return resp
	}
	if req, ok := RequestFromCode(m.Code()); ok && req == Compress {
		return m.validatePayload()
	}
	return Ok
}

// A payload is only valid if it exclusively contains lowercase ASCII letters.
func (m Message) validatePayload() Response {
	for _, b := range m.Payload()[:m.Size()] {
		if b < 'a' || b > 'z' {
			return MessagePayloadContainsInvalidCharacters
		}
	}
	return Ok
}

// PayloadLen computes the payload length of a frame from the bytes read.
func PayloadLen(bytesRead int) int {
	return bytesRead - HeaderSize
}

// TotalLen computes the total frame size from a payload length.
func TotalLen(payloadLen int) int {
	return HeaderSize + payloadLen
}
