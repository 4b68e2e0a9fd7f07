package loadgen

import (
	"bytes"
	"encoding/binary"

	"github.com/strydlabs/stryd/internal/protocol"
)

// Kind marks whether a case exercises the happy path or a rejection.
type Kind int

const (
	Valid Kind = iota
	Invalid
)

// Case is one scripted request/response exchange. A nil Expected means the
// response is consumed but not compared (useful for GetStats, whose counters
// depend on every other client on the wire).
type Case struct {
	Name     string
	Request  protocol.Request
	Query    []byte
	Expected []byte
	Kind     Kind
}

// HeaderBytes builds a raw 8-byte header.
func HeaderBytes(sign uint32, size uint16, code uint16) []byte {
	buf := make([]byte, protocol.HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], sign)
	binary.BigEndian.PutUint16(buf[4:6], size)
	binary.BigEndian.PutUint16(buf[6:8], code)
	return buf
}

// RequestFrame builds a well-formed frame for the given request.
func RequestFrame(req protocol.Request, payload []byte) []byte {
	header := HeaderBytes(protocol.Magic, uint16(len(payload)), uint16(req))
	return append(header, payload...)
}

func responseFrame(code protocol.Response, payload []byte) []byte {
	header := HeaderBytes(protocol.Magic, uint16(len(payload)), uint16(code))
	return append(header, payload...)
}

func compressOK(payload, want string) Case {
	return Case{
		Name:     "compress " + payload,
		Request:  protocol.Compress,
		Query:    RequestFrame(protocol.Compress, []byte(payload)),
		Expected: responseFrame(protocol.Ok, []byte(want)),
		Kind:     Valid,
	}
}

func compressFail(name string, payload []byte, code protocol.Response) Case {
	return Case{
		Name:     name,
		Request:  protocol.Compress,
		Query:    RequestFrame(protocol.Compress, payload),
		Expected: responseFrame(code, nil),
		Kind:     Invalid,
	}
}

// Cases is the conformance script every client runs, mirroring the behavior
// the service guarantees for each request and rejection kind.
func Cases() []Case {
	res := []Case{
		compressOK("a", "a"),
		compressOK("aa", "aa"),
		compressOK("aaa", "3a"),
		compressOK("aaaaabbb", "5a3b"),
		compressOK("aaaaabbbbbbaaabb", "5a6b3abb"),
		compressOK("abcdefg", "abcdefg"),
		compressOK("aaaccddddhhhhi", "3acc4d4hi"),

		compressFail("compress digits", []byte("123"), protocol.MessagePayloadContainsInvalidCharacters),
		compressFail("compress mixed case", []byte("abCD"), protocol.MessagePayloadContainsInvalidCharacters),
		compressFail("compress trailing uppercase", []byte("aaaaaaaaaaaaaaaaaaaaaaaaaB"), protocol.MessagePayloadContainsInvalidCharacters),

		compressFail("compress oversized", bytes.Repeat([]byte{'a'}, protocol.MaxPayload+12), protocol.MessageTooLarge),

		{
			Name:     "short frame",
			Request:  protocol.Ping,
			Query:    bytes.Repeat([]byte{'a'}, 7),
			Expected: responseFrame(protocol.MessageTooSmall, nil),
			Kind:     Invalid,
		},
		{
			Name:     "bad magic",
			Request:  protocol.Ping,
			Query:    HeaderBytes(0, 0, uint16(protocol.Ping)),
			Expected: responseFrame(protocol.MessageHeaderHasBadMagic, nil),
			Kind:     Invalid,
		},
		{
			Name:     "zero-length compress",
			Request:  protocol.Compress,
			Query:    HeaderBytes(protocol.Magic, 0, uint16(protocol.Compress)),
			Expected: responseFrame(protocol.CompressionRequestRequiresNonZeroLength, nil),
			Kind:     Invalid,
		},
		{
			Name:     "get stats",
			Request:  protocol.GetStats,
			Query:    RequestFrame(protocol.GetStats, nil),
			Expected: nil, // counters depend on concurrent traffic
			Kind:     Valid,
		},
		{
			Name:     "ping",
			Request:  protocol.Ping,
			Query:    RequestFrame(protocol.Ping, nil),
			Expected: responseFrame(protocol.Ok, nil),
			Kind:     Valid,
		},
		{
			Name:     "reset stats",
			Request:  protocol.ResetStats,
			Query:    RequestFrame(protocol.ResetStats, nil),
			Expected: responseFrame(protocol.Ok, nil),
			Kind:     Valid,
		},
	}
	return res
}

// FloodCases builds a script of oversized frames for exercising the forced
// drop path. Responses are not compared; the server is expected to cut the
// connection.
func FloodCases() []Case {
	oversized := RequestFrame(protocol.Compress, bytes.Repeat([]byte{'a'}, protocol.MaxPayload+512))
	res := make([]Case, 0, 8)
	for i := 0; i < 8; i++ {
		res = append(res, Case{
			Name:    "flood",
			Request: protocol.Compress,
			Query:   oversized,
			Kind:    Invalid,
		})
	}
	return res
}
