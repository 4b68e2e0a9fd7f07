package protocol

// Request is the command carried in the code field of an inbound header.
type Request uint16

const (
	Ping       Request = 1
	GetStats   Request = 2
	ResetStats Request = 3
	Compress   Request = 4
)

// RequestFromCode resolves a wire code into a known request. Unrecognized
// codes are reported through ok rather than mapped to a default.
func RequestFromCode(code uint16) (Request, bool) {
	switch Request(code) {
	case Ping, GetStats, ResetStats, Compress:
		return Request(code), true
	default:
		return 0, false
	}
}

// Response is the status carried in the code field of an outbound header.
type Response uint16

const (
	Ok                     Response = 0
	UnknownError           Response = 1
	MessageTooLarge        Response = 2
	UnsupportedRequestType Response = 3

	// Implementer defined.
	MessageTooSmall                         Response = 34
	MessageHeaderHasBadMagic                Response = 35
	MessageHeaderSizeMismatch               Response = 36
	RequestKindRequiresZeroLength           Response = 37
	CompressionRequestRequiresNonZeroLength Response = 38
	MessagePayloadContainsInvalidCharacters Response = 39
)

func (r Response) String() string {
	switch r {
	case Ok:
		return "ok"
	case UnknownError:
		return "unknown_error"
	case MessageTooLarge:
		return "message_too_large"
	case UnsupportedRequestType:
		return "unsupported_request_type"
	case MessageTooSmall:
		return "message_too_small"
	case MessageHeaderHasBadMagic:
		return "bad_magic"
	case MessageHeaderSizeMismatch:
		return "header_size_mismatch"
	case RequestKindRequiresZeroLength:
		return "requires_zero_length"
	case CompressionRequestRequiresNonZeroLength:
		return "requires_non_zero_length"
	case MessagePayloadContainsInvalidCharacters:
		return "invalid_payload_characters"
	default:
		return "unrecognized"
	}
}
