package service

import (
	"github.com/strydlabs/stryd/internal/compress"
	"github.com/strydlabs/stryd/internal/protocol"
)

// Connection pairs one received frame (rx) with the response under
// construction (tx), both views over the worker's fixed buffers, plus the
// number of bytes actually read for this cycle. A Connection is created fresh
// for every inbound frame and discarded once the response is written.
type Connection struct {
	rx        protocol.Message
	tx        protocol.Message
	bytesRead int
}

// NewConnection wraps the rx and tx buffers as message views. Both buffers
// must hold at least a header; the worker pads short reads up to HeaderSize
// before parsing.
func NewConnection(rx, tx []byte, bytesRead int) (Connection, bool) {
	rxMsg, ok := protocol.Parse(rx)
	if !ok {
		return Connection{}, false
	}
	txMsg, ok := protocol.Parse(tx)
	if !ok {
		return Connection{}, false
	}
	return Connection{rx: rxMsg, tx: txMsg, bytesRead: bytesRead}, true
}

func (c *Connection) readPayloadLen() int {
	return protocol.PayloadLen(c.bytesRead)
}

// CreateResponse validates the received frame, executes the request against
// the shared state, and finalizes the outbound header. It returns the total
// response length and the response code. A validation failure short-circuits
// to a zero-length error response.
func (c *Connection) CreateResponse(state *State) (int, protocol.Response) {
	respCode := c.rx.Validate(c.bytesRead)
	var bodyLen uint16
	if respCode == protocol.Ok {
		bodyLen, respCode = c.dispatch(state)
	}
	c.tx.SetHeader(protocol.Magic, bodyLen, uint16(respCode))
	return protocol.TotalLen(int(bodyLen)), respCode
}

func (c *Connection) dispatch(state *State) (uint16, protocol.Response) {
	req, _ := protocol.RequestFromCode(c.rx.Code())
	switch req {
	case protocol.Ping:
		return c.processPing(state)
	case protocol.GetStats:
		return c.processGetStats(state)
	case protocol.ResetStats:
		return c.processResetStats(state)
	case protocol.Compress:
		return c.processCompress(state)
	default:
		// unreachable after validation
		return 0, protocol.UnsupportedRequestType
	}
}

// Ping relays the internal error field of the shared state as the response
// code: a diagnostic passthrough, zero under normal operation.
func (c *Connection) processPing(state *State) (uint16, protocol.Response) {
	return 0, protocol.Response(state.InternalError())
}

func (c *Connection) processGetStats(state *State) (uint16, protocol.Response) {
	var stats [StatsSize]byte
	state.EncodeStats(stats[:])
	if err := c.tx.SetPayload(stats[:]); err != nil {
		// The tx buffer always holds MaxPayload bytes; reaching this means a
		// framing invariant was violated upstream.
		return 0, protocol.UnknownError
	}
	return StatsSize, protocol.Ok
}

func (c *Connection) processResetStats(state *State) (uint16, protocol.Response) {
	state.Reset()
	return 0, protocol.Ok
}

// Compress encodes the validated payload straight into the tx payload region.
// Stats are not touched when the encoder yields nothing; a zero-length Ok
// response signals that nothing was compressed.
func (c *Connection) processCompress(state *State) (uint16, protocol.Response) {
	payloadLen := c.readPayloadLen()
	n, err := compress.Encode(c.rx.Payload()[:payloadLen], c.tx.Payload())
	if err != nil {
		return 0, protocol.Ok
	}
	state.UpdateRatio(payloadLen, n)
	return uint16(n), protocol.Ok
}
