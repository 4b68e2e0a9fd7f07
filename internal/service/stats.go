package service

import "encoding/binary"

// StatsSize is the wire size of a serialized Stats: two u32 counters and one
// ratio byte, no padding.
const StatsSize = 9

// Stats tracks client/server traffic for the service.
// read counts all bytes received, including headers and drain reads; sent
// counts all bytes written; ratio is 0-100, the cumulative percentage saved
// across all successful compress requests.
type Stats struct {
	read  uint32
	sent  uint32
	ratio uint8
}

func NewStats(read, sent uint32, ratio uint8) Stats {
	return Stats{read: read, sent: sent, ratio: ratio}
}

func (s *Stats) Read() uint32 { return s.read }
func (s *Stats) Sent() uint32 { return s.sent }
func (s *Stats) Ratio() uint8 { return s.ratio }

func (s *Stats) UpdateRead(n int) {
	s.read += uint32(n)
}

func (s *Stats) UpdateSent(n int) {
	s.sent += uint32(n)
}

// SetRatio recomputes the ratio from cumulative compressed and raw totals.
// Both totals must be non-zero; otherwise the ratio is left unchanged.
func (s *Stats) SetRatio(compressed, total int) {
	if total > 0 && compressed > 0 {
		s.ratio = uint8((1 - float64(compressed)/float64(total)) * 100)
	}
}

func (s *Stats) Reset() {
	s.read = 0
	s.sent = 0
	s.ratio = 0
}

// EncodeTo serializes the stats into dst, which must hold StatsSize bytes.
// The counters are written in network byte order, matching the frame header.
func (s *Stats) EncodeTo(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], s.read)
	binary.BigEndian.PutUint32(dst[4:8], s.sent)
	dst[8] = s.ratio
}

// ParseStats decodes a GetStats response payload.
func ParseStats(b []byte) (Stats, bool) {
	if len(b) != StatsSize {
		return Stats{}, false
	}
	return Stats{
		read:  binary.BigEndian.Uint32(b[0:4]),
		sent:  binary.BigEndian.Uint32(b[4:8]),
		ratio: b[8],
	}, true
}
