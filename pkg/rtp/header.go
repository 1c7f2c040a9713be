package rtp

import (
	"encoding/binary"

	"rtpkit/pkg/wrapping"
)

// Constants for RTP
const (
	MinRTPHeaderSize = 12   // Fixed header size in bytes
	MaxRTPPacketSize = 1500 // Maximum RTP packet size (MTU)
	Version          = 2

	extHeaderLen = 4
	maxCSRC      = 15
)

// Common payload types
const (
	PayloadTypeH264 = 96  // H.264 (dynamic)
	PayloadTypeAAC  = 97  // AAC (dynamic)
	PayloadTypeOpus = 111 // Opus (dynamic, WebRTC default)
)

// Seq is an RTP sequence number.
type Seq = wrapping.Uint16

// Timestamp is an RTP media timestamp.
type Timestamp = wrapping.Uint32

// Header is a read-only view of the RTP fixed header and CSRC list.
// It borrows the parsed bytes, which must not change while the view is used.
type Header struct {
	buf []byte
}

// HeaderUnchecked wraps buf without validation. It panics if buf is shorter
// than the fixed header.
func HeaderUnchecked(buf []byte) Header {
	if len(buf) < MinRTPHeaderSize {
		panic("rtp: unchecked header on buffer shorter than 12 bytes")
	}
	return Header{buf: buf}
}

// First byte: V(2) + P(1) + X(1) + CC(4)
func (h Header) Version() uint8 {
	return h.buf[0] >> 6
}

func (h Header) Padding() bool {
	return h.buf[0]&0x20 != 0
}

func (h Header) Extension() bool {
	return h.buf[0]&0x10 != 0
}

func (h Header) CSRCCount() uint8 {
	return h.buf[0] & 0x0f
}

// Second byte: M(1) + PT(7)
func (h Header) Marker() bool {
	return h.buf[1]&0x80 != 0
}

func (h Header) PayloadType() uint8 {
	return h.buf[1] & 0x7f
}

func (h Header) SequenceNumber() Seq {
	return wrapping.New16(binary.BigEndian.Uint16(h.buf[2:4]))
}

func (h Header) Timestamp() Timestamp {
	return wrapping.New32(binary.BigEndian.Uint32(h.buf[4:8]))
}

func (h Header) SSRC() uint32 {
	return binary.BigEndian.Uint32(h.buf[8:12])
}

// HeaderEnd is the offset just past the CSRC list.
func (h Header) HeaderEnd() int {
	return MinRTPHeaderSize + 4*int(h.CSRCCount())
}

// CSRC returns the i-th contributing source. i must be below CSRCCount.
func (h Header) CSRC(i int) uint32 {
	off := MinRTPHeaderSize + 4*i
	return binary.BigEndian.Uint32(h.buf[off : off+4])
}

// Parser validates RTP and RTCP buffers.
//
// StrictDemux additionally requires the first byte to lie in [128,191], the
// range RFC 7983 assigns to RTP/RTCP when STUN, DTLS, ZRTP or TURN channel
// traffic share the port. Leave it off on RTP-only transports.
type Parser struct {
	StrictDemux bool
}

// ParseHeader validates the fixed header of buf with a lenient Parser.
func ParseHeader(buf []byte) (Header, error) {
	return Parser{}.Header(buf)
}

// Header validates the fixed header and CSRC list of buf.
func (p Parser) Header(buf []byte) (Header, error) {
	if len(buf) < MinRTPHeaderSize {
		return Header{}, notEnough(MinRTPHeaderSize, len(buf), "rtp header length")
	}

	if p.StrictDemux {
		if first := buf[0]; first <= 127 || first >= 192 {
			return Header{}, valueErr(ErrUnknownFirst, uint16(first))
		}
	}

	h := Header{buf: buf}
	if v := h.Version(); v != Version {
		return Header{}, valueErr(ErrUnknownVersion, uint16(v))
	}

	if end := h.HeaderEnd(); end > len(buf) {
		return Header{}, notEnough(end, len(buf), "rtp csrc list")
	}
	return h, nil
}
