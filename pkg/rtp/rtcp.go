package rtp

import (
	"encoding/binary"
	"fmt"
	"iter"
	"log/slog"
	"strings"
)

// Constants for RTCP
const (
	MinRTCPHeaderSize = 8

	RTCPPayloadTypeMin = 192
	RTCPPayloadTypeMax = 223
)

// Common RTCP payload types (RFC 3550, RFC 4585)
const (
	RTCPTypeSenderReport   = 200
	RTCPTypeReceiverReport = 201
	RTCPTypeSourceDesc     = 202
	RTCPTypeGoodbye        = 203
	RTCPTypeApp            = 204
	RTCPTypeTransportFB    = 205
	RTCPTypePayloadFB      = 206
)

// RTCPHeader is a read-only view of the generic RTCP header.
type RTCPHeader struct {
	buf []byte
}

// ParseRTCPHeader validates the first 8 bytes of buf.
func ParseRTCPHeader(buf []byte) (RTCPHeader, error) {
	return Parser{}.RTCPHeader(buf)
}

// RTCPHeader validates the first 8 bytes of buf. StrictDemux applies as for
// RTP.
func (p Parser) RTCPHeader(buf []byte) (RTCPHeader, error) {
	if len(buf) < MinRTCPHeaderSize {
		return RTCPHeader{}, notEnough(MinRTCPHeaderSize, len(buf), "rtcp header length")
	}

	if p.StrictDemux {
		if first := buf[0]; first <= 127 || first >= 192 {
			return RTCPHeader{}, valueErr(ErrUnknownFirst, uint16(first))
		}
	}

	h := RTCPHeader{buf: buf}
	if v := h.Version(); v != Version {
		return RTCPHeader{}, valueErr(ErrUnknownVersion, uint16(v))
	}
	if pt := h.PayloadType(); pt < RTCPPayloadTypeMin || pt > RTCPPayloadTypeMax {
		return RTCPHeader{}, valueErr(ErrUnknownPayloadType, uint16(pt))
	}
	return h, nil
}

// First byte: V(2) + P(1) + RC(5)
func (h RTCPHeader) Version() uint8 {
	return h.buf[0] >> 6
}

func (h RTCPHeader) Padding() bool {
	return h.buf[0]&0x20 != 0
}

// Count is the reception report count, or the feedback message type for
// RTPFB/PSFB packets.
func (h RTCPHeader) Count() uint8 {
	return h.buf[0] & 0x1f
}

func (h RTCPHeader) PayloadType() uint8 {
	return h.buf[1]
}

// Length is the packet length in 32-bit words minus one.
func (h RTCPHeader) Length() uint16 {
	return binary.BigEndian.Uint16(h.buf[2:4])
}

func (h RTCPHeader) SSRC() uint32 {
	return binary.BigEndian.Uint32(h.buf[4:8])
}

// PacketLen is the packet size in bytes declared by the header.
func (h RTCPHeader) PacketLen() int {
	return (int(h.Length()) + 1) * 4
}

// RTCPPacket is a validated, read-only view of one RTCP packet. Its bytes
// end where the header's length field says, not where the input ended.
type RTCPPacket struct {
	buf []byte
}

// ParseRTCPPacket validates the first RTCP packet in buf. Bytes after the
// declared packet length are ignored.
func ParseRTCPPacket(buf []byte) (RTCPPacket, error) {
	return Parser{}.RTCPPacket(buf)
}

// RTCPPacket validates the first RTCP packet in buf.
func (p Parser) RTCPPacket(buf []byte) (RTCPPacket, error) {
	h, err := p.RTCPHeader(buf)
	if err != nil {
		return RTCPPacket{}, err
	}

	n := h.PacketLen()
	if n > len(buf) {
		return RTCPPacket{}, notEnough(n, len(buf), "rtcp packet length")
	}
	if n < MinRTCPHeaderSize {
		return RTCPPacket{}, notEnough(MinRTCPHeaderSize, n, "rtcp declared length")
	}
	buf = buf[:n]

	if h.Padding() {
		if n == MinRTCPHeaderSize {
			return RTCPPacket{}, notEnough(MinRTCPHeaderSize+1, n, "rtcp padding field")
		}
		padLen := buf[n-1]
		if padLen == 0 {
			return RTCPPacket{}, valueErr(ErrInvalidPaddingLength, 0)
		}
		if MinRTCPHeaderSize+int(padLen) > n {
			return RTCPPacket{}, notEnough(MinRTCPHeaderSize+int(padLen), n, "rtcp padding length")
		}
	}

	return RTCPPacket{buf: buf}, nil
}

// RTCPPacketUnchecked wraps the first packet of an already validated buffer.
// It panics if buf is shorter than the header or than the declared length.
func RTCPPacketUnchecked(buf []byte) RTCPPacket {
	if len(buf) < MinRTCPHeaderSize {
		panic("rtp: unchecked rtcp packet on buffer shorter than 8 bytes")
	}
	n := RTCPHeader{buf: buf}.PacketLen()
	return RTCPPacket{buf: buf[:n]}
}

func (p RTCPPacket) Header() RTCPHeader {
	return RTCPHeader{buf: p.buf}
}

// Bytes returns the packet, padding included.
func (p RTCPPacket) Bytes() []byte {
	return p.buf
}

// Len is the declared packet length in bytes.
func (p RTCPPacket) Len() int {
	return len(p.buf)
}

// Padding returns the padding length when the padding flag is set.
func (p RTCPPacket) Padding() (uint8, bool) {
	if !p.Header().Padding() {
		return 0, false
	}
	return p.buf[len(p.buf)-1], true
}

// Payload returns the bytes after the 8-byte header, without padding.
func (p RTCPPacket) Payload() []byte {
	pad, _ := p.Padding()
	return p.buf[MinRTCPHeaderSize : len(p.buf)-int(pad)]
}

func (p RTCPPacket) String() string {
	h := p.Header()
	return fmt.Sprintf("ssrc %d, pt %d, rc %d, body %d",
		h.SSRC(),
		h.PayloadType(),
		h.Count(),
		len(p.Payload()))
}

// LogValue implements slog.LogValuer.
func (p RTCPPacket) LogValue() slog.Value {
	h := p.Header()
	return slog.GroupValue(
		slog.Uint64("ssrc", uint64(h.SSRC())),
		slog.Int("pt", int(h.PayloadType())),
		slog.Int("rc", int(h.Count())),
		slog.Int("payloadLen", len(p.Payload())),
	)
}

// RTCPCompound is a buffer of zero or more back-to-back RTCP packets.
type RTCPCompound struct {
	buf []byte
}

// ParseRTCPCompound validates every packet of buf and returns the first
// error encountered.
func ParseRTCPCompound(buf []byte) (RTCPCompound, error) {
	return Parser{}.RTCPCompound(buf)
}

// RTCPCompound validates every packet of buf.
func (p Parser) RTCPCompound(buf []byte) (RTCPCompound, error) {
	for _, err := range p.RTCPPackets(buf) {
		if err != nil {
			return RTCPCompound{}, err
		}
	}
	return RTCPCompound{buf: buf}, nil
}

// RTCPCompoundUnchecked wraps a buffer already known to be valid.
func RTCPCompoundUnchecked(buf []byte) RTCPCompound {
	return RTCPCompound{buf: buf}
}

// RTCPPackets validates and yields the packets of buf one by one. The first
// failure is yielded once with a zero packet and ends the sequence, since the
// position of any following packet can no longer be trusted.
func RTCPPackets(buf []byte) iter.Seq2[RTCPPacket, error] {
	return Parser{}.RTCPPackets(buf)
}

// RTCPPackets validates and yields the packets of buf one by one.
func (p Parser) RTCPPackets(buf []byte) iter.Seq2[RTCPPacket, error] {
	return func(yield func(RTCPPacket, error) bool) {
		for len(buf) > 0 {
			pkt, err := p.RTCPPacket(buf)
			if err != nil {
				yield(RTCPPacket{}, err)
				return
			}
			if !yield(pkt, nil) {
				return
			}
			buf = buf[pkt.Len():]
		}
	}
}

func (c RTCPCompound) Bytes() []byte {
	return c.buf
}

// Packets yields each packet by its declared length without re-validating.
// It stops early instead of reading past the buffer.
func (c RTCPCompound) Packets() iter.Seq[RTCPPacket] {
	return func(yield func(RTCPPacket) bool) {
		buf := c.buf
		for len(buf) >= MinRTCPHeaderSize {
			n := RTCPHeader{buf: buf}.PacketLen()
			if n > len(buf) {
				return
			}
			if !yield(RTCPPacket{buf: buf[:n]}) {
				return
			}
			buf = buf[n:]
		}
	}
}

// Count returns the number of packets.
func (c RTCPCompound) Count() int {
	n := 0
	for range c.Packets() {
		n++
	}
	return n
}

func (c RTCPCompound) String() string {
	var sb strings.Builder
	sb.WriteString("[ ")
	first := true
	for pkt := range c.Packets() {
		if !first {
			sb.WriteString(", ")
		}
		sb.WriteString("{ ")
		sb.WriteString(pkt.String())
		sb.WriteString(" }")
		first = false
	}
	sb.WriteString(" ]")
	return sb.String()
}
