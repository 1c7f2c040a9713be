// Package rtp parses, validates and builds RTP and RTCP packets in place.
//
// Parsed packets are views over the caller's buffer: nothing is copied and
// nothing is allocated on the parse path. A view must not outlive the bytes it
// was created from, and those bytes must not be modified while it is in use.
package rtp

import (
	"encoding/binary"
	"fmt"
	"iter"
	"log/slog"
	"strings"
)

// Packet is a validated, read-only view of one RTP packet.
type Packet struct {
	buf []byte
}

// ParsePacket validates buf as a complete RTP packet with a lenient Parser.
func ParsePacket(buf []byte) (Packet, error) {
	return Parser{}.Packet(buf)
}

// Packet validates buf as a complete RTP packet: fixed header, extension
// block, payload offset and padding, in that order.
func (p Parser) Packet(buf []byte) (Packet, error) {
	h, err := p.Header(buf)
	if err != nil {
		return Packet{}, err
	}
	pkt := Packet{buf: buf}

	if h.Extension() {
		start := h.HeaderEnd() + extHeaderLen
		if start > len(buf) {
			return Packet{}, notEnough(start, len(buf), "rtp extension start")
		}

		end := start + pkt.extensionLen()
		if end > len(buf) {
			return Packet{}, notEnough(end, len(buf), "rtp extension end")
		}

		profile := binary.BigEndian.Uint16(buf[h.HeaderEnd():])
		format, err := ParseExtFormat(profile)
		if err != nil {
			return Packet{}, err
		}
		if err := format.Validate(buf[start:end]); err != nil {
			return Packet{}, err
		}
	}

	offset := pkt.PayloadOffset()
	if offset > len(buf) {
		return Packet{}, notEnough(offset, len(buf), "rtp payload offset")
	}

	if h.Padding() {
		if len(buf) == offset {
			return Packet{}, notEnough(offset+1, len(buf), "rtp padding field")
		}
		padLen := buf[len(buf)-1]
		if padLen == 0 {
			return Packet{}, valueErr(ErrInvalidPaddingLength, 0)
		}
		if offset+int(padLen) > len(buf) {
			return Packet{}, notEnough(offset+int(padLen), len(buf), "rtp padding length")
		}
	}

	return pkt, nil
}

// PacketUnchecked wraps a buffer that is already known to hold a valid
// packet, such as the output of a Builder. Accessors on a buffer that would
// not pass ParsePacket may panic or return garbage. It panics if buf is
// shorter than the fixed header.
func PacketUnchecked(buf []byte) Packet {
	if len(buf) < MinRTPHeaderSize {
		panic("rtp: unchecked packet on buffer shorter than 12 bytes")
	}
	return Packet{buf: buf}
}

// Bytes returns the whole packet.
func (p Packet) Bytes() []byte {
	return p.buf
}

func (p Packet) Header() Header {
	return Header{buf: p.buf}
}

// Padding returns the padding length when the padding flag is set.
func (p Packet) Padding() (uint8, bool) {
	if !p.Header().Padding() {
		return 0, false
	}
	return p.buf[len(p.buf)-1], true
}

// CSRCs yields the contributing sources in header order.
func (p Packet) CSRCs() iter.Seq[uint32] {
	h := p.Header()
	return func(yield func(uint32) bool) {
		for i := range int(h.CSRCCount()) {
			if !yield(h.CSRC(i)) {
				return
			}
		}
	}
}

// Extension returns the profile and raw body of the extension block.
func (p Packet) Extension() (ExtFormat, []byte, bool) {
	h := p.Header()
	if !h.Extension() {
		return 0, nil, false
	}
	off := h.HeaderEnd()
	start := off + extHeaderLen
	return ExtFormat(binary.BigEndian.Uint16(p.buf[off:])), p.buf[start : start+p.extensionLen()], true
}

// Extensions returns an iterator over the extension elements, or false if
// the packet carries no extension block.
func (p Packet) Extensions() (ExtIterator, bool) {
	format, body, ok := p.Extension()
	if !ok {
		return ExtIterator{}, false
	}
	return format.Iterator(body), true
}

// ExtensionItems yields (id, body) for every extension element. It yields
// nothing when there is no extension block.
func (p Packet) ExtensionItems() iter.Seq2[uint8, []byte] {
	format, body, _ := p.Extension()
	return format.Items(body)
}

// ExtensionByID returns the body of the first element with the given id.
func (p Packet) ExtensionByID(id uint8) ([]byte, bool) {
	it, ok := p.Extensions()
	if !ok {
		return nil, false
	}
	for {
		itemID, body, more := it.Next()
		if !more {
			return nil, false
		}
		if itemID == id {
			return body, true
		}
	}
}

// PayloadOffset is the offset of the first payload byte.
func (p Packet) PayloadOffset() int {
	h := p.Header()
	off := h.HeaderEnd()
	if h.Extension() {
		off += extHeaderLen + p.extensionLen()
	}
	return off
}

// Payload returns the payload without header, extension block or padding.
func (p Packet) Payload() []byte {
	pad, _ := p.Padding()
	return p.buf[p.PayloadOffset() : len(p.buf)-int(pad)]
}

func (p Packet) extensionLen() int {
	off := p.Header().HeaderEnd()
	return 4 * int(binary.BigEndian.Uint16(p.buf[off+2:off+4]))
}

// String returns a one-line summary of the packet.
func (p Packet) String() string {
	h := p.Header()
	var sb strings.Builder
	fmt.Fprintf(&sb, "ssrc %d, pt %d, seq %d, ts %d",
		h.SSRC(),
		h.PayloadType(),
		h.SequenceNumber().Value(),
		h.Timestamp().Value())

	if h.CSRCCount() > 0 {
		sb.WriteString(", csrc[")
		for i := range int(h.CSRCCount()) {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%d", h.CSRC(i))
		}
		sb.WriteByte(']')
	}

	sb.WriteString(", ext[")
	first := true
	for id := range p.ExtensionItems() {
		if !first {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d", id)
		first = false
	}
	sb.WriteByte(']')

	fmt.Fprintf(&sb, ", body %d", len(p.Payload()))
	if h.Marker() {
		sb.WriteString(", m 1")
	}
	return sb.String()
}

// LogValue implements slog.LogValuer.
func (p Packet) LogValue() slog.Value {
	h := p.Header()
	attrs := []slog.Attr{
		slog.Uint64("ssrc", uint64(h.SSRC())),
		slog.Int("pt", int(h.PayloadType())),
		slog.Int("seq", int(h.SequenceNumber().Value())),
		slog.Uint64("ts", uint64(h.Timestamp().Value())),
		slog.Bool("marker", h.Marker()),
		slog.Int("payloadLen", len(p.Payload())),
	}
	if h.CSRCCount() > 0 {
		attrs = append(attrs, slog.Int("csrcCount", int(h.CSRCCount())))
	}
	if format, _, ok := p.Extension(); ok {
		attrs = append(attrs, slog.String("ext", format.String()))
	}
	if pad, ok := p.Padding(); ok {
		attrs = append(attrs, slog.Int("padding", int(pad)))
	}
	return slog.GroupValue(attrs...)
}
