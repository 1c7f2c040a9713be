package rtp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var ErrExtItemTooLong = errors.New("rtp: extension item body too long")

// HeaderFields are the fixed header values written by NewBuilder.
type HeaderFields struct {
	Marker         bool
	PayloadType    uint8
	SequenceNumber Seq
	Timestamp      Timestamp
	SSRC           uint32
	CSRC           []uint32
}

// Builder writes an RTP packet into a caller-owned buffer. The buffer must be
// large enough for the whole packet; writes past its end panic. The caller
// must not touch the buffer until the final length has been returned.
//
// The stages run in wire order:
//
//	n := rtp.NewBuilder(buf, fields).
//		OneByteExtension(10, []byte{7, 8}).
//		Payload(payload, true)
//	pkt := rtp.PacketUnchecked(buf[:n])
type Builder struct {
	buf []byte
	n   int
}

// NewBuilder writes the fixed header and CSRC list. It panics if more than
// 15 CSRCs are given.
func NewBuilder(buf []byte, f HeaderFields) Builder {
	if len(f.CSRC) > maxCSRC {
		panic(fmt.Sprintf("rtp: %d csrcs exceed the maximum of 15", len(f.CSRC)))
	}
	n := MinRTPHeaderSize + 4*len(f.CSRC)
	_ = buf[n-1]

	// First byte: V(2) + P(1) + X(1) + CC(4)
	buf[0] = Version<<6 | byte(len(f.CSRC))

	// Second byte: M(1) + PT(7)
	buf[1] = boolToBit(f.Marker)<<7 | f.PayloadType&0x7f

	binary.BigEndian.PutUint16(buf[2:4], f.SequenceNumber.Value())
	binary.BigEndian.PutUint32(buf[4:8], f.Timestamp.Value())
	binary.BigEndian.PutUint32(buf[8:12], f.SSRC)

	for i, csrc := range f.CSRC {
		off := MinRTPHeaderSize + 4*i
		binary.BigEndian.PutUint32(buf[off:off+4], csrc)
	}

	return Builder{buf: buf, n: n}
}

// Len is the number of bytes written so far.
func (b Builder) Len() int {
	return b.n
}

// Extension starts an extension block of the given profile.
func (b Builder) Extension(format ExtFormat) ExtBuilder {
	if format != ExtOneByte && format != ExtTwoByte {
		panic(fmt.Sprintf("rtp: write with invalid extension format 0x%04X", uint16(format)))
	}
	binary.BigEndian.PutUint16(b.buf[b.n:b.n+2], uint16(format))
	binary.BigEndian.PutUint16(b.buf[b.n+2:b.n+4], 0) // words, filled by Finish

	return ExtBuilder{
		format: format,
		buf:    b.buf,
		offset: b.n,
		n:      b.n + extHeaderLen,
	}
}

// OneByteExtension writes a one-byte extension block holding a single item.
func (b Builder) OneByteExtension(id uint8, body []byte) PayloadBuilder {
	ext := b.Extension(ExtOneByte)
	ext.Write(id, body)
	return ext.Finish()
}

// WithoutExtension skips the extension block.
func (b Builder) WithoutExtension() PayloadBuilder {
	return PayloadBuilder{buf: b.buf, n: b.n}
}

// Payload writes the payload with no extension block and returns the final
// packet length.
func (b Builder) Payload(payload []byte, padding bool) int {
	return writePayload(b.buf, b.n, payload, padding)
}

// ExtBuilder writes the items of one extension block. Use it through a
// variable: items opened with Begin keep a pointer to it.
type ExtBuilder struct {
	format ExtFormat
	buf    []byte
	offset int // extension header
	n      int
	open   bool
	done   bool

	// state of the open item, shared by every copy of its ItemWriter
	item    uint32
	itemHdr int
	itemLen int
}

func (e *ExtBuilder) Format() ExtFormat {
	return e.format
}

// Len is the number of bytes written so far, extension items included.
func (e *ExtBuilder) Len() int {
	e.mustBeIdle("Len")
	return e.n
}

// Write adds one item in a single copy. It panics if body does not fit the
// profile's length range.
func (e *ExtBuilder) Write(id uint8, body []byte) {
	e.mustBeIdle("Write")
	if len(body) > e.format.MaxBodyLen() {
		panic(fmt.Sprintf("rtp: %s extension body length %d exceeds %d", e.format, len(body), e.format.MaxBodyLen()))
	}
	item := e.buf[e.n:]
	hdr := e.format.begin(item, id)
	copy(item[hdr:hdr+len(body)], body)
	e.format.end(item, len(body))
	e.n += hdr + len(body)
}

// Begin opens an item whose body is written incrementally. The builder
// refuses every other call until the item is closed, so Close is the only way
// to get past an open item.
func (e *ExtBuilder) Begin(id uint8) ItemWriter {
	e.mustBeIdle("Begin")
	e.itemHdr = e.format.begin(e.buf[e.n:], id)
	e.itemLen = 0
	e.item++
	e.open = true
	return ItemWriter{parent: e, item: e.item}
}

// WriteItem opens an item, hands it to fn and closes it on every return
// path, including when fn fails or panics. The error of fn is returned.
func (e *ExtBuilder) WriteItem(id uint8, fn func(w *ItemWriter) error) error {
	w := e.Begin(id)
	defer w.Close()
	return fn(&w)
}

// Finish pads the block to a 32-bit boundary, writes its word count and sets
// the extension flag.
func (e *ExtBuilder) Finish() PayloadBuilder {
	e.mustBeIdle("Finish")

	bodyLen := e.n - e.offset - extHeaderLen
	words := (bodyLen + 3) / 4
	if pad := words*4 - bodyLen; pad > 0 {
		clear(e.buf[e.n : e.n+pad])
		e.n += pad
	}
	binary.BigEndian.PutUint16(e.buf[e.offset+2:e.offset+4], uint16(words))

	// First byte: V(2) + P(1) + X(1) + CC(4)
	e.buf[0] |= 0x10
	e.done = true

	return PayloadBuilder{buf: e.buf, n: e.n}
}

// Payload finishes the extension block and writes the payload.
func (e *ExtBuilder) Payload(payload []byte, padding bool) int {
	return e.Finish().Payload(payload, padding)
}

func (e *ExtBuilder) mustBeIdle(op string) {
	if e.open {
		panic("rtp: " + op + " while an extension item is still open")
	}
	if e.done {
		panic("rtp: " + op + " on a finished extension block")
	}
}

// ItemWriter accumulates the body of one extension item. It is a handle on
// the item state kept by its ExtBuilder: copies refer to the same item, and
// once the item is closed every copy behaves as closed.
type ItemWriter struct {
	parent *ExtBuilder
	item   uint32
}

var _ io.Writer = (*ItemWriter)(nil)

var errItemClosed = errors.New("rtp: write to closed extension item")

// live reports whether w still refers to the open item of its builder.
func (w *ItemWriter) live() bool {
	e := w.parent
	return e != nil && e.open && e.item == w.item
}

// Len is the body length written so far, 0 once the item is closed.
func (w *ItemWriter) Len() int {
	if !w.live() {
		return 0
	}
	return w.parent.itemLen
}

// Write appends p to the item body. It fails without writing if the body
// would exceed the profile limit or the buffer.
func (w *ItemWriter) Write(p []byte) (int, error) {
	if !w.live() {
		return 0, errItemClosed
	}
	e := w.parent
	if e.itemLen+len(p) > e.format.MaxBodyLen() {
		return 0, ErrExtItemTooLong
	}
	tail := e.n + e.itemHdr + e.itemLen
	if tail+len(p) > len(e.buf) {
		return 0, io.ErrShortBuffer
	}
	copy(e.buf[tail:], p)
	e.itemLen += len(p)
	return len(p), nil
}

func (w *ItemWriter) WriteUint8(v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func (w *ItemWriter) WriteUint16(v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func (w *ItemWriter) WriteUint32(v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// Close writes the item length, releases the parent builder and returns the
// parent's length. The length is written once per item: later calls, on w
// or on any copy of it, only return the parent's length. It panics if the
// body length is outside the profile range (an empty one-byte item).
func (w *ItemWriter) Close() int {
	e := w.parent
	if e == nil {
		return 0
	}
	if !w.live() {
		return e.n
	}
	e.open = false
	e.format.end(e.buf[e.n:], e.itemLen)
	e.n += e.itemHdr + e.itemLen
	return e.n
}

// PayloadBuilder writes the payload, the last stage of a packet.
type PayloadBuilder struct {
	buf []byte
	n   int
}

func (b PayloadBuilder) Len() int {
	return b.n
}

// Payload appends payload and returns the final packet length. With padding
// set and a length that is not a multiple of 4, the minimal padding is added
// and the padding flag is set.
func (b PayloadBuilder) Payload(payload []byte, padding bool) int {
	return writePayload(b.buf, b.n, payload, padding)
}

func writePayload(buf []byte, n int, payload []byte, padding bool) int {
	n += copy(buf[n:n+len(payload)], payload)

	if padding {
		if pad := (4 - n%4) % 4; pad > 0 {
			clear(buf[n : n+pad-1])
			buf[n+pad-1] = byte(pad)
			n += pad

			// First byte: V(2) + P(1) + X(1) + CC(4)
			buf[0] |= 0x20
		}
	}
	return n
}

// boolToBit converts boolean to bit (0 or 1)
func boolToBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
