package rtp

import (
	"fmt"
	"iter"
)

// ExtFormat selects one of the two header extension profiles of RFC 8285.
// The zero value is not a valid format.
type ExtFormat uint16

const (
	ExtOneByte ExtFormat = 0xBEDE
	ExtTwoByte ExtFormat = 0x1000
)

const (
	extPadding     = 0
	oneByteIDLast  = 14
	oneByteIDStop  = 15
	oneByteMaxBody = 16
	twoByteMaxBody = 255
)

// ParseExtFormat maps a profile id read from the wire to a format.
func ParseExtFormat(profile uint16) (ExtFormat, error) {
	switch f := ExtFormat(profile); f {
	case ExtOneByte, ExtTwoByte:
		return f, nil
	default:
		return 0, valueErr(ErrUnknownExtFormat, profile)
	}
}

func (f ExtFormat) String() string {
	switch f {
	case ExtOneByte:
		return "one-byte"
	case ExtTwoByte:
		return "two-byte"
	default:
		return fmt.Sprintf("ExtFormat(0x%04X)", uint16(f))
	}
}

// HeaderLen is the size of the per-item header.
func (f ExtFormat) HeaderLen() int {
	if f == ExtTwoByte {
		return 2
	}
	return 1
}

// MaxBodyLen is the largest body one item can carry.
func (f ExtFormat) MaxBodyLen() int {
	if f == ExtTwoByte {
		return twoByteMaxBody
	}
	return oneByteMaxBody
}

// readItem decodes the item header at buf[0]. buf must be non-empty and must
// not start with a padding byte. ok is false when scanning must stop: a
// one-byte id 15, or a two-byte header cut short.
func (f ExtFormat) readItem(buf []byte) (id uint8, hdr, size int, ok bool) {
	if f == ExtTwoByte {
		if len(buf) < 2 {
			return buf[0], 2, 0, false
		}
		return buf[0], 2, int(buf[1]), true
	}
	id = buf[0] >> 4
	if id == oneByteIDStop {
		return id, 1, 0, false
	}
	return id, 1, int(buf[0]&0x0f) + 1, true
}

// Validate scans an extension body without exposing its items. After it
// succeeds Items and Iterator can be used on the same bytes without further
// checks.
func (f ExtFormat) Validate(body []byte) error {
	for len(body) > 0 {
		if body[0] == extPadding {
			body = body[1:]
			continue
		}

		_, hdr, size, ok := f.readItem(body)
		if !ok {
			if f == ExtTwoByte {
				return notEnough(hdr, len(body), "two-byte ext header length")
			}
			// id 15 ends the block, the rest is ignored
			return nil
		}
		body = body[hdr:]

		if len(body) < size {
			if f == ExtTwoByte {
				return notEnough(size, len(body), "two-byte ext body length")
			}
			return notEnough(size, len(body), "one-byte ext body length")
		}
		body = body[size:]
	}
	return nil
}

// Iterator returns a fresh iterator over a validated extension body.
func (f ExtFormat) Iterator(body []byte) ExtIterator {
	return ExtIterator{format: f, buf: body}
}

// Items yields (id, body) for each element of a validated extension body.
func (f ExtFormat) Items(body []byte) iter.Seq2[uint8, []byte] {
	return func(yield func(uint8, []byte) bool) {
		it := f.Iterator(body)
		for {
			id, item, ok := it.Next()
			if !ok || !yield(id, item) {
				return
			}
		}
	}
}

// ExtIterator walks the elements of a validated extension body. It never
// modifies the underlying bytes.
type ExtIterator struct {
	format ExtFormat
	buf    []byte
}

// Format returns the profile of the iterated block.
func (it *ExtIterator) Format() ExtFormat {
	return it.format
}

// Next returns the next element. ok is false once the body is exhausted or
// a one-byte id 15 is reached.
func (it *ExtIterator) Next() (id uint8, body []byte, ok bool) {
	for len(it.buf) > 0 {
		if it.buf[0] == extPadding {
			it.buf = it.buf[1:]
			continue
		}

		itemID, hdr, size, more := it.format.readItem(it.buf)
		if !more {
			break
		}
		item := it.buf[hdr : hdr+size]
		it.buf = it.buf[hdr+size:]
		return itemID, item, true
	}
	it.buf = nil
	return 0, nil, false
}

// begin writes the item header for id and returns its length. The length
// field is left for end.
func (f ExtFormat) begin(buf []byte, id uint8) int {
	switch f {
	case ExtOneByte:
		if id == extPadding || id > oneByteIDLast {
			panic(fmt.Sprintf("rtp: one-byte extension id %d out of range [1,14]", id))
		}
		buf[0] = id << 4
		return 1
	case ExtTwoByte:
		if id == extPadding {
			panic("rtp: two-byte extension id 0 is reserved for padding")
		}
		buf[0] = id
		buf[1] = 0
		return 2
	default:
		panic(fmt.Sprintf("rtp: write with invalid extension format 0x%04X", uint16(f)))
	}
}

// end back-fills the length field of the item header at buf[0].
func (f ExtFormat) end(buf []byte, bodyLen int) {
	switch f {
	case ExtOneByte:
		if bodyLen < 1 || bodyLen > oneByteMaxBody {
			panic(fmt.Sprintf("rtp: one-byte extension body length %d out of range [1,16]", bodyLen))
		}
		buf[0] = buf[0]&0xf0 | byte(bodyLen-1)
	case ExtTwoByte:
		if bodyLen < 0 || bodyLen > twoByteMaxBody {
			panic(fmt.Sprintf("rtp: two-byte extension body length %d out of range [0,255]", bodyLen))
		}
		buf[1] = byte(bodyLen)
	default:
		panic(fmt.Sprintf("rtp: write with invalid extension format 0x%04X", uint16(f)))
	}
}
