package rtp

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawHeader returns a fixed header with first byte b0 followed by rest.
func rawHeader(b0 byte, rest ...byte) []byte {
	buf := []byte{b0, 0xe0, 0x12, 0x34, 0x01, 0x02, 0x03, 0x04, 0x0a, 0x0b, 0x0c, 0x0d}
	return append(buf, rest...)
}

func requireNotEnough(t *testing.T, err error, origin string, expect, actual int) {
	t.Helper()
	require.ErrorIs(t, err, ErrNotEnoughBuffer)
	var nb *NotEnoughBufferError
	require.ErrorAs(t, err, &nb)
	assert.Equal(t, origin, nb.Origin)
	assert.Equal(t, expect, nb.Expect, "expect")
	assert.Equal(t, actual, nb.Actual, "actual")
}

func TestParsePacketMinimal(t *testing.T) {
	pkt, err := ParsePacket(rawHeader(0x80, 0xaa, 0xbb, 0xcc))
	require.NoError(t, err)

	h := pkt.Header()
	assert.Equal(t, uint8(2), h.Version())
	assert.True(t, h.Marker())
	assert.Equal(t, uint8(96), h.PayloadType())
	assert.Equal(t, uint16(0x1234), h.SequenceNumber().Value())
	assert.Equal(t, uint32(0x01020304), h.Timestamp().Value())
	assert.Equal(t, uint32(0x0a0b0c0d), h.SSRC())
	assert.False(t, h.Padding())
	assert.False(t, h.Extension())
	assert.Zero(t, h.CSRCCount())
	assert.Equal(t, 12, pkt.PayloadOffset())
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, pkt.Payload())

	_, ok := pkt.Extensions()
	assert.False(t, ok)
	_, ok = pkt.Padding()
	assert.False(t, ok)
	assert.Empty(t, slices.Collect(pkt.CSRCs()))
}

func TestParsePacketHeaderErrors(t *testing.T) {
	_, err := ParsePacket(make([]byte, 11))
	requireNotEnough(t, err, "rtp header length", 12, 11)

	_, err = ParsePacket(rawHeader(0x40))
	require.ErrorIs(t, err, ErrUnknownVersion)
	var ve *ValueError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, uint16(1), ve.Value)

	_, err = ParsePacket(rawHeader(0x82, 0, 0, 0, 1))
	requireNotEnough(t, err, "rtp csrc list", 20, 16)
}

func TestStrictDemux(t *testing.T) {
	strict := Parser{StrictDemux: true}

	// 200 lies outside [128,191]
	_, err := strict.Packet(rawHeader(200))
	require.ErrorIs(t, err, ErrUnknownFirst)
	var ve *ValueError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, uint16(200), ve.Value)

	// lenient parsing only sees the bad version
	_, err = ParsePacket(rawHeader(200))
	require.ErrorIs(t, err, ErrUnknownVersion)

	_, err = strict.Packet(rawHeader(127))
	require.ErrorIs(t, err, ErrUnknownFirst)

	// 160 = version 2 with padding, accepted for further checks
	pkt, err := strict.Packet(rawHeader(160, 1, 2, 3, 2))
	require.NoError(t, err)
	pad, ok := pkt.Padding()
	require.True(t, ok)
	assert.Equal(t, uint8(2), pad)
	assert.Equal(t, []byte{1, 2}, pkt.Payload())
}

func TestParsePacketExtensionErrors(t *testing.T) {
	_, err := ParsePacket(rawHeader(0x90, 0xbe, 0xde))
	requireNotEnough(t, err, "rtp extension start", 16, 14)

	_, err = ParsePacket(rawHeader(0x90, 0xbe, 0xde, 0x00, 0x02, 0x10, 0x01, 0x00, 0x00))
	requireNotEnough(t, err, "rtp extension end", 24, 20)

	_, err = ParsePacket(rawHeader(0x90, 0x12, 0x34, 0x00, 0x00))
	require.ErrorIs(t, err, ErrUnknownExtFormat)

	_, err = ParsePacket(rawHeader(0x90, 0xbe, 0xde, 0x00, 0x01, 0x13, 0x01, 0x00, 0x00))
	requireNotEnough(t, err, "one-byte ext body length", 4, 3)

	_, err = ParsePacket(rawHeader(0x90, 0x10, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x05))
	requireNotEnough(t, err, "two-byte ext header length", 2, 1)
}

func TestParsePacketExtension(t *testing.T) {
	buf := rawHeader(0x90,
		0xbe, 0xde, 0x00, 0x02,
		0x11, 0xaa, 0xbb, 0x00,
		0x50, 0x09, 0xf0, 0x00,
		0x42)
	pkt, err := ParsePacket(buf)
	require.NoError(t, err)

	format, body, ok := pkt.Extension()
	require.True(t, ok)
	assert.Equal(t, ExtOneByte, format)
	assert.Len(t, body, 8)
	assert.Equal(t, 24, pkt.PayloadOffset())
	assert.Equal(t, []byte{0x42}, pkt.Payload())

	it, ok := pkt.Extensions()
	require.True(t, ok)
	id, b, more := it.Next()
	require.True(t, more)
	assert.Equal(t, uint8(1), id)
	assert.Equal(t, []byte{0xaa, 0xbb}, b)
	id, b, more = it.Next()
	require.True(t, more)
	assert.Equal(t, uint8(5), id)
	assert.Equal(t, []byte{0x09}, b)
	_, _, more = it.Next()
	assert.False(t, more, "id 15 ends the block")

	b, ok = pkt.ExtensionByID(5)
	require.True(t, ok)
	assert.Equal(t, []byte{0x09}, b)
	_, ok = pkt.ExtensionByID(3)
	assert.False(t, ok)
}

func TestParsePacketPadding(t *testing.T) {
	_, err := ParsePacket(rawHeader(0xa0))
	requireNotEnough(t, err, "rtp padding field", 13, 12)

	_, err = ParsePacket(rawHeader(0xa0, 1, 0))
	require.ErrorIs(t, err, ErrInvalidPaddingLength)

	_, err = ParsePacket(rawHeader(0xa0, 1, 2, 9))
	requireNotEnough(t, err, "rtp padding length", 21, 15)

	pkt, err := ParsePacket(rawHeader(0xa0, 0, 0, 3))
	require.NoError(t, err)
	assert.Empty(t, pkt.Payload())
}

func TestParsePacketCSRC(t *testing.T) {
	buf := rawHeader(0x82, 0, 0, 0x15, 0xb3, 0xff, 0xff, 0xff, 0xff, 0x77)
	pkt, err := ParsePacket(buf)
	require.NoError(t, err)
	assert.Equal(t, []uint32{5555, 0xffffffff}, slices.Collect(pkt.CSRCs()))
	assert.Equal(t, 20, pkt.Header().HeaderEnd())
	assert.Equal(t, []byte{0x77}, pkt.Payload())

	for csrc := range pkt.CSRCs() {
		assert.Equal(t, uint32(5555), csrc)
		break
	}
}

func TestUncheckedPanicsOnShortBuffer(t *testing.T) {
	assert.Panics(t, func() { PacketUnchecked(make([]byte, 11)) })
	assert.Panics(t, func() { HeaderUnchecked(nil) })
	assert.NotPanics(t, func() { PacketUnchecked(rawHeader(0x80)) })

	h := HeaderUnchecked(rawHeader(0x80))
	assert.Equal(t, uint32(0x0a0b0c0d), h.SSRC())
}

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(rawHeader(0x80))
	require.NoError(t, err)
	assert.Equal(t, 12, h.HeaderEnd())

	_, err = ParseHeader([]byte{0x80})
	requireNotEnough(t, err, "rtp header length", 12, 1)
}

func TestPacketString(t *testing.T) {
	pkt, err := ParsePacket(rawHeader(0x80, 0xaa))
	require.NoError(t, err)
	assert.Equal(t, "ssrc 168496141, pt 96, seq 4660, ts 16909060, ext[], body 1, m 1", pkt.String())
}
