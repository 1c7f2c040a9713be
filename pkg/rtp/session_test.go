package rtp

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtpkit/pkg/wrapping"
)

func TestSessionWritePacket(t *testing.T) {
	s := NewSession(0x12345678, PayloadTypeOpus, 65534)
	defer s.Close()
	require.NoError(t, s.SetCSRC(7))

	buf := make([]byte, MaxRTPPacketSize)
	var seqs []uint16
	for i := 0; i < 3; i++ {
		n, err := s.WritePacket(buf, wrapping.New32(uint32(960*i)), i == 2, []byte{byte(i)})
		require.NoError(t, err)

		pkt, err := ParsePacket(buf[:n])
		require.NoError(t, err)
		h := pkt.Header()
		assert.Equal(t, uint32(0x12345678), h.SSRC())
		assert.Equal(t, uint8(PayloadTypeOpus), h.PayloadType())
		assert.Equal(t, uint32(960*i), h.Timestamp().Value())
		assert.Equal(t, i == 2, h.Marker())
		assert.Equal(t, uint8(1), h.CSRCCount())
		assert.Equal(t, []byte{byte(i)}, pkt.Payload())
		seqs = append(seqs, h.SequenceNumber().Value())
	}
	assert.Equal(t, []uint16{65534, 65535, 0}, seqs)
	assert.Equal(t, uint64(3), s.Sent())
	assert.Equal(t, wrapping.New16(1), s.NextSequenceNumber())
	assert.Equal(t, uint8(PayloadTypeOpus), s.GetPayloadType())
}

func TestSessionExtensions(t *testing.T) {
	s := NewSession(1, 96, 0)
	require.NoError(t, s.SetExtensionFormat(ExtTwoByte))
	require.ErrorIs(t, s.SetExtensionFormat(ExtFormat(7)), ErrUnknownExtFormat)

	buf := make([]byte, 128)
	n, err := s.WritePacket(buf, wrapping.New32(0), false, []byte{1, 2},
		Extension{ID: 3, Body: []byte{0x30}},
		Extension{ID: 4, Body: nil})
	require.NoError(t, err)

	pkt, err := ParsePacket(buf[:n])
	require.NoError(t, err)
	format, _, ok := pkt.Extension()
	require.True(t, ok)
	assert.Equal(t, ExtTwoByte, format)
	body, ok := pkt.ExtensionByID(3)
	require.True(t, ok)
	assert.Equal(t, []byte{0x30}, body)
	body, ok = pkt.ExtensionByID(4)
	require.True(t, ok)
	assert.Empty(t, body)
}

func TestSessionClosed(t *testing.T) {
	s := NewSession(1, 96, 0)
	s.Close()
	_, err := s.WritePacket(make([]byte, 64), wrapping.New32(0), false, nil)
	require.ErrorIs(t, err, ErrSessionClosed)
	assert.Zero(t, s.Sent())
}

func TestSessionRejectsUnbuildablePackets(t *testing.T) {
	s := NewSession(1, 96, 10)
	require.NoError(t, s.SetCSRC(1, 2))

	cases := []struct {
		name string
		buf  []byte
		exts []Extension
		want error
	}{
		{"short for header", make([]byte, 12), nil, io.ErrShortBuffer},
		{"short for payload", make([]byte, 22), nil, io.ErrShortBuffer},
		{"short for extension", make([]byte, 24), []Extension{{ID: 1, Body: []byte{1}}}, io.ErrShortBuffer},
		{"empty one-byte body", make([]byte, 64), []Extension{{ID: 1}}, ErrInvalidExtension},
		{"one-byte body too long", make([]byte, 64), []Extension{{ID: 1, Body: make([]byte, 17)}}, ErrInvalidExtension},
		{"one-byte id 15", make([]byte, 64), []Extension{{ID: 15, Body: []byte{1}}}, ErrInvalidExtension},
		{"id 0", make([]byte, 64), []Extension{{ID: 0, Body: []byte{1}}}, ErrInvalidExtension},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() {
				_, err = s.WritePacket(tc.buf, wrapping.New32(0), false, []byte{1, 2, 3}, tc.exts...)
			})
			require.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, s.Sent())
	assert.Equal(t, wrapping.New16(10), s.NextSequenceNumber())

	// exactly the computed size is enough: 12 + 8 csrc + 4 ext header + 4 item + 3 payload
	n, err := s.WritePacket(make([]byte, 31), wrapping.New32(0), false, []byte{1, 2, 3},
		Extension{ID: 1, Body: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, 31, n)

	require.NoError(t, s.SetExtensionFormat(ExtTwoByte))
	n, err = s.WritePacket(make([]byte, 64), wrapping.New32(0), false, nil, Extension{ID: 200})
	require.NoError(t, err)
	assert.Equal(t, 12+8+4+4, n)
}

func TestSessionSetCSRCLimit(t *testing.T) {
	s := NewSession(1, 96, 0)
	assert.Error(t, s.SetCSRC(make([]uint32, 16)...))
	assert.NoError(t, s.SetCSRC(make([]uint32, 15)...))
}

func TestSessionConcurrentWriters(t *testing.T) {
	const (
		writers = 8
		each    = 200
	)
	s := NewSession(5, 96, 65000)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint16]int)
	)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, 64)
			for i := 0; i < each; i++ {
				n, err := s.WritePacket(buf, wrapping.New32(0), false, []byte{1})
				if !assert.NoError(t, err) {
					return
				}
				seq := PacketUnchecked(buf[:n]).Header().SequenceNumber().Value()
				mu.Lock()
				seen[seq]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, writers*each)
	assert.Equal(t, uint64(writers*each), s.Sent())
	assert.Equal(t, wrapping.New16(65000).AddUnsigned(writers*each), s.NextSequenceNumber())
}
