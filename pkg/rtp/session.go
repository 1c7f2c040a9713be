package rtp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"rtpkit/pkg/wrapping"
)

var (
	ErrSessionClosed    = errors.New("rtp: session is not active")
	ErrInvalidExtension = errors.New("rtp: invalid extension element")
)

// Session stamps outgoing packets of one RTP stream with its SSRC, payload
// type and consecutive sequence numbers. Sending the bytes is left to the
// caller.
type Session struct {
	SSRC        uint32
	payloadType uint8
	csrc        []uint32
	ext         ExtFormat
	nextSeq     Seq
	sent        uint64
	active      bool
	mu          sync.Mutex
}

// NewSession creates a new RTP session starting at sequence number
// initialSeq.
func NewSession(ssrc uint32, payloadType uint8, initialSeq uint16) *Session {
	slog.Info("RTP session created", "ssrc", ssrc, "payloadType", payloadType, "initialSeq", initialSeq)
	return &Session{
		SSRC:        ssrc,
		payloadType: payloadType & 0x7f,
		nextSeq:     wrapping.New16(initialSeq),
		active:      true,
	}
}

// SetCSRC sets the contributing sources written into every packet.
func (s *Session) SetCSRC(csrc ...uint32) error {
	if len(csrc) > maxCSRC {
		return errors.New("rtp: more than 15 csrcs")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrc = append(s.csrc[:0], csrc...)
	return nil
}

// Extension is one header extension element written by WritePacket.
type Extension struct {
	ID   uint8
	Body []byte
}

// SetExtensionFormat selects the profile used when WritePacket is given
// extensions. The default is ExtOneByte.
func (s *Session) SetExtensionFormat(format ExtFormat) error {
	if _, err := ParseExtFormat(uint16(format)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ext = format
	return nil
}

// WritePacket builds the next packet of the stream into buf and returns its
// length. An extension element the profile cannot carry fails with
// ErrInvalidExtension and a buf too small for the packet with
// io.ErrShortBuffer; in both cases nothing is written and the sequence number
// is not used up.
func (s *Session) WritePacket(buf []byte, ts Timestamp, marker bool, payload []byte, exts ...Extension) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return 0, ErrSessionClosed
	}

	format := s.ext
	if format == 0 {
		format = ExtOneByte
	}
	size, err := s.packetSize(format, payload, exts)
	if err != nil {
		return 0, err
	}
	if size > len(buf) {
		return 0, fmt.Errorf("rtp: packet needs %d bytes, buffer has %d: %w", size, len(buf), io.ErrShortBuffer)
	}

	seq := s.nextSeq
	b := NewBuilder(buf, HeaderFields{
		Marker:         marker,
		PayloadType:    s.payloadType,
		SequenceNumber: seq,
		Timestamp:      ts,
		SSRC:           s.SSRC,
		CSRC:           s.csrc,
	})

	var n int
	if len(exts) == 0 {
		n = b.Payload(payload, false)
	} else {
		eb := b.Extension(format)
		for _, ext := range exts {
			eb.Write(ext.ID, ext.Body)
		}
		n = eb.Payload(payload, false)
	}

	s.nextSeq = seq.Next()
	s.sent++

	slog.Debug("RTP packet written", "ssrc", s.SSRC, "seq", seq, "ts", ts, "size", n)
	return n, nil
}

// packetSize checks exts against format and returns the length of the
// packet WritePacket would build.
func (s *Session) packetSize(format ExtFormat, payload []byte, exts []Extension) (int, error) {
	size := MinRTPHeaderSize + 4*len(s.csrc) + len(payload)
	if len(exts) == 0 {
		return size, nil
	}

	body := 0
	for _, ext := range exts {
		minID, maxID, minLen := uint8(1), uint8(oneByteIDLast), 1
		if format == ExtTwoByte {
			maxID, minLen = 255, 0
		}
		if ext.ID < minID || ext.ID > maxID {
			return 0, fmt.Errorf("%w: %s id %d", ErrInvalidExtension, format, ext.ID)
		}
		if len(ext.Body) < minLen || len(ext.Body) > format.MaxBodyLen() {
			return 0, fmt.Errorf("%w: %s id %d body length %d", ErrInvalidExtension, format, ext.ID, len(ext.Body))
		}
		body += format.HeaderLen() + len(ext.Body)
	}
	return size + extHeaderLen + (body+3)/4*4, nil
}

// NextSequenceNumber returns the sequence number of the next packet.
func (s *Session) NextSequenceNumber() Seq {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq
}

// Sent returns the number of packets written.
func (s *Session) Sent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// Close closes the RTP session
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
	slog.Info("RTP session closed", "ssrc", s.SSRC, "sent", s.sent)
}

// GetPayloadType returns the payload type
func (s *Session) GetPayloadType() uint8 {
	return s.payloadType
}
