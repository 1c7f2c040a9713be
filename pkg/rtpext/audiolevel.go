// Package rtpext decodes and encodes individual RTP header extension
// elements carried in packets parsed by package rtp.
package rtpext

import (
	"cmp"
	"fmt"

	"rtpkit/pkg/rtp"
)

// AudioLevelURI identifies the client-to-mixer audio level element (RFC 6464)
// in SDP extmap lines.
const AudioLevelURI = "urn:ietf:params:rtp-hdrext:ssrc-audio-level"

const (
	voiceBit = 0x80
	levelMax = 0x7f
)

// Silence is the quietest representable level.
var Silence = AudioLevel{Level: levelMax}

// AudioLevel is the one byte audio level element. Level is the attenuation
// in -dBov, 0 being the loudest and 127 silence.
type AudioLevel struct {
	Voice bool
	Level uint8
}

// ParseAudioLevel decodes the element body. Bytes beyond the first one are
// ignored; they only appear as padding of the two-byte profile.
func ParseAudioLevel(body []byte) (AudioLevel, error) {
	if len(body) < 1 {
		return AudioLevel{}, &rtp.NotEnoughBufferError{Expect: 1, Actual: len(body), Origin: "audio level value length"}
	}
	return AudioLevel{
		Voice: body[0]&voiceBit != 0,
		Level: body[0] & levelMax,
	}, nil
}

// Byte returns the wire form. Level is truncated to seven bits.
func (a AudioLevel) Byte() byte {
	b := a.Level & levelMax
	if a.Voice {
		b |= voiceBit
	}
	return b
}

func (a AudioLevel) Bytes() []byte {
	return []byte{a.Byte()}
}

// Compare orders levels by loudness: a louder level (lower attenuation) is
// greater.
func (a AudioLevel) Compare(b AudioLevel) int {
	return cmp.Compare(b.Level&levelMax, a.Level&levelMax)
}

// Louder reports whether a is louder than b.
func (a AudioLevel) Louder(b AudioLevel) bool {
	return a.Compare(b) > 0
}

func (a AudioLevel) String() string {
	return fmt.Sprintf("-%ddBov voice=%v", a.Level&levelMax, a.Voice)
}

// WriteAudioLevel adds the element as item id of an extension block.
func WriteAudioLevel(e *rtp.ExtBuilder, id uint8, a AudioLevel) {
	err := e.WriteItem(id, func(w *rtp.ItemWriter) error {
		return w.WriteUint8(a.Byte())
	})
	if err != nil {
		// a single byte fits both profiles
		panic(err)
	}
}

// AudioLevelFrom looks up the element negotiated as id in pkt. ok is false
// when the packet carries no such item.
func AudioLevelFrom(pkt rtp.Packet, id uint8) (level AudioLevel, ok bool, err error) {
	body, ok := pkt.ExtensionByID(id)
	if !ok {
		return AudioLevel{}, false, nil
	}
	level, err = ParseAudioLevel(body)
	if err != nil {
		return AudioLevel{}, true, fmt.Errorf("extension %d: %w", id, err)
	}
	return level, true, nil
}
