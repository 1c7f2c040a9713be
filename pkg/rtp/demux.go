package rtp

// Kind is the protocol of a datagram received on a multiplexed port.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindRTP
	KindRTCP
)

func (k Kind) String() string {
	switch k {
	case KindRTP:
		return "rtp"
	case KindRTCP:
		return "rtcp"
	default:
		return "unknown"
	}
}

// Classify tells RTP from RTCP as described in RFC 5761 section 4 and RFC
// 7983. The result only selects a parser; the packet is not validated.
func Classify(buf []byte) Kind {
	if len(buf) < 2 {
		return KindUnknown
	}
	if first := buf[0]; first < 128 || first > 191 {
		return KindUnknown
	}
	if pt := buf[1]; pt >= RTCPPayloadTypeMin && pt <= RTCPPayloadTypeMax {
		return KindRTCP
	}
	return KindRTP
}
