package inspect

import (
	"cmp"
	"slices"
	"sync"

	"rtpkit/pkg/rtp"
)

// Verdict classifies a sequence number against the highest one seen on its
// stream.
type Verdict uint8

const (
	VerdictFirst Verdict = iota
	VerdictInOrder
	VerdictGap
	VerdictLate
	VerdictDuplicate
)

func (v Verdict) String() string {
	switch v {
	case VerdictFirst:
		return "first"
	case VerdictInOrder:
		return "in-order"
	case VerdictGap:
		return "gap"
	case VerdictLate:
		return "late"
	case VerdictDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// StreamStats is the reception summary of one SSRC.
type StreamStats struct {
	SSRC      uint32
	Received  uint64
	Lost      uint64 // missing after the highest sequence number
	Late      uint64
	Duplicate uint64
	Highest   rtp.Seq
}

// Tracker follows the sequence numbers of every SSRC seen. Comparisons use
// wrapping arithmetic, so a stream crossing 65535 -> 0 stays in order.
type Tracker struct {
	mu      sync.Mutex
	streams map[uint32]*StreamStats
}

func NewTracker() *Tracker {
	return &Tracker{streams: make(map[uint32]*StreamStats)}
}

// Observe records one received packet.
func (t *Tracker) Observe(ssrc uint32, seq rtp.Seq) Verdict {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.streams[ssrc]
	if !ok {
		t.streams[ssrc] = &StreamStats{SSRC: ssrc, Received: 1, Highest: seq}
		return VerdictFirst
	}
	s.Received++

	switch d := seq.Sub(s.Highest); {
	case d == 1:
		s.Highest = seq
		return VerdictInOrder
	case d > 1:
		s.Lost += uint64(d - 1)
		s.Highest = seq
		return VerdictGap
	case d == 0:
		s.Duplicate++
		return VerdictDuplicate
	default:
		// a late packet fills a hole counted earlier; older duplicates are
		// not told apart from it
		s.Late++
		if s.Lost > 0 {
			s.Lost--
		}
		return VerdictLate
	}
}

// Stream returns the summary of ssrc.
func (t *Tracker) Stream(ssrc uint32) (StreamStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.streams[ssrc]
	if !ok {
		return StreamStats{}, false
	}
	return *s, true
}

// Snapshot returns the summaries of all streams ordered by SSRC.
func (t *Tracker) Snapshot() []StreamStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]StreamStats, 0, len(t.streams))
	for _, s := range t.streams {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b StreamStats) int {
		return cmp.Compare(a.SSRC, b.SSRC)
	})
	return out
}

// Forget drops ssrc, as after an RTCP BYE.
func (t *Tracker) Forget(ssrc uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.streams, ssrc)
}
