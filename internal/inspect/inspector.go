package inspect

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"rtpkit/pkg/rtp"
	"rtpkit/pkg/rtpext"
	"rtpkit/pkg/rtsp"
)

// 16진수 한 줄은 바이트당 최대 3글자(공백 포함)
const hexCharsPerByte = 3

var ErrTooLarge = errors.New("inspect: datagram exceeds max_packet_size")

// Stats counts the datagrams handled by an Inspector.
type Stats struct {
	Datagrams uint64
	RTP       uint64
	RTCP      uint64 // datagrams, not packets
	Unknown   uint64
	Invalid   uint64 // undecodable lines and rejected datagrams
}

// Inspector reads hex encoded datagrams, parses them and tracks the RTP
// streams they belong to.
type Inspector struct {
	config  *Config
	parser  rtp.Parser
	tracker *Tracker
	input   io.Reader

	ticker   *time.Ticker
	channel  chan []byte
	done     chan struct{} // 종료 신호 채널
	finished chan struct{} // 입력을 모두 처리하면 닫힘
	exited   chan struct{}
	started  bool
	stopOnce sync.Once

	mu    sync.Mutex
	stats Stats
}

func NewInspector(config *Config, input io.Reader) *Inspector {
	return &Inspector{
		config:   config,
		parser:   rtp.Parser{StrictDemux: config.Strict()},
		tracker:  NewTracker(),
		input:    input,
		channel:  make(chan []byte, 10),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// OpenInput opens the configured input, "-" being stdin.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

func (s *Inspector) Start() error {
	if s.input == nil {
		return errors.New("inspect: no input")
	}
	slog.Info("Start Inspector", "strictDemux", s.parser.StrictDemux, "maxPacketSize", s.config.Inspect.MaxPacketSize)

	if interval := s.config.StatsInterval(); interval > 0 {
		s.ticker = time.NewTicker(interval)
	}

	s.started = true
	go s.readLoop()
	go s.eventLoop()
	return nil
}

// Done is closed once every input line has been handled.
func (s *Inspector) Done() <-chan struct{} {
	return s.finished
}

func (s *Inspector) Stop() {
	s.stopOnce.Do(func() {
		slog.Info("Stopping Inspector...")

		if s.ticker != nil {
			s.ticker.Stop()
		}

		close(s.done)
		if !s.started {
			return
		}
		<-s.exited

		// 남은 데이터그램 버리기
	drain:
		for {
			select {
			case _, ok := <-s.channel:
				if !ok {
					break drain
				}
			default:
				break drain
			}
		}

		s.logStats()
		slog.Info("Inspector stopped successfully")
	})
}

func (s *Inspector) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Inspector) Tracker() *Tracker {
	return s.tracker
}

func (s *Inspector) count(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// readLoop feeds decoded datagrams to the event loop and closes the channel
// at the end of the input.
func (s *Inspector) readLoop() {
	defer close(s.channel)

	if s.config.Inspect.Format == FormatInterleaved {
		s.readInterleaved()
		return
	}
	s.readHex()
}

// send hands data to the event loop. It returns false once stopped.
func (s *Inspector) send(data []byte) bool {
	select {
	case s.channel <- data:
		return true
	case <-s.done:
		return false
	}
}

func (s *Inspector) readHex() {
	scanner := bufio.NewScanner(s.input)
	scanner.Buffer(make([]byte, 0, 4096), hexCharsPerByte*s.config.Inspect.MaxPacketSize+64)

	line := 0
	for scanner.Scan() {
		line++
		data, ok, err := decodeLine(scanner.Text())
		if err != nil {
			s.count(func(st *Stats) { st.Invalid++ })
			slog.Warn("Skipping malformed line", "line", line, "err", err)
			continue
		}
		if !ok {
			continue
		}
		if !s.send(data) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Error("Failed to read input", "line", line+1, "err", err)
	}
}

func (s *Inspector) readInterleaved() {
	reader := rtsp.NewReader(s.input)
	reader.OnMessage = func(msg *rtsp.Message) {
		slog.Debug("RTSP message", "startLine", msg.StartLine, "cseq", msg.CSeq, "bodyLen", len(msg.Body))
	}

	for {
		frame, err := reader.ReadFrame()
		if err != nil {
			if err != io.EOF {
				slog.Error("Failed to read input", "err", err)
			}
			return
		}
		slog.Debug("Interleaved frame", "channel", frame.Channel, "rtcp", frame.IsRTCP(), "size", len(frame.Data))
		if !s.send(frame.Data) {
			return
		}
	}
}

// decodeLine returns the datagram held by one input line. Blank lines and
// lines starting with '#' hold none. Bytes may be separated by whitespace.
func decodeLine(line string) ([]byte, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, false, nil
	}
	data, err := hex.DecodeString(strings.Join(strings.Fields(line), ""))
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *Inspector) eventLoop() {
	defer close(s.exited)

	var tick <-chan time.Time
	if s.ticker != nil {
		tick = s.ticker.C
	}

	for {
		select {
		case data, ok := <-s.channel:
			if !ok {
				slog.Info("Input exhausted")
				close(s.finished)
				return
			}
			if err := s.handle(data); err != nil {
				slog.Warn("Invalid datagram", "size", len(data), "err", err)
			}
		case <-tick:
			s.logStats()
		case <-s.done:
			slog.Info("Inspector event loop stopping...")
			return
		}
	}
}

// handle classifies and parses one datagram. Errors describe the rejected
// datagram and never stop the inspector.
func (s *Inspector) handle(data []byte) error {
	s.count(func(st *Stats) { st.Datagrams++ })

	err := s.dispatch(data)
	if err != nil {
		s.count(func(st *Stats) { st.Invalid++ })
	}
	return err
}

func (s *Inspector) dispatch(data []byte) error {
	if len(data) > s.config.Inspect.MaxPacketSize {
		return fmt.Errorf("%w: %d > %d", ErrTooLarge, len(data), s.config.Inspect.MaxPacketSize)
	}

	switch kind := rtp.Classify(data); kind {
	case rtp.KindRTP:
		return s.handleRTP(data)
	case rtp.KindRTCP:
		return s.handleRTCP(data)
	default:
		s.count(func(st *Stats) { st.Unknown++ })
		slog.Debug("Ignoring non RTP datagram", "size", len(data))
		return nil
	}
}

func (s *Inspector) handleRTP(data []byte) error {
	pkt, err := s.parser.Packet(data)
	if err != nil {
		return fmt.Errorf("rtp: %w", err)
	}
	s.count(func(st *Stats) { st.RTP++ })

	h := pkt.Header()
	verdict := s.tracker.Observe(h.SSRC(), h.SequenceNumber())

	attrs := []any{"packet", pkt, "verdict", verdict}
	if id := s.config.Inspect.AudioLevelID; id > 0 {
		level, ok, err := rtpext.AudioLevelFrom(pkt, uint8(id))
		switch {
		case err != nil:
			slog.Warn("Bad audio level element", "ssrc", h.SSRC(), "err", err)
		case ok:
			attrs = append(attrs, "audioLevel", level.String())
		}
	}
	slog.Debug("RTP", attrs...)

	if verdict == VerdictGap || verdict == VerdictLate {
		slog.Info("Sequence discontinuity", "ssrc", h.SSRC(), "seq", h.SequenceNumber(), "verdict", verdict)
	}
	return nil
}

func (s *Inspector) handleRTCP(data []byte) error {
	s.count(func(st *Stats) { st.RTCP++ })

	for pkt, err := range s.parser.RTCPPackets(data) {
		if err != nil {
			return fmt.Errorf("rtcp: %w", err)
		}
		slog.Debug("RTCP", "packet", pkt)

		h := pkt.Header()
		if h.PayloadType() == rtp.RTCPTypeGoodbye {
			if st, ok := s.tracker.Stream(h.SSRC()); ok {
				slog.Info("Stream ended", streamAttrs(st)...)
				s.tracker.Forget(h.SSRC())
			}
		}
	}
	return nil
}

func (s *Inspector) logStats() {
	st := s.Stats()
	slog.Info("Inspector stats",
		"datagrams", st.Datagrams,
		"rtp", st.RTP,
		"rtcp", st.RTCP,
		"unknown", st.Unknown,
		"invalid", st.Invalid,
	)
	for _, stream := range s.tracker.Snapshot() {
		slog.Info("Stream", streamAttrs(stream)...)
	}
}

func streamAttrs(st StreamStats) []any {
	return []any{
		"ssrc", st.SSRC,
		"received", st.Received,
		"lost", st.Lost,
		"late", st.Late,
		"duplicate", st.Duplicate,
		"highest", st.Highest,
	}
}
