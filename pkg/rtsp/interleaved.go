// Package rtsp reads and writes RTP and RTCP carried on an RTSP control
// connection in interleaved binary frames (RFC 2326 section 10.12).
package rtsp

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	HeaderContentLength = "Content-Length"
	HeaderCSeq          = "CSeq"
	RTSPVersion         = "RTSP/1.0"
)

const (
	interleavedMagic      = '$'
	interleavedHeaderSize = 4
	maxFrameSize          = 0xffff

	// MaxBodySize bounds the body of a skipped RTSP message. SDP and
	// parameter bodies stay far below it.
	MaxBodySize = 1 << 20
)

var ErrFrameTooLarge = errors.New("rtsp: interleaved frame exceeds 65535 bytes")

// Frame is one interleaved binary frame. By convention RTP uses the even
// channel of a pair and RTCP the odd one.
type Frame struct {
	Channel uint8
	Data    []byte
}

func (f Frame) IsRTCP() bool {
	return f.Channel%2 == 1
}

// Message is an RTSP request or response found between frames.
type Message struct {
	StartLine string
	Headers   map[string]string
	Body      []byte
	CSeq      int
}

// Reader splits an RTSP connection capture into interleaved frames.
type Reader struct {
	reader *bufio.Reader

	// OnMessage, if set, receives the RTSP messages skipped by ReadFrame.
	OnMessage func(*Message)
}

func NewReader(r io.Reader) *Reader {
	return &Reader{
		reader: bufio.NewReader(r),
	}
}

// ReadFrame returns the next interleaved frame. It returns io.EOF when the
// input ends between frames and io.ErrUnexpectedEOF inside one.
func (r *Reader) ReadFrame() (Frame, error) {
	for {
		b, err := r.reader.Peek(1)
		if err != nil {
			return Frame{}, err
		}

		if b[0] != interleavedMagic {
			msg, err := r.readMessage()
			if err != nil {
				return Frame{}, fmt.Errorf("failed to read rtsp message: %w", err)
			}
			if msg != nil && r.OnMessage != nil {
				r.OnMessage(msg)
			}
			continue
		}

		// '$' + channel(1) + length(2)
		var hdr [interleavedHeaderSize]byte
		if _, err := io.ReadFull(r.reader, hdr[:]); err != nil {
			return Frame{}, noEOF(err)
		}
		data := make([]byte, binary.BigEndian.Uint16(hdr[2:4]))
		if _, err := io.ReadFull(r.reader, data); err != nil {
			return Frame{}, noEOF(err)
		}
		return Frame{Channel: hdr[1], Data: data}, nil
	}
}

func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// readMessage consumes one RTSP message. A lone empty line yields nil.
func (r *Reader) readMessage() (*Message, error) {
	line, err := r.readLine()
	if err != nil {
		return nil, noEOF(err)
	}
	if line == "" {
		return nil, nil
	}
	if !strings.HasPrefix(line, "RTSP/") && !strings.HasSuffix(line, " "+RTSPVersion) {
		return nil, fmt.Errorf("invalid start line: %q", line)
	}

	msg := &Message{
		StartLine: line,
		Headers:   make(map[string]string),
	}
	if err := r.readHeaders(msg.Headers); err != nil {
		return nil, fmt.Errorf("failed to read headers: %w", noEOF(err))
	}

	if cseqStr := msg.Headers[HeaderCSeq]; cseqStr != "" {
		if cseq, err := strconv.Atoi(cseqStr); err == nil {
			msg.CSeq = cseq
		}
	}

	if contentLengthStr := msg.Headers[HeaderContentLength]; contentLengthStr != "" {
		contentLength, err := strconv.Atoi(contentLengthStr)
		if err != nil || contentLength < 0 {
			return nil, fmt.Errorf("invalid content length: %s", contentLengthStr)
		}
		if contentLength > MaxBodySize {
			return nil, fmt.Errorf("content length %d exceeds %d", contentLength, MaxBodySize)
		}
		msg.Body = make([]byte, contentLength)
		if _, err := io.ReadFull(r.reader, msg.Body); err != nil {
			return nil, fmt.Errorf("failed to read body: %w", noEOF(err))
		}
	}
	return msg, nil
}

// readLine reads a line from the reader (removes \r\n)
func (r *Reader) readLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readHeaders reads headers until an empty line
func (r *Reader) readHeaders(headers map[string]string) error {
	for {
		line, err := r.readLine()
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}

		colonIndex := strings.Index(line, ":")
		if colonIndex == -1 {
			continue // Skip invalid header lines
		}
		headers[strings.TrimSpace(line[:colonIndex])] = strings.TrimSpace(line[colonIndex+1:])
	}
}

// WriteFrame writes data as one interleaved frame on channel.
func WriteFrame(w io.Writer, channel uint8, data []byte) error {
	if len(data) > maxFrameSize {
		return ErrFrameTooLarge
	}
	buf := make([]byte, interleavedHeaderSize+len(data))
	buf[0] = interleavedMagic
	buf[1] = channel
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(data)))
	copy(buf[interleavedHeaderSize:], data)

	_, err := w.Write(buf)
	return err
}
