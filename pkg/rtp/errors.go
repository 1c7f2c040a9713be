package rtp

import (
	"errors"
	"fmt"
)

var (
	ErrNotEnoughBuffer      = errors.New("rtp: not enough buffer")
	ErrUnknownFirst         = errors.New("rtp: first byte outside rtp/rtcp range")
	ErrUnknownVersion       = errors.New("rtp: unknown version")
	ErrUnknownPayloadType   = errors.New("rtp: unknown rtcp payload type")
	ErrUnknownExtFormat     = errors.New("rtp: unknown extension format")
	ErrInvalidPaddingLength = errors.New("rtp: invalid padding length")
)

// NotEnoughBufferError reports truncation at a named parse stage.
type NotEnoughBufferError struct {
	Expect int
	Actual int
	Origin string
}

func (e *NotEnoughBufferError) Error() string {
	return fmt.Sprintf("rtp: not enough buffer for %s: expect %d, actual %d", e.Origin, e.Expect, e.Actual)
}

func (e *NotEnoughBufferError) Unwrap() error {
	return ErrNotEnoughBuffer
}

func notEnough(expect, actual int, origin string) error {
	return &NotEnoughBufferError{Expect: expect, Actual: actual, Origin: origin}
}

// ValueError carries the offending header value of a rejected packet.
// Err is one of the sentinel errors of this package.
type ValueError struct {
	Err   error
	Value uint16
}

func (e *ValueError) Error() string {
	if errors.Is(e.Err, ErrUnknownExtFormat) {
		return fmt.Sprintf("%v: 0x%04X", e.Err, e.Value)
	}
	return fmt.Sprintf("%v: %d", e.Err, e.Value)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

func valueErr(err error, v uint16) error {
	return &ValueError{Err: err, Value: v}
}
