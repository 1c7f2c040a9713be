// Package wrapping implements fixed-width counters that keep a meaningful order
// across rollover, such as RTP sequence numbers and timestamps.
package wrapping

import (
	"fmt"
	"iter"
)

// Unsigned is the storage type of a counter.
type Unsigned interface {
	~uint16 | ~uint32
}

// Signed is the distance type of a counter. It must have the same width as
// the matching Unsigned type.
type Signed interface {
	~int16 | ~int32
}

// Counter is a modular counter of width U. Distances between two counters are
// expressed in S and ordering is derived from the sign of Sub.
type Counter[U Unsigned, S Signed] struct {
	v U
}

// Uint16 is a 16-bit counter (RTP sequence number).
type Uint16 = Counter[uint16, int16]

// Uint32 is a 32-bit counter (RTP timestamp).
type Uint32 = Counter[uint32, int32]

// New16 returns a 16-bit counter holding v.
func New16(v uint16) Uint16 {
	return Uint16{v: v}
}

// New32 returns a 32-bit counter holding v.
func New32(v uint32) Uint32 {
	return Uint32{v: v}
}

// Of returns a counter holding v.
func Of[U Unsigned, S Signed](v U) Counter[U, S] {
	return Counter[U, S]{v: v}
}

// Value returns the raw counter value.
func (c Counter[U, S]) Value() U {
	return c.v
}

// Next returns c+1 with wraparound.
func (c Counter[U, S]) Next() Counter[U, S] {
	return Counter[U, S]{v: c.v + 1}
}

// Precedes reports whether other immediately follows c.
func (c Counter[U, S]) Precedes(other Counter[U, S]) bool {
	return c.Next() == other
}

// Sub returns the shortest circular distance from other to c. When both
// directions are equally long (half the modulus) the result is the most
// negative value of S.
func (c Counter[U, S]) Sub(other Counter[U, S]) S {
	d1 := c.v - other.v
	d2 := other.v - c.v
	if d1 < d2 {
		return S(d1)
	}
	// at d2 == half the modulus S(d2) is already MinInt and negating keeps it there
	return -S(d2)
}

// Add returns c moved by delta with wraparound. For any a, b:
// b.Add(a.Sub(b)) == a.
func (c Counter[U, S]) Add(delta S) Counter[U, S] {
	return Counter[U, S]{v: c.v + U(delta)}
}

// AddUnsigned returns c moved forward by n with wraparound.
func (c Counter[U, S]) AddUnsigned(n U) Counter[U, S] {
	return Counter[U, S]{v: c.v + n}
}

// Compare returns -1, 0 or +1 depending on whether c is before, equal to or
// after other under circular ordering.
func (c Counter[U, S]) Compare(other Counter[U, S]) int {
	switch d := c.Sub(other); {
	case d < 0:
		return -1
	case d > 0:
		return 1
	default:
		return 0
	}
}

// Less reports whether c is before other.
func (c Counter[U, S]) Less(other Counter[U, S]) bool {
	return c.Sub(other) < 0
}

// Greater reports whether c is after other.
func (c Counter[U, S]) Greater(other Counter[U, S]) bool {
	return c.Sub(other) > 0
}

func (c Counter[U, S]) String() string {
	return fmt.Sprint(c.v)
}

// Range yields counters from start up to but not including end, stepping with
// Next. It yields nothing when start is not before end. The sequence can be
// ranged over any number of times.
func Range[U Unsigned, S Signed](start, end Counter[U, S]) iter.Seq[Counter[U, S]] {
	return func(yield func(Counter[U, S]) bool) {
		for c := start; c.Less(end); c = c.Next() {
			if !yield(c) {
				return
			}
		}
	}
}
