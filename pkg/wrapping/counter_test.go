package wrapping

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkDelta16(t *testing.T, next, current uint16, delta, rdelta int16) {
	t.Helper()
	n, c := New16(next), New16(current)

	assert.Equal(t, delta, n.Sub(c), "next-current")
	assert.Equal(t, rdelta, c.Sub(n), "current-next")
	assert.Equal(t, c, n.Add(rdelta))
	assert.Equal(t, n, c.Add(delta))
	assert.Zero(t, n.Sub(n))
	assert.Zero(t, c.Sub(c))
}

func checkDelta32(t *testing.T, next, current uint32, delta, rdelta int32) {
	t.Helper()
	n, c := New32(next), New32(current)

	assert.Equal(t, delta, n.Sub(c), "next-current")
	assert.Equal(t, rdelta, c.Sub(n), "current-next")
	assert.Equal(t, c, n.Add(rdelta))
	assert.Equal(t, n, c.Add(delta))
	assert.Zero(t, n.Sub(n))
	assert.Zero(t, c.Sub(c))
}

func TestUint16Delta(t *testing.T) {
	const (
		umax  = math.MaxUint16
		imax  = math.MaxInt16
		imin  = math.MinInt16
		uimax = uint16(imax)
	)

	checkDelta16(t, 10, 9, 1, -1)
	checkDelta16(t, 1, 0, 1, -1)
	checkDelta16(t, 0, umax, 1, -1)
	checkDelta16(t, umax, umax-uimax+1, imax-1, -(imax - 1))
	checkDelta16(t, umax, umax-uimax, imax, -imax)
	checkDelta16(t, umax, umax-uimax-1, imin, imin)
	checkDelta16(t, umax, umax-uimax-2, -imax, imax)
	checkDelta16(t, umax, umax-uimax-3, -(imax - 1), imax-1)
}

func TestUint32Delta(t *testing.T) {
	const (
		umax  = math.MaxUint32
		imax  = math.MaxInt32
		imin  = math.MinInt32
		uimax = uint32(imax)
	)

	checkDelta32(t, 10, 9, 1, -1)
	checkDelta32(t, 1, 0, 1, -1)
	checkDelta32(t, 0, umax, 1, -1)
	checkDelta32(t, umax, umax-uimax+1, imax-1, -(imax - 1))
	checkDelta32(t, umax, umax-uimax, imax, -imax)
	checkDelta32(t, umax, umax-uimax-1, imin, imin)
	checkDelta32(t, umax, umax-uimax-2, -imax, imax)
	checkDelta32(t, umax, umax-uimax-3, -(imax - 1), imax-1)
}

func TestHalfModulusIsMostNegative(t *testing.T) {
	assert.Equal(t, int16(math.MinInt16), New16(32768).Sub(New16(0)))
	assert.Equal(t, int16(math.MinInt16), New16(0).Sub(New16(32768)))
	assert.Equal(t, int32(math.MinInt32), New32(1<<31).Sub(New32(0)))
	assert.Equal(t, int32(math.MinInt32), New32(5).Sub(New32(5+1<<31)))
}

func TestUint16Algebra(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20000; i++ {
		a, b := New16(uint16(r.Uint32())), New16(uint16(r.Uint32()))
		d := a.Sub(b)
		require.Equal(t, a, b.Add(d), "a=%v b=%v", a, b)
		require.Equal(t, -d, b.Sub(a), "a=%v b=%v", a, b)
		require.Zero(t, a.Sub(a))
	}
}

func TestUint32Algebra(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 20000; i++ {
		a, b := New32(r.Uint32()), New32(r.Uint32())
		d := a.Sub(b)
		require.Equal(t, a, b.Add(d), "a=%v b=%v", a, b)
		require.Equal(t, -d, b.Sub(a), "a=%v b=%v", a, b)
	}
}

func TestOrderingAcrossWrap(t *testing.T) {
	assert.True(t, New16(65535).Less(New16(0)))
	assert.True(t, New16(0).Greater(New16(65535)))
	assert.Equal(t, -1, New16(65530).Compare(New16(3)))
	assert.Equal(t, 1, New16(3).Compare(New16(65530)))
	assert.Equal(t, 0, New16(7).Compare(New16(7)))
	assert.True(t, New32(math.MaxUint32).Less(New32(100)))
}

func TestNextAndPrecedes(t *testing.T) {
	assert.Equal(t, New16(0), New16(65535).Next())
	assert.True(t, New16(65535).Precedes(New16(0)))
	assert.False(t, New16(1).Precedes(New16(1)))
	assert.Equal(t, New32(0), New32(math.MaxUint32).Next())
	assert.Equal(t, New16(4), New16(65534).AddUnsigned(6))
}

func TestRange(t *testing.T) {
	got := slices.Collect(Range(New16(65533), New16(2)))
	want := []Uint16{New16(65533), New16(65534), New16(65535), New16(0), New16(1)}
	assert.Equal(t, want, got)

	// restartable
	assert.Equal(t, want, slices.Collect(Range(New16(65533), New16(2))))

	assert.Empty(t, slices.Collect(Range(New16(5), New16(5))))
	assert.Empty(t, slices.Collect(Range(New16(6), New16(5))))

	n := 0
	for range Range(New32(10), New32(60)) {
		n++
	}
	assert.Equal(t, 50, n)
}

func TestRangeStopsEarly(t *testing.T) {
	var got []uint16
	for c := range Range(New16(0), New16(100)) {
		if c.Value() == 3 {
			break
		}
		got = append(got, c.Value())
	}
	assert.Equal(t, []uint16{0, 1, 2}, got)
}

func TestGenericConstructor(t *testing.T) {
	c := Of[uint16, int16](42)
	assert.Equal(t, New16(42), c)
	assert.Equal(t, "42", c.String())
}
