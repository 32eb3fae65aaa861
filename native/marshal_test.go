package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCStringRoundTrip(t *testing.T) {
	p := CString("POINT(1 2)")
	require.NotNil(t, p)
	assert.Equal(t, "POINT(1 2)", GoString(p))

	assert.Equal(t, "", GoString(nil))
	assert.Equal(t, "", GoString(CString("")))

	// embedded NUL truncates like C would
	assert.Equal(t, "ab", GoString(CString("ab\x00cd")))
}

func TestSlicePtr(t *testing.T) {
	vals := []float64{1.5, 2.5, 3.5}
	p, n := SlicePtr(vals)
	require.NotNil(t, p)
	assert.Equal(t, int32(3), n)
	assert.Equal(t, 1.5, *p)

	p, n = SlicePtr([]float64(nil))
	assert.Nil(t, p)
	assert.Equal(t, int32(0), n)
}

func TestGoSliceCopies(t *testing.T) {
	src := []int32{10, 20, 30}
	p, n := SlicePtr(src)
	out := GoSlice(p, n)
	require.Equal(t, src, out)

	src[0] = 99 // out must be an independent copy
	assert.Equal(t, int32(10), out[0])

	assert.Nil(t, GoSlice[int32](nil, 3))
	assert.Nil(t, GoSlice(p, 0))
}

func TestHandleNil(t *testing.T) {
	assert.True(t, Handle(0).IsNil())
	assert.False(t, Handle(1).IsNil())
}
