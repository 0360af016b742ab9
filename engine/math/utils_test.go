package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.5, Clamp(0.5, 0.0, 1.0))
	assert.Equal(t, 0.0, Clamp(-2.0, 0.0, 1.0))
	assert.Equal(t, 1.0, Clamp(3.0, 0.0, 1.0))
	assert.Equal(t, 5, Clamp(4, 5, 10))
}

func TestPackSnorm1010102RoundTrip(t *testing.T) {
	cases := []struct {
		x, y, z float32
		w       uint32
	}{
		{0, 1, 0, 0},
		{1, 0, 0, 1},
		{-1, -1, -1, 3},
		{0.7071, -0.7071, 0, 2},
		{0.333, 0.333, 0.333, 0},
	}

	for _, c := range cases {
		x, y, z, w := UnpackSnorm1010102(PackSnorm1010102(c.x, c.y, c.z, c.w))
		assert.InDelta(t, c.x, x, 1.0/511.0)
		assert.InDelta(t, c.y, y, 1.0/511.0)
		assert.InDelta(t, c.z, z, 1.0/511.0)
		assert.Equal(t, c.w, w)
	}
}

func TestPackSnorm1010102ClampsInput(t *testing.T) {
	x, y, z, _ := UnpackSnorm1010102(PackSnorm1010102(5, -5, 0, 0))
	assert.Equal(t, float32(1), x)
	assert.Equal(t, float32(-1), y)
	assert.Equal(t, float32(0), z)
}
