package math32

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}
	require.InDelta(t, 32.0, Dot(a, b), 1e-6)
}

func TestSquaredL2(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{4, 6}
	require.InDelta(t, 25.0, SquaredL2(a, b), 1e-6)
}

func TestNormalizeL2InPlace(t *testing.T) {
	v := []float32{3, 4}
	require.True(t, NormalizeL2InPlace(v))
	require.InDelta(t, 0.6, v[0], 1e-6)
	require.InDelta(t, 0.8, v[1], 1e-6)

	norm := math.Sqrt(float64(Dot(v, v)))
	require.InDelta(t, 1.0, norm, 1e-6)
}

func TestNormalizeL2InPlace_ZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	require.False(t, NormalizeL2InPlace(v))

	require.False(t, NormalizeL2InPlace(nil))
}

func TestNormalizeL2Copy(t *testing.T) {
	src := []float32{0, 5}
	dst, ok := NormalizeL2Copy(src)
	require.True(t, ok)
	require.Equal(t, []float32{0, 5}, src) // src untouched
	require.InDelta(t, 1.0, dst[1], 1e-6)
}
