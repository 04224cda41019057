package safemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeAdd(t *testing.T) {
	out, overflow := SafeAdd[uint64](math.MaxUint64-1, 1)
	require.False(t, overflow)
	require.Equal(t, uint64(math.MaxUint64), out)

	_, overflow = SafeAdd[uint64](math.MaxUint64, 1)
	require.True(t, overflow)

	_, overflow = SafeAdd[uint8](200, 100)
	require.True(t, overflow)
	require.Equal(t, uint8(math.MaxUint8), SaturatingAdd[uint8](200, 100))
	require.Equal(t, uint8(150), SaturatingAdd[uint8](100, 50))
}

func TestSafeSub(t *testing.T) {
	out, underflow := SafeSub[uint32](5, 5)
	require.False(t, underflow)
	require.Zero(t, out)

	_, underflow = SafeSub[uint32](4, 5)
	require.True(t, underflow)
	require.Zero(t, SaturatingSub[uint32](4, 5))
	require.Equal(t, uint32(1), SaturatingSub[uint32](5, 4))
}

func TestSafeMul(t *testing.T) {
	out, overflow := SafeMul[uint64](0, math.MaxUint64)
	require.False(t, overflow)
	require.Zero(t, out)

	out, overflow = SafeMul[uint64](1<<32, 1<<31)
	require.False(t, overflow)
	require.Equal(t, uint64(1<<63), out)

	_, overflow = SafeMul[uint64](1<<32, 1<<32)
	require.True(t, overflow)

	_, overflow = SafeMul[uint16](300, 300)
	require.True(t, overflow)
}
