package types

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBalanceArithmetic(t *testing.T) {
	t.Run("add", func(t *testing.T) {
		out, overflow := NewBalance(40).AddOverflow(NewBalance(2))
		require.False(t, overflow)
		require.Equal(t, NewBalance(42), out)
	})
	t.Run("add past ceiling", func(t *testing.T) {
		_, overflow := MaxBalance.AddOverflow(NewBalance(1))
		require.True(t, overflow)
		out, overflow := MaxBalance.AddOverflow(ZeroBalance)
		require.False(t, overflow)
		require.Equal(t, MaxBalance, out)
	})
	t.Run("sub", func(t *testing.T) {
		out, underflow := NewBalance(42).SubUnderflow(NewBalance(2))
		require.False(t, underflow)
		require.Equal(t, NewBalance(40), out)
		_, underflow = NewBalance(1).SubUnderflow(NewBalance(2))
		require.True(t, underflow)
		require.Equal(t, ZeroBalance, NewBalance(1).SaturatingSub(NewBalance(2)))
	})
	t.Run("mul", func(t *testing.T) {
		out, overflow := GWei(20).MulOverflow(185_000)
		require.False(t, overflow)
		require.Equal(t, MustBalance("3700000000000000"), out)
		_, overflow = MaxBalance.MulOverflow(2)
		require.True(t, overflow)
	})
	t.Run("receiver is not mutated", func(t *testing.T) {
		a := NewBalance(5)
		_, _ = a.AddOverflow(NewBalance(7))
		_, _ = a.SubUnderflow(NewBalance(3))
		require.Equal(t, NewBalance(5), a)
	})
}

func TestBalanceConversions(t *testing.T) {
	t.Run("little endian", func(t *testing.T) {
		b := MustBalance("0x102030405060708090a0b0c0d0e0f10")
		le := b.LE()
		require.Equal(t, byte(0x10), le[0])
		require.Equal(t, byte(0x01), le[15])
		require.Equal(t, b, BalanceFromLE(le))
		require.Equal(t, MaxBalance, BalanceFromLE(MaxBalance.LE()))
	})
	t.Run("big", func(t *testing.T) {
		v, err := BalanceFromBig(big.NewInt(1000))
		require.NoError(t, err)
		require.Equal(t, NewBalance(1000), v)

		_, err = BalanceFromBig(big.NewInt(-1))
		require.Error(t, err)

		tooLarge := new(big.Int).Lsh(big.NewInt(1), 128)
		_, err = BalanceFromBig(tooLarge)
		require.ErrorIs(t, err, ErrOverflow)
	})
	t.Run("text", func(t *testing.T) {
		text, err := MaxBalance.MarshalText()
		require.NoError(t, err)
		require.Equal(t, "340282366920938463463374607431768211455", string(text))

		var out Balance
		require.NoError(t, out.UnmarshalText(text))
		require.Equal(t, MaxBalance, out)

		err = out.UnmarshalText([]byte("340282366920938463463374607431768211456"))
		require.True(t, errors.Is(err, ErrOverflow))
	})
	t.Run("units", func(t *testing.T) {
		require.Equal(t, NewBalance(20_000_000_000), GWei(20))
		require.Equal(t, NewBalance(1_000_000_000_000_000), MilliEther(1))
		require.Equal(t, NewBalance(10_000_000_000), Units(1, 10))
	})
}

func TestFixedU128(t *testing.T) {
	rate := MustFixedFromRational(1, 75)
	require.Equal(t, MustBalance("13333333333333333"), rate.Inner())
	require.Equal(t, "0.013333333333333333", rate.String())

	native, err := rate.DivInt(MilliEther(1))
	require.NoError(t, err)
	require.Equal(t, MustBalance("75000000000000001"), native)

	one := FixedFromInt(1)
	require.Equal(t, "1.000000000000000000", one.String())
	out, err := one.MulInt(NewBalance(12345))
	require.NoError(t, err)
	require.Equal(t, NewBalance(12345), out)

	half := MustFixedFromRational(1, 2)
	out, err = half.MulInt(NewBalance(5))
	require.NoError(t, err)
	require.Equal(t, NewBalance(2), out, "rounds down")

	_, err = FixedFromRational(1, 0)
	require.Error(t, err)
	_, err = FixedU128{}.DivInt(NewBalance(1))
	require.Error(t, err)

	_, err = FixedFromInt(2).MulInt(MaxBalance)
	require.ErrorIs(t, err, ErrOverflow)
}
