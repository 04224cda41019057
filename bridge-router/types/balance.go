package types

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

const BalanceLen = 16

var (
	MaxBalance  = Balance(uint256.Int{0: ^uint64(0), 1: ^uint64(0), 2: 0, 3: 0})
	ZeroBalance = Balance{}
)

// Balance is an unsigned 128 bit amount, in the smallest unit of the asset it denominates.
// Like eth.ETH it is used by value: methods return new values and never mutate the receiver.
type Balance uint256.Int

func NewBalance(v uint64) (out Balance) {
	(*uint256.Int)(&out).SetUint64(v)
	return
}

// BalanceFromBig converts a big.Int, failing if it is negative or above the 128 bit ceiling.
func BalanceFromBig(v *big.Int) (out Balance, err error) {
	if v == nil || v.Sign() < 0 {
		return ZeroBalance, fmt.Errorf("invalid balance %v", v)
	}
	if overflow := (*uint256.Int)(&out).SetFromBig(v); overflow || out.Gt(MaxBalance) {
		return ZeroBalance, fmt.Errorf("%w: %s does not fit in 128 bits", ErrOverflow, v)
	}
	return out, nil
}

// MustBalance parses a decimal amount and panics on invalid input. Intended for constants and tests.
func MustBalance(dec string) Balance {
	var out Balance
	if err := out.UnmarshalText([]byte(dec)); err != nil {
		panic(err)
	}
	return out
}

// BalanceFromLE decodes a 16 byte little-endian unsigned integer.
func BalanceFromLE(b [BalanceLen]byte) (out Balance) {
	u := (*uint256.Int)(&out)
	u[0] = binary.LittleEndian.Uint64(b[0:8])
	u[1] = binary.LittleEndian.Uint64(b[8:16])
	return
}

// LE encodes the balance as a 16 byte little-endian unsigned integer.
func (b Balance) LE() (out [BalanceLen]byte) {
	u := (*uint256.Int)(&b)
	binary.LittleEndian.PutUint64(out[0:8], u[0])
	binary.LittleEndian.PutUint64(out[8:16], u[1])
	return
}

func (b Balance) String() string {
	return (*uint256.Int)(&b).Dec()
}

func (b Balance) Format(s fmt.State, ch rune) {
	(*uint256.Int)(&b).Format(s, ch)
}

func (b Balance) ToBig() *big.Int {
	return (*uint256.Int)(&b).ToBig()
}

// ToU256 returns a clone of the underlying integer.
func (b Balance) ToU256() *uint256.Int {
	return (*uint256.Int)(&b).Clone()
}

func (b Balance) Uint64() (uint64, bool) {
	u := (*uint256.Int)(&b)
	return u.Uint64(), u.IsUint64()
}

// AddOverflow returns b+v, and whether the sum exceeds the 128 bit ceiling.
func (b Balance) AddOverflow(v Balance) (out Balance, overflow bool) {
	(*uint256.Int)(&out).Add((*uint256.Int)(&b), (*uint256.Int)(&v))
	return out, out.Gt(MaxBalance)
}

// SubUnderflow returns b-v, and whether it underflowed.
func (b Balance) SubUnderflow(v Balance) (out Balance, underflow bool) {
	_, underflow = (*uint256.Int)(&out).SubOverflow((*uint256.Int)(&b), (*uint256.Int)(&v))
	return
}

// MulOverflow multiplies by a scalar, and returns whether the product exceeds the ceiling.
func (b Balance) MulOverflow(scalar uint64) (out Balance, overflow bool) {
	_, overflow = (*uint256.Int)(&out).MulOverflow((*uint256.Int)(&b), uint256.NewInt(scalar))
	return out, overflow || out.Gt(MaxBalance)
}

// SaturatingSub floors the result at zero.
func (b Balance) SaturatingSub(v Balance) Balance {
	out, underflow := b.SubUnderflow(v)
	if underflow {
		return ZeroBalance
	}
	return out
}

func (b Balance) Cmp(v Balance) int {
	return (*uint256.Int)(&b).Cmp((*uint256.Int)(&v))
}

func (b Balance) Lt(v Balance) bool {
	return (*uint256.Int)(&b).Lt((*uint256.Int)(&v))
}

func (b Balance) Gt(v Balance) bool {
	return (*uint256.Int)(&b).Gt((*uint256.Int)(&v))
}

func (b Balance) IsZero() bool {
	return (*uint256.Int)(&b).IsZero()
}

// MarshalText encodes as a decimal number.
func (b Balance) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText accepts decimal or 0x-prefixed hexadecimal, bounded to 128 bits.
func (b *Balance) UnmarshalText(data []byte) error {
	var v uint256.Int
	if err := v.UnmarshalText(data); err != nil {
		return err
	}
	if Balance(v).Gt(MaxBalance) {
		return fmt.Errorf("%w: %s does not fit in 128 bits", ErrOverflow, data)
	}
	*b = Balance(v)
	return nil
}

// Units scales a whole amount by 10^decimals.
func Units(amount uint64, decimals uint8) Balance {
	var x uint256.Int
	x.Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	x.Mul(&x, uint256.NewInt(amount))
	return Balance(x)
}

// GWei returns the given amount of gwei denominated in wei.
func GWei(v uint64) Balance {
	return Units(v, 9)
}

// MilliEther returns the given amount of milli-ether denominated in wei.
func MilliEther(v uint64) Balance {
	return Units(v, 15)
}
