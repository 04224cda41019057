package db

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// Prefix separates the key spaces of the state. Values are stable once released.
type Prefix byte

const (
	PrefixAgent Prefix = iota + 1
	PrefixChannel
	PrefixAsset
	PrefixBalance
	PrefixSupply
	PrefixNonce
	PrefixQueue
	PrefixProcessed
	PrefixParam
	PrefixEvent
)

// Key joins a prefix and key parts.
func Key(p Prefix, parts ...[]byte) []byte {
	n := 1
	for _, part := range parts {
		n += len(part)
	}
	out := make([]byte, 0, n)
	out = append(out, byte(p))
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}

// U64 is the big-endian encoding of v, so that numeric keys sort in order.
func U64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

// BigEndianU64 decodes a numeric key part written by U64.
func BigEndianU64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// GetU64 reads a big-endian counter, defaulting to zero.
func GetU64(r Reader, key []byte) (uint64, error) {
	v, ok, err := r.Get(key)
	if err != nil || !ok {
		return 0, err
	}
	if len(v) != 8 {
		return 0, &CorruptValueError{Key: key, Len: len(v)}
	}
	return binary.BigEndian.Uint64(v), nil
}

func SetU64(kv KV, key []byte, v uint64) error {
	return kv.Set(key, U64(v))
}

// CorruptValueError is returned when a stored value does not have the expected shape.
type CorruptValueError struct {
	Key []byte
	Len int
}

func (e *CorruptValueError) Error() string {
	return fmt.Sprintf("corrupt value of %d bytes at key %x", e.Len, e.Key)
}

func (e *CorruptValueError) Unwrap() error {
	return types.ErrRegistry
}

// GetRLP decodes the RLP value at key into out, and reports whether the key exists.
func GetRLP(r Reader, key []byte, out any) (bool, error) {
	v, ok, err := r.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(v, out); err != nil {
		return false, fmt.Errorf("%w: failed to decode value at key %x: %w", types.ErrRegistry, key, err)
	}
	return true, nil
}

func SetRLP(kv KV, key []byte, val any) error {
	data, err := rlp.EncodeToBytes(val)
	if err != nil {
		return fmt.Errorf("failed to encode value for key %x: %w", key, err)
	}
	return kv.Set(key, data)
}
