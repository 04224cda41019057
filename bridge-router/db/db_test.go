package db

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
	"github.com/mantlenetworkio/ethbridge/op-service/testlog"
)

func newTestDB(t *testing.T) *DB {
	d, err := OpenInMemory(testlog.Logger(t, log.LevelInfo))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, d.Close())
	})
	return d
}

func TestTxCommitAndDiscard(t *testing.T) {
	d := newTestDB(t)

	tx, err := d.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Set([]byte("a"), []byte("1")))
	v, ok, err := tx.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok, "reads observe own writes")
	require.Equal(t, []byte("1"), v)
	tx.Discard()

	require.NoError(t, d.View(func(r Reader) error {
		_, ok, err := r.Get([]byte("a"))
		require.False(t, ok, "discarded writes are not visible")
		return err
	}))

	require.NoError(t, d.Update(func(kv KV) error {
		return kv.Set([]byte("a"), []byte("2"))
	}))
	require.NoError(t, d.View(func(r Reader) error {
		v, ok, err := r.Get([]byte("a"))
		require.True(t, ok)
		require.Equal(t, []byte("2"), v)
		return err
	}))

	failure := errors.New("boom")
	err = d.Update(func(kv KV) error {
		require.NoError(t, kv.Set([]byte("b"), []byte("3")))
		return failure
	})
	require.ErrorIs(t, err, failure)
	require.NoError(t, d.View(func(r Reader) error {
		_, ok, err := r.Get([]byte("b"))
		require.False(t, ok, "failed update is rolled back")
		return err
	}))
}

func TestIterate(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, d.Update(func(kv KV) error {
		for _, n := range []uint64{3, 1, 2} {
			if err := kv.Set(Key(PrefixQueue, []byte{0xff}, U64(n)), U64(n*10)); err != nil {
				return err
			}
		}
		// neighbouring key spaces must not leak into the iteration
		if err := kv.Set(Key(PrefixQueue, []byte{0xfe}), []byte("x")); err != nil {
			return err
		}
		return kv.Set(Key(PrefixProcessed), []byte("y"))
	}))
	var seen []uint64
	require.NoError(t, d.View(func(r Reader) error {
		return r.Iterate(Key(PrefixQueue, []byte{0xff}), func(key, value []byte) error {
			n, err := GetU64(constReader(value), nil)
			seen = append(seen, n)
			return err
		})
	}))
	require.Equal(t, []uint64{10, 20, 30}, seen)
}

func TestPrefixEnd(t *testing.T) {
	require.Equal(t, []byte{0x01, 0x03}, prefixEnd([]byte{0x01, 0x02}))
	require.Equal(t, []byte{0x02}, prefixEnd([]byte{0x01, 0xff}))
	require.Nil(t, prefixEnd([]byte{0xff, 0xff}))
}

func TestCorruptValue(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, d.Update(func(kv KV) error {
		return kv.Set([]byte("n"), []byte{1, 2})
	}))
	require.NoError(t, d.View(func(r Reader) error {
		_, err := GetU64(r, []byte("n"))
		require.ErrorIs(t, err, types.ErrRegistry)
		var corrupt *CorruptValueError
		require.ErrorAs(t, err, &corrupt)
		require.Equal(t, 2, corrupt.Len)
		return nil
	}))
}

func TestClosed(t *testing.T) {
	d, err := OpenInMemory(testlog.Logger(t, log.LevelInfo))
	require.NoError(t, err)
	require.NoError(t, d.Close())
	_, err = d.Begin()
	require.ErrorIs(t, err, ErrClosed)
	require.NoError(t, d.Close())
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	logger := testlog.Logger(t, log.LevelInfo)
	d, err := Open(logger, dir)
	require.NoError(t, err)
	require.NoError(t, d.Update(func(kv KV) error {
		return SetU64(kv, []byte("k"), 42)
	}))
	require.NoError(t, d.Close())

	d, err = Open(logger, dir)
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.View(func(r Reader) error {
		v, err := GetU64(r, []byte("k"))
		require.Equal(t, uint64(42), v)
		return err
	}))
}

// constReader returns the same value for every key.
type constReader []byte

func (c constReader) Get(key []byte) ([]byte, bool, error) {
	return c, true, nil
}

func (c constReader) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	return fn(prefix, c)
}
