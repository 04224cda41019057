// Package db persists router state in pebble. Every router input is applied through one Tx,
// an indexed batch that is either committed as a whole or discarded.
package db

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/ethereum/go-ethereum/log"
)

var ErrClosed = errors.New("db closed")

// Reader is read access to the state.
type Reader interface {
	// Get returns a copy of the value at key, and false if there is none.
	Get(key []byte) ([]byte, bool, error)
	// Iterate calls fn for every key with the given prefix, in key order, until fn returns an error.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
}

// KV is read-write access to the state.
type KV interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
}

type DB struct {
	log log.Logger
	db  *pebble.DB
}

// Open opens or creates the state database in the given directory.
func Open(logger log.Logger, dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create datadir %q: %w", dataDir, err)
	}
	path := filepath.Join(dataDir, "router")
	pdb, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %q: %w", path, err)
	}
	logger.Info("opened state db", "path", path)
	return &DB{log: logger, db: pdb}, nil
}

// OpenInMemory opens a state database that lives only in memory.
func OpenInMemory(logger log.Logger) (*DB, error) {
	pdb, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory pebble db: %w", err)
	}
	return &DB{log: logger, db: pdb}, nil
}

func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// Begin starts a transaction. Reads observe the writes of the transaction itself.
func (d *DB) Begin() (*Tx, error) {
	if d.db == nil {
		return nil, ErrClosed
	}
	return &Tx{b: d.db.NewIndexedBatch()}, nil
}

// View runs fn against a transaction that is always discarded.
func (d *DB) View(fn func(r Reader) error) error {
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Discard()
	return fn(tx)
}

// Update runs fn in a transaction, and commits it if fn succeeds.
func (d *DB) Update(fn func(kv KV) error) error {
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Discard()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Tx is an atomic set of reads and writes.
type Tx struct {
	b    *pebble.Batch
	done bool
}

var _ KV = (*Tx)(nil)

func (t *Tx) Get(key []byte) ([]byte, bool, error) {
	v, closer, err := t.b.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to read %x: %w", key, err)
	}
	defer closer.Close()
	return bytes.Clone(v), true, nil
}

func (t *Tx) Set(key, value []byte) error {
	return t.b.Set(key, value, nil)
}

func (t *Tx) Delete(key []byte) error {
	return t.b.Delete(key, nil)
}

func (t *Tx) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	it, err := t.b.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to open iterator: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		if err := fn(bytes.Clone(it.Key()), bytes.Clone(it.Value())); err != nil {
			return err
		}
	}
	return it.Error()
}

// Commit writes the transaction durably. A committed transaction cannot be used again.
func (t *Tx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	defer t.b.Close()
	return t.b.Commit(pebble.Sync)
}

// Discard drops all writes of the transaction. It is a no-op after Commit.
func (t *Tx) Discard() {
	if t.done {
		return
	}
	t.done = true
	_ = t.b.Close()
}

// prefixEnd returns the smallest key that is larger than every key with the given prefix,
// or nil if there is none.
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
