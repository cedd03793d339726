package storage

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when a key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
	// ErrBatchDone is returned when a batch is used after Commit or Discard.
	ErrBatchDone = errors.New("batch already committed or discarded")
)

// IterOptions selects what Seek hands to its callback. By default both keys
// and values are read.
type IterOptions struct {
	KeysOnly   bool
	ValuesOnly bool
}

// SeekFunc receives one key-value pair and returns false to stop iteration.
type SeekFunc func(key, value []byte) bool

// Reader is the read side shared by stores and snapshots.
type Reader interface {
	// Get returns the value of key or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// Seek calls f for every key starting with prefix, in key order, until f
	// returns false.
	Seek(prefix []byte, opts IterOptions, f SeekFunc) error
}

// Store is a key-value store.
type Store interface {
	Reader

	Put(key, value []byte) error
	Delete(key []byte) error

	// NewBatch returns an empty batch. Nothing it holds is visible until
	// Commit succeeds, and then all of it is.
	NewBatch() Batch

	// Snapshot returns a read-only view of the store as it is now. Later
	// writes are not visible through it. It must be released.
	Snapshot() (Snapshot, error)

	Close() error
}

// Batch collects writes applied atomically by Commit. Discarding a batch, or
// never committing it, leaves the store untouched.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Len() int
	Commit() error
	Discard()
}

// Snapshot is a point-in-time view of a store.
type Snapshot interface {
	Reader
	Release()
}

// Kind names a storage engine.
type Kind string

// Engines.
const (
	BadgerKind  Kind = "badger"
	LevelDBKind Kind = "leveldb"
	BoltKind    Kind = "bolt"
	MemoryKind  Kind = "memory"
)

// Options tune an engine. The zero value commits durably: a successful
// Commit has reached stable storage.
type Options struct {
	// NoSync lets Commit return before the write is flushed to disk. A crash
	// may then lose committed batches.
	NoSync bool
}

// Open opens the engine kind at path. The path is ignored for the memory
// engine.
func Open(kind Kind, path string, opts Options, logger *logrus.Entry) (Store, error) {
	switch kind {
	case BadgerKind:
		return NewBadgerStore(path, opts, logger)
	case LevelDBKind:
		return NewLevelDBStore(path, opts)
	case BoltKind:
		return NewBoltStore(path, opts)
	case MemoryKind:
		return NewMemoryStore()
	}
	return nil, fmt.Errorf("unknown storage engine %q", kind)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
