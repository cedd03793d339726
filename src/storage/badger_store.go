package storage

import (
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger"
	badger_options "github.com/dgraph-io/badger/options"
	"github.com/sirupsen/logrus"
)

// BadgerStore is a Store backed by a Badger database.
type BadgerStore struct {
	db         *badger.DB
	path       string
	syncWrites bool
	closed     int32
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path. Unless o.NoSync is set every transaction commit is synced.
func NewBadgerStore(path string, o Options, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(!o.NoSync).
		WithTruncate(true).
		WithTableLoadingMode(badger_options.FileIO).
		WithValueLogLoadingMode(badger_options.FileIO)

	if logger != nil {
		sub := logger.WithFields(logrus.Fields{"ns": "badger"})
		opts = opts.WithLogger(sub)
	} else {
		opts = opts.WithLogger(nil)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database at %s: %w", path, err)
	}

	return &BadgerStore{db: handle, path: path, syncWrites: !o.NoSync}, nil
}

// StorePath returns the full path of the underlying Badger database directory.
func (s *BadgerStore) StorePath() string {
	return s.path
}

func (s *BadgerStore) isClosed() bool {
	return atomic.LoadInt32(&s.closed) == 1
}

// Get ...
func (s *BadgerStore) Get(key []byte) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		data, err = badgerGet(txn, key)
		return err
	})
	return data, err
}

// Put ...
func (s *BadgerStore) Put(key, value []byte) error {
	b := s.NewBatch()
	b.Put(key, value)
	return b.Commit()
}

// Delete ...
func (s *BadgerStore) Delete(key []byte) error {
	b := s.NewBatch()
	b.Delete(key)
	return b.Commit()
}

// Seek ...
func (s *BadgerStore) Seek(prefix []byte, opts IterOptions, f SeekFunc) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.db.View(func(txn *badger.Txn) error {
		return badgerSeek(txn, prefix, opts, f)
	})
}

// NewBatch returns a batch applied in one read-write transaction.
func (s *BadgerStore) NewBatch() Batch {
	return newMemBatch(s.apply)
}

func (s *BadgerStore) apply(ops []op) error {
	if s.isClosed() {
		return ErrClosed
	}
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	for _, o := range ops {
		var err error
		if o.delete {
			err = tx.Delete(o.key)
		} else {
			err = tx.Set(o.key, o.value)
		}
		if err != nil {
			return fmt.Errorf("badger batch: %w", err)
		}
	}
	return tx.Commit()
}

// Snapshot returns a view backed by a read-only transaction.
func (s *BadgerStore) Snapshot() (Snapshot, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	return &badgerSnapshot{txn: s.db.NewTransaction(false)}, nil
}

// Close closes the underlying Badger database.
func (s *BadgerStore) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	return s.db.Close()
}

type badgerSnapshot struct {
	txn *badger.Txn
}

func (s *badgerSnapshot) Get(key []byte) ([]byte, error) {
	return badgerGet(s.txn, key)
}

func (s *badgerSnapshot) Seek(prefix []byte, opts IterOptions, f SeekFunc) error {
	return badgerSeek(s.txn, prefix, opts, f)
}

func (s *badgerSnapshot) Release() {
	s.txn.Discard()
}

func badgerGet(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, mapError(err)
	}
	return item.ValueCopy(nil)
}

func badgerSeek(txn *badger.Txn, prefix []byte, opts IterOptions, f SeekFunc) error {
	iopts := badger.DefaultIteratorOptions
	iopts.PrefetchValues = !opts.KeysOnly

	it := txn.NewIterator(iopts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()

		var k, v []byte
		if !opts.ValuesOnly {
			k = item.KeyCopy(nil)
		}
		if !opts.KeysOnly {
			var err error
			if v, err = item.ValueCopy(nil); err != nil {
				return err
			}
		}
		if !f(k, v) {
			break
		}
	}
	return nil
}

func isDBKeyNotFound(err error) bool {
	return err != nil && err.Error() == badger.ErrKeyNotFound.Error()
}

func mapError(err error) error {
	if isDBKeyNotFound(err) {
		return ErrNotFound
	}
	return err
}
