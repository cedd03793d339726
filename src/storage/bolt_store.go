package storage

import (
	"bytes"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var dataBkt = []byte("neonode")

// Read transactions do not block writers as long as the database fits in the
// initial mapping.
const boltInitialMmapSize = 1 << 27

// BoltStore is a Store kept in a single BoltDB file.
type BoltStore struct {
	fn string
	db *bolt.DB
}

// NewBoltStore opens or creates the database file fn. Bolt fsyncs every
// commit unless o.NoSync is set.
func NewBoltStore(fn string, o Options) (*BoltStore, error) {
	db, err := bolt.Open(fn, 0600, &bolt.Options{
		Timeout:         time.Second,
		NoSync:          o.NoSync,
		InitialMmapSize: boltInitialMmapSize,
	})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database at %s: %w", fn, err)
	}
	s := &BoltStore{
		fn: fn,
		db: db,
	}
	err = s.init()
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) init() error {
	tx, err := s.db.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.CreateBucketIfNotExists(dataBkt); err != nil {
		return err
	}

	return tx.Commit()
}

// Get ...
func (s *BoltStore) Get(key []byte) ([]byte, error) {
	var v []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		v, err = boltGet(tx, key)
		return err
	})
	return v, err
}

// Put ...
func (s *BoltStore) Put(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(dataBkt).Put(key, value)
	})
}

// Delete ...
func (s *BoltStore) Delete(key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(dataBkt).Delete(key)
	})
}

// Seek ...
func (s *BoltStore) Seek(prefix []byte, opts IterOptions, f SeekFunc) error {
	return s.db.View(func(tx *bolt.Tx) error {
		boltSeek(tx, prefix, opts, f)
		return nil
	})
}

// NewBatch returns a batch applied in one read-write transaction.
func (s *BoltStore) NewBatch() Batch {
	return newMemBatch(func(ops []op) error {
		return s.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(dataBkt)
			for _, o := range ops {
				var err error
				if o.delete {
					err = b.Delete(o.key)
				} else {
					err = b.Put(o.key, o.value)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// Snapshot returns a view backed by a read-only transaction. A commit that
// grows the database past the initial mapping waits for open snapshots.
func (s *BoltStore) Snapshot() (Snapshot, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, err
	}
	return &boltSnapshot{tx: tx}, nil
}

// Close ...
func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltSnapshot struct {
	tx *bolt.Tx
}

func (s *boltSnapshot) Get(key []byte) ([]byte, error) {
	return boltGet(s.tx, key)
}

func (s *boltSnapshot) Seek(prefix []byte, opts IterOptions, f SeekFunc) error {
	boltSeek(s.tx, prefix, opts, f)
	return nil
}

func (s *boltSnapshot) Release() {
	s.tx.Rollback()
}

func boltGet(tx *bolt.Tx, key []byte) ([]byte, error) {
	v := tx.Bucket(dataBkt).Get(key)
	if v == nil {
		return nil, ErrNotFound
	}
	return copyBytes(v), nil
}

func boltSeek(tx *bolt.Tx, prefix []byte, opts IterOptions, f SeekFunc) {
	c := tx.Bucket(dataBkt).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var kc, vc []byte
		if !opts.ValuesOnly {
			kc = copyBytes(k)
		}
		if !opts.KeysOnly {
			vc = copyBytes(v)
		}
		if !f(kc, vc) {
			return
		}
	}
}
