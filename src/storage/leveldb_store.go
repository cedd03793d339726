package storage

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBStore is a Store backed by goleveldb, on disk or in memory.
type LevelDBStore struct {
	db     *leveldb.DB
	path   string
	wo     *opt.WriteOptions
	closed int32
}

// NewLevelDBStore opens or creates a database in path. Writes are synced
// unless o.NoSync is set.
func NewLevelDBStore(path string, o Options) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb database at %s: %w", path, err)
	}
	return &LevelDBStore{
		db:   db,
		path: path,
		wo:   &opt.WriteOptions{Sync: !o.NoSync},
	}, nil
}

// NewMemoryStore returns an empty store that lives in memory only.
func NewMemoryStore() (*LevelDBStore, error) {
	db, err := leveldb.Open(lstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db, wo: &opt.WriteOptions{}}, nil
}

// Get ...
func (s *LevelDBStore) Get(key []byte) ([]byte, error) {
	if atomic.LoadInt32(&s.closed) == 1 {
		return nil, ErrClosed
	}
	return levelGet(s.db.Get(key, nil))
}

// Put ...
func (s *LevelDBStore) Put(key, value []byte) error {
	return s.db.Put(key, value, s.wo)
}

// Delete ...
func (s *LevelDBStore) Delete(key []byte) error {
	return s.db.Delete(key, s.wo)
}

// Seek ...
func (s *LevelDBStore) Seek(prefix []byte, opts IterOptions, f SeekFunc) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrClosed
	}
	return levelSeek(s.db.NewIterator(util.BytesPrefix(prefix), nil), opts, f)
}

// NewBatch returns a batch applied with one leveldb write.
func (s *LevelDBStore) NewBatch() Batch {
	return newMemBatch(func(ops []op) error {
		b := new(leveldb.Batch)
		for _, o := range ops {
			if o.delete {
				b.Delete(o.key)
			} else {
				b.Put(o.key, o.value)
			}
		}
		return s.db.Write(b, s.wo)
	})
}

// Snapshot ...
func (s *LevelDBStore) Snapshot() (Snapshot, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &levelSnapshot{snap: snap}, nil
}

// Close ...
func (s *LevelDBStore) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	return s.db.Close()
}

type levelSnapshot struct {
	snap *leveldb.Snapshot
}

func (s *levelSnapshot) Get(key []byte) ([]byte, error) {
	return levelGet(s.snap.Get(key, nil))
}

func (s *levelSnapshot) Seek(prefix []byte, opts IterOptions, f SeekFunc) error {
	return levelSeek(s.snap.NewIterator(util.BytesPrefix(prefix), nil), opts, f)
}

func (s *levelSnapshot) Release() {
	s.snap.Release()
}

func levelGet(v []byte, err error) ([]byte, error) {
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if errors.Is(err, leveldb.ErrClosed) {
		return nil, ErrClosed
	}
	return v, err
}

type levelIterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

func levelSeek(it levelIterator, opts IterOptions, f SeekFunc) error {
	defer it.Release()
	for it.Next() {
		var k, v []byte
		if !opts.ValuesOnly {
			k = copyBytes(it.Key())
		}
		if !opts.KeysOnly {
			v = copyBytes(it.Value())
		}
		if !f(k, v) {
			break
		}
	}
	return it.Error()
}
