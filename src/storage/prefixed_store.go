package storage

// PrefixedStore is a Store restricted to the keys starting with a prefix. Keys
// are passed and returned without the prefix.
type PrefixedStore struct {
	store  Store
	prefix []byte
}

// NewPrefixedStore returns the sub-keyspace prefix of s.
func NewPrefixedStore(s Store, prefix []byte) *PrefixedStore {
	return &PrefixedStore{store: s, prefix: copyBytes(prefix)}
}

func (p *PrefixedStore) key(k []byte) []byte {
	res := make([]byte, 0, len(p.prefix)+len(k))
	res = append(res, p.prefix...)
	return append(res, k...)
}

// Get ...
func (p *PrefixedStore) Get(key []byte) ([]byte, error) {
	return p.store.Get(p.key(key))
}

// Put ...
func (p *PrefixedStore) Put(key, value []byte) error {
	return p.store.Put(p.key(key), value)
}

// Delete ...
func (p *PrefixedStore) Delete(key []byte) error {
	return p.store.Delete(p.key(key))
}

// Seek iterates the keys of the sub-keyspace starting with prefix.
func (p *PrefixedStore) Seek(prefix []byte, opts IterOptions, f SeekFunc) error {
	return seekStripped(p.store, len(p.prefix), p.key(prefix), opts, f)
}

// NewBatch ...
func (p *PrefixedStore) NewBatch() Batch {
	return &prefixedBatch{Batch: p.store.NewBatch(), p: p}
}

// Snapshot ...
func (p *PrefixedStore) Snapshot() (Snapshot, error) {
	snap, err := p.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return &prefixedSnapshot{snap: snap, p: p}, nil
}

// Close does not close the parent store.
func (p *PrefixedStore) Close() error {
	return nil
}

type prefixedBatch struct {
	Batch
	p *PrefixedStore
}

func (b *prefixedBatch) Put(key, value []byte) {
	b.Batch.Put(b.p.key(key), value)
}

func (b *prefixedBatch) Delete(key []byte) {
	b.Batch.Delete(b.p.key(key))
}

type prefixedSnapshot struct {
	snap Snapshot
	p    *PrefixedStore
}

func (s *prefixedSnapshot) Get(key []byte) ([]byte, error) {
	return s.snap.Get(s.p.key(key))
}

func (s *prefixedSnapshot) Seek(prefix []byte, opts IterOptions, f SeekFunc) error {
	return seekStripped(s.snap, len(s.p.prefix), s.p.key(prefix), opts, f)
}

func (s *prefixedSnapshot) Release() {
	s.snap.Release()
}

func seekStripped(r Reader, n int, prefix []byte, opts IterOptions, f SeekFunc) error {
	return r.Seek(prefix, opts, func(k, v []byte) bool {
		if k != nil {
			k = k[n:]
		}
		return f(k, v)
	})
}
