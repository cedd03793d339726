package ledger

import (
	"errors"
	"sort"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/storage"
)

type serializable[T any] interface {
	*T
	codec.Serializable
}

type trackState uint8

const (
	trackNone trackState = iota
	trackChanged
	trackDeleted
)

type trackable[T any] struct {
	value *T
	state trackState
}

// DataCache is a write-back cache over one ledger table. A root cache reads
// through to the store and writes its changes into a batch. A child cache
// reads through to its parent and folds its changes into it on Commit, so a
// child can be thrown away without touching anything below it.
type DataCache[T any, PT serializable[T]] struct {
	prefix  KeyPrefix
	store   storage.Reader
	parent  *DataCache[T, PT]
	entries map[string]*trackable[T]
}

// NewDataCache returns a root cache over table prefix of r.
func NewDataCache[T any, PT serializable[T]](prefix KeyPrefix, r storage.Reader) *DataCache[T, PT] {
	return &DataCache[T, PT]{
		prefix:  prefix,
		store:   r,
		entries: make(map[string]*trackable[T]),
	}
}

// NewChild returns an empty cache layered over c.
func (c *DataCache[T, PT]) NewChild() *DataCache[T, PT] {
	return &DataCache[T, PT]{
		prefix:  c.prefix,
		parent:  c,
		entries: make(map[string]*trackable[T]),
	}
}

// lookup returns the current value of key without tracking it. The result
// belongs to whichever layer holds it.
func (c *DataCache[T, PT]) lookup(key string) (*T, error) {
	if e, ok := c.entries[key]; ok {
		if e.state == trackDeleted {
			return nil, nil
		}
		return e.value, nil
	}
	if c.parent != nil {
		return c.parent.lookup(key)
	}

	data, err := c.store.Get(makeKey(c.prefix, []byte(key)))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v := new(T)
	if err := codec.FromBytes(data, PT(v)); err != nil {
		return nil, err
	}
	c.entries[key] = &trackable[T]{value: v}
	return v, nil
}

// TryGet returns the value of key or nil. The value must not be modified.
func (c *DataCache[T, PT]) TryGet(key []byte) (*T, error) {
	return c.lookup(string(key))
}

// GetAndChange returns a value of key that may be modified and will be
// written back. When key is absent, factory builds the value; a nil factory
// returns nil.
func (c *DataCache[T, PT]) GetAndChange(key []byte, factory func() *T) (*T, error) {
	k := string(key)
	if e, ok := c.entries[k]; ok {
		if e.state != trackDeleted {
			e.state = trackChanged
			return e.value, nil
		}
		return c.create(k, factory), nil
	}

	if c.parent == nil {
		found, err := c.lookup(k)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return c.create(k, factory), nil
		}
		c.entries[k].state = trackChanged
		return found, nil
	}

	found, err := c.parent.lookup(k)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return c.create(k, factory), nil
	}
	// the parent keeps its own copy until Commit
	v, err := clone[T, PT](found)
	if err != nil {
		return nil, err
	}
	c.entries[k] = &trackable[T]{value: v, state: trackChanged}
	return v, nil
}

func (c *DataCache[T, PT]) create(k string, factory func() *T) *T {
	if factory == nil {
		return nil
	}
	v := factory()
	c.entries[k] = &trackable[T]{value: v, state: trackChanged}
	return v
}

// Add sets key to v.
func (c *DataCache[T, PT]) Add(key []byte, v *T) {
	c.entries[string(key)] = &trackable[T]{value: v, state: trackChanged}
}

// Delete removes key.
func (c *DataCache[T, PT]) Delete(key []byte) {
	c.entries[string(key)] = &trackable[T]{state: trackDeleted}
}

// DeleteWhere deletes every changed entry for which pred returns true.
func (c *DataCache[T, PT]) DeleteWhere(pred func(*T) bool) {
	for _, e := range c.entries {
		if e.state == trackChanged && pred(e.value) {
			e.state = trackDeleted
			e.value = nil
		}
	}
}

// Find returns the keys, without table prefix, and values of every live entry
// whose key starts with prefix.
func (c *DataCache[T, PT]) Find(prefix []byte) (map[string]*T, error) {
	var res map[string]*T
	if c.parent != nil {
		var err error
		if res, err = c.parent.Find(prefix); err != nil {
			return nil, err
		}
	} else {
		res = make(map[string]*T)
		var decodeErr error
		err := c.store.Seek(makeKey(c.prefix, prefix), storage.IterOptions{}, func(k, v []byte) bool {
			val := new(T)
			if decodeErr = codec.FromBytes(v, PT(val)); decodeErr != nil {
				return false
			}
			res[string(k[1:])] = val
			return true
		})
		if err != nil {
			return nil, err
		}
		if decodeErr != nil {
			return nil, decodeErr
		}
	}

	for k, e := range c.entries {
		if len(k) < len(prefix) || k[:len(prefix)] != string(prefix) {
			continue
		}
		if e.state == trackDeleted {
			delete(res, k)
		} else {
			res[k] = e.value
		}
	}
	return res, nil
}

// Commit folds the changes of a child cache into its parent and empties the
// child.
func (c *DataCache[T, PT]) Commit() {
	if c.parent == nil {
		return
	}
	for k, e := range c.entries {
		switch e.state {
		case trackChanged:
			c.parent.entries[k] = &trackable[T]{value: e.value, state: trackChanged}
		case trackDeleted:
			c.parent.entries[k] = &trackable[T]{state: trackDeleted}
		}
	}
	c.entries = make(map[string]*trackable[T])
}

// WriteTo writes the changes of a root cache into b, in key order.
func (c *DataCache[T, PT]) WriteTo(b storage.Batch) error {
	keys := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		if e.state != trackNone {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		e := c.entries[k]
		key := makeKey(c.prefix, []byte(k))
		if e.state == trackDeleted {
			b.Delete(key)
			continue
		}
		data, err := codec.ToBytes(PT(e.value))
		if err != nil {
			return err
		}
		b.Put(key, data)
	}
	return nil
}

func clone[T any, PT serializable[T]](v *T) (*T, error) {
	data, err := codec.ToBytes(PT(v))
	if err != nil {
		return nil, err
	}
	res := new(T)
	if err := codec.FromBytes(data, PT(res)); err != nil {
		return nil, err
	}
	return res, nil
}
