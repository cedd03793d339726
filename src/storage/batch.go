package storage

type op struct {
	key    []byte
	value  []byte
	delete bool
}

// memBatch buffers operations in order and hands them to an engine specific
// apply function on Commit.
type memBatch struct {
	ops   []op
	apply func([]op) error
	done  bool
}

func newMemBatch(apply func([]op) error) *memBatch {
	return &memBatch{apply: apply}
}

func (b *memBatch) Put(key, value []byte) {
	b.ops = append(b.ops, op{key: copyBytes(key), value: copyBytes(value)})
}

func (b *memBatch) Delete(key []byte) {
	b.ops = append(b.ops, op{key: copyBytes(key), delete: true})
}

func (b *memBatch) Len() int {
	return len(b.ops)
}

func (b *memBatch) Commit() error {
	if b.done {
		return ErrBatchDone
	}
	b.done = true
	if len(b.ops) == 0 {
		return nil
	}
	err := b.apply(b.ops)
	b.ops = nil
	return err
}

func (b *memBatch) Discard() {
	b.done = true
	b.ops = nil
}
