// Package notifications keeps a side index of the notifications emitted by
// contracts, queryable by contract and by block.
//
// The index shares the chain database under its own key prefix. It is fed
// from the event bus, so it only ever sees notifications of committed blocks.
package notifications

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/events"
	"github.com/mosaicnetworks/neonode/src/storage"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

const (
	byContractPrefix byte = 'c'
	byBlockPrefix    byte = 'b'
	heightKey        byte = 'h'
)

// Record is one indexed notification.
type Record struct {
	BlockIndex uint32
	TxHash     common.Uint256
	Contract   common.Uint160
	Sequence   uint32
	Payload    []byte
}

// Marshal - msgpack encoding of Record
func (r *Record) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	mh := new(codec.MsgpackHandle)
	enc := codec.NewEncoder(b, mh)

	if err := enc.Encode(r); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (r *Record) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	mh := new(codec.MsgpackHandle)
	dec := codec.NewDecoder(b, mh)

	return dec.Decode(r)
}

// Index stores notifications as blocks complete.
type Index struct {
	store  storage.Store
	logger *logrus.Entry

	sync.Mutex
	pending []Record
	height  uint32
	indexed bool

	unsubscribe []func()
}

// NewIndex returns an index over the sub-keyspace prefix of store.
func NewIndex(store storage.Store, prefix []byte, logger *logrus.Entry) (*Index, error) {
	idx := &Index{
		store:  storage.NewPrefixedStore(store, prefix),
		logger: logger,
	}

	data, err := idx.store.Get([]byte{heightKey})
	switch {
	case err == nil && len(data) == 4:
		idx.height = binary.BigEndian.Uint32(data)
		idx.indexed = true
	case err == nil, errors.Is(err, storage.ErrNotFound):
	default:
		return nil, err
	}
	return idx, nil
}

// Subscribe feeds the index from bus.
func (idx *Index) Subscribe(bus *events.Bus) {
	idx.unsubscribe = append(idx.unsubscribe,
		bus.Subscribe(events.ContractNotify, idx.onNotify),
		bus.Subscribe(events.PersistCompleted, idx.onPersist),
	)
}

// Close stops listening to the bus.
func (idx *Index) Close() {
	for _, f := range idx.unsubscribe {
		f()
	}
	idx.unsubscribe = nil
}

// Height returns the last block the index has seen, and false if it has seen
// none.
func (idx *Index) Height() (uint32, bool) {
	idx.Lock()
	defer idx.Unlock()
	return idx.height, idx.indexed
}

func (idx *Index) onNotify(e events.Event) {
	ev := e.(events.ContractNotifyEvent)

	idx.Lock()
	defer idx.Unlock()
	idx.pending = append(idx.pending, Record{
		BlockIndex: ev.BlockIndex,
		TxHash:     ev.TxHash,
		Contract:   ev.Notify.ScriptHash,
		Sequence:   uint32(len(idx.pending)),
		Payload:    ev.Notify.Payload,
	})
}

func (idx *Index) onPersist(e events.Event) {
	ev := e.(events.PersistCompletedEvent)

	idx.Lock()
	records := idx.pending
	idx.pending = nil
	idx.Unlock()

	if err := idx.write(ev.Block.Index, records); err != nil {
		idx.logger.WithError(err).WithField("height", ev.Block.Index).Error("Indexing notifications")
		return
	}

	idx.Lock()
	idx.height = ev.Block.Index
	idx.indexed = true
	idx.Unlock()
}

func (idx *Index) write(height uint32, records []Record) error {
	batch := idx.store.NewBatch()
	defer batch.Discard()

	for i := range records {
		r := &records[i]
		if r.BlockIndex != height {
			idx.logger.WithFields(logrus.Fields{
				"height": height,
				"record": r.BlockIndex,
			}).Warn("Notification of another block")
			continue
		}
		data, err := r.Marshal()
		if err != nil {
			return err
		}
		batch.Put(contractKey(r.Contract, r.BlockIndex, r.Sequence), data)
		batch.Put(blockKey(r.BlockIndex, r.Sequence), data)
	}

	var h [4]byte
	binary.BigEndian.PutUint32(h[:], height)
	batch.Put([]byte{heightKey}, h[:])
	return batch.Commit()
}

// Heights are big endian so keys sort by block.
func contractKey(c common.Uint160, height uint32, seq uint32) []byte {
	k := make([]byte, 0, 1+common.Uint160Size+8)
	k = append(k, byContractPrefix)
	k = append(k, c[:]...)
	k = binary.BigEndian.AppendUint32(k, height)
	return binary.BigEndian.AppendUint32(k, seq)
}

func blockKey(height uint32, seq uint32) []byte {
	k := make([]byte, 0, 9)
	k = append(k, byBlockPrefix)
	k = binary.BigEndian.AppendUint32(k, height)
	return binary.BigEndian.AppendUint32(k, seq)
}

// ByContract returns the notifications of contract c, oldest first.
func (idx *Index) ByContract(c common.Uint160) ([]Record, error) {
	prefix := append([]byte{byContractPrefix}, c[:]...)
	return idx.scan(prefix)
}

// ByBlock returns the notifications emitted in block height.
func (idx *Index) ByBlock(height uint32) ([]Record, error) {
	prefix := binary.BigEndian.AppendUint32([]byte{byBlockPrefix}, height)
	return idx.scan(prefix)
}

func (idx *Index) scan(prefix []byte) ([]Record, error) {
	var (
		res       []Record
		decodeErr error
	)
	err := idx.store.Seek(prefix, storage.IterOptions{ValuesOnly: true}, func(_, v []byte) bool {
		var r Record
		if decodeErr = r.Unmarshal(v); decodeErr != nil {
			return false
		}
		res = append(res, r)
		return true
	})
	if err != nil {
		return nil, err
	}
	return res, decodeErr
}
