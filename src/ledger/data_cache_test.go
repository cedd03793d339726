package ledger

import (
	"testing"

	"github.com/mosaicnetworks/neonode/src/core/state"
	"github.com/mosaicnetworks/neonode/src/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataCacheLayers(t *testing.T) {
	store, err := storage.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	root := NewDataCache[state.StorageItem](STStorage, store)
	root.Add([]byte("a"), &state.StorageItem{Value: []byte{1}})

	child := root.NewChild()
	v, err := child.GetAndChange([]byte("a"), nil)
	require.NoError(t, err)
	v.Value = []byte{2}
	child.Add([]byte("b"), &state.StorageItem{Value: []byte{3}})
	child.Delete([]byte("a"))

	// the parent is untouched until Commit
	got, err := root.TryGet([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got.Value)
	got, err = root.TryGet([]byte("b"))
	require.NoError(t, err)
	assert.Nil(t, got)

	child.Commit()
	got, err = root.TryGet([]byte("a"))
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = root.TryGet([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, got.Value)

	batch := store.NewBatch()
	require.NoError(t, root.WriteTo(batch))
	require.NoError(t, batch.Commit())

	_, err = store.Get(makeKey(STStorage, []byte("a")))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	data, err := store.Get(makeKey(STStorage, []byte("b")))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestDataCacheDiscardedChild(t *testing.T) {
	store, err := storage.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	root := NewDataCache[state.StorageItem](STStorage, store)
	child := root.NewChild()
	child.Add([]byte("x"), &state.StorageItem{Value: []byte{1}})

	batch := store.NewBatch()
	require.NoError(t, root.WriteTo(batch))
	assert.Equal(t, 0, batch.Len())
	batch.Discard()
}

func TestDataCacheFind(t *testing.T) {
	store, err := storage.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	seed := NewDataCache[state.StorageItem](STStorage, store)
	seed.Add([]byte("p1"), &state.StorageItem{Value: []byte{1}})
	seed.Add([]byte("p2"), &state.StorageItem{Value: []byte{2}})
	seed.Add([]byte("q1"), &state.StorageItem{Value: []byte{3}})
	batch := store.NewBatch()
	require.NoError(t, seed.WriteTo(batch))
	require.NoError(t, batch.Commit())

	root := NewDataCache[state.StorageItem](STStorage, store)
	child := root.NewChild()
	child.Delete([]byte("p1"))
	child.Add([]byte("p3"), &state.StorageItem{Value: []byte{4}})

	found, err := child.Find([]byte("p"))
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Contains(t, found, "p2")
	assert.Contains(t, found, "p3")
}
