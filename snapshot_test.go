package triedb

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotEmptyStore(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, 16)

	s := db.Snapshot()
	assert.Equal(t, uint64(0), s.TxID())
	_, found, err := s.TryGet([]byte("missing"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSnapshotPinnedAcrossCommit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, 64)

	require.NoError(t, db.Update(func(tx *Tx) error { return tx.Set([]byte("k"), []byte("v1")) }))
	s := db.Snapshot()
	require.NoError(t, db.Update(func(tx *Tx) error { return tx.Set([]byte("k"), []byte("v2")) }))

	v, found, err := s.TryGet([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1"), v)

	v, found, err = db.Snapshot().TryGet([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v2"), v)
}

// Cached values are keyed by snapshot TxID, so repeated reads hit the cache
// and never bleed across snapshots.
func TestSnapshotValueCache(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, 64)
	require.NotNil(t, db.cache)

	require.NoError(t, db.Update(func(tx *Tx) error { return tx.Set([]byte("k"), []byte("v1")) }))

	s1 := db.Snapshot()
	for i := 0; i < 3; i++ {
		v, found, err := s1.TryGet([]byte("k"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("v1"), v)
	}
	_, hit := db.cache.Get(s1.cacheKey([]byte("k")))
	assert.True(t, hit, "value cached after first resolve")

	require.NoError(t, db.Update(func(tx *Tx) error { return tx.Set([]byte("k"), []byte("v2")) }))

	v, found, err := db.Snapshot().TryGet([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v2"), v, "new snapshot must not see the old cached value")
}

// Snapshot readers never block each other; the shared value cache must hold
// up under concurrent Get/Add. Run with -race.
func TestSnapshotConcurrentReaders(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, 256)
	require.NotNil(t, db.cache)

	require.NoError(t, db.Update(func(tx *Tx) error {
		for i := 0; i < 50; i++ {
			if err := tx.Set([]byte{byte(i), 0x01}, []byte{byte(i)}); err != nil {
				return err
			}
		}
		return nil
	}))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := db.Snapshot()
			for i := 0; i < 50; i++ {
				v, found, err := s.TryGet([]byte{byte(i), 0x01})
				assert.NoError(t, err)
				assert.True(t, found)
				assert.Equal(t, []byte{byte(i)}, v)
			}
		}()
	}
	wg.Wait()
}

func TestSnapshotWithCacheDisabled(t *testing.T) {
	t.Parallel()

	db, err := Open("", WithInMemory(), WithStoreSize(64*PageSize), WithValueCacheEntries(0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.Nil(t, db.cache)

	require.NoError(t, db.Update(func(tx *Tx) error { return tx.Set([]byte("k"), []byte("v")) }))
	v, found, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v"), v)
}
