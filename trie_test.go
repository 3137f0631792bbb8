package triedb

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0x0A, 0x0B}, encodePath([]byte{0xAB}))
	assert.Equal(t, []byte{0x0F, 0x00, 0x00, 0x01}, encodePath([]byte{0xF0, 0x01}))
	assert.Empty(t, encodePath(nil))
}

func TestTrieSetGetSingleNode(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, 64)

	err := db.Update(func(tx *Tx) error {
		for i := 0; i < 10; i++ {
			if err := tx.Set([]byte{byte(i)}, []byte{byte(i * 2)}); err != nil {
				return err
			}
		}
		for i := 0; i < 10; i++ {
			v, found, err := tx.TryGet([]byte{byte(i)})
			require.NoError(t, err)
			require.True(t, found, "key %d", i)
			assert.Equal(t, []byte{byte(i * 2)}, v)
		}
		_, found, err := tx.TryGet([]byte{0x7F})
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	})
	require.NoError(t, err)
}

func TestTrieOverwrite(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, 64)

	err := db.Update(func(tx *Tx) error {
		require.NoError(t, tx.Set([]byte("key"), []byte("old")))
		require.NoError(t, tx.Set([]byte("key"), []byte("new-and-longer")))
		v, found, err := tx.TryGet([]byte("key"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("new-and-longer"), v)
		return nil
	})
	require.NoError(t, err)
}

// Enough keys to force nodes to overflow and push entries down into
// per-nibble children, across several levels.
func TestTrieSplitPreservesKeys(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, 4096)

	const n = 500
	value := func(i int) []byte { return []byte(fmt.Sprintf("value-%04d-%s", i, string(make([]byte, 64)))) }

	err := db.Update(func(tx *Tx) error {
		for i := 0; i < n; i++ {
			if err := tx.Set([]byte(fmt.Sprintf("key-%04d", i)), value(i)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		v, found, err := db.Get([]byte(fmt.Sprintf("key-%04d", i)))
		require.NoError(t, err)
		require.True(t, found, "key %d lost after splits", i)
		assert.Equal(t, value(i), v)
	}
}

// Keys that are strict prefixes of each other exercise the empty-path slot:
// the shorter key's path is fully consumed at an interior node.
func TestTriePrefixKeys(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, 1024)

	keys := [][]byte{
		[]byte{0x01},
		[]byte{0x01, 0x02},
		[]byte{0x01, 0x02, 0x03},
		[]byte{0x01, 0x02, 0x03, 0x04},
	}

	err := db.Update(func(tx *Tx) error {
		// Large values force every insert down the same nibble spine.
		for i, k := range keys {
			if err := tx.Set(k, append(make([]byte, 2000), byte(i))); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	for i, k := range keys {
		v, found, err := db.Get(k)
		require.NoError(t, err)
		require.True(t, found, "prefix key %d", i)
		assert.Equal(t, append(make([]byte, 2000), byte(i)), v)
	}
}

// Mutating a second transaction must copy-on-write interior nodes rather than
// touch pages the previous root still references.
func TestTrieCopyOnWriteAcrossCommits(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, 4096)

	const n = 200
	require.NoError(t, db.Update(func(tx *Tx) error {
		for i := 0; i < n; i++ {
			if err := tx.Set([]byte(fmt.Sprintf("k%03d", i)), []byte("before")); err != nil {
				return err
			}
		}
		return nil
	}))

	prior := db.Snapshot()

	require.NoError(t, db.Update(func(tx *Tx) error {
		for i := 0; i < n; i += 2 {
			if err := tx.Set([]byte(fmt.Sprintf("k%03d", i)), []byte("after")); err != nil {
				return err
			}
		}
		return nil
	}))

	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))

		v, found, err := prior.TryGet(key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("before"), v, "old root must observe unchanged values")

		v, found, err = db.Get(key)
		require.NoError(t, err)
		require.True(t, found)
		if i%2 == 0 {
			assert.Equal(t, []byte("after"), v)
		} else {
			assert.Equal(t, []byte("before"), v)
		}
	}
}

// Every page reachable from the committed root carries the TxID of the
// transaction that wrote it, never a stale or future one.
func TestCommittedGraphStamps(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, 4096)

	for round := 1; round <= 3; round++ {
		require.NoError(t, db.Update(func(tx *Tx) error {
			for i := 0; i < 100; i++ {
				if err := tx.Set([]byte(fmt.Sprintf("r%dk%03d", round, i)), []byte("v")); err != nil {
					return err
				}
			}
			return nil
		}))
	}

	meta := db.CurrentMeta()
	var walk func(addr PageID) error
	walk = func(addr PageID) error {
		p, err := db.GetAt(addr)
		if err != nil {
			return err
		}
		assert.LessOrEqual(t, p.TxID(), meta.TxID)
		n := node{p}
		for nib := byte(0); nib < trieFanout; nib++ {
			if c := n.child(nib); c != 0 {
				if err := walk(c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	require.NoError(t, walk(meta.Root))
}
