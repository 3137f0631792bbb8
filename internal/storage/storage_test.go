//go:build linux || darwin

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRegionPersists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "region.db")

	r, err := OpenFile(path, 8192)
	require.NoError(t, err)
	copy(r.Bytes()[4096:], []byte("durable"))
	require.NoError(t, r.Flush())
	require.NoError(t, r.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, raw, 8192)
	assert.Equal(t, []byte("durable"), raw[4096:4103])
}

func TestFileRegionKeepsLargerExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "region.db")

	r, err := OpenFile(path, 4*4096)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	// Reopening with a smaller size must still map every existing page.
	r, err = OpenFile(path, 4096)
	require.NoError(t, err)
	defer r.Close()
	assert.Len(t, r.Bytes(), 4*4096)
}

func TestAnonymousRegion(t *testing.T) {
	t.Parallel()

	r, err := OpenAnonymous(4096)
	require.NoError(t, err)

	for _, b := range r.Bytes() {
		require.Zero(t, b)
	}
	r.Bytes()[0] = 0xFF
	assert.NoError(t, r.Flush())
	assert.NoError(t, r.Close())
}
