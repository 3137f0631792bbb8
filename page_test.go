package triedb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageHeaderStamp(t *testing.T) {
	t.Parallel()

	p := &Page{}
	p.SetTxID(0xDEADBEEF12345678)
	assert.Equal(t, uint64(0xDEADBEEF12345678), p.TxID())

	p.Clear()
	assert.Equal(t, uint64(0), p.TxID())
}

func TestPageCopyFrom(t *testing.T) {
	t.Parallel()

	src := &Page{}
	src.SetTxID(3)
	copy(src.Payload(), []byte("payload bytes"))

	dst := &Page{}
	dst.CopyFrom(src)
	assert.Equal(t, src.Data, dst.Data)

	// The copy is independent of the source.
	src.Payload()[0] = 'X'
	assert.NotEqual(t, src.Data, dst.Data)
}

func TestPageViewsAliasRegion(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, 16)

	p1, err := db.GetAt(5)
	require.NoError(t, err)
	p2, err := db.GetAt(5)
	require.NoError(t, err)

	p1.Payload()[0] = 0x42
	assert.Equal(t, byte(0x42), p2.Payload()[0],
		"GetAt returns views over the same mapped bytes")
}
