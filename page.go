package triedb

import "encoding/binary"

const (
	// PageSize is the fixed size of every page in the store.
	PageSize = 4096

	// HistoryDepth is the number of retained metadata snapshots. Pages
	// 0..HistoryDepth-1 are permanently reserved for metadata. Must be >= 2 so
	// a writer never overwrites the slot a reader is using as current.
	HistoryDepth = 2

	// PageHeaderSize is the per-page header: the TxID that last wrote the page.
	PageHeaderSize = 8

	// PayloadSize is the usable area of a page after the header.
	PayloadSize = PageSize - PageHeaderSize

	// MagicNumber for file format identification ("trdb" in hex).
	MagicNumber uint32 = 0x74726462

	FormatVersion uint16 = 1
)

// PageID is a 0-based index into the mapped region, not a memory pointer.
// Byte offset is PageID * PageSize from the region base.
type PageID uint64

// Page is a raw fixed-size page view. Instances returned by DB.GetAt alias
// the mapped region directly; writes land in the mapping and become durable
// on the next Flush.
//
// Layout: [TxID: 8][payload: PageSize-8]. Payload interpretation (metadata
// vs trie node) is up to the component holding the page.
type Page struct {
	Data [PageSize]byte
}

// TxID returns the id of the transaction that last wrote this page.
func (p *Page) TxID() uint64 {
	return binary.LittleEndian.Uint64(p.Data[:PageHeaderSize])
}

// SetTxID stamps the page header with the writing transaction's id.
func (p *Page) SetTxID(id uint64) {
	binary.LittleEndian.PutUint64(p.Data[:PageHeaderSize], id)
}

// Payload returns the page content after the header.
func (p *Page) Payload() []byte {
	return p.Data[PageHeaderSize:]
}

// Clear zeroes the entire page, header included.
func (p *Page) Clear() {
	p.Data = [PageSize]byte{}
}

// CopyFrom copies the full contents of src into p, header included.
func (p *Page) CopyFrom(src *Page) {
	p.Data = src.Data
}
