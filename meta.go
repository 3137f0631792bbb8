package triedb

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Metadata page payload layout (offsets relative to the payload):
//
//	[Magic: 4][Version: 2][PageSize: 2][Root: 8][NextFreePage: 8][Checksum: 8]
//	[AbandonedCount: 2][Abandoned[0]: 8]...[Abandoned[N-1]: 8]
//
// The page header TxID stamps which transaction produced the snapshot.
// The checksum covers the header TxID and the whole payload except the
// checksum field itself, so a torn header write is detected on reopen.
const (
	metaMagicOff     = 0
	metaVersionOff   = 4
	metaPageSizeOff  = 6
	metaRootOff      = 8
	metaNextFreeOff  = 16
	metaChecksumOff  = 24
	metaCountOff     = 32
	metaAbandonedOff = 34

	// MetaAbandonedCapacity is the most page addresses one snapshot can record
	// as abandoned.
	MetaAbandonedCapacity = (PayloadSize - metaAbandonedOff) / 8
)

// Meta is the decoded form of a metadata page: the root page address, the
// next-never-allocated page counter, and the pages abandoned by the
// transaction that produced this snapshot.
type Meta struct {
	TxID         uint64
	Root         PageID
	NextFreePage PageID
	Abandoned    []PageID
}

// clone returns a copy sharing nothing with m. The abandoned list is not
// carried over: it belongs to the snapshot that produced it, and a new
// transaction starts with an empty one.
func (m *Meta) clone(txid uint64) *Meta {
	return &Meta{
		TxID:         txid,
		Root:         m.Root,
		NextFreePage: m.NextFreePage,
	}
}

// writePayload serializes everything except the header TxID and the checksum
// into p. The page is cleared first so the snapshot is byte-deterministic and
// the slot stays invalid (TxID 0, checksum 0) until seal runs.
func (m *Meta) writePayload(p *Page) error {
	if len(m.Abandoned) > MetaAbandonedCapacity {
		return ErrMetaOverflow
	}
	p.Clear()
	pay := p.Payload()
	binary.LittleEndian.PutUint32(pay[metaMagicOff:], MagicNumber)
	binary.LittleEndian.PutUint16(pay[metaVersionOff:], FormatVersion)
	binary.LittleEndian.PutUint16(pay[metaPageSizeOff:], PageSize)
	binary.LittleEndian.PutUint64(pay[metaRootOff:], uint64(m.Root))
	binary.LittleEndian.PutUint64(pay[metaNextFreeOff:], uint64(m.NextFreePage))
	binary.LittleEndian.PutUint16(pay[metaCountOff:], uint16(len(m.Abandoned)))
	for i, id := range m.Abandoned {
		binary.LittleEndian.PutUint64(pay[metaAbandonedOff+i*8:], uint64(id))
	}
	return nil
}

// seal stamps the header TxID and the checksum, making the snapshot the one
// RootInit will trust. Must only run after the payload bytes are durable.
func (m *Meta) seal(p *Page) {
	p.SetTxID(m.TxID)
	binary.LittleEndian.PutUint64(p.Payload()[metaChecksumOff:], metaChecksum(p))
}

// metaChecksum hashes the header TxID and the payload with the checksum field
// skipped.
func metaChecksum(p *Page) uint64 {
	d := xxhash.New()
	_, _ = d.Write(p.Data[:PageHeaderSize])
	pay := p.Payload()
	_, _ = d.Write(pay[:metaChecksumOff])
	_, _ = d.Write(pay[metaChecksumOff+8:])
	return d.Sum64()
}

// readMeta decodes and validates a metadata page.
func readMeta(p *Page) (*Meta, error) {
	pay := p.Payload()
	if binary.LittleEndian.Uint32(pay[metaMagicOff:]) != MagicNumber {
		return nil, ErrInvalidMagicNumber
	}
	if binary.LittleEndian.Uint16(pay[metaVersionOff:]) != FormatVersion {
		return nil, ErrInvalidVersion
	}
	if binary.LittleEndian.Uint16(pay[metaPageSizeOff:]) != PageSize {
		return nil, ErrInvalidPageSize
	}
	if binary.LittleEndian.Uint64(pay[metaChecksumOff:]) != metaChecksum(p) {
		return nil, ErrInvalidChecksum
	}
	m := &Meta{
		TxID:         p.TxID(),
		Root:         PageID(binary.LittleEndian.Uint64(pay[metaRootOff:])),
		NextFreePage: PageID(binary.LittleEndian.Uint64(pay[metaNextFreeOff:])),
	}
	count := int(binary.LittleEndian.Uint16(pay[metaCountOff:]))
	if count > MetaAbandonedCapacity {
		return nil, ErrCorruption
	}
	if count > 0 {
		m.Abandoned = make([]PageID, count)
		for i := range m.Abandoned {
			m.Abandoned[i] = PageID(binary.LittleEndian.Uint64(pay[metaAbandonedOff+i*8:]))
		}
	}
	return m, nil
}
