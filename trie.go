package triedb

import "encoding/binary"

// Trie-node pages. Keys are encoded as nibble paths; each level of the trie
// consumes one nibble. A node stores up to 16 child page addresses plus a
// packed area of (remaining-path, value) entries. An entry lives in a node
// only while no child exists for its first nibble; once a node overflows,
// entries are pushed down into per-nibble children and the invariant is
// restored. Lookups therefore check the local entries first and descend at
// most once per nibble.
//
// Node payload layout:
//
//	[children: 16 * 8][entryCount: 2][used: 2][entries...]
//
// Entry: [pathLen: 2][valueLen: 2][path...][value...]
const (
	trieFanout = 16

	nodeChildrenSize  = trieFanout * 8
	nodeEntryCountOff = nodeChildrenSize
	nodeUsedOff       = nodeEntryCountOff + 2
	nodeEntriesOff    = nodeUsedOff + 2
	nodeEntriesCap    = PayloadSize - nodeEntriesOff

	entryHeaderSize = 4

	// MaxKeySize is the maximum key length in bytes. A key encodes to twice
	// as many nibbles; the largest entry must fit an empty node.
	MaxKeySize = 256

	// MaxValueSize is the maximum value length in bytes.
	MaxValueSize = 2048
)

// encodePath expands a key into its page-internal path representation: one
// nibble per element, high nibble first.
func encodePath(key []byte) []byte {
	path := make([]byte, 0, len(key)*2)
	for _, b := range key {
		path = append(path, b>>4, b&0x0f)
	}
	return path
}

// node is a view over a trie page's payload.
type node struct {
	p *Page
}

func (n node) payload() []byte {
	return n.p.Payload()
}

func (n node) child(nib byte) PageID {
	return PageID(binary.LittleEndian.Uint64(n.payload()[int(nib)*8:]))
}

func (n node) setChild(nib byte, addr PageID) {
	binary.LittleEndian.PutUint64(n.payload()[int(nib)*8:], uint64(addr))
}

func (n node) count() int {
	return int(binary.LittleEndian.Uint16(n.payload()[nodeEntryCountOff:]))
}

func (n node) setCount(c int) {
	binary.LittleEndian.PutUint16(n.payload()[nodeEntryCountOff:], uint16(c))
}

func (n node) used() int {
	return int(binary.LittleEndian.Uint16(n.payload()[nodeUsedOff:]))
}

func (n node) setUsed(u int) {
	binary.LittleEndian.PutUint16(n.payload()[nodeUsedOff:], uint16(u))
}

func (n node) entries() []byte {
	return n.payload()[nodeEntriesOff : nodeEntriesOff+n.used()]
}

func (n node) fits(pathLen, valLen int) bool {
	return n.used()+entryHeaderSize+pathLen+valLen <= nodeEntriesCap
}

// find returns the value stored locally under the exact remaining path.
func (n node) find(path []byte) ([]byte, bool) {
	area := n.entries()
	off := 0
	for i := 0; i < n.count(); i++ {
		pl := int(binary.LittleEndian.Uint16(area[off:]))
		vl := int(binary.LittleEndian.Uint16(area[off+2:]))
		entryPath := area[off+entryHeaderSize : off+entryHeaderSize+pl]
		if len(entryPath) == len(path) && string(entryPath) == string(path) {
			return area[off+entryHeaderSize+pl : off+entryHeaderSize+pl+vl], true
		}
		off += entryHeaderSize + pl + vl
	}
	return nil, false
}

// remove deletes the local entry under path, compacting the area.
func (n node) remove(path []byte) bool {
	area := n.entries()
	off := 0
	for i := 0; i < n.count(); i++ {
		pl := int(binary.LittleEndian.Uint16(area[off:]))
		vl := int(binary.LittleEndian.Uint16(area[off+2:]))
		size := entryHeaderSize + pl + vl
		entryPath := area[off+entryHeaderSize : off+entryHeaderSize+pl]
		if len(entryPath) == len(path) && string(entryPath) == string(path) {
			copy(area[off:], area[off+size:])
			n.setCount(n.count() - 1)
			n.setUsed(n.used() - size)
			return true
		}
		off += size
	}
	return false
}

// insert appends an entry. Caller checks fits first.
func (n node) insert(path, value []byte) {
	off := nodeEntriesOff + n.used()
	pay := n.payload()
	binary.LittleEndian.PutUint16(pay[off:], uint16(len(path)))
	binary.LittleEndian.PutUint16(pay[off+2:], uint16(len(value)))
	copy(pay[off+entryHeaderSize:], path)
	copy(pay[off+entryHeaderSize+len(path):], value)
	n.setCount(n.count() + 1)
	n.setUsed(n.used() + entryHeaderSize + len(path) + len(value))
}

// trieGet walks the page graph from root, resolving child addresses through
// r. Read-only: works for transactions and published snapshots alike.
func trieGet(r PageReader, root *Page, path []byte) ([]byte, bool, error) {
	p := root
	for {
		n := node{p}
		if v, ok := n.find(path); ok {
			return v, true, nil
		}
		if len(path) == 0 {
			return nil, false, nil
		}
		addr := n.child(path[0])
		if addr == 0 {
			return nil, false, nil
		}
		var err error
		p, err = r.GetAt(addr)
		if err != nil {
			return nil, false, err
		}
		path = path[1:]
	}
}

// trieSet writes value under path, copy-on-writing every page along the way
// that txid does not own, and returns the (possibly replaced) node page.
func trieSet(s PageStore, txid uint64, p *Page, path, value []byte) (*Page, error) {
	p, err := writable(s, txid, p)
	if err != nil {
		return nil, err
	}
	n := node{p}

	// A child for this nibble means entries with this prefix live below.
	if len(path) > 0 {
		if addr := n.child(path[0]); addr != 0 {
			return p, setInChild(s, txid, n, path, value)
		}
	}

	n.remove(path)
	if n.fits(len(path), len(value)) {
		n.insert(path, value)
		return p, nil
	}

	// Node overflow: push suffixed entries down into per-nibble children,
	// then place the new entry wherever it now belongs.
	if err := n.flushDown(s, txid); err != nil {
		return nil, err
	}
	if len(path) == 0 {
		// Only the (unique) empty-path entry remains local; it always fits.
		n.insert(path, value)
		return p, nil
	}
	if n.child(path[0]) == 0 && n.fits(len(path), len(value)) {
		n.insert(path, value)
		return p, nil
	}
	return p, setInChild(s, txid, n, path, value)
}

// setInChild descends into (or creates) the child for path's first nibble and
// updates the parent's pointer, since the child may have been replaced by
// copy-on-write. The parent is already owned by txid.
func setInChild(s PageStore, txid uint64, n node, path, value []byte) error {
	var child *Page
	if addr := n.child(path[0]); addr != 0 {
		var err error
		child, err = s.GetAt(addr)
		if err != nil {
			return err
		}
	} else {
		var err error
		child, _, err = s.GetNewDirtyPage()
		if err != nil {
			return err
		}
	}
	child, err := trieSet(s, txid, child, path[1:], value)
	if err != nil {
		return err
	}
	n.setChild(path[0], s.GetAddress(child))
	return nil
}

// flushDown moves every entry with a non-empty remaining path into the child
// for its first nibble, creating children as needed. Entries whose path is
// fully consumed stay local.
func (n node) flushDown(s PageStore, txid uint64) error {
	type entry struct {
		path  []byte
		value []byte
	}
	var local, pushed []entry

	area := n.entries()
	off := 0
	for i := 0; i < n.count(); i++ {
		pl := int(binary.LittleEndian.Uint16(area[off:]))
		vl := int(binary.LittleEndian.Uint16(area[off+2:]))
		e := entry{
			path:  append([]byte(nil), area[off+entryHeaderSize:off+entryHeaderSize+pl]...),
			value: append([]byte(nil), area[off+entryHeaderSize+pl:off+entryHeaderSize+pl+vl]...),
		}
		if len(e.path) == 0 {
			local = append(local, e)
		} else {
			pushed = append(pushed, e)
		}
		off += entryHeaderSize + pl + vl
	}

	n.setCount(0)
	n.setUsed(0)
	for _, e := range local {
		n.insert(e.path, e.value)
	}
	for _, e := range pushed {
		if err := setInChild(s, txid, n, e.path, e.value); err != nil {
			return err
		}
	}
	return nil
}

// writable returns p if txid already owns it, otherwise a copy-on-write
// replacement: a fresh page with p's full contents, with p abandoned. Pages
// reachable from older roots are never mutated in place.
func writable(s PageStore, txid uint64, p *Page) (*Page, error) {
	if p.TxID() == txid {
		return p, nil
	}
	np, _, err := s.GetNewDirtyPage()
	if err != nil {
		return nil, err
	}
	np.CopyFrom(p)
	np.SetTxID(txid)
	if err := s.Abandon(p); err != nil {
		return nil, err
	}
	return np, nil
}
