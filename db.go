package triedb

import (
	"bytes"
	"fmt"
	"sync"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"

	"triedb/internal/storage"
)

// DB owns a fixed-size, memory-mapped page address space and a rolling
// history of HistoryDepth metadata snapshots. It provides snapshot-isolated
// reads and single-writer transactional mutation: a writer only ever touches
// freshly allocated pages, so a reader bound to an older root keeps resolving
// a complete, consistent tree until that root rolls out of the history.
//
// Exactly one write transaction may be active at a time; Begin enforces this.
type DB struct {
	mu     sync.Mutex
	region storage.Region
	data   []byte // full mapped region, sliced per page

	maxPage PageID // capacity: region size / PageSize

	// Decoded metadata history. Disk slots change only during Commit's
	// two-phase write; this array is the in-memory working set.
	metas      [HistoryDepth]*Meta
	generation uint64 // current slot selector, +1 per commit
	lastIssued uint64 // TxID issuance counter; never rolled back

	writer *Tx // active write transaction, nil if none
	closed bool

	log Logger

	// Snapshot value cache, keyed by (TxID, key). Shared by every snapshot
	// reader, so it must be the synchronized variant.
	cache *freelru.SyncedLRU[string, []byte]
}

// Open maps the store at path and loads the metadata history. A fresh store
// is initialized with HistoryDepth empty metadata snapshots.
func Open(path string, options ...Option) (*DB, error) {
	opts := defaultOptions()
	for _, opt := range options {
		opt(&opts)
	}

	if opts.storeSize < HistoryDepth*PageSize {
		return nil, fmt.Errorf("store size %d below %d metadata pages", opts.storeSize, HistoryDepth)
	}

	var (
		region storage.Region
		err    error
	)
	if opts.inMemory {
		region, err = storage.OpenAnonymous(opts.storeSize)
	} else {
		region, err = storage.OpenFile(path, opts.storeSize)
	}
	if err != nil {
		return nil, err
	}

	db := &DB{
		region:  region,
		data:    region.Bytes(),
		maxPage: PageID(int64(len(region.Bytes())) / PageSize),
		log:     opts.logger,
	}

	if opts.cacheSize > 0 {
		cache, err := freelru.NewSynced[string, []byte](opts.cacheSize, hashKey)
		if err != nil {
			region.Close()
			return nil, err
		}
		db.cache = cache
	}

	if err := db.rootInit(); err != nil {
		region.Close()
		return nil, err
	}

	cur := db.currentMeta()
	db.log.Info("store opened",
		"pages", uint64(db.maxPage), "txid", cur.TxID, "root", uint64(cur.Root))
	return db, nil
}

func hashKey(k string) uint32 {
	return uint32(xxhash.Sum64String(k))
}

// rootInit loads the HistoryDepth metadata slots and selects as current the
// valid slot with the numerically largest TxID. Slots that fail validation
// are skipped: a slot torn mid-commit is indistinguishable from garbage, and
// falling back to the older slot is exactly the crash-consistency contract.
func (db *DB) rootInit() error {
	var (
		found   bool
		slot    int
		best    *Meta
		invalid int
	)
	for i := 0; i < HistoryDepth; i++ {
		p, err := db.GetAt(PageID(i))
		if err != nil {
			return err
		}
		m, err := readMeta(p)
		if err != nil {
			invalid++
			continue
		}
		if !found || m.TxID > best.TxID {
			found, slot, best = true, i, m
		}
	}

	if !found {
		if !db.isZeroed() {
			return fmt.Errorf("%w: no valid metadata snapshot", ErrCorruption)
		}
		return db.initFresh()
	}
	if invalid > 0 {
		db.log.Warn("discarded invalid metadata snapshot", "count", invalid, "recovered_txid", best.TxID)
	}

	// Fresh/empty bootstrap guard: user pages must never alias metadata.
	if best.NextFreePage < HistoryDepth {
		best.NextFreePage = HistoryDepth
	}

	db.generation = uint64(slot)
	db.lastIssued = best.TxID
	db.metas[slot] = best
	other := (slot + 1) % HistoryDepth
	if db.metas[other] == nil {
		p, err := db.GetAt(PageID(other))
		if err != nil {
			return err
		}
		m, err := readMeta(p)
		if err != nil {
			// Unusable slot; treat its snapshot as empty. Its pages, if any,
			// can no longer be proven live and stay unreclaimed.
			m = &Meta{NextFreePage: best.NextFreePage}
		}
		db.metas[other] = m
	}
	return nil
}

// initFresh stamps every reserved slot with an empty snapshot and flushes so
// the store reopens cleanly even if nothing is ever committed.
func (db *DB) initFresh() error {
	for i := 0; i < HistoryDepth; i++ {
		p, err := db.GetAt(PageID(i))
		if err != nil {
			return err
		}
		m := &Meta{TxID: 0, Root: 0, NextFreePage: HistoryDepth}
		if err := m.writePayload(p); err != nil {
			return err
		}
		m.seal(p)
		db.metas[i] = m
	}
	db.generation = 0
	db.lastIssued = 0
	return db.region.Flush()
}

func (db *DB) isZeroed() bool {
	for i := 0; i < HistoryDepth; i++ {
		off := int64(i) * PageSize
		if !bytes.Equal(db.data[off:off+PageSize], make([]byte, PageSize)) {
			return false
		}
	}
	return true
}

// GetAt returns the page view at address addr. Fails with ErrPageOutOfRange
// if addr is at or beyond the configured maximum page count.
func (db *DB) GetAt(addr PageID) (*Page, error) {
	if db.data == nil {
		return nil, ErrDatabaseClosed
	}
	if addr >= db.maxPage {
		return nil, fmt.Errorf("%w: page %d, max %d", ErrPageOutOfRange, addr, db.maxPage)
	}
	off := int64(addr) * PageSize
	return (*Page)(unsafe.Pointer(&db.data[off])), nil
}

// GetAddress is the inverse of GetAt: the page's address within the mapped
// region. Undefined if p does not point inside the region.
func (db *DB) GetAddress(p *Page) PageID {
	off := uintptr(unsafe.Pointer(p)) - uintptr(unsafe.Pointer(&db.data[0]))
	return PageID(off / PageSize)
}

// currentMeta is the decoded snapshot at the current generation.
func (db *DB) currentMeta() *Meta {
	return db.metas[db.generation%HistoryDepth]
}

// nextMeta is the decoded snapshot in the slot the next commit overwrites.
// It is HistoryDepth-1 generations behind current.
func (db *DB) nextMeta() *Meta {
	return db.metas[(db.generation+1)%HistoryDepth]
}

// nextMetaPage is the reserved page backing the next slot. Only mutated while
// a transaction is in flight.
func (db *DB) nextMetaPage() (*Page, error) {
	return db.GetAt(PageID((db.generation + 1) % HistoryDepth))
}

// moveRootNext advances the current snapshot by one generation. Only called
// on successful commit, after the new root is durable.
func (db *DB) moveRootNext(m *Meta) {
	slot := (db.generation + 1) % HistoryDepth
	db.metas[slot] = m
	db.generation++
}

// CurrentMeta returns a copy of the current committed metadata snapshot.
func (db *DB) CurrentMeta() Meta {
	db.mu.Lock()
	defer db.mu.Unlock()
	m := *db.currentMeta()
	return m
}

// TotalUsedPages reports the allocated fraction of the store, in [0,1].
func (db *DB) TotalUsedPages() float64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return float64(db.currentMeta().NextFreePage) / float64(db.maxPage)
}

// Begin starts the single write transaction. The new transaction snapshots
// the current metadata, allocates a fresh root, and copies the previous root
// into it byte-for-byte (the copy-on-write base case). The previous root is
// recorded as abandoned: unreachable from the new snapshot but kept intact
// for readers of older roots until its retention window elapses.
//
// The TxID issued here is burned even if the transaction is never committed.
func (db *DB) Begin() (*Tx, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, ErrDatabaseClosed
	}
	if db.writer != nil {
		return nil, ErrTxInProgress
	}

	db.lastIssued++
	cur := db.currentMeta()

	tx := &Tx{
		db:   db,
		txid: db.lastIssued,
		meta: cur.clone(db.lastIssued),
		// Pages abandoned by the snapshot being overwritten rolled past the
		// whole history; they are safe to hand out again.
		reusable: append([]PageID(nil), db.nextMeta().Abandoned...),
	}

	root, _, err := tx.GetNewDirtyPage()
	if err != nil {
		return nil, err
	}
	if prev := cur.Root; prev != 0 {
		prevPage, err := db.GetAt(prev)
		if err != nil {
			return nil, err
		}
		root.CopyFrom(prevPage)
		root.SetTxID(tx.txid)
		if err := tx.Abandon(prevPage); err != nil {
			return nil, err
		}
	}
	tx.root = root

	db.writer = tx
	return tx, nil
}

// Update runs fn inside a write transaction, committing on nil and rolling
// back on error.
func (db *DB) Update(fn func(*Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Get resolves key against the current committed snapshot.
func (db *DB) Get(key []byte) ([]byte, bool, error) {
	return db.Snapshot().TryGet(key)
}

// Flush durably persists all page writes made so far.
func (db *DB) Flush() error {
	return db.region.Flush()
}

// Close releases the mapped region. In-flight transactions become unusable.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	db.data = nil
	return db.region.Close()
}
