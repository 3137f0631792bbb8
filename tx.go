package triedb

import "fmt"

// PageReader resolves pages by address. Implemented by DB for snapshot reads
// and by Tx for transactional ones.
type PageReader interface {
	GetAt(addr PageID) (*Page, error)
}

// PageStore is the internal-transaction boundary consumed by the trie-node
// logic. It is the sole channel through which trie code performs page-level
// I/O; trie code never allocates or frees memory itself and never touches the
// mapped region directly.
type PageStore interface {
	PageReader

	// GetAddress resolves a page view back to its address.
	GetAddress(p *Page) PageID

	// GetNewDirtyPage allocates a page owned by the running transaction,
	// cleared and stamped with its TxID. Fails with ErrStoreExhausted when
	// allocation would exceed the maximum page count.
	GetNewDirtyPage() (*Page, PageID, error)

	// Abandon records a page for deferred reuse. The page stays intact until
	// every root that could reference it has rolled out of the history.
	Abandon(p *Page) error
}

// Tx is the single active write transaction. It performs copy-on-write of
// the root path, allocates new pages, tracks abandoned pages, and commits by
// durably publishing a new root and then a new metadata header.
//
// A Tx discarded without Commit leaks the pages it allocated and burns its
// TxID; neither is rolled back.
type Tx struct {
	db   *DB
	txid uint64
	meta *Meta // private copy published into the next history slot on commit
	root *Page

	// reusable holds addresses abandoned HistoryDepth generations ago,
	// handed out before the store grows.
	reusable []PageID

	done bool
}

var _ PageStore = (*Tx)(nil)

// TxID returns the transaction's identity, one greater than the last issued.
func (tx *Tx) TxID() uint64 {
	return tx.txid
}

// GetAt forwards to the owning DB.
func (tx *Tx) GetAt(addr PageID) (*Page, error) {
	return tx.db.GetAt(addr)
}

// GetAddress forwards to the owning DB.
func (tx *Tx) GetAddress(p *Page) PageID {
	return tx.db.GetAddress(p)
}

// GetNewDirtyPage allocates the next free address from the transaction's
// metadata copy, preferring addresses whose retention window has elapsed.
func (tx *Tx) GetNewDirtyPage() (*Page, PageID, error) {
	var addr PageID
	if n := len(tx.reusable); n > 0 {
		addr = tx.reusable[n-1]
		tx.reusable = tx.reusable[:n-1]
	} else {
		if tx.meta.NextFreePage >= tx.db.maxPage {
			return nil, 0, fmt.Errorf("%w: %d pages", ErrStoreExhausted, tx.db.maxPage)
		}
		addr = tx.meta.NextFreePage
		tx.meta.NextFreePage++
	}
	p, err := tx.db.GetAt(addr)
	if err != nil {
		return nil, 0, err
	}
	p.Clear()
	p.SetTxID(tx.txid)
	return p, addr, nil
}

// Abandon appends the page's address to the metadata's abandoned list for
// deferred reuse.
func (tx *Tx) Abandon(p *Page) error {
	if len(tx.meta.Abandoned) >= MetaAbandonedCapacity {
		return ErrMetaOverflow
	}
	tx.meta.Abandoned = append(tx.meta.Abandoned, tx.db.GetAddress(p))
	return nil
}

// TotalUsedPages reports the allocated fraction of the store as seen by this
// transaction, uncommitted allocations included, in [0,1].
func (tx *Tx) TotalUsedPages() float64 {
	return float64(tx.meta.NextFreePage) / float64(tx.db.maxPage)
}

// TryGet resolves key within this transaction's view, including uncommitted
// writes. Pure, no mutation.
func (tx *Tx) TryGet(key []byte) ([]byte, bool, error) {
	if tx.done {
		return nil, false, ErrTxDone
	}
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	return trieGet(tx, tx.root, encodePath(key))
}

// Set writes key to value. Every page touched that is not already owned by
// this transaction is copied-on-write, never mutated in place.
func (tx *Tx) Set(key, value []byte) error {
	if tx.done {
		return ErrTxDone
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if len(value) > MaxValueSize {
		return ErrValueTooLarge
	}
	root, err := trieSet(tx, tx.txid, tx.root, encodePath(key), value)
	if err != nil {
		return err
	}
	tx.root = root
	return nil
}

// Commit publishes the transaction in two durable phases:
//
//  1. the root address and the rest of the metadata payload are written into
//     the next history slot and flushed together with every dirty page;
//  2. only then is the slot's header TxID (and checksum) written and flushed.
//
// A crash between the phases leaves the previous snapshot as the only one
// with a valid header, so recovery never trusts a partially applied commit.
// A failed first flush aborts before the header is touched. A failed second
// flush returns the error without publishing: the in-memory root is
// unchanged, and whether the commit survives a crash is decided by what
// actually reached disk.
func (tx *Tx) Commit() error {
	db := tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if tx.done {
		return ErrTxDone
	}
	if db.closed {
		return ErrDatabaseClosed
	}

	tx.meta.Root = db.GetAddress(tx.root)

	// Reusable addresses this transaction never consumed are re-recorded so
	// they stay eligible in the next retention window. If the list is full the
	// tail is leaked for the life of the store.
	for _, addr := range tx.reusable {
		if len(tx.meta.Abandoned) >= MetaAbandonedCapacity {
			break
		}
		tx.meta.Abandoned = append(tx.meta.Abandoned, addr)
	}

	slot, err := db.nextMetaPage()
	if err != nil {
		return err
	}
	if err := tx.meta.writePayload(slot); err != nil {
		return err
	}
	if err := db.region.Flush(); err != nil {
		db.log.Error("commit aborted: flush failed", "txid", tx.txid, "error", err)
		return err
	}

	tx.meta.seal(slot)
	if err := db.region.Flush(); err != nil {
		// The sealed header may or may not have reached disk; in memory the
		// commit stays unpublished and the caller must Rollback. The next
		// commit overwrites the same slot.
		db.log.Error("commit aborted: header flush failed", "txid", tx.txid, "error", err)
		return err
	}
	db.moveRootNext(tx.meta)
	db.writer = nil
	tx.done = true

	db.log.Info("committed",
		"txid", tx.txid, "root", uint64(tx.meta.Root),
		"next_free", uint64(tx.meta.NextFreePage), "abandoned", len(tx.meta.Abandoned))
	return nil
}

// Rollback discards the transaction. Pages it allocated are leaked (never
// added back to a free list) and the issued TxID stays burned; only the
// writer slot is released. No-op after Commit.
func (tx *Tx) Rollback() {
	db := tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if tx.done {
		return
	}
	tx.done = true
	if db.writer == tx {
		db.writer = nil
	}
}

func validateKey(key []byte) error {
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	if len(key) > MaxKeySize {
		return ErrKeyTooLarge
	}
	return nil
}
