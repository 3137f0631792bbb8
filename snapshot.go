package triedb

import (
	"bytes"
	"encoding/binary"
)

// Snapshot is a read-only view bound to one committed root. It stays
// consistent while later transactions commit: a writer only touches freshly
// allocated pages, and addresses this root references are not reused until
// the root has rolled out of the history ring. A snapshot held across more
// than HistoryDepth-1 subsequent commits is no longer protected.
type Snapshot struct {
	db   *DB
	txid uint64
	root PageID
}

// Snapshot captures the current committed root.
func (db *DB) Snapshot() *Snapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	cur := db.currentMeta()
	return &Snapshot{db: db, txid: cur.TxID, root: cur.Root}
}

// TxID returns the id of the transaction that committed this snapshot's root.
func (s *Snapshot) TxID() uint64 {
	return s.txid
}

// TryGet resolves key against this snapshot's root. Values are copied out of
// the mapped region, so they stay valid after the snapshot expires. Hits are
// served from the store's value cache, keyed by snapshot TxID so entries
// never need invalidating.
func (s *Snapshot) TryGet(key []byte) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	if s.db.closed {
		return nil, false, ErrDatabaseClosed
	}
	if s.root == 0 {
		return nil, false, nil
	}

	ck := s.cacheKey(key)
	if s.db.cache != nil {
		if v, ok := s.db.cache.Get(ck); ok {
			return v, true, nil
		}
	}

	root, err := s.db.GetAt(s.root)
	if err != nil {
		return nil, false, err
	}
	v, found, err := trieGet(s.db, root, encodePath(key))
	if err != nil || !found {
		return nil, false, err
	}
	v = bytes.Clone(v)
	if s.db.cache != nil {
		s.db.cache.Add(ck, v)
	}
	return v, true, nil
}

func (s *Snapshot) cacheKey(key []byte) string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], s.txid)
	return string(buf[:]) + string(key)
}
