package triedb

import "errors"

var (
	ErrDatabaseClosed = errors.New("database is closed")
	ErrCorruption     = errors.New("data corruption detected")

	// ErrPageOutOfRange signals a page address beyond the configured maximum
	// page count: a corrupted pointer or a miscomputed address, not retryable.
	ErrPageOutOfRange = errors.New("page address out of range")

	// ErrStoreExhausted signals that an allocation would exceed the maximum
	// page count. The store never grows; freeing space is up to the caller.
	ErrStoreExhausted = errors.New("store exhausted")

	ErrKeyEmpty      = errors.New("key cannot be empty")
	ErrKeyTooLarge   = errors.New("key too large")
	ErrValueTooLarge = errors.New("value too large")

	ErrTxInProgress = errors.New("write transaction already in progress")
	ErrTxDone       = errors.New("transaction has been committed or rolled back")

	ErrInvalidMagicNumber = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("invalid format version")
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidChecksum    = errors.New("invalid metadata checksum")

	// ErrMetaOverflow means a single transaction abandoned more pages than one
	// metadata page can record.
	ErrMetaOverflow = errors.New("abandoned page list exceeds metadata capacity")
)
