// Package storage provides the physical backing of the page address space.
// It is the only place raw mapped memory lives; everything above it works
// with bounds-checked page indexes.
package storage

// Region is a fixed-size contiguous byte range backing the page store.
// The region never grows after open.
type Region interface {
	// Bytes returns the full mapped region. The slice stays valid until Close.
	Bytes() []byte

	// Flush durably persists all writes made to the region so far.
	Flush() error

	// Close releases backend resources. The region must not be used after.
	Close() error
}
