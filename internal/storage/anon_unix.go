//go:build linux || darwin

package storage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Anonymous is a Region backed by an anonymous mapping. Nothing survives
// Close; Flush is a no-op. Used for ephemeral stores and tests.
type Anonymous struct {
	data []byte
}

var _ Region = (*Anonymous)(nil)

// OpenAnonymous maps size bytes of zeroed anonymous memory.
func OpenAnonymous(size int64) (*Anonymous, error) {
	data, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return &Anonymous{data: data}, nil
}

// Bytes returns the mapped region.
func (a *Anonymous) Bytes() []byte {
	return a.data
}

// Flush is a no-op: an anonymous mapping has no durable backing.
func (a *Anonymous) Flush() error {
	if a.data == nil {
		return fmt.Errorf("storage closed")
	}
	return nil
}

// Close unmaps the region.
func (a *Anonymous) Close() error {
	if a.data != nil {
		if err := unix.Munmap(a.data); err != nil {
			return err
		}
		a.data = nil
	}
	return nil
}
