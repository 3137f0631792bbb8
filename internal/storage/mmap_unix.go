//go:build linux || darwin

package storage

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MMap is a file-backed Region using memory-mapped I/O.
type MMap struct {
	file *os.File
	data []byte
}

var _ Region = (*MMap)(nil)

// OpenFile maps path read-write at exactly size bytes, creating and extending
// the file if needed. An existing file larger than size is mapped at its own
// length so previously written pages stay addressable.
func OpenFile(path string, size int64) (*MMap, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() > size {
		size = info.Size()
	}
	if info.Size() < size {
		// Sparse allocation
		if err := file.Truncate(size); err != nil {
			file.Close()
			return nil, err
		}
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &MMap{file: file, data: data}, nil
}

// Bytes returns the mapped region.
func (m *MMap) Bytes() []byte {
	return m.data
}

// Flush msyncs the mapping and fsyncs the file.
func (m *MMap) Flush() error {
	if m.data == nil {
		return fmt.Errorf("storage closed")
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return err
	}
	return m.file.Sync()
}

// Close unmaps the region and closes the file.
func (m *MMap) Close() error {
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return err
		}
		m.data = nil
	}
	return m.file.Close()
}
