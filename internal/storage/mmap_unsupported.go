//go:build !linux && !darwin

package storage

import (
	"fmt"
	"runtime"
)

// OpenFile is unavailable on this platform.
func OpenFile(path string, size int64) (Region, error) {
	return nil, fmt.Errorf("mmap storage not supported on %s", runtime.GOOS)
}

// OpenAnonymous is unavailable on this platform.
func OpenAnonymous(size int64) (Region, error) {
	return nil, fmt.Errorf("mmap storage not supported on %s", runtime.GOOS)
}
