// Package mmap provides read-only memory mappings of regular files.
//
// The bridge maps each requested file for the duration of a single read
// request and releases the mapping once the response frames are built, so
// large model files can be sliced without copying them through read(2)
// buffers first.
package mmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mapping is a read-only view of a file's contents.
//
// A Mapping must be released with Close; the underlying file descriptor
// is closed as soon as the mapping is established, the pages stay valid
// until munmap.
type Mapping struct {
	data []byte
}

// Open maps the file at path read-only.
//
// Empty files take a no-mmap path (mmap of length zero is an error on
// Linux) and yield a mapping with zero bytes.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	size := info.Size()
	if size == 0 {
		return &Mapping{}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	return &Mapping{data: data}, nil
}

// Len returns the mapped file length in bytes.
func (m *Mapping) Len() uint64 {
	return uint64(len(m.data))
}

// Bytes returns the mapped contents. The slice is only valid until Close.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Slice returns the [offset, offset+length) window of the mapping.
// Bounds must have been validated by the caller.
func (m *Mapping) Slice(offset, length uint64) []byte {
	return m.data[offset : offset+length]
}

// Close releases the mapping. Safe to call multiple times.
func (m *Mapping) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
