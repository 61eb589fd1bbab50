// Package shm implements the shared-memory primitive the spec treats as an
// external collaborator: named byte regions visible to another process.
// Regions are backed by real POSIX shared memory (a file under /dev/shm
// mapped with mmap), not an in-process stand-in, so two processes naming the
// same region genuinely observe the same bytes.
package shm

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// shmDir is overridable in tests so they don't require /dev/shm.
var shmDir = "/dev/shm"

// Region is a named shared byte region.
type Region struct {
	name string
	path string
	data []byte

	mu     sync.Mutex
	closed bool
}

// Create allocates a new named, zero-filled shared region of size bytes.
// A zero-length region is permitted and allocates no mapping.
func Create(name string, size int) (*Region, error) {
	if size < 0 {
		return nil, fmt.Errorf("shm: negative size")
	}
	path := filepath.Join(shmDir, sanitize(name))

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("shm: create %s: %w", name, err)
	}
	defer f.Close()

	if size == 0 {
		return &Region{name: name, path: path, data: nil}, nil
	}

	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("shm: truncate %s: %w", name, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", name, err)
	}

	return &Region{name: name, path: path, data: data}, nil
}

// Open maps an existing named region of size bytes for access from another
// process.
func Open(name string, size int) (*Region, error) {
	path := filepath.Join(shmDir, sanitize(name))
	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", name, err)
	}
	defer f.Close()

	if size == 0 {
		return &Region{name: name, path: path, data: nil}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", name, err)
	}
	return &Region{name: name, path: path, data: data}, nil
}

// Name returns the region's namespace key.
func (r *Region) Name() string { return r.name }

// Bytes returns the mapped region. The returned slice aliases the mapping;
// callers must not retain it past Close.
func (r *Region) Bytes() []byte {
	if r == nil {
		return nil
	}
	return r.data
}

// Close unmaps and removes the backing file. Safe to call more than once.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.data != nil {
		err = unix.Munmap(r.data)
		r.data = nil
	}
	_ = os.Remove(r.path)
	return err
}

func sanitize(name string) string {
	return filepath.Clean(filepath.Base(name))
}
