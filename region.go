// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringq

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrRegionName is returned for shared-memory names that are empty or
// contain a path separator.
var ErrRegionName = errors.New("ringq: invalid region name")

// ErrRegionSize is returned when an existing shared-memory region does not
// match the size the queue layout requires.
var ErrRegionSize = errors.New("ringq: region size mismatch")

// Region is the memory backing a queue: a header followed by the data arena.
//
// A Region owns its mapping. Queues and their readers and writers hold
// non-owning views into it and must not be used after Close.
type Region interface {
	// Bytes returns the whole mapped region. The slice is 64-byte aligned.
	Bytes() []byte

	// Name returns the shared-memory name, or "" for heap regions.
	Name() string

	// Writable reports whether the mapping accepts stores.
	Writable() bool

	// Close releases the mapping.
	Close() error
}

// HeapRegion is a Region in process memory, for single-process use and tests.
type HeapRegion struct {
	mem []byte
}

// NewHeapRegion allocates a zeroed, cache-line aligned region of size bytes.
func NewHeapRegion(size int) *HeapRegion {
	raw := make([]byte, size+cacheLine-1)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	off := int(-base & (cacheLine - 1))
	return &HeapRegion{mem: raw[off : off+size : off+size]}
}

// Bytes returns the region memory.
func (r *HeapRegion) Bytes() []byte { return r.mem }

// Name returns "".
func (r *HeapRegion) Name() string { return "" }

// Writable returns true.
func (r *HeapRegion) Writable() bool { return true }

// Close is a no-op; the memory is reclaimed by the garbage collector.
func (r *HeapRegion) Close() error { return nil }

// SharedRegion is a Region in named shared memory, visible to every process
// that opens the same name.
//
// Exactly one process per deployment should open the region writable without
// NoInit; that process resets the queue counters.
type SharedRegion struct {
	name     string
	path     string
	mem      []byte
	writable bool
}

// Bytes returns the mapped memory, or nil after Close.
func (r *SharedRegion) Bytes() []byte { return r.mem }

// Name returns the shared-memory name the region was opened with.
func (r *SharedRegion) Name() string { return r.name }

// Path returns the file system path backing the region.
func (r *SharedRegion) Path() string { return r.path }

// Writable reports whether the region was opened for writing.
func (r *SharedRegion) Writable() bool { return r.writable }

// RegionError records a failed shared-memory operation.
type RegionError struct {
	Op   string
	Name string
	Err  error
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("ringq: %s region %q: %v", e.Op, e.Name, e.Err)
}

func (e *RegionError) Unwrap() error {
	return e.Err
}

// validRegionName rejects names that would escape the shared-memory directory.
func validRegionName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrRegionName
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == 0 {
			return fmt.Errorf("%w: %q", ErrRegionName, name)
		}
	}
	return nil
}
