// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package ringq

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// SharedDir returns the directory backing named regions: /dev/shm when the
// host provides it, the OS temp directory otherwise.
func SharedDir() string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// OpenSharedRegion maps the named shared-memory region of size bytes.
//
// A writable open creates the region when it does not exist. A read-only open
// requires the region to exist, maps it PROT_READ, and never modifies it.
// An existing region whose size differs from size is rejected with
// [ErrRegionSize]; every process must agree on the queue layout.
func OpenSharedRegion(name string, size int, readOnly bool) (*SharedRegion, error) {
	if err := validRegionName(name); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, &RegionError{Op: "open", Name: name, Err: ErrRegionSize}
	}
	path := filepath.Join(SharedDir(), name)

	flags, prot := unix.O_RDWR|unix.O_CREAT, unix.PROT_READ|unix.PROT_WRITE
	if readOnly {
		flags, prot = unix.O_RDONLY, unix.PROT_READ
	}
	fd, err := unix.Open(path, flags|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, &RegionError{Op: "open", Name: name, Err: err}
	}
	// The mapping outlives the descriptor.
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, &RegionError{Op: "stat", Name: name, Err: err}
	}
	switch {
	case st.Size == 0 && !readOnly:
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			return nil, &RegionError{Op: "truncate", Name: name, Err: err}
		}
	case st.Size != int64(size):
		return nil, &RegionError{
			Op:   "open",
			Name: name,
			Err:  fmt.Errorf("%w: have %d bytes, want %d", ErrRegionSize, st.Size, size),
		}
	}

	mem, err := unix.Mmap(fd, 0, size, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, &RegionError{Op: "mmap", Name: name, Err: err}
	}
	return &SharedRegion{name: name, path: path, mem: mem, writable: !readOnly}, nil
}

// Close unmaps the region. The backing object stays until RemoveSharedRegion.
func (r *SharedRegion) Close() error {
	if r.mem == nil {
		return nil
	}
	mem := r.mem
	r.mem = nil
	if err := unix.Munmap(mem); err != nil {
		return &RegionError{Op: "munmap", Name: r.name, Err: err}
	}
	return nil
}

// RemoveSharedRegion unlinks the named region. Processes that still map it
// keep their mapping; a later open creates a fresh, zeroed region.
func RemoveSharedRegion(name string) error {
	if err := validRegionName(name); err != nil {
		return err
	}
	if err := unix.Unlink(filepath.Join(SharedDir(), name)); err != nil && err != unix.ENOENT {
		return &RegionError{Op: "remove", Name: name, Err: err}
	}
	return nil
}
