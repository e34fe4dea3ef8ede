// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !unix

package ringq

import "os"

// SharedDir returns the OS temp directory.
func SharedDir() string {
	return os.TempDir()
}

// OpenSharedRegion is not supported on this platform.
func OpenSharedRegion(name string, size int, readOnly bool) (*SharedRegion, error) {
	return nil, &RegionError{Op: "open", Name: name, Err: ErrSharedMemoryUnsupported}
}

// Close is a no-op on this platform.
func (r *SharedRegion) Close() error {
	r.mem = nil
	return nil
}

// RemoveSharedRegion is not supported on this platform.
func RemoveSharedRegion(name string) error {
	return &RegionError{Op: "remove", Name: name, Err: ErrSharedMemoryUnsupported}
}
