// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringq

// QPos is a logical byte position in a queue.
//
// Positions grow monotonically while a writer runs and never wrap in
// practice (2^64 bytes). Only their physical projection into the arena,
// [PhysicalOffset], wraps.
type QPos = uint64

// Fixed header layout shared by every process attached to a region.
// The values are part of the wire layout and must not change.
const (
	cacheLine = 64

	// singleHeaderLen reserves one cache line for the ready_bytes counter
	// of the single-writer queues.
	singleHeaderLen = cacheLine

	// multiHeaderLen reserves two cache lines for the multi-writer queue:
	// write_pos and dirty_pos share the writers' line, ready_bytes sits
	// alone on the readers' line.
	multiHeaderLen = 2 * cacheLine

	offReadyBytes = 0 // single-writer queues
	offWritePos   = 0 // multi-writer queue
	offDirtyPos   = 8
	offMultiReady = cacheLine

	// lenPrefix is the size of the little-endian record length that frames
	// each multi-writer record.
	lenPrefix = 4
)

// MaxReaders is the number of readers a lossless queue can track.
const MaxReaders = 16

// isPow2 reports whether n is a positive power of two.
func isPow2(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// pad is cache line padding to prevent false sharing.
type pad [cacheLine]byte

// padPair is padding to fill a cache line after two 8-byte fields.
type padPair [cacheLine - 16]byte
