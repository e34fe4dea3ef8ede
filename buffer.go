// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringq

import (
	"fmt"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// PhysicalOffset projects a logical position onto an arena of capacity bytes.
func PhysicalOffset(pos QPos, capacity uint64) uint64 {
	return pos % capacity
}

// SpanCrossesBoundary reports whether n bytes starting at physical offset
// off run past the end of an arena of capacity bytes.
func SpanCrossesBoundary(off, n, capacity uint64) bool {
	return off+n > capacity
}

// Buffer is a circular byte arena preceded by a header of 64-bit counters.
//
// The header and the arena are disjoint slices of one [Region]; counters and
// data never alias. Buffer holds no lifetime of its own: it is valid while
// its Region is open.
type Buffer struct {
	region   Region
	header   []byte
	data     []byte
	capacity uint64
	mask     uint64 // capacity-1 when capacity is a power of two, else 0
}

// NewBuffer lays out headerLen header bytes and capacity data bytes at the
// start of r. headerLen must be a multiple of 8.
func NewBuffer(r Region, headerLen, capacity int) (*Buffer, error) {
	mem := r.Bytes()
	if capacity <= 0 {
		return nil, ErrCapacity
	}
	if headerLen < 0 || headerLen%8 != 0 {
		return nil, fmt.Errorf("%w: header length %d is not a multiple of 8", ErrRegionSize, headerLen)
	}
	if len(mem) < headerLen+capacity {
		return nil, fmt.Errorf("%w: region has %d bytes, layout needs %d", ErrRegionSize, len(mem), headerLen+capacity)
	}
	if uintptr(unsafe.Pointer(unsafe.SliceData(mem)))&(cacheLine-1) != 0 {
		return nil, fmt.Errorf("%w: region is not cache-line aligned", ErrRegionSize)
	}
	b := &Buffer{
		region:   r,
		header:   mem[:headerLen:headerLen],
		data:     mem[headerLen : headerLen+capacity : headerLen+capacity],
		capacity: uint64(capacity),
	}
	if isPow2(b.capacity) {
		b.mask = b.capacity - 1
	}
	return b, nil
}

// Cap returns the arena capacity in bytes.
func (b *Buffer) Cap() int {
	return int(b.capacity)
}

// Region returns the region the buffer lives in.
func (b *Buffer) Region() Region {
	return b.region
}

// Offset returns the physical arena offset of pos.
func (b *Buffer) Offset(pos QPos) uint64 {
	if b.mask != 0 {
		return pos & b.mask
	}
	return pos % b.capacity
}

// CopyIn copies src into the arena starting at logical position pos,
// wrapping at the end of the arena. len(src) must not exceed Cap.
func (b *Buffer) CopyIn(pos QPos, src []byte) {
	n := copy(b.data[b.Offset(pos):], src)
	if n < len(src) {
		copy(b.data, src[n:])
	}
}

// CopyOut copies len(dst) bytes starting at logical position pos into dst,
// wrapping at the end of the arena. len(dst) must not exceed Cap.
func (b *Buffer) CopyOut(pos QPos, dst []byte) {
	n := copy(dst, b.data[b.Offset(pos):])
	if n < len(dst) {
		copy(dst[n:], b.data)
	}
}

// Contiguous returns the n arena bytes at pos as a direct view when they do
// not straddle the end of the arena. Otherwise it returns (nil, false) and
// the caller must use CopyOut.
func (b *Buffer) Contiguous(pos QPos, n uint64) ([]byte, bool) {
	off := b.Offset(pos)
	if SpanCrossesBoundary(off, n, b.capacity) {
		return nil, false
	}
	return b.data[off : off+n : off+n], true
}

// counter returns the 64-bit header counter at byte offset off.
// off must be 8-byte aligned and inside the header.
func (b *Buffer) counter(off int) *atomix.Uint64 {
	return (*atomix.Uint64)(unsafe.Pointer(&b.header[off]))
}
