// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringq_test

import (
	"bytes"
	"errors"
	"testing"
	"unsafe"

	"code.hybscloud.com/ringq"
)

// =============================================================================
// Circular Buffer Backend
// =============================================================================

func TestPhysicalOffset(t *testing.T) {
	tests := []struct {
		pos, capacity, want uint64
	}{
		{0, 1024, 0},
		{1023, 1024, 1023},
		{1024, 1024, 0},
		{1 << 40, 1024, 0},
		{250, 100, 50},
		{99, 100, 99},
	}
	for _, tt := range tests {
		if got := ringq.PhysicalOffset(tt.pos, tt.capacity); got != tt.want {
			t.Fatalf("PhysicalOffset(%d, %d): got %d, want %d", tt.pos, tt.capacity, got, tt.want)
		}
	}
}

func TestSpanCrossesBoundary(t *testing.T) {
	tests := []struct {
		off, n, capacity uint64
		want             bool
	}{
		{0, 64, 64, false},
		{960, 64, 1024, false},
		{961, 64, 1024, true},
		{90, 24, 100, true},
		{76, 24, 100, false},
	}
	for _, tt := range tests {
		if got := ringq.SpanCrossesBoundary(tt.off, tt.n, tt.capacity); got != tt.want {
			t.Fatalf("SpanCrossesBoundary(%d, %d, %d): got %v, want %v", tt.off, tt.n, tt.capacity, got, tt.want)
		}
	}
}

func TestHeapRegionAligned(t *testing.T) {
	for _, size := range []int{1, 63, 64, 65, 4096 + 7} {
		r := ringq.NewHeapRegion(size)
		mem := r.Bytes()
		if len(mem) != size {
			t.Fatalf("size %d: len got %d", size, len(mem))
		}
		if addr := uintptr(unsafe.Pointer(unsafe.SliceData(mem))); addr%64 != 0 {
			t.Fatalf("size %d: address %#x not 64-byte aligned", size, addr)
		}
		if !r.Writable() || r.Name() != "" {
			t.Fatalf("heap region: Writable=%v Name=%q", r.Writable(), r.Name())
		}
	}
}

func TestBufferCopyWraps(t *testing.T) {
	r := ringq.NewHeapRegion(64 + 100)
	b, err := ringq.NewBuffer(r, 64, 100)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if b.Cap() != 100 {
		t.Fatalf("Cap: got %d, want 100", b.Cap())
	}

	src := []byte("0123456789abcdefghijklmn") // 24 bytes
	pos := uint64(2*100 + 90)                // physical 90, straddles the end
	b.CopyIn(pos, src)

	dst := make([]byte, len(src))
	b.CopyOut(pos, dst)
	if !bytes.Equal(dst, src) {
		t.Fatalf("round trip: got %q, want %q", dst, src)
	}

	// Header is untouched by data writes.
	for i, c := range r.Bytes()[:64] {
		if c != 0 {
			t.Fatalf("header byte %d: got %d, want 0", i, c)
		}
	}
	// The tail landed at the start of the arena.
	if got := r.Bytes()[64 : 64+14]; !bytes.Equal(got, src[10:]) {
		t.Fatalf("wrapped segment: got %q, want %q", got, src[10:])
	}
}

func TestBufferContiguous(t *testing.T) {
	r := ringq.NewHeapRegion(64 + 128)
	b, err := ringq.NewBuffer(r, 64, 128)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	view, ok := b.Contiguous(128+64, 64)
	if !ok || len(view) != 64 {
		t.Fatalf("Contiguous(192, 64): ok=%v len=%d", ok, len(view))
	}
	view[0] = 'x'
	if r.Bytes()[64+64] != 'x' {
		t.Fatal("Contiguous view does not alias the arena")
	}
	if _, ok := b.Contiguous(100, 64); ok {
		t.Fatal("Contiguous(100, 64): want straddle on 128-byte arena")
	}
	if b.Offset(128*5+3) != 3 {
		t.Fatalf("Offset: got %d, want 3", b.Offset(128*5+3))
	}
}

func TestNewBufferRejects(t *testing.T) {
	r := ringq.NewHeapRegion(100)
	if _, err := ringq.NewBuffer(r, 64, 64); !errors.Is(err, ringq.ErrRegionSize) {
		t.Fatalf("short region: got %v, want ErrRegionSize", err)
	}
	if _, err := ringq.NewBuffer(r, 12, 16); !errors.Is(err, ringq.ErrRegionSize) {
		t.Fatalf("odd header: got %v, want ErrRegionSize", err)
	}
	if _, err := ringq.NewBuffer(r, 64, 0); !errors.Is(err, ringq.ErrCapacity) {
		t.Fatalf("zero capacity: got %v, want ErrCapacity", err)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want ringq.Status
		str  string
	}{
		{nil, ringq.StatusOK, "OK"},
		{ringq.ErrWouldBlock, ringq.StatusEAGAIN, "EAGAIN"},
		{ringq.ErrOverflow, ringq.StatusOverflow, "OVERFLOW"},
		{ringq.ErrWriterExists, ringq.StatusError, "ERROR"},
	}
	for _, tt := range tests {
		got := ringq.StatusOf(tt.err)
		if got != tt.want || got.String() != tt.str {
			t.Fatalf("StatusOf(%v): got %v, want %v", tt.err, got, tt.want)
		}
	}
	if !ringq.IsNonFailure(ringq.ErrWouldBlock) || ringq.IsNonFailure(ringq.ErrOverflow) {
		t.Fatal("IsNonFailure: ErrWouldBlock must be non-failure, ErrOverflow must not")
	}
}
