// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringq

import "fmt"

// Options configures queue creation.
type Options struct {
	// Arena size in bytes (excluding the header)
	capacity int

	// Fixed record size for the single-writer queues
	recordSize int

	// Backing memory: caller-supplied region, named shared memory, or heap
	region Region
	name   string

	// Attachment semantics
	readOnly bool
	noInit   bool
}

// Builder creates queues with fluent configuration.
//
// Example:
//
//	// In-process lossy queue of 64-byte records
//	q, err := ringq.BuildLossy(ringq.New(1 << 16).RecordSize(64))
//
//	// Multi-writer queue in shared memory, initialized by this process
//	q, err := ringq.BuildMulti(ringq.New(1 << 20).Shared("md.trades"))
//
//	// Read-only attachment from another process
//	q, err := ringq.BuildMulti(ringq.New(1 << 20).Shared("md.trades").ReadOnly())
type Builder struct {
	opts Options
}

// New creates a queue builder for an arena of capacity bytes.
//
// Panics if capacity < 2.
func New(capacity int) *Builder {
	if capacity < 2 {
		panic("ringq: capacity must be >= 2")
	}
	return &Builder{opts: Options{capacity: capacity}}
}

// RecordSize sets the fixed record size used by BuildLossy and BuildLossless.
func (b *Builder) RecordSize(n int) *Builder {
	b.opts.recordSize = n
	return b
}

// Shared places the queue in the named shared-memory region, creating it
// when opened writable. The queue closes the region on Close.
func (b *Builder) Shared(name string) *Builder {
	b.opts.name = name
	return b
}

// Region places the queue in a caller-owned region. The caller closes it.
// Several queues may be built on one region to simulate separate attachments.
func (b *Builder) Region(r Region) *Builder {
	b.opts.region = r
	return b
}

// ReadOnly attaches without write access: no writer can be created and the
// counters are never reset.
func (b *Builder) ReadOnly() *Builder {
	b.opts.readOnly = true
	return b
}

// NoInit attaches writable without resetting the counters. Use it for every
// writer process except the designated initializer.
func (b *Builder) NoInit() *Builder {
	b.opts.noInit = true
	return b
}

// BuildLossy creates a single-writer lossy queue of fixed-size records.
// Capacity must be at least twice the record size.
func BuildLossy(b *Builder) (*Lossy, error) {
	buf, owned, err := b.open(singleHeaderLen)
	if err != nil {
		return nil, err
	}
	q, err := newLossy(buf, b.opts.recordSize, b.readOnly(buf), !b.opts.noInit)
	if err != nil {
		return nil, closeOwned(buf.region, owned, err)
	}
	q.owned = owned
	return q, nil
}

// BuildLossless creates a single-writer lossless queue of fixed-size records.
// Capacity and record size must be powers of two.
func BuildLossless(b *Builder) (*Lossless, error) {
	buf, owned, err := b.open(singleHeaderLen)
	if err != nil {
		return nil, err
	}
	q, err := newLossless(buf, b.opts.recordSize, b.readOnly(buf), !b.opts.noInit)
	if err != nil {
		return nil, closeOwned(buf.region, owned, err)
	}
	q.owned = owned
	return q, nil
}

// BuildMulti creates a multi-writer queue of variable-length records.
// Capacity must be at least MinMultiCapacity.
func BuildMulti(b *Builder) (*Multi, error) {
	buf, owned, err := b.open(multiHeaderLen)
	if err != nil {
		return nil, err
	}
	q, err := newMulti(buf, b.readOnly(buf), !b.opts.noInit)
	if err != nil {
		return nil, closeOwned(buf.region, owned, err)
	}
	q.owned = owned
	return q, nil
}

// RegionSize returns the region size a queue of kind needs for an arena of
// capacity bytes, for callers that create regions themselves.
func RegionSize(kind Kind, capacity int) int {
	if kind == KindMulti {
		return multiHeaderLen + capacity
	}
	return singleHeaderLen + capacity
}

// Kind names a queue variant.
type Kind uint8

const (
	KindLossy Kind = iota
	KindLossless
	KindMulti
)

func (k Kind) String() string {
	switch k {
	case KindLossy:
		return "lossy"
	case KindLossless:
		return "lossless"
	case KindMulti:
		return "multi"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind parses a queue variant name as printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "lossy":
		return KindLossy, nil
	case "lossless":
		return KindLossless, nil
	case "multi":
		return KindMulti, nil
	default:
		return 0, fmt.Errorf("ringq: unknown queue kind %q", s)
	}
}

// open resolves the backing region and lays out the buffer. owned reports
// whether the queue must close the region.
func (b *Builder) open(headerLen int) (buf *Buffer, owned bool, err error) {
	size := headerLen + b.opts.capacity
	var r Region
	switch {
	case b.opts.region != nil:
		r = b.opts.region
	case b.opts.name != "":
		r, err = OpenSharedRegion(b.opts.name, size, b.opts.readOnly)
		if err != nil {
			return nil, false, err
		}
		owned = true
	default:
		r = NewHeapRegion(size)
		owned = true
	}
	buf, err = NewBuffer(r, headerLen, b.opts.capacity)
	if err != nil {
		return nil, false, closeOwned(r, owned, err)
	}
	return buf, owned, nil
}

// readOnly reports whether the queue must refuse writers.
func (b *Builder) readOnly(buf *Buffer) bool {
	return b.opts.readOnly || !buf.region.Writable()
}

// closeOwned closes r when the builder opened it and returns err.
func closeOwned(r Region, owned bool, err error) error {
	if owned {
		_ = r.Close()
	}
	return err
}
