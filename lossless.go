// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringq

import (
	"io"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Lossless is a single-writer, multi-reader queue of fixed-size records that
// never drops data.
//
// Every reader publishes its consumed position. Before each record the writer
// spins until all registered readers have room, so readers never overflow.
// A reader that stops consuming without Close stalls the writer
// indefinitely: the cost of losing nothing.
//
// Capacity and record size must both be powers of two. Reader positions
// are tracked in this process; readers in other processes attached to the
// same region are not seen by the writer.
//
// Memory: header + capacity bytes in the region, plus MaxReaders cache lines.
type Lossless struct {
	_        pad
	writer   atomix.Uint64
	_        pad
	slots    [MaxReaders]readerSlot
	buf      *Buffer
	ready    *atomix.Uint64
	size     uint64
	limit    uint64
	readOnly bool
	owned    bool
}

// Reader slot states.
const (
	slotFree uint64 = iota
	slotClaimed
	slotActive
)

// readerSlot publishes one reader's consumed position to the writer.
type readerSlot struct {
	state atomix.Uint64
	pos   atomix.Uint64
	_     padPair
}

func newLossless(buf *Buffer, recordSize int, readOnly, init bool) (*Lossless, error) {
	size := uint64(recordSize)
	if recordSize <= 0 || !isPow2(size) {
		return nil, ErrRecordSize
	}
	if !isPow2(buf.capacity) || buf.capacity < 2*size {
		return nil, ErrCapacity
	}
	q := &Lossless{
		buf:      buf,
		ready:    buf.counter(offReadyBytes),
		size:     size,
		limit:    buf.capacity - size,
		readOnly: readOnly,
	}
	if init && !readOnly {
		q.ready.StoreRelease(0)
	}
	return q, nil
}

// Writer returns the queue's only writer handle.
// Returns ErrWriterExists if a writer handle is live, ErrReadOnly if the
// queue is attached read-only.
func (q *Lossless) Writer() (*LosslessWriter, error) {
	if q.readOnly {
		return nil, ErrReadOnly
	}
	if !q.writer.CompareAndSwapAcqRel(0, 1) {
		return nil, ErrWriterExists
	}
	return &LosslessWriter{q: q, buf: q.buf, ready: q.ready, size: q.size, limit: q.limit}, nil
}

// NewReader registers a reader positioned at the newest published byte.
// Returns ErrTooManyReaders when MaxReaders readers are registered.
// The caller must Close the reader; an abandoned reader blocks the writer.
func (q *Lossless) NewReader() (*LosslessReader, error) {
	for i := range q.slots {
		s := &q.slots[i]
		if !s.state.CompareAndSwapAcqRel(slotFree, slotClaimed) {
			continue
		}
		s.pos.StoreRelease(q.ready.LoadAcquire())
		s.state.StoreRelease(slotActive)
		// A put that scanned the slots before activation may have
		// published since; start after it.
		pos := q.ready.LoadAcquire()
		s.pos.StoreRelease(pos)
		return &LosslessReader{
			q:       q,
			slot:    s,
			buf:     q.buf,
			ready:   q.ready,
			size:    q.size,
			limit:   q.limit,
			pos:     pos,
			scratch: make([]byte, q.size),
		}, nil
	}
	return nil, ErrTooManyReaders
}

// Cap returns the arena capacity in bytes.
func (q *Lossless) Cap() int { return int(q.buf.capacity) }

// RecordSize returns the fixed record size in bytes.
func (q *Lossless) RecordSize() int { return int(q.size) }

// ReadyBytes returns the published write position.
func (q *Lossless) ReadyBytes() QPos { return q.ready.LoadAcquire() }

// Readers returns the number of registered readers.
func (q *Lossless) Readers() int {
	n := 0
	for i := range q.slots {
		if q.slots[i].state.LoadAcquire() == slotActive {
			n++
		}
	}
	return n
}

// Close closes the region when the queue opened it.
func (q *Lossless) Close() error {
	if !q.owned {
		return nil
	}
	return q.buf.region.Close()
}

// LosslessWriter is the single writer of a [Lossless] queue.
// It must be used from one goroutine.
type LosslessWriter struct {
	q     *Lossless
	buf   *Buffer
	ready *atomix.Uint64
	size  uint64
	limit uint64
}

// roomFor reports whether every active reader leaves room for a record at pos.
func (w *LosslessWriter) roomFor(pos uint64) bool {
	for i := range w.q.slots {
		s := &w.q.slots[i]
		if s.state.LoadAcquire() != slotActive {
			continue
		}
		if pos-s.pos.LoadAcquire() > w.limit {
			return false
		}
	}
	return true
}

// Put spins until every registered reader has room, then copies record into
// the queue and publishes it. len(record) must equal the record size.
func (w *LosslessWriter) Put(record []byte) error {
	if uint64(len(record)) != w.size {
		return ErrRecordSize
	}
	pos := w.ready.LoadRelaxed()
	sw := spin.Wait{}
	for !w.roomFor(pos) {
		sw.Once()
	}
	w.buf.CopyIn(pos, record)
	w.ready.StoreRelease(pos + w.size)
	return nil
}

// TryPut is Put without spinning: it returns ErrWouldBlock when a reader
// has not yet freed room.
func (w *LosslessWriter) TryPut(record []byte) error {
	if uint64(len(record)) != w.size {
		return ErrRecordSize
	}
	pos := w.ready.LoadRelaxed()
	if !w.roomFor(pos) {
		return ErrWouldBlock
	}
	w.buf.CopyIn(pos, record)
	w.ready.StoreRelease(pos + w.size)
	return nil
}

// Close releases the writer claim.
func (w *LosslessWriter) Close() error {
	if w.q != nil {
		w.q.writer.StoreRelease(0)
		w.q = nil
	}
	return nil
}

// LosslessReader is a registered reader of a [Lossless] queue.
// It must be used from one goroutine.
//
// Unlike a [LossyReader] it does not reseek when a restarted writer resets
// ready_bytes below its position: Read reports ErrWouldBlock until the
// writer passes it again or the reader seeks.
type LosslessReader struct {
	q       *Lossless
	slot    *readerSlot
	buf     *Buffer
	ready   *atomix.Uint64
	size    uint64
	limit   uint64
	pos     uint64
	scratch []byte
}

// publish makes the read position visible to the writer.
func (r *LosslessReader) publish() {
	if r.slot != nil {
		r.slot.pos.StoreRelease(r.pos)
	}
}

// Read copies the next record into dst, advances, and publishes the new
// position. Returns ErrWouldBlock when no new record is published.
func (r *LosslessReader) Read(dst []byte) error {
	if uint64(len(dst)) < r.size {
		return io.ErrShortBuffer
	}
	if r.ready.LoadAcquire() <= r.pos {
		return ErrWouldBlock
	}
	r.buf.CopyOut(r.pos, dst[:r.size])
	r.pos += r.size
	r.publish()
	return nil
}

// Peek returns the next record without consuming it. The slice is a direct
// arena view, or a reader-local copy when the record straddles the end of
// the arena, and stays intact until Advance: the writer cannot reuse the
// slot before this reader publishes past it.
func (r *LosslessReader) Peek() ([]byte, error) {
	if r.ready.LoadAcquire() <= r.pos {
		return nil, ErrWouldBlock
	}
	if view, ok := r.buf.Contiguous(r.pos, r.size); ok {
		return view, nil
	}
	r.buf.CopyOut(r.pos, r.scratch)
	return r.scratch, nil
}

// Advance consumes the record returned by Peek and publishes the position.
func (r *LosslessReader) Advance() error {
	if r.ready.LoadAcquire() <= r.pos {
		return ErrWouldBlock
	}
	r.pos += r.size
	r.publish()
	return nil
}

// SeekToTop moves to the newest published record.
func (r *LosslessReader) SeekToTop() {
	ready := r.ready.LoadAcquire()
	if ready < r.size {
		r.seek(0)
		return
	}
	r.seek(ready - r.size)
}

// SeekToBottom moves to the oldest record the writer cannot be overwriting.
// Moving backwards makes the writer wait for this reader again.
func (r *LosslessReader) SeekToBottom() {
	ready := r.ready.LoadAcquire()
	if ready <= r.limit {
		r.seek(0)
		return
	}
	r.seek(ready - r.limit)
}

// seek publishes pos, then moves forward past any slot a put checked
// against the previous position may still be copying into. Once pos is
// published that put is the only one in flight, and it writes at ready.
func (r *LosslessReader) seek(pos uint64) {
	r.pos = pos
	r.publish()
	ready := r.ready.LoadAcquire()
	if ready > r.limit && r.pos < ready-r.limit {
		r.pos = ready - r.limit
		r.publish()
	}
}

// Pos returns the reader's logical position.
func (r *LosslessReader) Pos() QPos {
	return r.pos
}

// Close deregisters the reader so the writer stops waiting for it.
func (r *LosslessReader) Close() error {
	if r.slot != nil {
		r.slot.state.StoreRelease(slotFree)
		r.slot = nil
	}
	return nil
}
