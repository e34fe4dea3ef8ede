// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringq

import (
	"io"

	"code.hybscloud.com/atomix"
)

// Lossy is a single-writer, multi-reader queue of fixed-size records.
//
// The writer never waits for readers. A reader that falls more than one
// arena behind sees [ErrOverflow] and must reseek; data loss is the price of
// a writer that never blocks.
//
// Header: one 64-bit ready_bytes counter in a 64-byte slot.
//
// Memory: header + capacity bytes, shared by every attachment to the region.
type Lossy struct {
	_        pad
	writer   atomix.Uint64 // 1 while a LossyWriter handle is live
	_        pad
	buf      *Buffer
	ready    *atomix.Uint64
	size     uint64 // record size
	limit    uint64 // capacity - size: largest unread span that is intact
	readOnly bool
	owned    bool // Close closes the region
}

func newLossy(buf *Buffer, recordSize int, readOnly, init bool) (*Lossy, error) {
	size := uint64(recordSize)
	if recordSize <= 0 {
		return nil, ErrRecordSize
	}
	if buf.capacity < 2*size {
		return nil, ErrCapacity
	}
	q := &Lossy{
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
func (q *Lossy) Writer() (*LossyWriter, error) {
	if q.readOnly {
		return nil, ErrReadOnly
	}
	if !q.writer.CompareAndSwapAcqRel(0, 1) {
		return nil, ErrWriterExists
	}
	return &LossyWriter{
		q:       q,
		buf:     q.buf,
		ready:   q.ready,
		size:    q.size,
		scratch: make([]byte, q.size),
	}, nil
}

// NewReader returns a reader positioned at the newest published byte: it
// sees only records written after it was created.
// The caller owns the reader; it holds no shared state to release.
func (q *Lossy) NewReader() *LossyReader {
	return &LossyReader{
		buf:     q.buf,
		ready:   q.ready,
		size:    q.size,
		limit:   q.limit,
		pos:     q.ready.LoadAcquire(),
		scratch: make([]byte, q.size),
	}
}

// Cap returns the arena capacity in bytes.
func (q *Lossy) Cap() int { return int(q.buf.capacity) }

// RecordSize returns the fixed record size in bytes.
func (q *Lossy) RecordSize() int { return int(q.size) }

// ReadyBytes returns the published write position.
func (q *Lossy) ReadyBytes() QPos { return q.ready.LoadAcquire() }

// Close closes the region when the queue opened it. Readers and writers
// must not be used afterwards.
func (q *Lossy) Close() error {
	if !q.owned {
		return nil
	}
	return q.buf.region.Close()
}

// LossyWriter is the single writer of a [Lossy] queue.
// It must be used from one goroutine.
type LossyWriter struct {
	q        *Lossy
	buf      *Buffer
	ready    *atomix.Uint64
	size     uint64
	scratch  []byte
	straddle bool // the last Reserve handed out scratch
}

// Put copies record into the queue and publishes it.
// len(record) must equal the queue's record size.
func (w *LossyWriter) Put(record []byte) error {
	if uint64(len(record)) != w.size {
		return ErrRecordSize
	}
	pos := w.ready.LoadRelaxed()
	w.buf.CopyIn(pos, record)
	w.ready.StoreRelease(pos + w.size)
	return nil
}

// Reserve returns the slot for the next record so the producer can build it
// in place. Commit publishes it.
//
// When the slot would straddle the end of the arena, Reserve returns a
// writer-local buffer instead and Commit copies it in.
func (w *LossyWriter) Reserve() []byte {
	pos := w.ready.LoadRelaxed()
	if slot, ok := w.buf.Contiguous(pos, w.size); ok {
		w.straddle = false
		return slot
	}
	w.straddle = true
	return w.scratch
}

// Commit publishes the record built in the slot returned by Reserve.
func (w *LossyWriter) Commit() {
	pos := w.ready.LoadRelaxed()
	if w.straddle {
		w.buf.CopyIn(pos, w.scratch)
		w.straddle = false
	}
	w.ready.StoreRelease(pos + w.size)
}

// Close releases the writer claim so another handle can be created.
func (w *LossyWriter) Close() error {
	if w.q != nil {
		w.q.writer.StoreRelease(0)
		w.q = nil
	}
	return nil
}

// LossyReader reads a [Lossy] queue at its own pace.
// It must be used from one goroutine.
type LossyReader struct {
	buf     *Buffer
	ready   *atomix.Uint64
	size    uint64
	limit   uint64
	pos     uint64
	scratch []byte
}

// unread returns the number of published bytes past the read position.
// A position ahead of ready_bytes means the writer restarted; the reader
// moves to the newest record and tries once more.
func (r *LossyReader) unread() (uint64, error) {
	for attempt := 0; ; attempt++ {
		bytes := int64(r.ready.LoadAcquire() - r.pos)
		switch {
		case bytes == 0:
			return 0, ErrWouldBlock
		case bytes < 0:
			if attempt > 0 {
				return 0, ErrWouldBlock
			}
			r.SeekToTop()
			continue
		case uint64(bytes) > r.limit:
			return 0, ErrOverflow
		}
		return uint64(bytes), nil
	}
}

// lapped reports whether the record at the read position may have been
// overwritten.
func (r *LossyReader) lapped() bool {
	return r.ready.LoadAcquire()-r.pos > r.limit
}

// Read copies the next record into dst and advances.
//
// Returns ErrWouldBlock when no new record is published, and ErrOverflow
// when the writer lapped the reader, including during the copy. On
// ErrOverflow dst may hold torn bytes and the position is unchanged.
func (r *LossyReader) Read(dst []byte) error {
	if uint64(len(dst)) < r.size {
		return io.ErrShortBuffer
	}
	if _, err := r.unread(); err != nil {
		return err
	}
	r.buf.CopyOut(r.pos, dst[:r.size])
	if r.lapped() {
		return ErrOverflow
	}
	r.pos += r.size
	return nil
}

// Peek returns the next record without copying when it is contiguous in the
// arena, or a reader-local copy when it straddles the end. The slice is valid
// until the next call on this reader; call Advance to consume it.
func (r *LossyReader) Peek() ([]byte, error) {
	if _, err := r.unread(); err != nil {
		return nil, err
	}
	view, ok := r.buf.Contiguous(r.pos, r.size)
	if !ok {
		r.buf.CopyOut(r.pos, r.scratch)
		view = r.scratch
	}
	return view, nil
}

// Advance consumes the record returned by Peek.
// Returns ErrOverflow, without advancing, when the record may have been
// overwritten while it was borrowed.
func (r *LossyReader) Advance() error {
	if r.ready.LoadAcquire() == r.pos {
		return ErrWouldBlock
	}
	if r.lapped() {
		return ErrOverflow
	}
	r.pos += r.size
	return nil
}

// SeekToTop moves to the newest published record.
func (r *LossyReader) SeekToTop() {
	ready := r.ready.LoadAcquire()
	if ready < r.size {
		r.pos = 0
		return
	}
	r.pos = ready - r.size
}

// SeekToBottom moves to the oldest record that is still intact.
func (r *LossyReader) SeekToBottom() {
	ready := r.ready.LoadAcquire()
	span := r.limit / r.size * r.size
	if ready <= span {
		r.pos = 0
		return
	}
	r.pos = ready - span
}

// CatchUp skips the fewest records needed to clear an overflow and returns
// how many were skipped. It returns 0 when the reader is not behind.
func (r *LossyReader) CatchUp() int {
	ready := r.ready.LoadAcquire()
	behind := ready - r.pos
	if int64(behind) < 0 || behind <= r.limit {
		return 0
	}
	skip := (behind - r.limit + r.size - 1) / r.size
	r.pos += skip * r.size
	return int(skip)
}

// Sync moves past every published record.
func (r *LossyReader) Sync() {
	r.pos = r.ready.LoadAcquire()
}

// Pos returns the reader's logical position.
func (r *LossyReader) Pos() QPos {
	return r.pos
}
