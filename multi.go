// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringq

import (
	"encoding/binary"
	"io"
	"math"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Multi is a multi-writer, multi-reader queue of variable-length records.
//
// Each record is framed as a 4-byte little-endian length followed by the
// payload. Writers claim space with Fetch-And-Add on write_pos, copy, then add
// the record length to dirty_pos. When dirty_pos catches up with write_pos no
// reservation is in flight (a synchronization point) and the finishing writer
// raises ready_bytes to it. Readers therefore never see partially written or
// out-of-order bytes, but may see a record later than it was written while
// another writer still holds a reservation.
//
// Invariant: write_pos >= dirty_pos >= ready_bytes, and ready_bytes is always
// a record boundary.
//
// Backpressure: once write_pos - ready_bytes reaches capacity/2, writers
// switch from Fetch-And-Add to a CAS loop that only claims space after the gap
// drops below capacity/2. A writer that never finishes its reservation thus
// stalls every other writer.
//
// Writers do not wait for readers; a reader lapped by write_pos sees
// [ErrOverflow] and must be recreated.
//
// Header: write_pos and dirty_pos share the first cache line, ready_bytes
// owns the second.
type Multi struct {
	buf      *Buffer
	writePos *atomix.Uint64
	dirtyPos *atomix.Uint64
	ready    *atomix.Uint64
	capacity uint64
	half     uint64
	readOnly bool
	owned    bool
}

// MinMultiCapacity is the smallest arena a Multi queue accepts.
const MinMultiCapacity = 4 * lenPrefix

func newMulti(buf *Buffer, readOnly, init bool) (*Multi, error) {
	if buf.capacity < MinMultiCapacity {
		return nil, ErrCapacity
	}
	q := &Multi{
		buf:      buf,
		writePos: buf.counter(offWritePos),
		dirtyPos: buf.counter(offDirtyPos),
		ready:    buf.counter(offMultiReady),
		capacity: buf.capacity,
		half:     buf.capacity / 2,
		readOnly: readOnly,
	}
	if init && !readOnly {
		q.ready.StoreRelease(0)
		q.dirtyPos.StoreRelease(0)
		q.writePos.StoreRelease(0)
	}
	return q, nil
}

// NewWriter returns a writer handle. Any number of writers may exist.
// Returns ErrReadOnly if the queue is attached read-only.
func (q *Multi) NewWriter() (*MultiWriter, error) {
	if q.readOnly {
		return nil, ErrReadOnly
	}
	return &MultiWriter{q: q}, nil
}

// NewReader returns a reader positioned at ready_bytes: it sees only records
// that become visible after it was created.
func (q *Multi) NewReader() *MultiReader {
	return &MultiReader{q: q, buf: q.buf, pos: q.ready.LoadAcquire()}
}

// Cap returns the arena capacity in bytes.
func (q *Multi) Cap() int { return int(q.capacity) }

// MaxPayload returns the largest payload Put accepts.
func (q *Multi) MaxPayload() int {
	return int(min(q.half-lenPrefix, math.MaxUint32))
}

// ReadyBytes returns the reader-visible position.
func (q *Multi) ReadyBytes() QPos { return q.ready.LoadAcquire() }

// WritePos returns the claimed position, including in-flight reservations.
func (q *Multi) WritePos() QPos { return q.writePos.LoadAcquire() }

// DirtyPos returns the number of bytes fully written by finished writers.
func (q *Multi) DirtyPos() QPos { return q.dirtyPos.LoadAcquire() }

// Close closes the region when the queue opened it.
func (q *Multi) Close() error {
	if !q.owned {
		return nil
	}
	return q.buf.region.Close()
}

// MultiWriter publishes records to a [Multi] queue.
// It keeps no per-call state and is safe for concurrent use.
type MultiWriter struct {
	q *Multi
}

// Put frames payload with its length and publishes it.
// Returns ErrRecordSize when the payload exceeds MaxPayload.
func (w *MultiWriter) Put(payload []byte) error {
	if len(payload) > w.q.MaxPayload() {
		return ErrRecordSize
	}
	w.finalizeWrite(w.write(payload))
	return nil
}

// write claims space for payload and copies the framed record in. The
// record stays invisible until finalizeWrite is called with the returned
// length.
func (w *MultiWriter) write(payload []byte) uint64 {
	total := uint64(lenPrefix + len(payload))
	pos := w.getWritePos(total)

	var prefix [lenPrefix]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(payload)))
	w.q.buf.CopyIn(pos, prefix[:])
	w.q.buf.CopyIn(pos+lenPrefix, payload)
	return total
}

// getWritePos claims total bytes and returns the start of the claim.
func (w *MultiWriter) getWritePos(total uint64) uint64 {
	q := w.q
	// Load ready first: it never passes a write_pos observed later.
	ready := q.ready.LoadAcquire()
	if q.writePos.LoadAcquire()-ready < q.half {
		return q.writePos.AddAcqRel(total) - total
	}

	// Too much claimed but unpublished data: claim only below the threshold.
	sw := spin.Wait{}
	for {
		ready = q.ready.LoadAcquire()
		pos := q.writePos.LoadAcquire()
		if pos-ready >= q.half {
			sw.Once()
			continue
		}
		if q.writePos.CompareAndSwapAcqRel(pos, pos+total) {
			return pos
		}
	}
}

// finalizeWrite marks total bytes as written and, at a synchronization
// point, publishes everything written so far.
func (w *MultiWriter) finalizeWrite(total uint64) {
	q := w.q
	dirty := q.dirtyPos.AddAcqRel(total)
	if dirty != q.writePos.LoadAcquire() {
		return
	}
	// Several writers may race here; the highest value wins.
	ready := q.ready.LoadAcquire()
	for ready < dirty {
		if q.ready.CompareAndSwapAcqRel(ready, dirty) {
			return
		}
		ready = q.ready.LoadAcquire()
	}
}

// MultiReader consumes a [Multi] queue at its own pace.
// It must be used from one goroutine.
type MultiReader struct {
	q       *Multi
	buf     *Buffer
	pos     uint64
	last    uint64 // framed length of the record returned by Peek
	scratch []byte
}

// lapped reports whether writers may have claimed the bytes at the read
// position.
func (r *MultiReader) lapped() bool {
	return r.q.writePos.LoadAcquire()-r.pos >= r.q.capacity
}

// next validates the record at the read position and returns its payload
// length.
func (r *MultiReader) next() (uint64, error) {
	if r.lapped() {
		return 0, ErrOverflow
	}
	unread := r.q.ready.LoadAcquire() - r.pos
	if unread == 0 {
		return 0, ErrWouldBlock
	}
	var prefix [lenPrefix]byte
	r.buf.CopyOut(r.pos, prefix[:])
	n := uint64(binary.LittleEndian.Uint32(prefix[:]))
	if lenPrefix+n > unread {
		// Only a torn prefix can claim more than was published.
		return 0, ErrOverflow
	}
	return n, nil
}

// Peek returns the next payload without consuming it.
//
// The slice is a direct arena view, or a reader-owned copy when the payload
// straddles the end of the arena; it is valid until the next call on this
// reader. Advance reports ErrOverflow if the view was overwritten meanwhile.
func (r *MultiReader) Peek() ([]byte, error) {
	n, err := r.next()
	if err != nil {
		return nil, err
	}
	data := r.pos + lenPrefix
	view, ok := r.buf.Contiguous(data, n)
	if !ok {
		if uint64(cap(r.scratch)) < n {
			r.scratch = make([]byte, n, max(n, 2*uint64(cap(r.scratch))))
		}
		view = r.scratch[:n]
		r.buf.CopyOut(data, view)
		if r.lapped() {
			return nil, ErrOverflow
		}
	}
	r.last = lenPrefix + n
	return view, nil
}

// Advance consumes the record returned by Peek.
func (r *MultiReader) Advance() error {
	if r.last == 0 {
		return ErrWouldBlock
	}
	if r.lapped() {
		return ErrOverflow
	}
	r.pos += r.last
	r.last = 0
	return nil
}

// Read copies the next payload into dst, advances, and returns its length.
//
// When dst is too small Read returns the payload length and
// io.ErrShortBuffer without advancing.
func (r *MultiReader) Read(dst []byte) (int, error) {
	r.last = 0
	n, err := r.next()
	if err != nil {
		return 0, err
	}
	if uint64(len(dst)) < n {
		return int(n), io.ErrShortBuffer
	}
	r.buf.CopyOut(r.pos+lenPrefix, dst[:n])
	if r.lapped() {
		return 0, ErrOverflow
	}
	r.pos += lenPrefix + n
	return int(n), nil
}

// SeekToTop walks record by record to the newest visible record. Variable
// length records cannot be skipped arithmetically.
//
// Returns ErrWouldBlock when nothing is unread and ErrOverflow when the
// reader was lapped before or during the walk; the position is unchanged on
// error.
func (r *MultiReader) SeekToTop() error {
	r.last = 0
	if r.lapped() {
		return ErrOverflow
	}
	ready := r.q.ready.LoadAcquire()
	if ready == r.pos {
		return ErrWouldBlock
	}
	if ready-r.pos >= r.q.capacity {
		return ErrOverflow
	}
	pos := r.pos
	var prefix [lenPrefix]byte
	for {
		r.buf.CopyOut(pos, prefix[:])
		next := pos + lenPrefix + uint64(binary.LittleEndian.Uint32(prefix[:]))
		if next > ready || next <= pos {
			return ErrOverflow
		}
		if next == ready {
			break
		}
		pos = next
	}
	if r.lapped() {
		return ErrOverflow
	}
	r.pos = pos
	return nil
}

// Sync moves past every visible record.
func (r *MultiReader) Sync() {
	r.last = 0
	r.pos = r.q.ready.LoadAcquire()
}

// Pos returns the reader's logical position.
func (r *MultiReader) Pos() QPos {
	return r.pos
}
