// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ringq provides lock-free circular-buffer queues for low-latency
// communication between threads and between processes.
//
// All queues store records in one contiguous arena, addressed by logical
// byte positions that only grow; the physical offset of a position is
// pos mod capacity. The arena may live on the heap or in named shared
// memory, so a writer in one process and readers in others see the same
// bytes. Readers never block writers except where stated.
//
// The package offers three queue variants:
//
//   - Lossy: one writer, many readers, fixed-size records. The writer never
//     waits; a lapped reader gets [ErrOverflow].
//   - Lossless: one writer, up to [MaxReaders] registered readers,
//     fixed-size records. The writer waits for the slowest reader.
//   - Multi: many writers, many readers, variable-length records framed by a
//     4-byte little-endian length. Records become visible at
//     synchronization points where no reservation is in flight.
//
// # Quick Start
//
// In-process queues:
//
//	q, err := ringq.BuildLossy(ringq.New(1 << 16).RecordSize(64))
//	q, err := ringq.BuildLossless(ringq.New(1 << 16).RecordSize(64))
//	q, err := ringq.BuildMulti(ringq.New(1 << 20))
//
// Shared-memory queues. Exactly one process initializes the counters; other
// writers attach with NoInit and readers with ReadOnly:
//
//	q, err := ringq.BuildMulti(ringq.New(1 << 20).Shared("md.orders"))           // initializer
//	q, err := ringq.BuildMulti(ringq.New(1 << 20).Shared("md.orders").NoInit())  // more writers
//	q, err := ringq.BuildMulti(ringq.New(1 << 20).Shared("md.orders").ReadOnly()) // readers
//
// Every process must use the same capacity; a mismatched region size is
// rejected with [ErrRegionSize].
//
// # Basic Usage
//
//	w, err := q.NewWriter()
//	err = w.Put(payload)
//
//	r := q.NewReader()
//	n, err := r.Read(buf)
//	switch {
//	case ringq.IsWouldBlock(err):
//	    // Nothing new - poll again later
//	case ringq.IsOverflow(err):
//	    // Lapped - reseek or recreate the reader
//	}
//
// A new reader starts at the newest published position and sees only
// records published after it was created.
//
// # Zero-Copy Reads
//
// Peek returns a view into the arena when the record is contiguous and a
// reader-owned copy when it straddles the end of the arena. Advance consumes
// it and, for the lossy and multi queues, reports [ErrOverflow] if the view
// may have been overwritten while borrowed:
//
//	view, err := r.Peek()
//	if err == nil {
//	    process(view)
//	    err = r.Advance()
//	}
//
// # Recovering From Overflow
//
// Lossy readers can skip the fewest records with CatchUp, or jump with
// SeekToTop (newest record) and SeekToBottom (oldest intact record). Multi
// readers cannot skip arithmetically over variable-length records; they call
// SeekToTop, Sync, or create a new reader.
//
// # Error Handling
//
// Expected control-flow conditions are values, not failures:
//
//   - [ErrWouldBlock] (an alias of iox.ErrWouldBlock): no data yet, or no
//     room for a lossless writer
//   - [ErrOverflow]: the reader was lapped
//
// [StatusOf] maps any returned error to a [Status] code for callers that
// dispatch on codes.
//
// # Thread Safety
//
//   - Lossy and Lossless writers: one goroutine holds the writer handle
//   - Multi writers: any number of handles, each safe for concurrent use
//   - Readers: one goroutine per reader; create more readers to fan out
//
// Region-level Close must happen after every reader and writer is done.
//
// # Race Detection
//
// Record bytes are plain memory published through acquire-release counters.
// Go's race detector cannot observe that ordering and reports false
// positives, so concurrent tests skip when [RaceEnabled] is set.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic counters with explicit memory
// ordering, [code.hybscloud.com/spin] for CPU pause instructions, and
// [golang.org/x/sys/unix] for shared-memory mappings.
package ringq
