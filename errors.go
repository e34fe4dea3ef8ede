// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For readers: no new record has been published yet (EAGAIN).
// For [LosslessWriter.TryPut]: a registered reader has not freed enough room.
//
// ErrWouldBlock is a control flow signal, not a failure. Poll again later,
// typically after an [iox.Backoff] wait.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrOverflow reports that a reader fell far enough behind the writers that
// the record it was about to consume may already have been overwritten.
//
// On a [LossyReader] it is recoverable: call [LossyReader.CatchUp] (or one of
// the seek methods) and continue. On a [MultiReader] the reader has been
// lapped and should be discarded and recreated.
var ErrOverflow = errors.New("ringq: reader overflow")

// Construction-time errors. These report programmer or deployment mistakes,
// never runtime conditions of a healthy queue.
var (
	// ErrWriterExists is returned when a second writer is requested on a
	// single-writer queue.
	ErrWriterExists = errors.New("ringq: writer already exists")

	// ErrTooManyReaders is returned when a lossless queue already has
	// MaxReaders registered readers.
	ErrTooManyReaders = errors.New("ringq: too many readers")

	// ErrReadOnly is returned when a writer is requested on a read-only
	// attachment.
	ErrReadOnly = errors.New("ringq: queue attached read-only")

	// ErrCapacity is returned for a capacity the queue variant cannot use.
	ErrCapacity = errors.New("ringq: invalid capacity")

	// ErrRecordSize is returned for an invalid fixed record size, or for a
	// record whose length does not fit the queue.
	ErrRecordSize = errors.New("ringq: invalid record size")

	// ErrSharedMemoryUnsupported is returned by the shared-memory backend on
	// platforms without mmap support.
	ErrSharedMemoryUnsupported = errors.New("ringq: shared memory not supported on this platform")
)

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsOverflow reports whether err is, or wraps, [ErrOverflow].
func IsOverflow(err error) bool {
	return errors.Is(err, ErrOverflow)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil or ErrWouldBlock.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

// Status is the coarse outcome of a queue operation, for callers that keep
// status codes rather than errors (counters, wire protocols, logs).
type Status uint8

const (
	StatusOK       Status = iota // record consumed or published
	StatusEAGAIN                 // nothing new yet
	StatusOverflow               // data loss or lapping detected
	StatusError                  // any other error
)

// StatusOf maps an error returned by this package to a Status.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case IsWouldBlock(err):
		return StatusEAGAIN
	case IsOverflow(err):
		return StatusOverflow
	default:
		return StatusError
	}
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusEAGAIN:
		return "EAGAIN"
	case StatusOverflow:
		return "OVERFLOW"
	default:
		return "ERROR"
	}
}
