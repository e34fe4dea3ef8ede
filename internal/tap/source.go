// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tap

import (
	"errors"
	"io"

	"code.hybscloud.com/ringq"
)

// Source is a read-only view of one queue.
type Source interface {
	// Next returns the next record. The slice is valid until the next call.
	Next() ([]byte, error)

	// Recover repositions the reader after ErrOverflow and returns the
	// number of records skipped, or -1 when it cannot be known.
	Recover() int

	// Lag returns the published bytes not yet consumed.
	Lag() uint64

	Close() error
}

// OpenSource attaches read-only to the queue b describes.
//
// Lossless queues are read through the lossy reader: their layout is the
// same, and a reader in another process is not registered with the writer,
// so it must detect being lapped like a lossy reader does.
func OpenSource(kind ringq.Kind, b *ringq.Builder) (Source, error) {
	b = b.ReadOnly()
	switch kind {
	case ringq.KindLossy, ringq.KindLossless:
		q, err := ringq.BuildLossy(b)
		if err != nil {
			return nil, err
		}
		return &lossySource{q: q, r: q.NewReader(), buf: make([]byte, q.RecordSize())}, nil
	case ringq.KindMulti:
		q, err := ringq.BuildMulti(b)
		if err != nil {
			return nil, err
		}
		return &multiSource{q: q, r: q.NewReader(), buf: make([]byte, 256)}, nil
	default:
		return nil, errors.New("tap: unknown queue kind " + kind.String())
	}
}

type lossySource struct {
	q   *ringq.Lossy
	r   *ringq.LossyReader
	buf []byte
}

func (s *lossySource) Next() ([]byte, error) {
	if err := s.r.Read(s.buf); err != nil {
		return nil, err
	}
	return s.buf, nil
}

func (s *lossySource) Recover() int { return s.r.CatchUp() }

func (s *lossySource) Lag() uint64 { return s.q.ReadyBytes() - s.r.Pos() }

func (s *lossySource) Close() error { return s.q.Close() }

type multiSource struct {
	q   *ringq.Multi
	r   *ringq.MultiReader
	buf []byte
}

func (s *multiSource) Next() ([]byte, error) {
	n, err := s.r.Read(s.buf)
	if errors.Is(err, io.ErrShortBuffer) {
		s.buf = make([]byte, n)
		n, err = s.r.Read(s.buf)
	}
	if err != nil {
		return nil, err
	}
	return s.buf[:n], nil
}

// Recover starts over at the newest sync point; the records in between are
// not counted.
func (s *multiSource) Recover() int {
	s.r = s.q.NewReader()
	return -1
}

func (s *multiSource) Lag() uint64 { return s.q.ReadyBytes() - s.r.Pos() }

func (s *multiSource) Close() error { return s.q.Close() }
