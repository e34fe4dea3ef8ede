// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/ringq"
)

// Sink publishes records into one queue writer.
type Sink interface {
	// Put publishes rec, returning ErrWouldBlock when the queue has no room.
	Put(rec []byte) error
}

type putFunc func([]byte) error

func (f putFunc) Put(rec []byte) error { return f(rec) }

// Target is a writable attachment to one queue with its writer handles.
type Target struct {
	kind  ringq.Kind
	sinks []Sink
	close func() error
}

// OpenTarget attaches writable to the queue b describes and creates the
// writers. Lossy and lossless queues take exactly one writer.
func OpenTarget(kind ringq.Kind, b *ringq.Builder, writers int) (*Target, error) {
	if writers < 1 || (kind != ringq.KindMulti && writers != 1) {
		return nil, fmt.Errorf("tap: %s queue cannot take %d writers", kind, writers)
	}
	switch kind {
	case ringq.KindLossy:
		q, err := ringq.BuildLossy(b)
		if err != nil {
			return nil, err
		}
		w, err := q.Writer()
		if err != nil {
			q.Close()
			return nil, err
		}
		return &Target{kind: kind, sinks: []Sink{putFunc(w.Put)}, close: q.Close}, nil
	case ringq.KindLossless:
		q, err := ringq.BuildLossless(b)
		if err != nil {
			return nil, err
		}
		w, err := q.Writer()
		if err != nil {
			q.Close()
			return nil, err
		}
		return &Target{kind: kind, sinks: []Sink{putFunc(w.TryPut)}, close: q.Close}, nil
	case ringq.KindMulti:
		q, err := ringq.BuildMulti(b)
		if err != nil {
			return nil, err
		}
		t := &Target{kind: kind, close: q.Close}
		for range writers {
			w, err := q.NewWriter()
			if err != nil {
				q.Close()
				return nil, err
			}
			t.sinks = append(t.sinks, w)
		}
		return t, nil
	default:
		return nil, errors.New("tap: unknown queue kind " + kind.String())
	}
}

// Sinks returns one sink per writer.
func (t *Target) Sinks() []Sink { return t.sinks }

// Close detaches from the queue.
func (t *Target) Close() error { return t.close() }

// Feed publishes synthetic sequence-numbered records.
type Feed struct {
	log     *slog.Logger
	metrics *Metrics
	rate    int // per writer, 0 = unpaced
	count   int // per writer, 0 = until ctx is done
	size    int // fixed record size, or the largest multi payload
	fixed   bool
}

// NewFeed configures a feed from cfg.
func NewFeed(cfg Config, logger *slog.Logger, metrics *Metrics) (*Feed, error) {
	kind, err := cfg.QueueKind()
	if err != nil {
		return nil, err
	}
	f := &Feed{
		log:     logger,
		metrics: metrics,
		rate:    cfg.Rate,
		count:   cfg.Count,
		size:    cfg.Payload,
		fixed:   kind != ringq.KindMulti,
	}
	if f.fixed {
		f.size = cfg.RecordSize
	}
	return f, nil
}

// Run drives every sink of t from its own goroutine until each has sent
// its count or ctx is done. Returns the first hard error.
func (f *Feed) Run(ctx context.Context, t *Target) error {
	var wg sync.WaitGroup
	errs := make([]error, len(t.sinks))
	for i, sink := range t.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.drive(ctx, uint32(i), sink)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// recordLen returns the length of record seq: the fixed size, or a length
// cycling through [RecordHeaderLen, size] for the multi queue.
func (f *Feed) recordLen(seq uint64) int {
	if f.fixed {
		return f.size
	}
	return RecordHeaderLen + int(seq%uint64(f.size-RecordHeaderLen+1))
}

func (f *Feed) drive(ctx context.Context, writer uint32, sink Sink) error {
	buf := make([]byte, f.size)
	start := time.Now()
	backoff := iox.Backoff{}
	var seq uint64
	for ctx.Err() == nil && (f.count == 0 || seq < uint64(f.count)) {
		if f.rate > 0 {
			due := uint64(time.Since(start).Seconds() * float64(f.rate))
			if seq >= due {
				backoff.Wait()
				continue
			}
		}
		rec := buf[:f.recordLen(seq)]
		EncodeRecord(rec, writer, seq, time.Now())
		err := sink.Put(rec)
		switch {
		case err == nil:
			backoff.Reset()
			f.metrics.Records.Inc()
			f.metrics.Bytes.Add(float64(len(rec)))
			seq++
		case ringq.IsWouldBlock(err):
			f.metrics.Backpressure.Inc()
			backoff.Wait()
		default:
			f.log.Error("Put failed", "writer", writer, "seq", seq, "error", err)
			return err
		}
	}
	f.log.Info("Writer done", "writer", writer, "records", seq)
	return nil
}
