// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringq_test

import (
	"fmt"
	"sync"
	"testing"

	"code.hybscloud.com/ringq"
	"code.hybscloud.com/spin"
)

// =============================================================================
// Single-Writer Baselines
// =============================================================================

func BenchmarkLossy_SingleOp(b *testing.B) {
	for _, size := range []int{16, 64, 256} {
		b.Run(fmt.Sprintf("Record%d", size), func(b *testing.B) {
			q, _ := ringq.BuildLossy(ringq.New(1 << 16).RecordSize(size))
			w, _ := q.Writer()
			r := q.NewReader()
			rec := make([]byte, size)

			b.SetBytes(int64(size))
			b.ResetTimer()
			for range b.N {
				w.Put(rec)
				r.Read(rec)
			}
		})
	}
}

func BenchmarkLossy_PeekAdvance(b *testing.B) {
	q, _ := ringq.BuildLossy(ringq.New(1 << 16).RecordSize(64))
	w, _ := q.Writer()
	r := q.NewReader()

	b.SetBytes(64)
	b.ResetTimer()
	for range b.N {
		slot := w.Reserve()
		slot[0] = 1
		w.Commit()
		r.Peek()
		r.Advance()
	}
}

func BenchmarkLossless_SingleOp(b *testing.B) {
	q, _ := ringq.BuildLossless(ringq.New(1 << 16).RecordSize(64))
	w, _ := q.Writer()
	r, _ := q.NewReader()
	defer r.Close()
	rec := make([]byte, 64)

	b.SetBytes(64)
	b.ResetTimer()
	for range b.N {
		w.Put(rec)
		r.Read(rec)
	}
}

// =============================================================================
// Multi-Writer Benchmarks
// =============================================================================

func BenchmarkMulti_SingleOp(b *testing.B) {
	q, _ := ringq.BuildMulti(ringq.New(1 << 16))
	w, _ := q.NewWriter()
	r := q.NewReader()
	payload := make([]byte, 60)
	dst := make([]byte, 64)

	b.SetBytes(64)
	b.ResetTimer()
	for range b.N {
		w.Put(payload)
		r.Read(dst)
	}
}

// BenchmarkMulti_Writers measures Put throughput with several writers and
// no reader.
func BenchmarkMulti_Writers(b *testing.B) {
	if ringq.RaceEnabled {
		b.Skip("skip: records are published through acquire-release counters")
	}
	for _, writers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("W%d", writers), func(b *testing.B) {
			q, _ := ringq.BuildMulti(ringq.New(1 << 20))
			payload := make([]byte, 60)
			per := b.N/writers + 1

			b.SetBytes(64)
			b.ResetTimer()
			var wg sync.WaitGroup
			for range writers {
				w, _ := q.NewWriter()
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range per {
						w.Put(payload)
					}
				}()
			}
			wg.Wait()
		})
	}
}

// BenchmarkLossless_Pipeline measures a writer and a reader on separate
// goroutines.
func BenchmarkLossless_Pipeline(b *testing.B) {
	if ringq.RaceEnabled {
		b.Skip("skip: records are published through acquire-release counters")
	}
	q, _ := ringq.BuildLossless(ringq.New(1 << 12).RecordSize(64))
	w, _ := q.Writer()
	r, _ := q.NewReader()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer r.Close()
		rec := make([]byte, 64)
		sw := spin.Wait{}
		for n := 0; n < b.N; {
			if r.Read(rec) != nil {
				sw.Once()
				continue
			}
			n++
		}
	}()

	rec := make([]byte, 64)
	b.SetBytes(64)
	b.ResetTimer()
	for range b.N {
		w.Put(rec)
	}
	<-done
}
