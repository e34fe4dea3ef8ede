// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tap holds the plumbing shared by the ringtap and ringfeed tools:
// configuration, logging, metrics, and the read and publish loops.
package tap

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/ringq"
)

// Tap drains a Source, decoding records and keeping the metrics current.
type Tap struct {
	src     Source
	log     *slog.Logger
	metrics *Metrics
	report  time.Duration
	now     func() time.Time

	last map[uint32]uint64 // newest sequence per writer
	seen int64
}

// New returns a tap over src. report is the interval between throughput
// log lines.
func New(src Source, logger *slog.Logger, metrics *Metrics, report time.Duration) *Tap {
	return &Tap{
		src:     src,
		log:     logger,
		metrics: metrics,
		report:  report,
		now:     time.Now,
		last:    make(map[uint32]uint64),
	}
}

// Run polls the source until ctx is done. It backs off while the queue is
// empty and recovers from overflow without stopping.
func (t *Tap) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.report)
	defer ticker.Stop()

	backoff := iox.Backoff{}
	var reported int64
	for ctx.Err() == nil {
		rec, err := t.src.Next()
		switch {
		case err == nil:
			backoff.Reset()
			t.observe(ctx, rec)
		case ringq.IsWouldBlock(err):
			t.metrics.Empty.Inc()
			backoff.Wait()
		case ringq.IsOverflow(err):
			skipped := t.src.Recover()
			t.metrics.Overflows.Inc()
			if skipped > 0 {
				t.metrics.Skipped.Add(float64(skipped))
			}
			t.log.Warn("Reader lapped by writers", "skipped", skipped)
		default:
			return fmt.Errorf("tap: read: %w", err)
		}

		select {
		case <-ticker.C:
			lag := t.src.Lag()
			t.metrics.Lag.Set(float64(lag))
			t.log.Info("Tap progress",
				"records", t.seen,
				"rate", float64(t.seen-reported)/t.report.Seconds(),
				"lag_bytes", lag)
			reported = t.seen
		default:
		}
	}
	t.log.Info("Tap stopped", "records", t.seen)
	return nil
}

// observe accounts for one record.
func (t *Tap) observe(ctx context.Context, rec []byte) {
	t.seen++
	t.metrics.Records.Inc()
	t.metrics.Bytes.Add(float64(len(rec)))

	r, ok := DecodeRecord(rec)
	if ok {
		if prev, seen := t.last[r.Writer]; seen && r.Seq > prev+1 {
			t.metrics.Gaps.Add(float64(r.Seq - prev - 1))
		}
		t.last[r.Writer] = r.Seq
		t.metrics.Latency.Observe(t.now().Sub(r.Stamp).Seconds())
	}

	if t.log.Enabled(ctx, slog.LevelDebug) {
		t.log.Debug("Record",
			"size", len(rec),
			"writer", r.Writer,
			"seq", r.Seq,
			"decoded", ok,
			"head", hex.EncodeToString(rec[:min(len(rec), 16)]))
	}
}
