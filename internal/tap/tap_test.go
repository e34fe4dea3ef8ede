// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/ringq"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// harness wires a feed and a tap to one heap region, the way ringfeed and
// ringtap share a named region.
type harness struct {
	cfg    Config
	target *Target
	src    Source
	feedM  *Metrics
	tapM   *Metrics
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	cfg.Name = "test-" + uuid.NewString()
	require.NoError(t, cfg.Validate())
	kind, err := cfg.QueueKind()
	require.NoError(t, err)

	region := ringq.NewHeapRegion(ringq.RegionSize(kind, cfg.Capacity))
	builder := func() *ringq.Builder {
		return ringq.New(cfg.Capacity).RecordSize(cfg.RecordSize).Region(region)
	}

	h := &harness{cfg: cfg, feedM: NewMetrics("feed", cfg.Name), tapM: NewMetrics("tap", cfg.Name)}
	h.target, err = OpenTarget(kind, builder(), cfg.Writers)
	require.NoError(t, err)
	t.Cleanup(func() { h.target.Close() })

	// The tap attaches before anything is published.
	h.src, err = OpenSource(kind, builder())
	require.NoError(t, err)
	t.Cleanup(func() { h.src.Close() })
	return h
}

// feed publishes cfg.Count records per writer and waits for them.
func (h *harness) feed(t *testing.T) {
	t.Helper()
	f, err := NewFeed(h.cfg, discardLogger(), h.feedM)
	require.NoError(t, err)
	require.NoError(t, f.Run(t.Context(), h.target))
}

// drain runs the tap until it has read want records.
func (h *harness) drain(t *testing.T, want int) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	tp := New(h.src, discardLogger(), h.tapM, 10*time.Millisecond)
	go func() { done <- tp.Run(ctx) }()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.tapM.Records) >= float64(want)
	}, 5*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestTapLossyInOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity, cfg.RecordSize, cfg.Count = 4096, 32, 100
	h := newHarness(t, cfg)

	h.feed(t)
	assert.Equal(t, 100.0, testutil.ToFloat64(h.feedM.Records))

	h.drain(t, 100)
	assert.Equal(t, 100.0, testutil.ToFloat64(h.tapM.Records))
	assert.Equal(t, 3200.0, testutil.ToFloat64(h.tapM.Bytes))
	assert.Zero(t, testutil.ToFloat64(h.tapM.Gaps))
	assert.Zero(t, testutil.ToFloat64(h.tapM.Overflows))
	assert.Equal(t, 1, testutil.CollectAndCount(h.tapM.Latency, "ringq_tap_latency_seconds"))
}

// TestTapLossyOverflow publishes more than the arena holds before the tap
// reads; the tap must recover with CatchUp and count what it skipped.
func TestTapLossyOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity, cfg.RecordSize, cfg.Count = 256, 32, 20
	h := newHarness(t, cfg)

	h.feed(t)
	// 640 bytes published, 224 readable: skip 13, read 13..19
	h.drain(t, 7)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.tapM.Overflows))
	assert.Equal(t, 13.0, testutil.ToFloat64(h.tapM.Skipped))
	assert.Equal(t, 7.0, testutil.ToFloat64(h.tapM.Records))
}

func TestTapLossless(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kind = ringq.KindLossless.String()
	cfg.Capacity, cfg.RecordSize, cfg.Count = 1024, 32, 30
	h := newHarness(t, cfg)

	h.feed(t)
	h.drain(t, 30)
	assert.Zero(t, testutil.ToFloat64(h.feedM.Backpressure))
	assert.Zero(t, testutil.ToFloat64(h.tapM.Gaps))
}

func TestTapMultiWriters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kind = ringq.KindMulti.String()
	cfg.Capacity, cfg.Payload, cfg.Writers, cfg.Count = 4096, 64, 3, 10
	h := newHarness(t, cfg)
	require.Len(t, h.target.Sinks(), 3)

	h.feed(t)
	h.drain(t, 30)
	assert.Equal(t, 30.0, testutil.ToFloat64(h.tapM.Records))
	assert.Zero(t, testutil.ToFloat64(h.tapM.Gaps))
	assert.Zero(t, testutil.ToFloat64(h.tapM.Overflows))
}

func TestTapCountsGaps(t *testing.T) {
	m := NewMetrics("tap", "gaps")
	tp := New(nil, discardLogger(), m, time.Second)

	rec := make([]byte, 32)
	for _, seq := range []uint64{0, 1, 5, 6, 9} {
		EncodeRecord(rec, 1, seq, time.Now())
		tp.observe(t.Context(), rec)
	}
	EncodeRecord(rec, 2, 40, time.Now())
	tp.observe(t.Context(), rec)
	tp.observe(t.Context(), []byte("foreign record"))

	assert.Equal(t, 5.0, testutil.ToFloat64(m.Gaps))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Records))
}

func TestOpenTargetRejectsWriters(t *testing.T) {
	b := ringq.New(1024).RecordSize(32)
	_, err := OpenTarget(ringq.KindLossy, b, 2)
	assert.Error(t, err)
	_, err = OpenTarget(ringq.KindMulti, ringq.New(1024), 0)
	assert.Error(t, err)
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics("tap", "md.orders")
	m.Records.Add(3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `ringq_tap_records_total{queue="md.orders"} 3`)
	assert.Contains(t, string(body), "go_goroutines")
}
