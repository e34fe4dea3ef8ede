// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters a tool exports for one queue.
type Metrics struct {
	Records      prometheus.Counter
	Bytes        prometheus.Counter
	Empty        prometheus.Counter // polls that found nothing new
	Overflows    prometheus.Counter
	Skipped      prometheus.Counter // records skipped to recover from overflow
	Gaps         prometheus.Counter // sequence numbers never seen
	Backpressure prometheus.Counter // puts refused by a full lossless queue
	Lag          prometheus.Gauge   // published bytes not yet read
	Latency      prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics registers the tool counters on a private registry, labelled
// with the queue name.
func NewMetrics(tool, queue string) *Metrics {
	labels := prometheus.Labels{"queue": queue}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ringq",
			Subsystem:   tool,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	m := &Metrics{
		Records:      counter("records_total", "Records transferred"),
		Bytes:        counter("bytes_total", "Payload bytes transferred"),
		Empty:        counter("empty_polls_total", "Reads that found no new record"),
		Overflows:    counter("overflows_total", "Times the reader was lapped by writers"),
		Skipped:      counter("skipped_records_total", "Records skipped while recovering from overflow"),
		Gaps:         counter("sequence_gaps_total", "Sequence numbers missing from the stream"),
		Backpressure: counter("backpressure_total", "Puts refused because a reader had no room"),
		Lag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "ringq",
			Subsystem:   tool,
			Name:        "lag_bytes",
			Help:        "Published bytes the reader has not consumed",
			ConstLabels: labels,
		}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "ringq",
			Subsystem:   tool,
			Name:        "latency_seconds",
			Help:        "Time from record stamp to read",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-7, 4, 12),
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.Records, m.Bytes, m.Empty, m.Overflows, m.Skipped,
		m.Gaps, m.Backpressure, m.Lag, m.Latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve exposes /metrics and /health on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("Metrics server listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
