// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command ringtap attaches read-only to a shared-memory queue and follows
// it, logging throughput and exporting Prometheus metrics. It never writes
// to the region, so it can watch a live queue without disturbing writers.
//
// Usage:
//
//	ringtap -name md.orders -kind multi -capacity 1048576
//	ringtap -config /etc/ringq/orders.yaml -log-level debug -metrics-addr :9464
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"code.hybscloud.com/ringq/internal/tap"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("ringtap failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("ringtap", flag.ExitOnError)
	cfg, err := tap.ParseConfig(fs, args, false)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := tap.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat, "ringtap")
	slog.SetDefault(logger)

	kind, err := cfg.QueueKind()
	if err != nil {
		return err
	}
	src, err := tap.OpenSource(kind, cfg.Builder())
	if err != nil {
		return fmt.Errorf("attach %s: %w", cfg.Name, err)
	}
	defer src.Close()
	logger.Info("Attached", "queue", cfg.Name, "kind", kind.String(), "capacity", cfg.Capacity)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := tap.NewMetrics("tap", cfg.Name)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	return tap.New(src, logger, metrics, cfg.Report).Run(ctx)
}
