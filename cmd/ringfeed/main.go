// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command ringfeed creates a shared-memory queue, initializes its counters,
// and publishes synthetic sequence-numbered records for ringtap or any other
// reader to consume.
//
// Usage:
//
//	ringfeed -kind lossy -record-size 64 -rate 100000
//	ringfeed -name md.orders -kind multi -writers 4 -payload 512 -count 1000000
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"code.hybscloud.com/ringq"
	"code.hybscloud.com/ringq/internal/tap"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("ringfeed failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("ringfeed", flag.ExitOnError)
	cfg, err := tap.ParseConfig(fs, args, true)
	if err != nil {
		return err
	}
	if cfg.Name == "" {
		// A fresh region per run; the name is logged for the tap.
		cfg.Name = "ringq-" + uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := tap.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat, "ringfeed")
	slog.SetDefault(logger)

	kind, err := cfg.QueueKind()
	if err != nil {
		return err
	}
	target, err := tap.OpenTarget(kind, cfg.Builder(), cfg.Writers)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Name, err)
	}
	defer target.Close()
	if cfg.Remove {
		defer func() {
			if err := ringq.RemoveSharedRegion(cfg.Name); err != nil {
				logger.Warn("Remove region", "queue", cfg.Name, "error", err)
			}
		}()
	}
	logger.Info("Publishing",
		"queue", cfg.Name,
		"kind", kind.String(),
		"capacity", cfg.Capacity,
		"writers", cfg.Writers,
		"rate", cfg.Rate,
		"count", cfg.Count)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := tap.NewMetrics("feed", cfg.Name)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	feed, err := tap.NewFeed(cfg, logger, metrics)
	if err != nil {
		return err
	}
	return feed.Run(ctx, target)
}
