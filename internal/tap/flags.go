// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tap

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// binding ties a flag and its environment variable to one Config field.
type binding struct {
	flag  string
	env   string
	apply func(dst, src *Config)
}

type flagBinder struct {
	fs       *flag.FlagSet
	cfg      *Config
	bindings []binding
	errs     []error
}

// checkEnv records an error when env is set but parse rejects it.
func (b *flagBinder) checkEnv(env string, parse func(string) error) {
	if value := os.Getenv(env); value != "" {
		if err := parse(value); err != nil {
			b.errs = append(b.errs, fmt.Errorf("env %s=%q: %w", env, value, err))
		}
	}
}

func (b *flagBinder) stringVar(name, env, usage string, field func(*Config) *string) {
	p := field(b.cfg)
	b.fs.StringVar(p, name, Env(env, *p), usage+" (env: "+env+")")
	b.bindings = append(b.bindings, binding{name, env, func(dst, src *Config) { *field(dst) = *field(src) }})
}

func (b *flagBinder) intVar(name, env, usage string, field func(*Config) *int) {
	b.checkEnv(env, func(v string) error { _, err := strconv.Atoi(v); return err })
	p := field(b.cfg)
	b.fs.IntVar(p, name, EnvInt(env, *p), usage+" (env: "+env+")")
	b.bindings = append(b.bindings, binding{name, env, func(dst, src *Config) { *field(dst) = *field(src) }})
}

func (b *flagBinder) boolVar(name, env, usage string, field func(*Config) *bool) {
	b.checkEnv(env, func(v string) error { _, err := strconv.ParseBool(v); return err })
	p := field(b.cfg)
	b.fs.BoolVar(p, name, EnvBool(env, *p), usage+" (env: "+env+")")
	b.bindings = append(b.bindings, binding{name, env, func(dst, src *Config) { *field(dst) = *field(src) }})
}

func (b *flagBinder) durationVar(name, env, usage string, field func(*Config) *time.Duration) {
	b.checkEnv(env, func(v string) error { _, err := time.ParseDuration(v); return err })
	p := field(b.cfg)
	b.fs.DurationVar(p, name, EnvDuration(env, *p), usage+" (env: "+env+")")
	b.bindings = append(b.bindings, binding{name, env, func(dst, src *Config) { *field(dst) = *field(src) }})
}

// ParseConfig parses args into a Config. Precedence, lowest first: defaults,
// the YAML file named by -config, RINGQ_* environment variables, explicit
// flags. A set but unparseable environment variable is an error. feed adds
// the publishing flags.
func ParseConfig(fs *flag.FlagSet, args []string, feed bool) (Config, error) {
	flagged := DefaultConfig()
	b := &flagBinder{fs: fs, cfg: &flagged}

	path := fs.String("config", Env("RINGQ_CONFIG", ""), "YAML configuration file (env: RINGQ_CONFIG)")
	b.stringVar("name", "RINGQ_NAME", "Shared-memory region name", func(c *Config) *string { return &c.Name })
	b.stringVar("kind", "RINGQ_KIND", "Queue kind: lossy, lossless, multi", func(c *Config) *string { return &c.Kind })
	b.intVar("capacity", "RINGQ_CAPACITY", "Arena size in bytes", func(c *Config) *int { return &c.Capacity })
	b.intVar("record-size", "RINGQ_RECORD_SIZE", "Fixed record size for lossy and lossless queues", func(c *Config) *int { return &c.RecordSize })
	b.stringVar("log-level", "RINGQ_LOG_LEVEL", "Log level: debug, info, warn, error", func(c *Config) *string { return &c.LogLevel })
	b.stringVar("log-format", "RINGQ_LOG_FORMAT", "Log format: json, text", func(c *Config) *string { return &c.LogFormat })
	b.stringVar("metrics-addr", "RINGQ_METRICS_ADDR", "Address serving /metrics, empty to disable", func(c *Config) *string { return &c.MetricsAddr })
	if feed {
		b.intVar("rate", "RINGQ_RATE", "Records per second per writer, 0 for unpaced", func(c *Config) *int { return &c.Rate })
		b.intVar("count", "RINGQ_COUNT", "Records per writer, 0 to run until stopped", func(c *Config) *int { return &c.Count })
		b.intVar("writers", "RINGQ_WRITERS", "Concurrent writers (multi queue only)", func(c *Config) *int { return &c.Writers })
		b.intVar("payload", "RINGQ_PAYLOAD", "Largest multi-queue payload", func(c *Config) *int { return &c.Payload })
		b.boolVar("remove", "RINGQ_REMOVE", "Remove the shared-memory region on exit", func(c *Config) *bool { return &c.Remove })
	} else {
		b.durationVar("report", "RINGQ_REPORT", "Interval between progress lines", func(c *Config) *time.Duration { return &c.Report })
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := errors.Join(b.errs...); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	if *path != "" {
		var err error
		if cfg, err = LoadConfig(*path); err != nil {
			return Config{}, err
		}
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for _, bd := range b.bindings {
		if set[bd.flag] || os.Getenv(bd.env) != "" {
			bd.apply(&cfg, &flagged)
		}
	}
	return cfg, nil
}
