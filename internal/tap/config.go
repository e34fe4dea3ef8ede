// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"code.hybscloud.com/ringq"
)

// Config describes the shared-memory queue a tool attaches to and how the
// tool runs. Both ringtap and ringfeed read it; each ignores the fields it
// does not use.
type Config struct {
	// Queue layout; every attached process must agree on it
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"`
	Capacity   int    `yaml:"capacity"`
	RecordSize int    `yaml:"record_size"`

	// Feed
	Rate    int  `yaml:"rate"`    // records per second per writer, 0 = unpaced
	Count   int  `yaml:"count"`   // records per writer, 0 = until stopped
	Writers int  `yaml:"writers"` // multi queue only
	Payload int  `yaml:"payload"` // largest multi payload
	Remove  bool `yaml:"remove"`  // unlink the region on exit

	// Tap
	Report time.Duration `yaml:"report"`

	// Ambient
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Kind:       ringq.KindLossy.String(),
		Capacity:   1 << 20,
		RecordSize: 64,
		Writers:    1,
		Payload:    256,
		Report:     5 * time.Second,
		LogLevel:   "info",
		LogFormat:  "json",
	}
}

// LoadConfig reads a YAML file over the defaults. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// QueueKind returns the parsed queue variant.
func (c Config) QueueKind() (ringq.Kind, error) {
	return ringq.ParseKind(c.Kind)
}

// Validate checks the configuration before any region is opened.
func (c Config) Validate() error {
	if c.Name == "" {
		return errors.New("config: name is required")
	}
	kind, err := c.QueueKind()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Capacity < 2 {
		return fmt.Errorf("config: capacity %d too small", c.Capacity)
	}
	switch kind {
	case ringq.KindMulti:
		if c.Capacity < ringq.MinMultiCapacity {
			return fmt.Errorf("config: multi capacity must be >= %d", ringq.MinMultiCapacity)
		}
		if c.Payload < RecordHeaderLen || c.Payload > c.Capacity/2-4 {
			return fmt.Errorf("config: payload %d outside [%d, %d]", c.Payload, RecordHeaderLen, c.Capacity/2-4)
		}
		if c.Writers < 1 {
			return fmt.Errorf("config: writers %d must be >= 1", c.Writers)
		}
	default:
		if c.RecordSize < RecordHeaderLen {
			return fmt.Errorf("config: record_size %d below %d", c.RecordSize, RecordHeaderLen)
		}
		if c.Capacity < 2*c.RecordSize {
			return fmt.Errorf("config: capacity %d below two records", c.Capacity)
		}
		if c.Writers != 1 {
			return fmt.Errorf("config: %s queue takes exactly one writer, got %d", kind, c.Writers)
		}
	}
	if c.Rate < 0 || c.Count < 0 {
		return errors.New("config: rate and count must not be negative")
	}
	if c.Report <= 0 {
		return fmt.Errorf("config: report interval %v must be positive", c.Report)
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("config: invalid log level: %s", c.LogLevel)
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		return fmt.Errorf("config: invalid log format: %s", c.LogFormat)
	}
	return nil
}

// Builder returns a queue builder for the configured layout.
func (c Config) Builder() *ringq.Builder {
	return ringq.New(c.Capacity).RecordSize(c.RecordSize).Shared(c.Name)
}

// Environment variable helper functions

// Env returns the value of key, or def when it is unset or empty.
func Env(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}

// EnvInt returns key parsed as an int, or def.
func EnvInt(key string, def int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return def
}

// EnvBool returns key parsed as a bool, or def.
func EnvBool(key string, def bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return def
}

// EnvDuration returns key parsed as a duration, or def.
func EnvDuration(key string, def time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return def
}
