package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file, expands environment variables, and
// unmarshals into a Config struct. Unknown keys are rejected, as are
// counts no session can run with. Roles, kinds and cluster values are
// checked later by ToTopology, after flags are applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	expanded, err := ExpandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	switch {
	case cfg.Frames < 0:
		return nil, fmt.Errorf("config %s: frames must be >= 0, got %d", path, cfg.Frames)
	case cfg.Storage.Snapshots < 0:
		return nil, fmt.Errorf("config %s: storage.snapshots must be >= 0, got %d", path, cfg.Storage.Snapshots)
	case cfg.Storage.BatchSize < 0:
		return nil, fmt.Errorf("config %s: storage.batch_size must be >= 0, got %d", path, cfg.Storage.BatchSize)
	case cfg.Storage.FlushInterval.Duration < 0:
		return nil, fmt.Errorf("config %s: storage.flush_interval must be >= 0, got %s", path, cfg.Storage.FlushInterval.Duration)
	case cfg.Interval.Duration < 0:
		return nil, fmt.Errorf("config %s: interval must be >= 0, got %s", path, cfg.Interval.Duration)
	}
	return &cfg, nil
}
