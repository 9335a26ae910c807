// Package config loads run parameters from an optional YAML file and the
// environment. Environment variables win over the file, and the file wins
// over the defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/samplesort/internal/samplesort"
)

const (
	DefaultTotal  = 1_000_000
	DefaultMaxKey = 1_000_000
)

// Config holds every setting of the coordinator, the nodes and the
// single-binary runner. Each binary reads the fields it needs.
type Config struct {
	Total    int    `yaml:"total"`
	Procs    int    `yaml:"procs"`
	Strategy string `yaml:"strategy"`
	Root     int    `yaml:"root"`
	Seed     int64  `yaml:"seed"`
	MaxKey   int64  `yaml:"max_key"`

	Coordinator string `yaml:"coordinator"`
	Listen      string `yaml:"listen"`
	NodeID      string `yaml:"node_id"`
	NodeListen  string `yaml:"node_listen"`
	NodeAddr    string `yaml:"node_addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Total:      DefaultTotal,
		Procs:      4,
		Strategy:   string(samplesort.StrategyCollective),
		Seed:       1,
		MaxKey:     DefaultMaxKey,
		Listen:     ":8080",
		NodeListen: ":8081",
		NodeAddr:   "http://127.0.0.1:8081",
	}
}

// Load starts from Default, overlays the YAML file at path if path is not
// empty, then applies the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SORT_* and the node/coordinator variables.
func (c *Config) ApplyEnv() error {
	var errs []error
	intVar := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	int64Var := func(key string, dst *int64) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	intVar("SORT_TOTAL", &c.Total)
	intVar("SORT_PROCS", &c.Procs)
	intVar("SORT_ROOT", &c.Root)
	int64Var("SORT_SEED", &c.Seed)
	int64Var("SORT_MAX_KEY", &c.MaxKey)
	c.Strategy = getenv("SORT_STRATEGY", c.Strategy)
	c.Coordinator = getenv("COORDINATOR_ADDR", c.Coordinator)
	c.Listen = getenv("COORDINATOR_LISTEN", c.Listen)
	c.NodeID = getenv("NODE_ID", c.NodeID)
	c.NodeListen = getenv("NODE_LISTEN", c.NodeListen)
	c.NodeAddr = getenv("NODE_ADDR", c.NodeAddr)

	return errors.Join(errs...)
}

// Validate rejects settings that would fail mid-protocol.
func (c *Config) Validate() error {
	if err := samplesort.ValidateGroup(c.Total, c.Procs); err != nil {
		return err
	}
	if _, err := samplesort.NewExchanger(samplesort.Strategy(c.Strategy)); err != nil {
		return err
	}
	if c.Root < 0 || c.Root >= c.Procs {
		return fmt.Errorf("%w: pivot root %d for %d processes", samplesort.ErrInvalidRank, c.Root, c.Procs)
	}
	if c.MaxKey <= 0 {
		return fmt.Errorf("max key must be positive, got %d", c.MaxKey)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
