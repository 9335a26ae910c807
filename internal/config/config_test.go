package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/samplesort/internal/samplesort"
)

// TestDefault verifies the built-in settings are valid
func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultTotal, cfg.Total)
	assert.Equal(t, "collective", cfg.Strategy)
	assert.NoError(t, cfg.Validate())
}

// TestLoadYAML tests file values overlaying defaults
func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sort.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
total: 5000
procs: 3
strategy: pairwise
root: 2
coordinator: http://coord:8080
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Total)
	assert.Equal(t, 3, cfg.Procs)
	assert.Equal(t, "pairwise", cfg.Strategy)
	assert.Equal(t, 2, cfg.Root)
	assert.Equal(t, "http://coord:8080", cfg.Coordinator)
	assert.Equal(t, int64(DefaultMaxKey), cfg.MaxKey, "unset fields keep defaults")
	assert.NoError(t, cfg.Validate())
}

// TestLoadErrors tests unreadable and malformed files
func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("total: [1, 2"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

// TestApplyEnv tests environment overrides and parse failures
func TestApplyEnv(t *testing.T) {
	t.Run("overrides file and defaults", func(t *testing.T) {
		t.Setenv("SORT_TOTAL", "77")
		t.Setenv("SORT_PROCS", "7")
		t.Setenv("SORT_STRATEGY", "pairwise")
		t.Setenv("SORT_SEED", "-3")
		t.Setenv("NODE_ID", "n9")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 77, cfg.Total)
		assert.Equal(t, 7, cfg.Procs)
		assert.Equal(t, "pairwise", cfg.Strategy)
		assert.Equal(t, int64(-3), cfg.Seed)
		assert.Equal(t, "n9", cfg.NodeID)
	})

	t.Run("bad numbers are reported", func(t *testing.T) {
		t.Setenv("SORT_TOTAL", "lots")
		t.Setenv("SORT_MAX_KEY", "1e6")

		cfg := Default()
		err := cfg.ApplyEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SORT_TOTAL")
		assert.Contains(t, err.Error(), "SORT_MAX_KEY")
		assert.Equal(t, DefaultTotal, cfg.Total)
	})
}

// TestValidate tests configuration errors caught before a run starts
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"zero procs", func(c *Config) { c.Procs = 0 }, samplesort.ErrInvalidProcessCount},
		{"negative procs", func(c *Config) { c.Procs = -1 }, samplesort.ErrInvalidProcessCount},
		{"fewer keys than procs", func(c *Config) { c.Total = 3 }, samplesort.ErrEmptyShare},
		{"unknown strategy", func(c *Config) { c.Strategy = "gossip" }, samplesort.ErrUnknownStrategy},
		{"root out of range", func(c *Config) { c.Root = 4 }, samplesort.ErrInvalidRank},
		{"bad max key", func(c *Config) { c.MaxKey = 0 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
