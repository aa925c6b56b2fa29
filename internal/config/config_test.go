package config

import (
	"path/filepath"
	"testing"

	"github.com/harun/cortex/pkg/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	require.NotNil(t, cfg.Regions.Working.Capacity)
	assert.Equal(t, 128, *cfg.Regions.Working.Capacity)
	assert.Equal(t, "hippocampus.db", cfg.Regions.Declarative.StorageLocation)
	assert.Equal(t, "cerebellum", cfg.Regions.Procedural.StorageLocation)
	assert.False(t, cfg.Regions.Associative.CacheEnabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestConfigRegion(t *testing.T) {
	cfg := DefaultConfig()

	rc, err := cfg.Region(memory.RegionEmotional)
	require.NoError(t, err)
	assert.Equal(t, "amygdala.db", rc.StorageLocation)

	_, err = cfg.Region(memory.Region("thalamus"))
	assert.ErrorIs(t, err, memory.ErrUnknownRegion)
}

func TestConfigStoragePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/cortex"

	t.Run("relative resolves against data dir", func(t *testing.T) {
		path, err := cfg.StoragePath(memory.RegionDeclarative)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/var/lib/cortex", "hippocampus.db"), path)
	})

	t.Run("absolute kept", func(t *testing.T) {
		cfg.Regions.Emotional.StorageLocation = "/srv/amygdala.db"
		path, err := cfg.StoragePath(memory.RegionEmotional)
		require.NoError(t, err)
		assert.Equal(t, "/srv/amygdala.db", path)
	})

	t.Run("working has none", func(t *testing.T) {
		_, err := cfg.StoragePath(memory.RegionWorking)
		assert.ErrorIs(t, err, memory.ErrInvalidConfiguration)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "negative capacity",
			mutate:  func(c *Config) { c.Regions.Working.Capacity = IntPtr(-1) },
			wantMsg: "capacity must be >= 0",
		},
		{
			name:    "missing capacity",
			mutate:  func(c *Config) { c.Regions.Working.Capacity = nil },
			wantMsg: "capacity is required",
		},
		{
			name:    "missing storage location",
			mutate:  func(c *Config) { c.Regions.Procedural.StorageLocation = "" },
			wantMsg: "procedural: storage_location is required",
		},
		{
			name:    "negative retry limit",
			mutate:  func(c *Config) { c.Regions.Declarative.MaxRetryLimit = -2 },
			wantMsg: "max_retry_limit must be >= 0",
		},
		{
			name:    "negative iterations",
			mutate:  func(c *Config) { c.Regions.Associative.MaxIterations = -1 },
			wantMsg: "max_iterations must be >= 0",
		},
		{
			name: "shared storage location",
			mutate: func(c *Config) {
				c.Regions.Emotional.StorageLocation = c.Regions.Declarative.StorageLocation
			},
			wantMsg: "share storage location",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantMsg: "invalid log level",
		},
		{
			name:    "bad schedule",
			mutate:  func(c *Config) { c.Maintenance.CheckpointSchedule = "every now and then" },
			wantMsg: "invalid checkpoint schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, memory.ErrInvalidConfiguration)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	t.Run("zero capacity is valid", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Regions.Working.Capacity = IntPtr(0)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("empty schedule disables maintenance", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Maintenance.CheckpointSchedule = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestValidatorSchedule(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateSchedule("@every 5m"))
	assert.NoError(t, v.ValidateSchedule("0 3 * * *"))
	assert.Error(t, v.ValidateSchedule("61 * * * *"))
}

func TestConfigString(t *testing.T) {
	s := DefaultConfig().String()
	assert.Contains(t, s, `"storage_location": "amygdala.db"`)
}
