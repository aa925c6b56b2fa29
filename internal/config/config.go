package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harun/cortex/pkg/memory"
)

// Config represents the main cortex configuration
type Config struct {
	// Data directory; relative storage locations resolve against it
	DataDir string `json:"data_dir" mapstructure:"data_dir" yaml:"data_dir"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging" yaml:"logging"`

	// Background store maintenance
	Maintenance MaintenanceConfig `json:"maintenance" mapstructure:"maintenance" yaml:"maintenance"`

	// One record per memory region
	Regions RegionsConfig `json:"regions" mapstructure:"regions" yaml:"regions"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level" yaml:"level"`
	File      string `json:"file" mapstructure:"file" yaml:"file"`
	Console   bool   `json:"console" mapstructure:"console" yaml:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty" yaml:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size" yaml:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age" yaml:"max_age"`    // days
	Compress  bool   `json:"compress" mapstructure:"compress" yaml:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction" yaml:"redaction"`
}

// MaintenanceConfig schedules periodic store checkpoints
type MaintenanceConfig struct {
	// Standard cron expression or descriptor (e.g. "@every 10m"); empty disables
	CheckpointSchedule string `json:"checkpoint_schedule" mapstructure:"checkpoint_schedule" yaml:"checkpoint_schedule"`
}

// RegionsConfig holds the per-region records
type RegionsConfig struct {
	Working     RegionConfig `json:"working" mapstructure:"working" yaml:"working"`
	Declarative RegionConfig `json:"declarative" mapstructure:"declarative" yaml:"declarative"`
	Procedural  RegionConfig `json:"procedural" mapstructure:"procedural" yaml:"procedural"`
	Associative RegionConfig `json:"associative" mapstructure:"associative" yaml:"associative"`
	Emotional   RegionConfig `json:"emotional" mapstructure:"emotional" yaml:"emotional"`
}

// RegionConfig configures one memory region
type RegionConfig struct {
	Role            string `json:"role,omitempty" mapstructure:"role" yaml:"role,omitempty"` // descriptive only
	CacheEnabled    bool   `json:"cache_enabled" mapstructure:"cache_enabled" yaml:"cache_enabled"`
	MaxIterations   int    `json:"max_iterations" mapstructure:"max_iterations" yaml:"max_iterations"`
	MaxRetryLimit   int    `json:"max_retry_limit" mapstructure:"max_retry_limit" yaml:"max_retry_limit"`
	Capacity        *int   `json:"capacity,omitempty" mapstructure:"capacity" yaml:"capacity,omitempty"`                         // working only
	StorageLocation string `json:"storage_location,omitempty" mapstructure:"storage_location" yaml:"storage_location,omitempty"` // durable only
}

// Region returns the record for r.
func (c *Config) Region(r memory.Region) (RegionConfig, error) {
	switch r {
	case memory.RegionWorking:
		return c.Regions.Working, nil
	case memory.RegionDeclarative:
		return c.Regions.Declarative, nil
	case memory.RegionProcedural:
		return c.Regions.Procedural, nil
	case memory.RegionAssociative:
		return c.Regions.Associative, nil
	case memory.RegionEmotional:
		return c.Regions.Emotional, nil
	}
	return RegionConfig{}, fmt.Errorf("%w: %q", memory.ErrUnknownRegion, r)
}

// StoragePath resolves a durable region's location against DataDir.
func (c *Config) StoragePath(r memory.Region) (string, error) {
	rc, err := c.Region(r)
	if err != nil {
		return "", err
	}
	if !r.Durable() {
		return "", memory.InvalidConfigf("region %s has no storage location", r)
	}
	if rc.StorageLocation == "" {
		return "", memory.InvalidConfigf("region %s: storage_location is required", r)
	}
	if filepath.IsAbs(rc.StorageLocation) || c.DataDir == "" {
		return filepath.Clean(rc.StorageLocation), nil
	}
	return filepath.Join(c.DataDir, rc.StorageLocation), nil
}

// IntPtr returns a pointer to v, for building capacities.
func IntPtr(v int) *int {
	return &v
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	dataDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".cortex")
	}

	return &Config{
		DataDir:     dataDir,
		Logging:     defaultLogging(),
		Maintenance: MaintenanceConfig{CheckpointSchedule: "*/10 * * * *"},
		Regions: RegionsConfig{
			Working: RegionConfig{
				Role:          "Working Memory",
				CacheEnabled:  true,
				MaxIterations: 25,
				MaxRetryLimit: 0,
				Capacity:      IntPtr(128),
			},
			Declarative: RegionConfig{
				Role:            "Declarative Memory",
				CacheEnabled:    true,
				MaxIterations:   25,
				MaxRetryLimit:   3,
				StorageLocation: "hippocampus.db",
			},
			Procedural: RegionConfig{
				Role:            "Procedural Memory",
				CacheEnabled:    true,
				MaxIterations:   25,
				MaxRetryLimit:   3,
				StorageLocation: "cerebellum",
			},
			Associative: RegionConfig{
				Role:            "Contextual Memory",
				CacheEnabled:    false,
				MaxIterations:   25,
				MaxRetryLimit:   3,
				StorageLocation: "association_cortex.db",
			},
			Emotional: RegionConfig{
				Role:            "Emotional Memory",
				CacheEnabled:    true,
				MaxIterations:   25,
				MaxRetryLimit:   3,
				StorageLocation: "amygdala.db",
			},
		},
	}
}

func defaultLogging() LoggingConfig {
	return LoggingConfig{
		Level:     "warn",
		Console:   true,
		Pretty:    true,
		MaxSize:   100,
		MaxAge:    7,
		Compress:  true,
		Redaction: true,
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid. Every problem is reported,
// wrapped in memory.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	errs := NewValidator().ValidateConfig(c)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", memory.ErrInvalidConfiguration, errors.Join(errs...))
}
