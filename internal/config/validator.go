package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/harun/cortex/pkg/memory"
	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateSchedule validates a checkpoint schedule. Empty disables maintenance.
func (v *Validator) ValidateSchedule(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid checkpoint schedule %q: %w", expr, err)
	}
	return nil
}

// ValidateRegion validates one region record
func (v *Validator) ValidateRegion(r memory.Region, rc RegionConfig) []error {
	var errs []error

	if rc.MaxRetryLimit < 0 {
		errs = append(errs, fmt.Errorf("region %s: max_retry_limit must be >= 0, got %d", r, rc.MaxRetryLimit))
	}
	if rc.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("region %s: max_iterations must be >= 0, got %d", r, rc.MaxIterations))
	}

	if r.Durable() {
		if strings.TrimSpace(rc.StorageLocation) == "" {
			errs = append(errs, fmt.Errorf("region %s: storage_location is required", r))
		}
		return errs
	}

	switch {
	case rc.Capacity == nil:
		errs = append(errs, fmt.Errorf("region %s: capacity is required", r))
	case *rc.Capacity < 0:
		errs = append(errs, fmt.Errorf("region %s: capacity must be >= 0, got %d", r, *rc.Capacity))
	}
	return errs
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	locations := make(map[string]memory.Region)
	for _, r := range memory.Regions() {
		rc, _ := cfg.Region(r)
		errs = append(errs, v.ValidateRegion(r, rc)...)

		if !r.Durable() || rc.StorageLocation == "" {
			continue
		}
		path, err := cfg.StoragePath(r)
		if err != nil {
			continue
		}
		path = filepath.Clean(path)
		if other, dup := locations[path]; dup {
			errs = append(errs, fmt.Errorf("regions %s and %s share storage location %s", other, r, path))
			continue
		}
		locations[path] = r
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Logging.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("logging.max_size must be >= 0"))
	}
	if cfg.Logging.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("logging.max_age must be >= 0"))
	}

	if err := v.ValidateSchedule(cfg.Maintenance.CheckpointSchedule); err != nil {
		errs = append(errs, err)
	}

	return errs
}
