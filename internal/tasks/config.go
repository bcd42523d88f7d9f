package tasks

import (
	"time"

	"github.com/mrlokans/roadwatch/internal/config"
)

// Config holds configuration for the task queue system.
type Config struct {
	// Workers is the number of concurrent task workers. Default: 2
	Workers int

	// ReleaseAfter is when stuck tasks are released back to queue. Default: 15m
	ReleaseAfter time.Duration

	// CleanupInterval is how often to clean up completed tasks. Default: 1h
	CleanupInterval time.Duration

	// AuditRetentionDays is how long audit events are kept. Default: 30
	AuditRetentionDays int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:            2,
		ReleaseAfter:       15 * time.Minute,
		CleanupInterval:    1 * time.Hour,
		AuditRetentionDays: 30,
	}
}

// FromSettings fills a Config from application settings, keeping the
// defaults for unset values.
func FromSettings(t config.Tasks, a config.Audit) Config {
	cfg := DefaultConfig()
	if t.Workers > 0 {
		cfg.Workers = t.Workers
	}
	if t.ReleaseAfter > 0 {
		cfg.ReleaseAfter = t.ReleaseAfter
	}
	if t.CleanupInterval > 0 {
		cfg.CleanupInterval = t.CleanupInterval
	}
	if a.RetentionDays > 0 {
		cfg.AuditRetentionDays = a.RetentionDays
	}
	return cfg
}
