package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/roadwatch/internal/logger"
	"github.com/mrlokans/roadwatch/internal/metrics"
)

const (
	queueCleanupAuditEvents  = "cleanup_audit_events"
	queueCleanupAuthSessions = "cleanup_auth_sessions"

	defaultAuditRetentionDays = 30
)

var errCleanerMissing = errors.New("cleaner not configured")

// AuditEventCleaner deletes audit events past their retention.
type AuditEventCleaner interface {
	DeleteOldEvents(retention time.Duration) (int64, error)
}

// SessionCleaner deletes local-backend sessions whose refresh token expired.
type SessionCleaner interface {
	DeleteExpiredSessions(now time.Time) (int64, error)
}

// CleanupAuditEventsTask enforces the audit retention window.
type CleanupAuditEventsTask struct {
	RetentionDays int `json:"retention_days"`
}

// CleanupAuthSessionsTask prunes expired local-backend sessions.
type CleanupAuthSessionsTask struct{}

func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	cfg := cleanupQueueConfig(queueCleanupAuditEvents)
	// Keep the payload of failed runs so the retention used can be inspected.
	cfg.Retention.Data = &backlite.RetainData{OnlyFailed: true}
	return cfg
}

func (t CleanupAuthSessionsTask) Config() backlite.QueueConfig {
	cfg := cleanupQueueConfig(queueCleanupAuthSessions)
	cfg.Retention.OnlyFailed = true
	return cfg
}

// Maintenance queues share retries and a day of history.
func cleanupQueueConfig(name string) backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        name,
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention:   &backlite.Retention{Duration: 24 * time.Hour},
	}
}

// CleanupAuditEventsProcessor deletes events older than the task's
// retention, 30 days when unset.
func CleanupAuditEventsProcessor(cleaner AuditEventCleaner) backlite.QueueProcessor[CleanupAuditEventsTask] {
	return func(ctx context.Context, task CleanupAuditEventsTask) error {
		days := task.RetentionDays
		if days <= 0 {
			days = defaultAuditRetentionDays
		}
		return runCleanup(queueCleanupAuditEvents, cleaner != nil, func() (int64, error) {
			return cleaner.DeleteOldEvents(time.Duration(days) * 24 * time.Hour)
		})
	}
}

// CleanupAuthSessionsProcessor deletes sessions expired as of now().
func CleanupAuthSessionsProcessor(cleaner SessionCleaner, now func() time.Time) backlite.QueueProcessor[CleanupAuthSessionsTask] {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, _ CleanupAuthSessionsTask) error {
		return runCleanup(queueCleanupAuthSessions, cleaner != nil, func() (int64, error) {
			return cleaner.DeleteExpiredSessions(now())
		})
	}
}

// runCleanup runs one deletion pass and records its outcome.
func runCleanup(queue string, configured bool, pass func() (int64, error)) error {
	if !configured {
		return fmt.Errorf("%s: %w", queue, errCleanerMissing)
	}

	deleted, err := pass()
	if err != nil {
		metrics.TasksProcessedTotal.WithLabelValues(queue, "failure").Inc()
		return fmt.Errorf("%s: %w", queue, err)
	}

	metrics.TasksProcessedTotal.WithLabelValues(queue, "success").Inc()
	logger.Component("tasks").Info().Str("queue", queue).Int64("deleted", deleted).Msg("maintenance pass finished")
	return nil
}

func NewCleanupAuditEventsQueue(cleaner AuditEventCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupAuditEventsProcessor(cleaner))
}

func NewCleanupAuthSessionsQueue(cleaner SessionCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupAuthSessionsProcessor(cleaner, nil))
}
