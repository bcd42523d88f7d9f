package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/roadwatch/internal/logger"
	"github.com/mrlokans/roadwatch/internal/metrics"
	"github.com/mrlokans/roadwatch/internal/notify"
)

// SendConfirmationTask delivers an account confirmation link.
type SendConfirmationTask struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Link   string `json:"link"`
}

// Config returns the queue configuration for confirmation delivery.
func (t SendConfirmationTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "send_confirmation",
		MaxAttempts: 5,
		Backoff:     30 * time.Second,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
		},
	}
}

// SendConfirmationProcessor creates a processor function for SendConfirmationTask.
func SendConfirmationProcessor(n notify.Notifier) backlite.QueueProcessor[SendConfirmationTask] {
	log := logger.Component("tasks")
	return func(ctx context.Context, task SendConfirmationTask) error {
		if n == nil {
			return fmt.Errorf("notifier not configured")
		}

		msg, err := notify.ConfirmationMessage(task.Email, task.Link)
		if err != nil {
			// A malformed task will never succeed; drop it.
			metrics.TasksProcessedTotal.WithLabelValues("send_confirmation", "dropped").Inc()
			log.Error().Err(err).Str("user_id", task.UserID).Msg("dropping confirmation task")
			return nil
		}

		if err := n.Notify(ctx, msg); err != nil {
			metrics.TasksProcessedTotal.WithLabelValues("send_confirmation", "failure").Inc()
			return fmt.Errorf("send confirmation: %w", err)
		}

		metrics.TasksProcessedTotal.WithLabelValues("send_confirmation", "success").Inc()
		log.Info().Str("user_id", task.UserID).Msg("confirmation sent")
		return nil
	}
}

// NewSendConfirmationQueue creates a backlite queue for confirmation delivery.
func NewSendConfirmationQueue(n notify.Notifier) backlite.Queue {
	return backlite.NewQueue(SendConfirmationProcessor(n))
}
