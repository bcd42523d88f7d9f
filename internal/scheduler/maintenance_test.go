package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/roadwatch/internal/tasks"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []backlite.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, t ...backlite.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, t...)
	return nil
}

func TestValidateCronSchedule(t *testing.T) {
	tests := []struct {
		schedule string
		wantErr  bool
	}{
		{"30 3 * * *", false},
		{"*/15 * * * *", false},
		{"", true},
		{"* * * *", true},
		{"61 * * * *", true},
	}
	for _, tt := range tests {
		if err := ValidateCronSchedule(tt.schedule); (err != nil) != tt.wantErr {
			t.Errorf("ValidateCronSchedule(%q) error = %v, wantErr %v", tt.schedule, err, tt.wantErr)
		}
	}
}

func TestRunNow_EnqueuesCleanup(t *testing.T) {
	q := &recordingQueue{}
	s := NewMaintenanceScheduler(q, "30 3 * * *", 7)

	if err := s.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if len(q.tasks) != 2 {
		t.Fatalf("enqueued %d tasks, want 2", len(q.tasks))
	}
	audit, ok := q.tasks[0].(tasks.CleanupAuditEventsTask)
	if !ok || audit.RetentionDays != 7 {
		t.Errorf("first task = %#v", q.tasks[0])
	}
	if _, ok := q.tasks[1].(tasks.CleanupAuthSessionsTask); !ok {
		t.Errorf("second task = %#v", q.tasks[1])
	}

	q.err = errors.New("queue closed")
	if err := s.RunNow(context.Background()); err == nil {
		t.Error("expected enqueue error")
	}
}

func TestStartStop(t *testing.T) {
	s := NewMaintenanceScheduler(&recordingQueue{}, "30 3 * * *", 30)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.IsRunning() || s.NextRun() == nil {
		t.Fatal("scheduler should be running with a next run")
	}
	if err := s.Start(ctx); err != nil {
		t.Errorf("second Start() error = %v", err)
	}

	s.Stop()
	if s.IsRunning() || s.NextRun() != nil {
		t.Error("scheduler should be stopped")
	}
	s.Stop()
}

func TestStart_DisabledAndInvalid(t *testing.T) {
	disabled := NewMaintenanceScheduler(&recordingQueue{}, "", 30)
	if err := disabled.Start(context.Background()); err != nil || disabled.IsRunning() {
		t.Errorf("empty schedule: err=%v running=%v", err, disabled.IsRunning())
	}

	invalid := NewMaintenanceScheduler(&recordingQueue{}, "every day", 30)
	if err := invalid.Start(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
