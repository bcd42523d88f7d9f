package theme

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrlokans/roadwatch/internal/metrics"
)

// Store is a readable and writable preference location.
type Store interface {
	Reader
	Save(ctx context.Context, p Preference) error
}

// ErrNoStore is reported when an intent targets a store that was not configured.
var ErrNoStore = errors.New("theme store not configured")

// StoreKind identifies which store holds the value after persistence.
type StoreKind string

const (
	StoreRemote StoreKind = "remote"
	StoreLocal  StoreKind = "local"
	StoreNone   StoreKind = "none"
)

// Outcome is the deterministic result of a persistence task.
type Outcome struct {
	Theme Preference
	// Indicator is the glyph produced by an UpdateIndicator intent, if any.
	Indicator string
	Stored    StoreKind
	// RemoteErr is set when the authoritative write failed and the value
	// went to the fallback store.
	RemoteErr error
}

// Task is an in-flight persistence run. Callers may Wait on it or drop it.
type Task struct {
	done    chan struct{}
	outcome Outcome
	err     error
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx is cancelled. Cancelling ctx
// does not stop the task.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, t.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Synchronizer executes toggle intents against the remote and local stores.
type Synchronizer struct {
	remote Store
	local  Store
	log    zerolog.Logger

	// inflight tracks running tasks for Close.
	inflight sync.WaitGroup
}

// NewSynchronizer creates a synchronizer. remote may be nil for anonymous pages.
func NewSynchronizer(remote, local Store, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{remote: remote, local: local, log: log}
}

// Apply starts a task executing intents in order. The task runs on a
// context detached from ctx's cancellation so a closed request does not
// lose the write.
func (s *Synchronizer) Apply(ctx context.Context, intents []Intent) *Task {
	t := &Task{done: make(chan struct{})}
	runCtx := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer close(t.done)
		t.outcome, t.err = s.run(runCtx, intents)
	}()
	return t
}

// Wait blocks until every task started by Apply has finished.
func (s *Synchronizer) Wait() {
	s.inflight.Wait()
}

func (s *Synchronizer) run(ctx context.Context, intents []Intent) (Outcome, error) {
	out := Outcome{Stored: StoreNone}

	for _, in := range intents {
		out.Theme = in.Theme
		switch in.Kind {
		case UpdateIndicator:
			out.Indicator = in.Theme.Glyph()

		case PersistRemote:
			err := ErrNoStore
			if s.remote != nil {
				err = s.remote.Save(ctx, in.Theme)
			}
			if err == nil {
				out.Stored = StoreRemote
				continue
			}
			out.RemoteErr = err
			s.log.Warn().Err(err).Str("theme", in.Theme.String()).Msg("remote theme save failed, using local store")
			if lerr := s.saveLocal(ctx, in.Theme); lerr != nil {
				metrics.ThemePersistTotal.WithLabelValues(string(StoreNone)).Inc()
				return out, lerr
			}
			out.Stored = StoreLocal

		case PersistLocal:
			if err := s.saveLocal(ctx, in.Theme); err != nil {
				metrics.ThemePersistTotal.WithLabelValues(string(StoreNone)).Inc()
				return out, err
			}
			out.Stored = StoreLocal
		}
	}

	metrics.ThemePersistTotal.WithLabelValues(string(out.Stored)).Inc()
	return out, nil
}

func (s *Synchronizer) saveLocal(ctx context.Context, p Preference) error {
	if s.local == nil {
		return ErrNoStore
	}
	if err := s.local.Save(ctx, p); err != nil {
		s.log.Warn().Err(err).Str("theme", p.String()).Msg("local theme save failed")
		return err
	}
	return nil
}
