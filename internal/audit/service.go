package audit

import (
	"encoding/json"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/mrlokans/roadwatch/internal/database/audit"
	"github.com/mrlokans/roadwatch/internal/entities"
	"github.com/mrlokans/roadwatch/internal/logger"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo *audit.Repository
	log  zerolog.Logger
	wg   sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo, log: logger.Component("audit")}
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.LogEvent(event); err != nil {
			s.log.Error().Err(err).Str("action", event.Action).Msg("failed to log audit event")
		}
	}()
}

// Wait blocks until all pending LogAsync writes have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// AuthEvent describes an auth action for the audit trail. Credentials are
// never part of it.
type AuthEvent struct {
	UserID    string
	Email     string
	Action    string
	IPAddress string
	UserAgent string
	Err       error
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(ev AuthEvent) {
	event := &entities.AuditEvent{
		UserID:    ev.UserID,
		Email:     ev.Email,
		EventType: entities.AuditEventAuth,
		Action:    ev.Action,
		IPAddress: ev.IPAddress,
		UserAgent: truncate(ev.UserAgent, 500),
		Status:    entities.AuditStatusSuccess,
	}

	if ev.Err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(ev.Err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogAccount records an account lifecycle event such as confirmation.
func (s *Service) LogAccount(userID, email, action, description string) {
	s.LogAsync(&entities.AuditEvent{
		UserID:      userID,
		Email:       email,
		EventType:   entities.AuditEventAccount,
		Action:      action,
		Description: description,
		Status:      entities.AuditStatusSuccess,
	})
}

// LogTheme records where a toggled theme was persisted. email is empty for
// anonymous visitors.
func (s *Service) LogTheme(email, theme, store string, remoteErr error) {
	event := &entities.AuditEvent{
		Email:       email,
		EventType:   entities.AuditEventTheme,
		Action:      "theme_toggle",
		Description: "Theme set to " + theme,
		Status:      entities.AuditStatusSuccess,
	}

	metadata := map[string]any{"theme": theme, "store": store}
	if mdBytes, e := json.Marshal(metadata); e == nil {
		event.Metadata = string(mdBytes)
	}
	if remoteErr != nil {
		event.ErrorMsg = truncate(remoteErr.Error(), 500)
	}

	s.LogAsync(event)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

// truncate shortens s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
