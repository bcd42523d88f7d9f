package audit

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	auditRepo "github.com/mrlokans/roadwatch/internal/database/audit"
	"github.com/mrlokans/roadwatch/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	repo := auditRepo.NewRepository(db)
	svc := NewService(repo)

	return svc, db
}

func TestService_LogAsync(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		UserID:      "user-1",
		EventType:   entities.AuditEventAuth,
		Action:      "sign_in",
		Description: "Test event",
		Status:      entities.AuditStatusSuccess,
	}

	svc.LogAsync(event)
	svc.Wait()

	var saved entities.AuditEvent
	err := db.Where("action = ?", "sign_in").First(&saved).Error
	require.NoError(t, err)
	assert.Equal(t, "user-1", saved.UserID)
	assert.False(t, saved.CreatedAt.IsZero())
}

func TestService_LogAuth(t *testing.T) {
	svc, db := setupTestService(t)

	t.Run("successful sign in", func(t *testing.T) {
		svc.LogAuth(AuthEvent{UserID: "user-1", Email: "driver@example.com", Action: "sign_in", IPAddress: "192.168.1.1", UserAgent: "Mozilla/5.0"})
		svc.Wait()

		var event entities.AuditEvent
		err := db.Where("action = ?", "sign_in").First(&event).Error
		require.NoError(t, err)
		assert.Equal(t, entities.AuditStatusSuccess, event.Status)
		assert.Equal(t, "192.168.1.1", event.IPAddress)
		assert.Equal(t, "driver@example.com", event.Email)
	})

	t.Run("failed sign up", func(t *testing.T) {
		svc.LogAuth(AuthEvent{Email: "driver@example.com", Action: "sign_up", Err: errors.New("User already registered")})
		svc.Wait()

		var event entities.AuditEvent
		err := db.Where("action = ?", "sign_up").First(&event).Error
		require.NoError(t, err)
		assert.Equal(t, entities.AuditStatusFailed, event.Status)
		assert.Equal(t, "User already registered", event.ErrorMsg)
	})
}

func TestService_LogTheme(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogTheme("driver@example.com", "dark", "local", errors.New("metadata update failed"))
	svc.Wait()

	var event entities.AuditEvent
	err := db.Where("action = ?", "theme_toggle").First(&event).Error
	require.NoError(t, err)
	assert.Equal(t, entities.AuditEventTheme, event.EventType)
	assert.Equal(t, "driver@example.com", event.Email)
	assert.JSONEq(t, `{"theme":"dark","store":"local"}`, event.Metadata)
	assert.Contains(t, event.ErrorMsg, "metadata update failed")
}

func TestService_LogAccount(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogAccount("user-1", "driver@example.com", "email_confirmed", "Confirmed e-mail address")
	svc.Wait()

	var event entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "email_confirmed").First(&event).Error)
	assert.Equal(t, entities.AuditEventAccount, event.EventType)
}

func TestService_DeleteOldEvents(t *testing.T) {
	svc, db := setupTestService(t)

	oldEvent := &entities.AuditEvent{
		EventType: entities.AuditEventAuth,
		Action:    "old",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, db.Create(oldEvent).Error)

	newEvent := &entities.AuditEvent{
		EventType: entities.AuditEventAuth,
		Action:    "new",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(newEvent).Error)

	deleted, err := svc.DeleteOldEvents(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []entities.AuditEvent
	db.Find(&remaining)
	assert.Len(t, remaining, 1)
	assert.Equal(t, "new", remaining[0].Action)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a very long string", 10, "this is..."},
		{"", 5, ""},
	}

	for _, tc := range tests {
		result := truncate(tc.input, tc.maxLen)
		assert.Equal(t, tc.expected, result)
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; a byte cut at 7 would split the fourth one.
	input := strings.Repeat("é", 10)
	result := truncate(input, 10)

	assert.True(t, utf8.ValidString(result))
	assert.Equal(t, "ééé...", result)
	assert.LessOrEqual(t, len(result), 10)
}
