// Package users provides database operations for local backend accounts
// and the sessions issued to them.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetUserByEmail("driver@example.com")
package users

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/roadwatch/internal/entities"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrExists        = errors.New("user already exists")
	ErrNoAuthSession = errors.New("auth session not found")
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// NormalizeEmail is the canonical form e-mail addresses are stored in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts user. The e-mail is normalised before the uniqueness check.
func (r *Repository) CreateUser(user *entities.User) error {
	user.Email = NormalizeEmail(user.Email)

	var count int64
	if err := r.db.Model(&entities.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if count > 0 {
		return ErrExists
	}

	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(id string) (*entities.User, error) {
	return r.first("id = ?", id)
}

// GetUserByEmail retrieves a user by e-mail address.
func (r *Repository) GetUserByEmail(email string) (*entities.User, error) {
	return r.first("email = ?", NormalizeEmail(email))
}

// GetUserByConfirmationHash retrieves the user a confirmation token was issued to.
func (r *Repository) GetUserByConfirmationHash(hash string) (*entities.User, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	return r.first("confirmation_token_hash = ?", hash)
}

func (r *Repository) first(query string, args ...any) (*entities.User, error) {
	var user entities.User
	err := r.db.Where(query, args...).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SetConfirmationToken stores the hash of a newly issued confirmation token.
func (r *Repository) SetConfirmationToken(userID, hash string, sentAt time.Time) error {
	return r.update(userID, map[string]any{
		"confirmation_token_hash": hash,
		"confirmation_sent_at":    sentAt,
	})
}

// Confirm marks the user's e-mail as verified and clears the token.
func (r *Repository) Confirm(userID string, at time.Time) error {
	return r.update(userID, map[string]any{
		"confirmed_at":            at,
		"confirmation_token_hash": "",
	})
}

// UpdateMetadata replaces the user's metadata JSON.
func (r *Repository) UpdateMetadata(userID, metadata string) error {
	return r.update(userID, map[string]any{"metadata": metadata})
}

// RecordFailedLogin increments the failure counter and locks the account
// once maxAttempts is reached.
func (r *Repository) RecordFailedLogin(user *entities.User, maxAttempts int, lockout time.Duration, now time.Time) error {
	user.FailedLoginCount++

	updates := map[string]any{
		"failed_login_count": user.FailedLoginCount,
	}
	if user.FailedLoginCount >= maxAttempts {
		lockedUntil := now.Add(lockout)
		user.LockedUntil = &lockedUntil
		updates["locked_until"] = lockedUntil
	}

	return r.db.Model(user).Updates(updates).Error
}

// RecordSuccessfulLogin resets lockout state and stamps the login time.
func (r *Repository) RecordSuccessfulLogin(user *entities.User, now time.Time) error {
	user.FailedLoginCount = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now

	return r.db.Model(user).Updates(map[string]any{
		"last_login_at":      now,
		"failed_login_count": 0,
		"locked_until":       nil,
	}).Error
}

func (r *Repository) update(userID string, updates map[string]any) error {
	result := r.db.Model(&entities.User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSession stores an issued token pair.
func (r *Repository) CreateSession(session *entities.AuthSession) error {
	return r.db.Create(session).Error
}

// GetSessionByAccessHash finds a session by access token hash.
func (r *Repository) GetSessionByAccessHash(hash string) (*entities.AuthSession, error) {
	return r.firstSession("access_token_hash = ?", hash)
}

// GetSessionByRefreshHash finds a session by refresh token hash.
func (r *Repository) GetSessionByRefreshHash(hash string) (*entities.AuthSession, error) {
	return r.firstSession("refresh_token_hash = ?", hash)
}

func (r *Repository) firstSession(query string, args ...any) (*entities.AuthSession, error) {
	var session entities.AuthSession
	err := r.db.Where(query, args...).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoAuthSession
		}
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes a session by ID.
func (r *Repository) DeleteSession(id uint) error {
	return r.db.Delete(&entities.AuthSession{}, id).Error
}

// DeleteExpiredSessions removes sessions whose refresh token expired before now.
// Returns the number of deleted sessions.
func (r *Repository) DeleteExpiredSessions(now time.Time) (int64, error) {
	result := r.db.Where("refresh_expires_at < ?", now).Delete(&entities.AuthSession{})
	return result.RowsAffected, result.Error
}
