package entities

import "time"

// User is an account owned by the local auth backend.
type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Email        string `gorm:"uniqueIndex;size:320;not null" json:"email"`
	PasswordHash string `gorm:"size:100" json:"-"`
	Metadata     string `gorm:"type:text" json:"-"` // JSON object, see backend.User.Metadata
	Provider     string `gorm:"size:50;default:email" json:"provider"`

	ConfirmedAt           *time.Time `json:"confirmed_at,omitempty"`
	ConfirmationTokenHash string     `gorm:"index;size:64" json:"-"`
	ConfirmationSentAt    *time.Time `json:"-"`

	FailedLoginCount int        `gorm:"default:0" json:"-"`
	LockedUntil      *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsConfirmed reports whether the e-mail address has been verified.
func (u *User) IsConfirmed() bool {
	return u.ConfirmedAt != nil
}

// IsLocked reports whether the account is locked at the given time.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// AuthSession is a token pair issued by the local backend. Only SHA-256
// hashes of the tokens are stored.
type AuthSession struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           string    `gorm:"index;size:36;not null" json:"user_id"`
	AccessTokenHash  string    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	RefreshTokenHash string    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ExpiresAt        time.Time `gorm:"index" json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	CreatedAt        time.Time `json:"created_at"`
}

func (AuthSession) TableName() string {
	return "auth_sessions"
}
