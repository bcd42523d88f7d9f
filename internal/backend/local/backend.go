// Package local implements the auth backend contract on the portal's own
// database, for deployments without a hosted auth service.
//
// Accounts are stored with bcrypt password hashes. Sessions are opaque
// random token pairs of which only SHA-256 hashes are persisted. New
// accounts must confirm their e-mail address unless AUTH_AUTOCONFIRM is set.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrlokans/roadwatch/internal/backend"
	"github.com/mrlokans/roadwatch/internal/config"
	"github.com/mrlokans/roadwatch/internal/database/users"
	"github.com/mrlokans/roadwatch/internal/entities"
	"github.com/mrlokans/roadwatch/internal/logger"
)

const (
	// ConfirmPath is where confirmation links point.
	ConfirmPath = "/auth/confirm"

	minPasswordLength = 6
)

// Confirmation is a pending e-mail confirmation to deliver.
type Confirmation struct {
	UserID string
	Email  string
	Link   string
}

// ConfirmationSender delivers confirmation links.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, c Confirmation) error
}

// Service-reported failures. Messages match the hosted service so the
// dispatcher shows the same text whichever backend is configured.
var (
	errInvalidCredentials = &backend.Error{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}
	errEmailNotConfirmed  = &backend.Error{Status: http.StatusBadRequest, Code: "email_not_confirmed", Message: "Email not confirmed"}
	errUserLocked         = &backend.Error{Status: http.StatusTooManyRequests, Code: "user_locked", Message: "Account is locked due to too many failed login attempts"}
	errUserExists         = &backend.Error{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	errWeakPassword       = &backend.Error{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password should be at least 6 characters."}
	errPasswordTooLong    = &backend.Error{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password cannot be longer than 72 bytes"}
	errProviderDisabled   = &backend.Error{Status: http.StatusBadRequest, Code: "validation_failed", Message: "Unsupported provider: provider is not enabled"}
	errLinkExpired        = &backend.Error{Status: http.StatusForbidden, Code: "otp_expired", Message: "Email link is invalid or has expired"}
)

// Backend is the self-hosted auth backend.
type Backend struct {
	repo    *users.Repository
	cfg     config.Auth
	baseURL string
	sender  ConfirmationSender
	log     zerolog.Logger
	now     func() time.Time
}

var _ backend.Backend = (*Backend)(nil)

// New creates a local backend. baseURL is the public origin used to build
// confirmation links. sender may be nil when AutoConfirm is set.
func New(repo *users.Repository, cfg config.Auth, baseURL string, sender ConfirmationSender) *Backend {
	return &Backend{
		repo:    repo,
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		sender:  sender,
		log:     logger.Component("local_backend"),
		now:     time.Now,
	}
}

func (b *Backend) GetSession(ctx context.Context, tokens backend.Tokens) (*backend.Session, error) {
	now := b.now()

	if tokens.AccessToken != "" {
		s, err := b.repo.GetSessionByAccessHash(HashToken(tokens.AccessToken))
		switch {
		case err == nil && now.Before(s.ExpiresAt):
			user, err := b.loadUser(s.UserID)
			if err != nil {
				return nil, err
			}
			return &backend.Session{
				AccessToken:  tokens.AccessToken,
				RefreshToken: tokens.RefreshToken,
				ExpiresAt:    s.ExpiresAt,
				User:         user,
			}, nil
		case err != nil && !errors.Is(err, users.ErrNoAuthSession):
			return nil, fmt.Errorf("lookup session: %w", err)
		}
	}

	if tokens.RefreshToken == "" {
		return nil, backend.ErrNoSession
	}
	return b.refresh(tokens.RefreshToken, now)
}

// refresh rotates the token pair identified by refreshToken.
func (b *Backend) refresh(refreshToken string, now time.Time) (*backend.Session, error) {
	s, err := b.repo.GetSessionByRefreshHash(HashToken(refreshToken))
	if errors.Is(err, users.ErrNoAuthSession) {
		return nil, backend.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if !now.Before(s.RefreshExpiresAt) {
		_ = b.repo.DeleteSession(s.ID)
		return nil, backend.ErrNoSession
	}

	user, err := b.repo.GetUserByID(s.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, backend.ErrNoSession
		}
		return nil, err
	}

	if err := b.repo.DeleteSession(s.ID); err != nil {
		return nil, fmt.Errorf("revoke refreshed session: %w", err)
	}
	return b.issueSession(user)
}

func (b *Backend) GetUser(ctx context.Context, accessToken string) (*backend.User, error) {
	user, err := b.userForAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	return toBackendUser(user), nil
}

func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	user, err := b.repo.GetUserByEmail(email)
	if errors.Is(err, users.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	now := b.now()
	if user.IsLocked(now) {
		return nil, errUserLocked
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if !errors.Is(err, ErrInvalidPassword) {
			return nil, err
		}
		if err := b.repo.RecordFailedLogin(user, b.maxAttempts(), b.lockout(), now); err != nil {
			b.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to record failed login")
		}
		return nil, errInvalidCredentials
	}

	if !user.IsConfirmed() {
		return nil, errEmailNotConfirmed
	}

	if err := b.repo.RecordSuccessfulLogin(user, now); err != nil {
		b.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to record login")
	}
	return b.issueSession(user)
}

func (b *Backend) SignUp(ctx context.Context, email, password string, opts backend.SignUpOptions) (*backend.SignUpResult, error) {
	if len([]rune(password)) < minPasswordLength {
		return nil, errWeakPassword
	}

	hash, err := HashPassword(password, b.cfg.BcryptCost)
	if errors.Is(err, ErrPasswordTooLong) {
		return nil, errPasswordTooLong
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := b.now()
	user := &entities.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Metadata:     "{}",
		Provider:     "email",
	}
	if b.cfg.AutoConfirm {
		user.ConfirmedAt = &now
	}

	if err := b.repo.CreateUser(user); err != nil {
		if errors.Is(err, users.ErrExists) {
			return nil, errUserExists
		}
		return nil, err
	}

	if b.cfg.AutoConfirm {
		session, err := b.issueSession(user)
		if err != nil {
			return nil, err
		}
		return &backend.SignUpResult{User: session.User, Session: session}, nil
	}

	if err := b.sendConfirmation(ctx, user, opts.EmailRedirectTo); err != nil {
		return nil, err
	}
	return &backend.SignUpResult{User: toBackendUser(user)}, nil
}

func (b *Backend) sendConfirmation(ctx context.Context, user *entities.User, redirectTo string) error {
	token, hash, err := GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate confirmation token: %w", err)
	}
	if err := b.repo.SetConfirmationToken(user.ID, hash, b.now()); err != nil {
		return fmt.Errorf("failed to store confirmation token: %w", err)
	}

	if b.sender == nil {
		b.log.Warn().Str("user_id", user.ID).Msg("no confirmation sender configured")
		return nil
	}

	q := url.Values{"token": {token}}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	link := b.baseURL + ConfirmPath + "?" + q.Encode()

	if err := b.sender.SendConfirmation(ctx, Confirmation{UserID: user.ID, Email: user.Email, Link: link}); err != nil {
		return fmt.Errorf("failed to send confirmation: %w", err)
	}
	return nil
}

// ConfirmEmail verifies a confirmation token and marks the account confirmed.
func (b *Backend) ConfirmEmail(ctx context.Context, token string) (*backend.User, error) {
	user, err := b.repo.GetUserByConfirmationHash(HashToken(token))
	if errors.Is(err, users.ErrNotFound) {
		return nil, errLinkExpired
	}
	if err != nil {
		return nil, err
	}

	now := b.now()
	ttl := b.cfg.ConfirmationTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if user.ConfirmationSentAt == nil || now.After(user.ConfirmationSentAt.Add(ttl)) {
		return nil, errLinkExpired
	}

	if err := b.repo.Confirm(user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to confirm user: %w", err)
	}
	user.ConfirmedAt = &now
	return toBackendUser(user), nil
}

func (b *Backend) SignInWithOAuth(ctx context.Context, provider string, opts backend.OAuthOptions) (*backend.OAuthRedirect, error) {
	return nil, errProviderDisabled
}

func (b *Backend) ExchangeCode(ctx context.Context, code, verifier string) (*backend.Session, error) {
	return nil, errProviderDisabled
}

func (b *Backend) UpdateUserMetadata(ctx context.Context, accessToken string, data map[string]any) (*backend.User, error) {
	user, err := b.userForAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	md := decodeMetadata(user.Metadata)
	for k, v := range data {
		md[k] = v
	}
	encoded, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	if err := b.repo.UpdateMetadata(user.ID, string(encoded)); err != nil {
		return nil, fmt.Errorf("failed to update metadata: %w", err)
	}
	user.Metadata = string(encoded)
	return toBackendUser(user), nil
}

func (b *Backend) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	s, err := b.repo.GetSessionByAccessHash(HashToken(accessToken))
	if errors.Is(err, users.ErrNoAuthSession) {
		return nil
	}
	if err != nil {
		return err
	}
	return b.repo.DeleteSession(s.ID)
}

func (b *Backend) issueSession(user *entities.User) (*backend.Session, error) {
	access, accessHash, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, refreshHash, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := b.now()
	s := &entities.AuthSession{
		UserID:           user.ID,
		AccessTokenHash:  accessHash,
		RefreshTokenHash: refreshHash,
		ExpiresAt:        now.Add(b.accessTTL()),
		RefreshExpiresAt: now.Add(b.refreshTTL()),
	}
	if err := b.repo.CreateSession(s); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return &backend.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    s.ExpiresAt,
		User:         toBackendUser(user),
	}, nil
}

func (b *Backend) userForAccessToken(accessToken string) (*entities.User, error) {
	if accessToken == "" {
		return nil, backend.ErrNoSession
	}
	s, err := b.repo.GetSessionByAccessHash(HashToken(accessToken))
	if errors.Is(err, users.ErrNoAuthSession) {
		return nil, backend.ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	if !b.now().Before(s.ExpiresAt) {
		return nil, backend.ErrNoSession
	}

	user, err := b.repo.GetUserByID(s.UserID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, backend.ErrNoSession
	}
	return user, err
}

func (b *Backend) loadUser(id string) (*backend.User, error) {
	user, err := b.repo.GetUserByID(id)
	if errors.Is(err, users.ErrNotFound) {
		return nil, backend.ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return toBackendUser(user), nil
}

func (b *Backend) maxAttempts() int {
	if b.cfg.MaxLoginAttempts > 0 {
		return b.cfg.MaxLoginAttempts
	}
	return 5
}

func (b *Backend) lockout() time.Duration {
	if b.cfg.LockoutDuration > 0 {
		return b.cfg.LockoutDuration
	}
	return 30 * time.Minute
}

func (b *Backend) accessTTL() time.Duration {
	if b.cfg.AccessTokenTTL > 0 {
		return b.cfg.AccessTokenTTL
	}
	return time.Hour
}

func (b *Backend) refreshTTL() time.Duration {
	if b.cfg.RefreshTokenTTL > 0 {
		return b.cfg.RefreshTokenTTL
	}
	return 30 * 24 * time.Hour
}

func toBackendUser(u *entities.User) *backend.User {
	return &backend.User{
		ID:          u.ID,
		Email:       u.Email,
		Metadata:    decodeMetadata(u.Metadata),
		ConfirmedAt: u.ConfirmedAt,
		CreatedAt:   u.CreatedAt,
	}
}

func decodeMetadata(raw string) map[string]any {
	md := make(map[string]any)
	if raw == "" {
		return md
	}
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return make(map[string]any)
	}
	return md
}
