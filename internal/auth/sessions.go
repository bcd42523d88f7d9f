package auth

import (
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/mrlokans/roadwatch/internal/backend"
	"github.com/mrlokans/roadwatch/internal/config"
)

// Session data keys
const (
	SessionKeyAccessToken  = "access_token"
	SessionKeyRefreshToken = "refresh_token"
	SessionKeyEmail        = "email"
	SessionKeyLoginAt      = "login_at"
	SessionKeyPKCEVerifier = "pkce_verifier"
)

func init() {
	gob.Register(time.Time{})
}

// SessionManager wraps scs.SessionManager. The browser session holds only
// the backend's token pair; identity always comes from the backend.
type SessionManager struct {
	*scs.SessionManager
	sealer TokenSealer
}

// TokenSealer encrypts the token pair at rest in the session store.
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithTokenSealer stores tokens sealed. Tokens that no longer open, e.g.
// after a secret change, read as signed out.
func WithTokenSealer(s TokenSealer) SessionOption {
	return func(sm *SessionManager) { sm.sealer = s }
}

// NewSessionManager creates a configured session manager.
// The sqlDB parameter should be the underlying *sql.DB from GORM.
func NewSessionManager(sqlDB *sql.DB, cfg config.Auth, opts ...SessionOption) (*SessionManager, error) {
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, err
	}

	sm := scs.New()
	sm.Store = sqlite3store.New(sqlDB)

	sm.Lifetime = cfg.SessionLifetime
	sm.IdleTimeout = cfg.SessionLifetime / 2

	sm.Cookie.Name = "session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	// Lax: the OAuth provider redirects back cross-site and the callback
	// needs the PKCE verifier from this session.
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"

	return newSessionManager(sm, opts), nil
}

// NewMemorySessionManager creates a session manager backed by scs's
// in-memory store. Used in tests.
func NewMemorySessionManager(opts ...SessionOption) *SessionManager {
	sm := scs.New()
	sm.Cookie.Name = "session"
	sm.Cookie.SameSite = http.SameSiteLaxMode
	return newSessionManager(sm, opts)
}

func newSessionManager(sm *scs.SessionManager, opts []SessionOption) *SessionManager {
	out := &SessionManager{SessionManager: sm}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// StartSession renews the session token to prevent session fixation and
// stores a freshly issued token pair.
func (sm *SessionManager) StartSession(ctx context.Context, session *backend.Session) error {
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}

	if err := sm.PutTokens(ctx, session.Tokens()); err != nil {
		return err
	}
	if session.User != nil {
		sm.Put(ctx, SessionKeyEmail, session.User.Email)
	}
	sm.Put(ctx, SessionKeyLoginAt, time.Now())
	return nil
}

// PutTokens replaces the stored token pair without renewing the session,
// e.g. after a refresh.
func (sm *SessionManager) PutTokens(ctx context.Context, tokens backend.Tokens) error {
	access, err := sm.seal(tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := sm.seal(tokens.RefreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	sm.Put(ctx, SessionKeyAccessToken, access)
	sm.Put(ctx, SessionKeyRefreshToken, refresh)
	return nil
}

// GetTokens returns the stored token pair. It is zero when not signed in.
func (sm *SessionManager) GetTokens(ctx context.Context) backend.Tokens {
	access, aerr := sm.open(sm.GetString(ctx, SessionKeyAccessToken))
	refresh, rerr := sm.open(sm.GetString(ctx, SessionKeyRefreshToken))
	if aerr != nil || rerr != nil {
		return backend.Tokens{}
	}
	return backend.Tokens{AccessToken: access, RefreshToken: refresh}
}

func (sm *SessionManager) seal(v string) (string, error) {
	if sm.sealer == nil {
		return v, nil
	}
	return sm.sealer.Seal(v)
}

func (sm *SessionManager) open(v string) (string, error) {
	if sm.sealer == nil {
		return v, nil
	}
	return sm.sealer.Open(v)
}

// ClearTokens forgets the token pair but keeps the session itself.
func (sm *SessionManager) ClearTokens(ctx context.Context) {
	sm.Remove(ctx, SessionKeyAccessToken)
	sm.Remove(ctx, SessionKeyRefreshToken)
	sm.Remove(ctx, SessionKeyEmail)
	sm.Remove(ctx, SessionKeyLoginAt)
}

// PutVerifier keeps the PKCE verifier until the provider redirects back.
func (sm *SessionManager) PutVerifier(ctx context.Context, verifier string) {
	sm.Put(ctx, SessionKeyPKCEVerifier, verifier)
}

// PopVerifier returns and removes the PKCE verifier.
func (sm *SessionManager) PopVerifier(ctx context.Context) string {
	return sm.PopString(ctx, SessionKeyPKCEVerifier)
}

// DestroySession removes all session data and invalidates the session.
func (sm *SessionManager) DestroySession(ctx context.Context) error {
	return sm.Destroy(ctx)
}

// HasTokens reports whether the session carries a token pair. It does not
// check the tokens against the backend.
func (sm *SessionManager) HasTokens(ctx context.Context) bool {
	return !sm.GetTokens(ctx).IsZero()
}

// SessionData holds what the browser session knows about the sign-in.
type SessionData struct {
	Email   string
	LoginAt time.Time
}

// GetSessionData retrieves the cached sign-in details, or nil when the
// session holds no tokens.
func (sm *SessionManager) GetSessionData(ctx context.Context) *SessionData {
	if !sm.HasTokens(ctx) {
		return nil
	}
	loginAt, _ := sm.Get(ctx, SessionKeyLoginAt).(time.Time)
	return &SessionData{
		Email:   sm.GetString(ctx, SessionKeyEmail),
		LoginAt: loginAt,
	}
}
