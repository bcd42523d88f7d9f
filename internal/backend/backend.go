// Package backend defines the contract between the portal and an auth
// service. Implementations are token-level and hold no browser state: the
// auth package keeps the tokens in the server-side session and passes them
// back on every call.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoSession means the presented tokens do not identify a live session.
var ErrNoSession = errors.New("no active session")

// Tokens is the pair a session is identified by.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// IsZero reports whether no tokens are present.
func (t Tokens) IsZero() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// User is the identity attached to a session.
type User struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Metadata    map[string]any `json:"user_metadata"`
	ConfirmedAt *time.Time     `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Session is a live sign-in.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *User
}

// Tokens returns the session's token pair.
func (s *Session) Tokens() Tokens {
	return Tokens{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}
}

// SignUpOptions carries the post-confirmation redirect target.
type SignUpOptions struct {
	EmailRedirectTo string
}

// SignUpResult holds the created user. Session is nil until the e-mail
// address is confirmed, unless the backend confirms automatically.
type SignUpResult struct {
	User    *User
	Session *Session
}

// OAuthOptions carries the redirect target for the provider callback.
type OAuthOptions struct {
	RedirectTo string
}

// OAuthRedirect is where to send the browser, plus the PKCE verifier to
// present when exchanging the returned code.
type OAuthRedirect struct {
	URL          string
	CodeVerifier string
}

// Backend is an auth service.
type Backend interface {
	// GetSession validates tokens and returns the session, refreshing an
	// expired access token when a refresh token is present. The returned
	// session may carry new tokens.
	GetSession(ctx context.Context, tokens Tokens) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (*User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, opts SignUpOptions) (*SignUpResult, error)
	SignInWithOAuth(ctx context.Context, provider string, opts OAuthOptions) (*OAuthRedirect, error)
	ExchangeCode(ctx context.Context, code, verifier string) (*Session, error)
	// UpdateUserMetadata merges data into the user's metadata.
	UpdateUserMetadata(ctx context.Context, accessToken string, data map[string]any) (*User, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Error is a failure reported by the auth service with a displayable message.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth service error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("auth service error %d: %s", e.Status, e.Message)
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
