package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/mrlokans/roadwatch/internal/backend"
	"github.com/mrlokans/roadwatch/internal/logger"
)

// ErrMissingVerifier means an OAuth callback arrived without a pending
// PKCE flow in the browser session.
var ErrMissingVerifier = errors.New("no pending oauth flow in session")

// AuthClient is the auth service as seen from a single request. Tokens are
// read from and written to the browser session carried by ctx.
type AuthClient interface {
	GetSession(ctx context.Context) (*backend.Session, error)
	GetUser(ctx context.Context) (*backend.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error)
	SignUp(ctx context.Context, email, password string, opts backend.SignUpOptions) (*backend.SignUpResult, error)
	// SignInWithOAuth returns the provider URL to send the browser to.
	SignInWithOAuth(ctx context.Context, provider string, opts backend.OAuthOptions) (string, error)
	CompleteOAuth(ctx context.Context, code string) (*backend.Session, error)
	UpdateUser(ctx context.Context, data map[string]any) (*backend.User, error)
	SignOut(ctx context.Context) error
}

// Client combines a backend with the scs session that holds its tokens.
type Client struct {
	backend  backend.Backend
	sessions *SessionManager
	log      zerolog.Logger
}

var _ AuthClient = (*Client)(nil)

// NewClient creates an auth client.
func NewClient(b backend.Backend, sessions *SessionManager) *Client {
	return &Client{
		backend:  b,
		sessions: sessions,
		log:      logger.Component("auth_client"),
	}
}

// GetSession validates the stored tokens. A refreshed token pair is written
// back to the browser session; a rejected one is cleared from it.
func (c *Client) GetSession(ctx context.Context) (*backend.Session, error) {
	tokens := c.sessions.GetTokens(ctx)
	if tokens.IsZero() {
		return nil, backend.ErrNoSession
	}

	session, err := c.backend.GetSession(ctx, tokens)
	if err != nil {
		if errors.Is(err, backend.ErrNoSession) {
			c.sessions.ClearTokens(ctx)
		}
		return nil, err
	}

	if session.Tokens() != tokens {
		c.log.Debug().Msg("session tokens refreshed")
		if err := c.sessions.PutTokens(ctx, session.Tokens()); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// GetUser fetches the current user from the backend, refreshing the access
// token once if it has expired.
func (c *Client) GetUser(ctx context.Context) (*backend.User, error) {
	var user *backend.User
	err := c.withAccessToken(ctx, func(token string) error {
		var err error
		user, err = c.backend.GetUser(ctx, token)
		return err
	})
	return user, err
}

// UpdateUser merges data into the current user's metadata.
func (c *Client) UpdateUser(ctx context.Context, data map[string]any) (*backend.User, error) {
	var user *backend.User
	err := c.withAccessToken(ctx, func(token string) error {
		var err error
		user, err = c.backend.UpdateUserMetadata(ctx, token, data)
		return err
	})
	return user, err
}

func (c *Client) withAccessToken(ctx context.Context, fn func(token string) error) error {
	tokens := c.sessions.GetTokens(ctx)
	if tokens.IsZero() {
		return backend.ErrNoSession
	}

	err := fn(tokens.AccessToken)
	if !errors.Is(err, backend.ErrNoSession) || tokens.RefreshToken == "" {
		return err
	}

	session, err := c.GetSession(ctx)
	if err != nil {
		return err
	}
	return fn(session.AccessToken)
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	session, err := c.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := c.sessions.StartSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SignUp registers a user. The browser is signed in only when the backend
// returns a session, i.e. when confirmation is not required.
func (c *Client) SignUp(ctx context.Context, email, password string, opts backend.SignUpOptions) (*backend.SignUpResult, error) {
	res, err := c.backend.SignUp(ctx, email, password, opts)
	if err != nil {
		return nil, err
	}
	if res.Session != nil {
		if err := c.sessions.StartSession(ctx, res.Session); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (c *Client) SignInWithOAuth(ctx context.Context, provider string, opts backend.OAuthOptions) (string, error) {
	redirect, err := c.backend.SignInWithOAuth(ctx, provider, opts)
	if err != nil {
		return "", err
	}
	c.sessions.PutVerifier(ctx, redirect.CodeVerifier)
	return redirect.URL, nil
}

func (c *Client) CompleteOAuth(ctx context.Context, code string) (*backend.Session, error) {
	verifier := c.sessions.PopVerifier(ctx)
	if verifier == "" {
		return nil, ErrMissingVerifier
	}

	session, err := c.backend.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	if err := c.sessions.StartSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SignOut revokes the session at the backend and always destroys the
// browser session, even when revocation fails.
func (c *Client) SignOut(ctx context.Context) error {
	tokens := c.sessions.GetTokens(ctx)

	var err error
	if tokens.AccessToken != "" {
		err = c.backend.SignOut(ctx, tokens.AccessToken)
	}

	if destroyErr := c.sessions.DestroySession(ctx); destroyErr != nil {
		return errors.Join(err, destroyErr)
	}
	return err
}
