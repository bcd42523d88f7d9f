// Package gotrue is an HTTP client for a GoTrue/Supabase auth API.
//
// All requests carry the project's anon key in the apikey header. User
// requests additionally send the user's access token as a bearer token.
// Access-token expiry is read from the JWT exp claim; when a JWT secret is
// configured the HS256 signature is verified and the session user is built
// from the claims without a network round trip.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlokans/roadwatch/internal/backend"
	"github.com/mrlokans/roadwatch/internal/config"
	"github.com/mrlokans/roadwatch/internal/logger"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "roadwatch/1.0"

	// Access tokens this close to expiry are refreshed early.
	expiryMargin = 10 * time.Second
)

// Client talks to the /auth/v1 endpoints of a GoTrue project.
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	jwtSecret  []byte
	log        zerolog.Logger
	now        func() time.Time
}

var _ backend.Backend = (*Client)(nil)

// NewClient creates a GoTrue client.
func NewClient(cfg config.GoTrue) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	var secret []byte
	if cfg.JWTSecret != "" {
		secret = []byte(cfg.JWTSecret)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		anonKey:    cfg.AnonKey,
		jwtSecret:  secret,
		log:        logger.Component("gotrue"),
		now:        time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	User         *userJSON `json:"user"`
}

type userJSON struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	UserMetadata     map[string]any `json:"user_metadata"`
	ConfirmedAt      *time.Time     `json:"confirmed_at"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (u *userJSON) toUser() *backend.User {
	if u == nil {
		return nil
	}
	confirmed := u.ConfirmedAt
	if confirmed == nil {
		confirmed = u.EmailConfirmedAt
	}
	md := u.UserMetadata
	if md == nil {
		md = make(map[string]any)
	}
	return &backend.User{
		ID:          u.ID,
		Email:       u.Email,
		Metadata:    md,
		ConfirmedAt: confirmed,
		CreatedAt:   u.CreatedAt,
	}
}

func (c *Client) toSession(tr *tokenResponse) *backend.Session {
	s := &backend.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		User:         tr.User.toUser(),
	}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		s.ExpiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return s
}

func (c *Client) GetSession(ctx context.Context, tokens backend.Tokens) (*backend.Session, error) {
	if tokens.AccessToken != "" {
		session, err := c.sessionFromAccessToken(ctx, tokens)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, errTokenExpired) && !errors.Is(err, backend.ErrNoSession) {
			return nil, err
		}
	}

	if tokens.RefreshToken == "" {
		return nil, backend.ErrNoSession
	}

	session, err := c.refresh(ctx, tokens.RefreshToken)
	if err != nil {
		if be, ok := backend.AsError(err); ok && be.Status < http.StatusInternalServerError {
			c.log.Debug().Err(err).Msg("refresh token rejected")
			return nil, backend.ErrNoSession
		}
		return nil, err
	}
	return session, nil
}

func (c *Client) sessionFromAccessToken(ctx context.Context, tokens backend.Tokens) (*backend.Session, error) {
	claims, err := c.parseClaims(tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	expiresAt := claims.expiresAt()
	if !expiresAt.IsZero() && !c.now().Add(expiryMargin).Before(expiresAt) {
		return nil, errTokenExpired
	}

	session := &backend.Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    expiresAt,
	}

	if claims.verified {
		session.User = claims.user()
		return session, nil
	}

	user, err := c.GetUser(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	session.User = user
	return session, nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*backend.Session, error) {
	var tr tokenResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &tr); err != nil {
		return nil, err
	}
	return c.toSession(&tr), nil
}

func (c *Client) GetUser(ctx context.Context, accessToken string) (*backend.User, error) {
	if accessToken == "" {
		return nil, backend.ErrNoSession
	}
	var u userJSON
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &u); err != nil {
		return nil, sessionError(err)
	}
	return u.toUser(), nil
}

// sessionError reports a rejected access token as backend.ErrNoSession so
// callers can refresh and retry.
func sessionError(err error) error {
	if be, ok := backend.AsError(err); ok && be.Status == http.StatusUnauthorized {
		return backend.ErrNoSession
	}
	return err
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	var tr tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &tr); err != nil {
		return nil, err
	}
	return c.toSession(&tr), nil
}

// signUpResponse is either a session (auto-confirm) or a bare user.
type signUpResponse struct {
	tokenResponse
	userJSON
}

func (c *Client) SignUp(ctx context.Context, email, password string, opts backend.SignUpOptions) (*backend.SignUpResult, error) {
	path := "/signup"
	if opts.EmailRedirectTo != "" {
		path += "?" + url.Values{"redirect_to": {opts.EmailRedirectTo}}.Encode()
	}

	var raw json.RawMessage
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, path, "", body, &raw); err != nil {
		return nil, err
	}

	var resp signUpResponse
	if err := json.Unmarshal(raw, &resp.tokenResponse); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	if resp.tokenResponse.AccessToken != "" {
		session := c.toSession(&resp.tokenResponse)
		return &backend.SignUpResult{User: session.User, Session: session}, nil
	}

	if err := json.Unmarshal(raw, &resp.userJSON); err != nil {
		return nil, fmt.Errorf("decode signup user: %w", err)
	}
	return &backend.SignUpResult{User: resp.userJSON.toUser()}, nil
}

func (c *Client) SignInWithOAuth(ctx context.Context, provider string, opts backend.OAuthOptions) (*backend.OAuthRedirect, error) {
	if provider == "" {
		return nil, &backend.Error{Status: http.StatusBadRequest, Code: "validation_failed", Message: "Unsupported provider: missing provider"}
	}

	verifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("generate code verifier: %w", err)
	}

	q := url.Values{
		"provider":              {provider},
		"code_challenge":        {generateCodeChallenge(verifier)},
		"code_challenge_method": {"s256"},
	}
	if opts.RedirectTo != "" {
		q.Set("redirect_to", opts.RedirectTo)
	}

	return &backend.OAuthRedirect{
		URL:          c.baseURL + "/authorize?" + q.Encode(),
		CodeVerifier: verifier,
	}, nil
}

func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*backend.Session, error) {
	var tr tokenResponse
	body := map[string]string{"auth_code": code, "code_verifier": verifier}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=pkce", "", body, &tr); err != nil {
		return nil, err
	}
	return c.toSession(&tr), nil
}

func (c *Client) UpdateUserMetadata(ctx context.Context, accessToken string, data map[string]any) (*backend.User, error) {
	if accessToken == "" {
		return nil, backend.ErrNoSession
	}
	var u userJSON
	body := map[string]any{"data": data}
	if err := c.do(ctx, http.MethodPut, "/user", accessToken, body, &u); err != nil {
		return nil, sessionError(err)
	}
	return u.toUser(), nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
	if be, ok := backend.AsError(err); ok && (be.Status == http.StatusUnauthorized || be.Status == http.StatusNotFound) {
		// Token already revoked or expired.
		return nil
	}
	return err
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path, accessToken string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.anonKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	bearer := accessToken
	if bearer == "" {
		bearer = c.anonKey
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
