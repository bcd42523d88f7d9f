package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/roadwatch/internal/audit"
	"github.com/mrlokans/roadwatch/internal/backend"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBackend keeps sessions keyed by access token.
type fakeBackend struct {
	mu        sync.Mutex
	sessions  map[string]*backend.Session
	refreshes map[string]*backend.Session

	signInErr   error
	signUpErr   error
	oauthErr    error
	exchangeErr error
	signOutErr  error
	getErr      error
	autoConfirm bool

	signOutCalls int
	verifiers    []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		sessions:  make(map[string]*backend.Session),
		refreshes: make(map[string]*backend.Session),
	}
}

func (f *fakeBackend) issue(email string) *backend.Session {
	s := &backend.Session{
		AccessToken:  "access-" + email,
		RefreshToken: "refresh-" + email,
		User:         &backend.User{ID: "id-" + email, Email: email, Metadata: map[string]any{}},
	}
	f.sessions[s.AccessToken] = s
	return s
}

// expire makes the access token unknown while its refresh token still works.
func (f *fakeBackend) expire(s *backend.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, s.AccessToken)
	f.refreshes[s.RefreshToken] = s
}

func (f *fakeBackend) GetSession(_ context.Context, tokens backend.Tokens) (*backend.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if s, ok := f.sessions[tokens.AccessToken]; ok {
		return s, nil
	}
	if old, ok := f.refreshes[tokens.RefreshToken]; ok {
		delete(f.refreshes, tokens.RefreshToken)
		s := &backend.Session{
			AccessToken:  old.AccessToken + "-r",
			RefreshToken: old.RefreshToken + "-r",
			User:         old.User,
		}
		f.sessions[s.AccessToken] = s
		return s, nil
	}
	return nil, backend.ErrNoSession
}

func (f *fakeBackend) GetUser(_ context.Context, accessToken string) (*backend.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[accessToken]; ok {
		return s.User, nil
	}
	return nil, backend.ErrNoSession
}

func (f *fakeBackend) SignInWithPassword(_ context.Context, email, _ string) (*backend.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.issue(email), nil
}

func (f *fakeBackend) SignUp(_ context.Context, email, _ string, _ backend.SignUpOptions) (*backend.SignUpResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	if f.autoConfirm {
		s := f.issue(email)
		return &backend.SignUpResult{User: s.User, Session: s}, nil
	}
	return &backend.SignUpResult{User: &backend.User{ID: "id-" + email, Email: email}}, nil
}

func (f *fakeBackend) SignInWithOAuth(_ context.Context, provider string, _ backend.OAuthOptions) (*backend.OAuthRedirect, error) {
	if f.oauthErr != nil {
		return nil, f.oauthErr
	}
	return &backend.OAuthRedirect{URL: "https://auth.example.com/authorize?provider=" + provider, CodeVerifier: "verifier-1"}, nil
}

func (f *fakeBackend) ExchangeCode(_ context.Context, _, verifier string) (*backend.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifiers = append(f.verifiers, verifier)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.issue("oauth@example.com"), nil
}

func (f *fakeBackend) UpdateUserMetadata(_ context.Context, accessToken string, data map[string]any) (*backend.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[accessToken]
	if !ok {
		return nil, backend.ErrNoSession
	}
	for k, v := range data {
		s.User.Metadata[k] = v
	}
	return s.User, nil
}

func (f *fakeBackend) SignOut(_ context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	delete(f.sessions, accessToken)
	return f.signOutErr
}

// loadedContext returns a context carrying an empty scs session.
func loadedContext(t *testing.T, sm *SessionManager) context.Context {
	t.Helper()
	ctx, err := sm.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return ctx
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.AuthEvent
}

func (r *recordingAudit) LogAuth(ev audit.AuthEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type staticBreach bool

func (b staticBreach) IsBreached(context.Context, string) bool { return bool(b) }
