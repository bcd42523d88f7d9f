package theme

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mrlokans/roadwatch/internal/backend"
)

// UserClient is the slice of the request-bound auth client the metadata
// store needs.
type UserClient interface {
	GetUser(ctx context.Context) (*backend.User, error)
	UpdateUser(ctx context.Context, data map[string]any) (*backend.User, error)
}

// MetadataStore keeps the preference in the signed-in user's metadata.
type MetadataStore struct {
	client UserClient
}

func NewMetadataStore(client UserClient) *MetadataStore {
	return &MetadataStore{client: client}
}

func (m *MetadataStore) Load(ctx context.Context) (Preference, bool, error) {
	user, err := m.client.GetUser(ctx)
	if err != nil {
		return "", false, fmt.Errorf("load user: %w", err)
	}
	return FromMetadata(user.Metadata)
}

func (m *MetadataStore) Save(ctx context.Context, p Preference) error {
	if _, err := m.client.UpdateUser(ctx, map[string]any{MetadataKey: p.String()}); err != nil {
		return fmt.Errorf("update user metadata: %w", err)
	}
	return nil
}

// FromMetadata extracts the preference from user metadata.
func FromMetadata(md map[string]any) (Preference, bool, error) {
	raw, ok := md[MetadataKey]
	if !ok {
		return "", false, nil
	}
	s, _ := raw.(string)
	p, ok := Parse(s)
	return p, ok, nil
}

// CookieStore keeps the preference in a browser cookie for anonymous
// visitors and as a fallback when the metadata write fails.
type CookieStore struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	r      *http.Request
	name   string
	maxAge time.Duration
	secure bool
}

func NewCookieStore(w http.ResponseWriter, r *http.Request, name string, maxAge time.Duration, secure bool) *CookieStore {
	return &CookieStore{w: w, r: r, name: name, maxAge: maxAge, secure: secure}
}

func (c *CookieStore) Load(_ context.Context) (Preference, bool, error) {
	cookie, err := c.r.Cookie(c.name)
	if err != nil {
		return "", false, nil
	}
	p, ok := Parse(cookie.Value)
	return p, ok, nil
}

// Save sets the cookie on the pending response. It must complete before the
// handler writes the response body.
func (c *CookieStore) Save(_ context.Context, p Preference) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	http.SetCookie(c.w, &http.Cookie{
		Name:     c.name,
		Value:    p.String(),
		Path:     "/",
		MaxAge:   int(c.maxAge.Seconds()),
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
