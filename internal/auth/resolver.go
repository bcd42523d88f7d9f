package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/roadwatch/internal/backend"
	"github.com/mrlokans/roadwatch/internal/logger"
	"github.com/mrlokans/roadwatch/internal/metrics"
)

// Context keys for the resolved session
const (
	ContextKeySession = "auth_session"
	ContextKeyEmail   = "auth_email"
)

// SessionSource reports the current session.
type SessionSource interface {
	GetSession(ctx context.Context) (*backend.Session, error)
}

// Outcome is the result of guarding a protected page. Exactly one of
// Proceed or RedirectTo is set.
type Outcome struct {
	Proceed    bool
	RedirectTo string
	Email      string
	Session    *backend.Session
}

// Resolver guards protected pages.
type Resolver struct {
	source SessionSource
	entry  string
	log    zerolog.Logger
}

// NewResolver creates a resolver that sends unauthenticated callers to entry.
func NewResolver(source SessionSource, entry string) *Resolver {
	return &Resolver{
		source: source,
		entry:  entry,
		log:    logger.Component("resolver"),
	}
}

// Resolve asks source for the current session. A missing session and a
// failed lookup both redirect; the lookup is never retried.
func (r *Resolver) Resolve(ctx context.Context, source SessionSource) Outcome {
	session, err := source.GetSession(ctx)
	switch {
	case err != nil && !errors.Is(err, backend.ErrNoSession):
		r.log.Warn().Err(err).Msg("session lookup failed")
		metrics.SessionResolutionsTotal.WithLabelValues("error").Inc()
		return Outcome{RedirectTo: r.entry}
	case err != nil || session == nil:
		metrics.SessionResolutionsTotal.WithLabelValues("redirect").Inc()
		return Outcome{RedirectTo: r.entry}
	}

	metrics.SessionResolutionsTotal.WithLabelValues("proceed").Inc()
	out := Outcome{Proceed: true, Session: session}
	if session.User != nil {
		out.Email = session.User.Email
	}
	return out
}

// RequireSession returns a middleware that aborts the chain for callers
// without a session. Browsers are redirected to the entry point; API
// callers get 401.
func (r *Resolver) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		out := r.Resolve(c.Request.Context(), r.source)
		if !out.Proceed {
			if isAPIRequest(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "authentication required",
				})
				return
			}
			c.Redirect(http.StatusFound, out.RedirectTo)
			c.Abort()
			return
		}

		c.Set(ContextKeySession, out.Session)
		c.Set(ContextKeyEmail, out.Email)
		c.Next()
	}
}

// isAPIRequest determines if this is an API request vs web browser request.
func isAPIRequest(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// GetSession retrieves the session resolved by RequireSession.
func GetSession(c *gin.Context) *backend.Session {
	if s, exists := c.Get(ContextKeySession); exists {
		if session, ok := s.(*backend.Session); ok {
			return session
		}
	}
	return nil
}

// GetEmail retrieves the signed-in user's email from the context.
func GetEmail(c *gin.Context) string {
	if e, exists := c.Get(ContextKeyEmail); exists {
		if email, ok := e.(string); ok {
			return email
		}
	}
	return ""
}

// GetUserID retrieves the signed-in user's id, or "" for anonymous callers.
func GetUserID(c *gin.Context) string {
	if s := GetSession(c); s != nil && s.User != nil {
		return s.User.ID
	}
	return ""
}
