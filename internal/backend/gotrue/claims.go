package gotrue

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mrlokans/roadwatch/internal/backend"
)

var errTokenExpired = errors.New("access token expired")

// accessClaims are the claims GoTrue puts in its access tokens.
type accessClaims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type parsedClaims struct {
	accessClaims
	verified bool
}

func (p *parsedClaims) expiresAt() time.Time {
	if p.ExpiresAt == nil {
		return time.Time{}
	}
	return p.ExpiresAt.Time
}

func (p *parsedClaims) user() *backend.User {
	md := p.UserMetadata
	if md == nil {
		md = make(map[string]any)
	}
	u := &backend.User{
		ID:       p.Subject,
		Email:    p.Email,
		Metadata: md,
	}
	if p.IssuedAt != nil {
		u.CreatedAt = p.IssuedAt.Time
	}
	return u
}

// parseClaims reads the access token's claims. The signature is checked
// only when a JWT secret is configured; expiry is left to the caller.
func (c *Client) parseClaims(token string) (*parsedClaims, error) {
	var out parsedClaims

	if len(c.jwtSecret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(token, &out.accessClaims); err != nil {
			c.log.Debug().Err(err).Msg("malformed access token")
			return nil, backend.ErrNoSession
		}
		return &out, nil
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(token, &out.accessClaims, func(*jwt.Token) (any, error) {
		return c.jwtSecret, nil
	})
	if err != nil {
		c.log.Debug().Err(err).Msg("access token rejected")
		return nil, backend.ErrNoSession
	}
	if out.Subject == "" {
		return nil, backend.ErrNoSession
	}
	out.verified = true
	return &out, nil
}
