package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/roadwatch/internal/auth"
	"github.com/mrlokans/roadwatch/internal/config"
	"github.com/mrlokans/roadwatch/internal/logger"
	"github.com/mrlokans/roadwatch/internal/theme"
)

// ThemeRecorder receives theme toggle outcomes for the audit trail.
type ThemeRecorder interface {
	LogTheme(email, theme, store string, remoteErr error)
}

// ThemeController resolves and toggles the display theme.
type ThemeController struct {
	client   theme.UserClient
	sessions *auth.SessionManager
	cfg      config.Theme
	secure   bool
	audit    ThemeRecorder
	log      zerolog.Logger
}

func NewThemeController(client theme.UserClient, sessions *auth.SessionManager, cfg config.Theme, secure bool, audit ThemeRecorder) *ThemeController {
	return &ThemeController{
		client:   client,
		sessions: sessions,
		cfg:      cfg,
		secure:   secure,
		audit:    audit,
		log:      logger.Component("theme"),
	}
}

type toggleResponse struct {
	Theme  theme.Preference `json:"theme"`
	Glyph  string           `json:"glyph"`
	Stored theme.StoreKind  `json:"stored"`
}

// signedIn reports whether the request carries a session. The tokens are
// not checked here; a stale session makes the metadata store fail and the
// synchroniser falls back to the cookie.
func (tc *ThemeController) signedIn(c *gin.Context) bool {
	return tc.sessions != nil && tc.sessions.HasTokens(c.Request.Context())
}

// stores returns the metadata store (nil when signed out) and the cookie store.
func (tc *ThemeController) stores(c *gin.Context) (theme.Store, theme.Store) {
	local := theme.NewCookieStore(c.Writer, c.Request, tc.cfg.CookieName, tc.cookieMaxAge(), tc.secure)
	if !tc.signedIn(c) || tc.client == nil {
		return nil, local
	}
	return theme.NewMetadataStore(tc.client), local
}

func (tc *ThemeController) cookieMaxAge() time.Duration {
	if tc.cfg.CookieMaxAge > 0 {
		return tc.cfg.CookieMaxAge
	}
	return 365 * 24 * time.Hour
}

// Resolve picks the theme for the current page.
func (tc *ThemeController) Resolve(c *gin.Context) theme.Resolution {
	remote, local := tc.stores(c)
	return theme.Resolve(c.Request.Context(), remote, local)
}

// Toggle flips the theme and waits for it to be stored, so the fallback
// cookie lands on this response. The cookie store holds c.Writer, so the
// handler never returns while the task runs, even for a closed request.
func (tc *ThemeController) Toggle(c *gin.Context) {
	ctx := c.Request.Context()
	remote, local := tc.stores(c)

	current := theme.Resolve(ctx, remote, local)
	next, intents := theme.Toggle(theme.State{Theme: current.Theme, Authenticated: remote != nil})

	syncer := theme.NewSynchronizer(remote, local, tc.log)
	out, err := syncer.Apply(ctx, intents).Wait(context.WithoutCancel(ctx))
	if ctx.Err() != nil {
		tc.log.Debug().Str("theme", next.Theme.String()).Msg("client went away during theme toggle")
		return
	}
	if err != nil {
		tc.log.Warn().Err(err).Str("theme", next.Theme.String()).Msg("theme not persisted")
	}

	if tc.audit != nil {
		var email string
		if remote != nil {
			if data := tc.sessions.GetSessionData(ctx); data != nil {
				email = data.Email
			}
		}
		tc.audit.LogTheme(email, next.Theme.String(), string(out.Stored), out.RemoteErr)
	}

	if !wantsJSON(c) {
		c.Redirect(http.StatusSeeOther, localReferer(c, "/"))
		return
	}
	c.JSON(http.StatusOK, toggleResponse{
		Theme:  next.Theme,
		Glyph:  next.Theme.Glyph(),
		Stored: out.Stored,
	})
}
