package http

import (
	"github.com/mrlokans/roadwatch/internal/auth"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database Pinger
	Version  string

	// Sessions and request protection
	SessionManager *auth.SessionManager
	CSRFKey        []byte
	SecureCookies  bool
	// FormOrigins are extra CSP form-action origins (the auth provider).
	FormOrigins []string

	// Auth pages and the protected-page guard
	AuthController *auth.AuthController
	Resolver       *auth.Resolver

	// Page controllers
	Dashboard *DashboardController
	Theme     *ThemeController
	Password  *PasswordController

	// Protected landing page, e.g. /dashboard
	ProtectedPath string

	// UI paths
	StaticPath string

	// Expose /metrics
	MetricsEnabled bool
}
