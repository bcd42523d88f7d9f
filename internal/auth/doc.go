// Package auth connects the browser to an auth backend.
//
// The browser session (scs, stored in sqlite) holds only the backend's
// access and refresh tokens. Client reads them from the request context and
// is the single way handlers talk to the backend; Resolver guards protected
// pages with it and Dispatcher runs the sign-in, sign-up, OAuth and
// sign-out actions behind the forms.
//
// # Middleware order
//
//	router.Use(auth.SecurityHeadersMiddleware())
//	router.Use(auth.CSRFMiddleware(auth.CSRFKey(cfg.Auth.SessionSecret), cfg.Auth.SecureCookies))
//	router.Use(sessions.SessionLoadSave())
//
// Protected routes add resolver.RequireSession(); handlers then read the
// session with auth.GetSession(c).
//
// # Configuration
//
//	AUTH_BACKEND=local|gotrue       # Default local
//	AUTH_SESSION_SECRET=<hex-32>    # Auto-generated if empty
//	AUTH_SESSION_LIFETIME=24h
//	AUTH_SECURE_COOKIES=true        # HTTPS-only cookies
//	AUTH_MAX_LOGIN_ATTEMPTS=5       # Per IP and email
//	AUTH_RATE_LIMIT_WINDOW=15m
//	AUTH_LOCKOUT_DURATION=30m
package auth
