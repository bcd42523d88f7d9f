package http

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrlokans/roadwatch/internal/auth"
	"github.com/mrlokans/roadwatch/internal/logger"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(logger.Component("http")))
	router.Use(gin.Recovery())

	router.Use(auth.SecurityHeadersMiddleware(cfg.FormOrigins...))
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware(31536000))
	} else {
		// The CSRF origin check otherwise assumes HTTPS.
		router.Use(auth.PlaintextHTTP())
	}

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFKey) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFKey, cfg.SecureCookies))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	if cfg.StaticPath != "" {
		if _, err := os.Stat(cfg.StaticPath); err == nil {
			router.Static("/static", cfg.StaticPath)
		}
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	protected := cfg.ProtectedPath
	if protected == "" {
		protected = "/dashboard"
	}
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, protected)
	})

	if cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(router)
	}

	if cfg.Dashboard != nil && cfg.Resolver != nil {
		router.GET(protected, cfg.Resolver.RequireSession(), cfg.Dashboard.Page)
	}

	if cfg.Theme != nil {
		router.POST("/theme/toggle", cfg.Theme.Toggle)
	}

	if cfg.Password != nil {
		router.POST("/api/password/rules", cfg.Password.Rules)
	}

	return router
}
