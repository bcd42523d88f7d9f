package config

import (
	"time"

	"github.com/spf13/viper"
)

type AuthBackend string

const (
	AuthBackendLocal  AuthBackend = "local"  // Self-hosted users in the portal database (default)
	AuthBackendGoTrue AuthBackend = "gotrue" // Hosted GoTrue/Supabase auth API
)

type (
	Config struct {
		HTTP
		Global
		Log
		Database
		UI
		Auth
		GoTrue
		Breach
		Theme
		Navigation
		Tasks
		Audit
		Metrics
	}

	HTTP struct {
		Port    int32  `validate:"gt=0,lte=65535"`
		Host    string
		BaseURL string `validate:"required,url"` // Public origin used for confirmation and OAuth redirects
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Log struct {
		Level  string
		Pretty bool
	}
	Database struct {
		Path string `validate:"required"`
	}
	UI struct {
		TemplatesPath string
		StaticPath    string
	}
	Auth struct {
		Backend         AuthBackend `validate:"oneof=local gotrue"`
		SessionSecret   string
		SessionLifetime time.Duration `validate:"gt=0"`
		BcryptCost      int           `validate:"gte=4,lte=31"`
		SecureCookies   bool          // Set to false for local dev without HTTPS

		// Local backend
		AutoConfirm     bool          // Skip e-mail confirmation for new accounts
		ConfirmationTTL time.Duration // How long a confirmation link stays valid
		AccessTokenTTL  time.Duration // Lifetime of local access tokens
		RefreshTokenTTL time.Duration // Lifetime of local refresh tokens

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}
	GoTrue struct {
		URL       string // Project URL, e.g. https://xyz.supabase.co
		AnonKey   string
		JWTSecret string // Verifies access tokens when set
		Timeout   time.Duration
	}
	Breach struct {
		Enabled   bool
		BaseURL   string
		Timeout   time.Duration
		CacheTTL  time.Duration
		RedisAddr string // Empty means in-memory cache
		RedisDB   int
	}
	Theme struct {
		CookieName   string `validate:"required"`
		CookieMaxAge time.Duration
	}
	Navigation struct {
		Entry          string `validate:"required,startswith=/"` // Sign-in page
		Protected      string `validate:"required,startswith=/"` // Landing page after sign-in
		SignUpRedirect string `validate:"required,startswith=/"` // Target of e-mail confirmation links
		OAuthCallback  string `validate:"required,startswith=/"`
		SignInDelay    time.Duration
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Audit struct {
		RetentionDays   int
		CleanupSchedule string // Cron format: "30 3 * * *" = daily at 03:30
	}
	Metrics struct {
		Enabled bool
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("base_url", "http://localhost:8188")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("templates_path", "./templates")
	v.SetDefault("static_path", "./static")

	// Auth defaults
	v.SetDefault("auth_backend", "local")
	v.SetDefault("auth_session_secret", "")        // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h")   // 24 hours
	v.SetDefault("auth_bcrypt_cost", 12)           // bcrypt cost factor
	v.SetDefault("auth_secure_cookies", true)      // HTTPS-only cookies
	v.SetDefault("auth_autoconfirm", false)        // Require e-mail confirmation
	v.SetDefault("auth_confirmation_ttl", "24h")   // Confirmation link lifetime
	v.SetDefault("auth_access_token_ttl", "1h")    // Same as the hosted default
	v.SetDefault("auth_refresh_token_ttl", "720h") // 30 days
	v.SetDefault("auth_max_login_attempts", 5)     // Max failed attempts
	v.SetDefault("auth_rate_limit_window", "15m")  // Window for counting attempts
	v.SetDefault("auth_lockout_duration", "30m")   // Lockout duration

	// GoTrue defaults
	v.SetDefault("gotrue_url", "")
	v.SetDefault("gotrue_anon_key", "")
	v.SetDefault("gotrue_jwt_secret", "")
	v.SetDefault("gotrue_timeout", "10s")

	// Breach check defaults
	v.SetDefault("breach_enabled", true)
	v.SetDefault("breach_base_url", DefaultBreachBaseURL)
	v.SetDefault("breach_timeout", "5s")
	v.SetDefault("breach_cache_ttl", "1h")
	v.SetDefault("breach_redis_addr", "")
	v.SetDefault("breach_redis_db", 0)

	// Theme defaults
	v.SetDefault("theme_cookie_name", "theme")
	v.SetDefault("theme_cookie_max_age", "8760h") // One year

	// Navigation defaults
	v.SetDefault("nav_entry", "/login")
	v.SetDefault("nav_protected", "/dashboard")
	v.SetDefault("nav_signup_redirect", "/login")
	v.SetDefault("nav_oauth_callback", "/auth/callback")
	v.SetDefault("nav_signin_delay", "1s")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Audit defaults
	v.SetDefault("audit_retention_days", 30)
	v.SetDefault("audit_cleanup_schedule", "30 3 * * *")

	v.SetDefault("metrics_enabled", true)

	return &Config{
		HTTP: HTTP{
			Port:    v.GetInt32("PORT"),
			Host:    v.GetString("HOST"),
			BaseURL: v.GetString("BASE_URL"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Pretty: v.GetBool("LOG_PRETTY"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		UI: UI{
			TemplatesPath: v.GetString("TEMPLATES_PATH"),
			StaticPath:    v.GetString("STATIC_PATH"),
		},
		Auth: Auth{
			Backend:          AuthBackend(v.GetString("AUTH_BACKEND")),
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			AutoConfirm:      v.GetBool("AUTH_AUTOCONFIRM"),
			ConfirmationTTL:  v.GetDuration("AUTH_CONFIRMATION_TTL"),
			AccessTokenTTL:   v.GetDuration("AUTH_ACCESS_TOKEN_TTL"),
			RefreshTokenTTL:  v.GetDuration("AUTH_REFRESH_TOKEN_TTL"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		GoTrue: GoTrue{
			URL:       v.GetString("GOTRUE_URL"),
			AnonKey:   v.GetString("GOTRUE_ANON_KEY"),
			JWTSecret: v.GetString("GOTRUE_JWT_SECRET"),
			Timeout:   v.GetDuration("GOTRUE_TIMEOUT"),
		},
		Breach: Breach{
			Enabled:   v.GetBool("BREACH_ENABLED"),
			BaseURL:   v.GetString("BREACH_BASE_URL"),
			Timeout:   v.GetDuration("BREACH_TIMEOUT"),
			CacheTTL:  v.GetDuration("BREACH_CACHE_TTL"),
			RedisAddr: v.GetString("BREACH_REDIS_ADDR"),
			RedisDB:   v.GetInt("BREACH_REDIS_DB"),
		},
		Theme: Theme{
			CookieName:   v.GetString("THEME_COOKIE_NAME"),
			CookieMaxAge: v.GetDuration("THEME_COOKIE_MAX_AGE"),
		},
		Navigation: Navigation{
			Entry:          v.GetString("NAV_ENTRY"),
			Protected:      v.GetString("NAV_PROTECTED"),
			SignUpRedirect: v.GetString("NAV_SIGNUP_REDIRECT"),
			OAuthCallback:  v.GetString("NAV_OAUTH_CALLBACK"),
			SignInDelay:    v.GetDuration("NAV_SIGNIN_DELAY"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Audit: Audit{
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Metrics: Metrics{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
	}
}
