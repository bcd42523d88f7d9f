package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/mrlokans/roadwatch/internal/audit"
	"github.com/mrlokans/roadwatch/internal/auth"
	"github.com/mrlokans/roadwatch/internal/backend"
	"github.com/mrlokans/roadwatch/internal/backend/gotrue"
	"github.com/mrlokans/roadwatch/internal/backend/local"
	"github.com/mrlokans/roadwatch/internal/breach"
	"github.com/mrlokans/roadwatch/internal/config"
	"github.com/mrlokans/roadwatch/internal/crypto"
	"github.com/mrlokans/roadwatch/internal/database"
	auditRepo "github.com/mrlokans/roadwatch/internal/database/audit"
	"github.com/mrlokans/roadwatch/internal/database/users"
	http_controllers "github.com/mrlokans/roadwatch/internal/http"
	"github.com/mrlokans/roadwatch/internal/logger"
	"github.com/mrlokans/roadwatch/internal/notify"
	"github.com/mrlokans/roadwatch/internal/scheduler"
	"github.com/mrlokans/roadwatch/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	log := logger.Component("server")
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Dur("timeout", timeout).Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests before the background workers go away.
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Info().Msg("server exited")
}

func Run(cfg *config.Config, version string) {
	logger.Init(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	log := logger.Component("entrypoint")
	log.Info().Str("version", version).Msg("starting roadwatch")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuration rejected")
	}
	// Requests are logged by our own middleware.
	gin.SetMode(gin.ReleaseMode)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("error closing database")
		}
	}()

	auditService := audit.NewService(auditRepo.NewRepository(db.DB))
	userRepo := users.NewRepository(db.DB)

	// Task queue
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromSettings(cfg.Tasks, cfg.Audit))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize task queue")
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Error().Err(err).Msg("error closing task client")
			}
		}()

		taskClient.Register(
			tasks.NewSendConfirmationQueue(notify.NewLogNotifier()),
			tasks.NewCleanupAuditEventsQueue(auditService),
			tasks.NewCleanupAuthSessionsQueue(userRepo),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Auth backend
	var authBackend backend.Backend
	var confirmer auth.Confirmer
	var formOrigins []string
	switch cfg.Auth.Backend {
	case config.AuthBackendGoTrue:
		log.Info().Str("url", cfg.GoTrue.URL).Msg("auth backend: gotrue")
		authBackend = gotrue.NewClient(cfg.GoTrue)
		if origin := originOf(cfg.GoTrue.URL); origin != "" {
			formOrigins = append(formOrigins, origin)
		}
	default:
		log.Info().Bool("autoconfirm", cfg.Auth.AutoConfirm).Msg("auth backend: local")
		var sender local.ConfirmationSender = directSender{notifier: notify.NewLogNotifier()}
		if taskClient != nil {
			sender = taskClient
		}
		lb := local.New(userRepo, cfg.Auth, cfg.HTTP.BaseURL, sender)
		authBackend = lb
		confirmer = lb
	}

	// Breach check
	breachOpts := []breach.Option{}
	var redisClient *redis.Client
	if !cfg.Breach.Enabled {
		log.Warn().Msg("breach check disabled")
		breachOpts = append(breachOpts, breach.Disabled())
	} else if cfg.Breach.RedisAddr != "" {
		redisClient, err = breach.ConnectRedis(context.Background(), cfg.Breach.RedisAddr, cfg.Breach.RedisDB)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-memory breach cache")
			breachOpts = append(breachOpts, breach.WithCache(breach.NewMemoryCache(), cfg.Breach.CacheTTL))
		} else {
			breachOpts = append(breachOpts, breach.WithCache(breach.NewRedisCache(redisClient), cfg.Breach.CacheTTL))
		}
	} else {
		breachOpts = append(breachOpts, breach.WithCache(breach.NewMemoryCache(), cfg.Breach.CacheTTL))
	}
	breachChecker := breach.NewChecker(cfg.Breach.BaseURL, cfg.Breach.Timeout, breachOpts...)

	// Sessions
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get SQL DB for sessions")
	}
	secret := cfg.Auth.SessionSecret
	if secret == "" {
		secret, err = auth.GenerateSessionSecret()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate session secret")
		}
		log.Warn().Msg("generated session secret, set AUTH_SESSION_SECRET to persist")
	}

	sealer, err := crypto.NewSealerFromSecret(secret, "roadwatch session tokens")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token sealer")
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth, auth.WithTokenSealer(sealer))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session manager")
	}

	limiter := auth.NewRateLimiter(auth.RateLimitConfig{
		MaxAttempts:     cfg.Auth.MaxLoginAttempts,
		WindowDuration:  cfg.Auth.RateLimitWindow,
		LockoutDuration: cfg.Auth.LockoutDuration,
	})

	authClient := auth.NewClient(authBackend, sessionManager)
	dispatcher := auth.NewDispatcher(authClient, breachChecker, cfg.Navigation, cfg.HTTP.BaseURL,
		auth.WithRateLimiter(limiter),
		auth.WithAudit(auditService),
	)

	themes := http_controllers.NewThemeController(authClient, sessionManager, cfg.Theme, cfg.Auth.SecureCookies, auditService)
	authController := auth.NewAuthController(auth.ControllerDeps{
		Dispatcher:    dispatcher,
		Sessions:      sessionManager,
		Confirmer:     confirmer,
		Audit:         auditService,
		Navigation:    cfg.Navigation,
		TemplatesPath: cfg.UI.TemplatesPath,
		Theme:         themes.Resolve,
	})

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:       db,
		Version:        version,
		SessionManager: sessionManager,
		CSRFKey:        auth.CSRFKey(secret),
		SecureCookies:  cfg.Auth.SecureCookies,
		FormOrigins:    formOrigins,
		AuthController: authController,
		Resolver:       auth.NewResolver(authClient, cfg.Navigation.Entry),
		Dashboard:      http_controllers.NewDashboardController(cfg.UI.TemplatesPath, themes.Resolve),
		Theme:          themes,
		Password:       http_controllers.NewPasswordController(),
		ProtectedPath:  cfg.Navigation.Protected,
		StaticPath:     cfg.UI.StaticPath,
		MetricsEnabled: cfg.Metrics.Enabled,
	})

	// Maintenance schedule
	var maintenance *scheduler.MaintenanceScheduler
	if taskClient != nil {
		maintenance = scheduler.NewMaintenanceScheduler(taskClient, cfg.Audit.CleanupSchedule, cfg.Audit.RetentionDays)
		if err := maintenance.Start(context.Background()); err != nil {
			log.Error().Err(err).Msg("maintenance scheduler not started")
		}
	}

	onShutdown := func(ctx context.Context) {
		if maintenance != nil {
			maintenance.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		limiter.Stop()
		auditService.Wait()
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis client")
			}
		}
	}

	Serve(router, cfg, onShutdown)
}

// directSender delivers confirmations inline when the task queue is off.
type directSender struct {
	notifier notify.Notifier
}

func (d directSender) SendConfirmation(ctx context.Context, c local.Confirmation) error {
	msg, err := notify.ConfirmationMessage(c.Email, c.Link)
	if err != nil {
		return err
	}
	return d.notifier.Notify(ctx, msg)
}

// originOf returns scheme://host of raw, or "" when raw is not absolute.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
