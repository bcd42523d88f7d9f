package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/roadwatch/internal/audit"
	"github.com/mrlokans/roadwatch/internal/auth"
	"github.com/mrlokans/roadwatch/internal/backend"
	"github.com/mrlokans/roadwatch/internal/backend/gotrue"
	"github.com/mrlokans/roadwatch/internal/backend/local"
	"github.com/mrlokans/roadwatch/internal/breach"
	"github.com/mrlokans/roadwatch/internal/crypto"
	"github.com/mrlokans/roadwatch/internal/database"
	"github.com/mrlokans/roadwatch/internal/database/users"
	"github.com/mrlokans/roadwatch/internal/http"
	"github.com/mrlokans/roadwatch/internal/notify"
	"github.com/mrlokans/roadwatch/internal/scheduler"
	"github.com/mrlokans/roadwatch/internal/tasks"
	"github.com/mrlokans/roadwatch/internal/theme"
)

// =============================================================================
// Auth backends
// =============================================================================

var _ backend.Backend = (*local.Backend)(nil)
var _ backend.Backend = (*gotrue.Client)(nil)

// Only the local backend confirms e-mail addresses itself.
var _ auth.Confirmer = (*local.Backend)(nil)

// =============================================================================
// Request-bound client
// =============================================================================

var _ auth.AuthClient = (*auth.Client)(nil)
var _ auth.SessionSource = (*auth.Client)(nil)
var _ theme.UserClient = (*auth.Client)(nil)

// =============================================================================
// Theme stores
// =============================================================================

var _ theme.Store = (*theme.MetadataStore)(nil)
var _ theme.Store = (*theme.CookieStore)(nil)

// =============================================================================
// Advisory checks and sealing
// =============================================================================

var _ auth.BreachChecker = (*breach.Checker)(nil)
var _ breach.Cache = (*breach.MemoryCache)(nil)
var _ breach.Cache = (*breach.RedisCache)(nil)
var _ auth.TokenSealer = (*crypto.Sealer)(nil)

// =============================================================================
// Audit trail
// =============================================================================

var _ auth.AuditRecorder = (*audit.Service)(nil)
var _ auth.AccountRecorder = (*audit.Service)(nil)
var _ http.ThemeRecorder = (*audit.Service)(nil)

// =============================================================================
// Background work
// =============================================================================

var _ local.ConfirmationSender = (*tasks.Client)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ tasks.SessionCleaner = (*users.Repository)(nil)
var _ notify.Notifier = (*notify.LogNotifier)(nil)
var _ notify.Notifier = (*notify.ConsoleNotifier)(nil)

// =============================================================================
// Health
// =============================================================================

var _ http.Pinger = (*database.Database)(nil)
