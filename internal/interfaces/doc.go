// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Auth
//
//   - backend.Backend: token-level auth service (internal/backend/backend.go),
//     implemented by the local and gotrue backends
//   - auth.AuthClient: the auth service bound to one browser session
//     (internal/auth/client.go)
//   - auth.SessionSource: what the resolver asks for the current session
//     (internal/auth/resolver.go)
//   - auth.TokenSealer: encryption of tokens in the session store
//     (internal/auth/sessions.go)
//
// ## Theme
//
//   - theme.Reader / theme.Store: preference locations (internal/theme/sync.go)
//   - theme.UserClient: metadata access for the authoritative store
//     (internal/theme/stores.go)
//
// ## Advisory Checks
//
//   - auth.BreachChecker: fail-open breach lookup (internal/auth/dispatcher.go)
//   - breach.Cache: range response cache (internal/breach/cache.go)
//
// ## Background Work
//
//   - local.ConfirmationSender: delivery of confirmation links
//     (internal/backend/local/backend.go)
//   - scheduler.Enqueuer: task submission (internal/scheduler/maintenance.go)
//   - notify.Notifier: outgoing messages (internal/notify/notify.go)
//
// # Adding a New Auth Backend
//
//  1. Create a package under internal/backend/ and implement backend.Backend.
//     Report service failures as *backend.Error so the dispatcher can show
//     the service's message, and return backend.ErrNoSession for tokens that
//     can no longer be used.
//
//     var _ backend.Backend = (*Client)(nil)
//
//  2. Add a value to config.AuthBackend and select it in entrypoint.go.
//
// # Adding a New Notifier
//
//  1. Implement notify.Notifier.
//
//     func (n *SMTPNotifier) Notify(ctx context.Context, msg notify.Message) error
//
//  2. Pass it to tasks.NewSendConfirmationQueue in entrypoint.go.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
