package auth

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/mrlokans/roadwatch/internal/audit"
	"github.com/mrlokans/roadwatch/internal/backend"
	"github.com/mrlokans/roadwatch/internal/config"
	"github.com/mrlokans/roadwatch/internal/logger"
	"github.com/mrlokans/roadwatch/internal/metrics"
	"github.com/mrlokans/roadwatch/internal/validation"
)

// User-facing messages
const (
	MsgSignInSuccess  = "Login successful! Redirecting..."
	MsgSignUpSuccess  = "Registration successful! Please check your email to confirm your account."
	MsgSignUpSignedIn = "Registration successful! Redirecting..."
	MsgSignInFailed   = "Login failed"
	MsgSignUpFailed   = "Registration failed"
	MsgUnexpected     = "An unexpected error occurred."
	MsgBreached       = "This password has been exposed in data breaches. Please choose a more secure password."
	MsgRateLimited    = "Too many login attempts. Please try again later."
)

// Audit actions
const (
	ActionSignIn        = "sign_in"
	ActionSignUp        = "sign_up"
	ActionOAuth         = "oauth"
	ActionOAuthCallback = "oauth_callback"
	ActionSignOut       = "sign_out"
)

// FeedbackKind is how a message is displayed.
type FeedbackKind string

const (
	FeedbackError   FeedbackKind = "error"
	FeedbackSuccess FeedbackKind = "success"
)

// Feedback is the message shown next to a form. Items holds the individual
// rule messages when several rules failed at once.
type Feedback struct {
	Message string       `json:"message"`
	Kind    FeedbackKind `json:"kind"`
	Items   []string     `json:"items,omitempty"`
}

// Result is what a dispatched action asks the page to do.
type Result struct {
	Feedback   *Feedback              `json:"feedback,omitempty"`
	Navigate   string                 `json:"navigate,omitempty"`
	Delay      time.Duration          `json:"delay,omitempty"`
	Violations []validation.Violation `json:"violations,omitempty"`
}

// OK reports whether the action succeeded.
func (r Result) OK() bool {
	return r.Feedback == nil || r.Feedback.Kind == FeedbackSuccess
}

// Origin is the page an OAuth sign-in was started from.
type Origin string

const (
	OriginLogin    Origin = "login"
	OriginRegister Origin = "register"
)

type SignInRequest struct {
	Email    string
	Password string
}

type SignUpRequest struct {
	Email    string
	Password string
	Confirm  string
}

// BreachChecker reports whether a password appears in a breach corpus. It
// must fail open.
type BreachChecker interface {
	IsBreached(ctx context.Context, password string) bool
}

// AuditRecorder receives auth events.
type AuditRecorder interface {
	LogAuth(ev audit.AuthEvent)
}

// Dispatcher runs the auth actions behind the sign-in and registration
// forms and maps their results to feedback and navigation.
type Dispatcher struct {
	client  AuthClient
	breach  BreachChecker
	nav     config.Navigation
	baseURL string
	limiter *RateLimiter
	audit   AuditRecorder
	log     zerolog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRateLimiter throttles sign-in attempts.
func WithRateLimiter(rl *RateLimiter) DispatcherOption {
	return func(d *Dispatcher) { d.limiter = rl }
}

// WithAudit records every action.
func WithAudit(a AuditRecorder) DispatcherOption {
	return func(d *Dispatcher) { d.audit = a }
}

// NewDispatcher creates a dispatcher. baseURL is the public origin used to
// build confirmation and OAuth redirect targets.
func NewDispatcher(client AuthClient, breach BreachChecker, nav config.Navigation, baseURL string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		client:  client,
		breach:  breach,
		nav:     nav,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logger.Component("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SignIn validates the form with the sign-in policy and signs in.
func (d *Dispatcher) SignIn(ctx context.Context, req SignInRequest) Result {
	email := strings.TrimSpace(req.Email)
	meta := ClientMetaFrom(ctx)

	if v := validation.ValidateSignIn(email, req.Password); len(v) > 0 {
		d.count(ActionSignIn, "invalid")
		// The first failing field is reported on its own.
		return Result{Feedback: errorFeedback(v[0].Message), Violations: v}
	}

	if d.limiter != nil {
		if allowed, retryAfter := d.limiter.Allow(meta.IP, email); !allowed {
			d.log.Warn().Str("ip", meta.IP).Dur("retry_after", retryAfter).Msg("sign-in rate limited")
			d.count(ActionSignIn, "rate_limited")
			return Result{Feedback: errorFeedback(MsgRateLimited)}
		}
	}

	session, err := d.client.SignInWithPassword(ctx, email, req.Password)
	if err != nil {
		d.log.Info().Err(err).Str("ip", meta.IP).Msg("sign-in failed")
		if d.limiter != nil {
			d.limiter.RecordFailure(meta.IP, email)
		}
		d.record(ctx, ActionSignIn, "", email, err)
		d.count(ActionSignIn, "failure")
		return Result{Feedback: errorFeedback(serviceMessage(err, MsgSignInFailed))}
	}

	if d.limiter != nil {
		d.limiter.RecordSuccess(meta.IP, email)
	}
	d.record(ctx, ActionSignIn, userID(session), email, nil)
	d.count(ActionSignIn, "success")

	return Result{
		Feedback: successFeedback(MsgSignInSuccess),
		Navigate: d.nav.Protected,
		Delay:    d.nav.SignInDelay,
	}
}

// SignUp validates the form with the registration policy, checks the
// password against the breach corpus and registers the user.
func (d *Dispatcher) SignUp(ctx context.Context, req SignUpRequest) Result {
	email := strings.TrimSpace(req.Email)

	if v := validation.ValidateRegistration(email, req.Password, req.Confirm); len(v) > 0 {
		d.count(ActionSignUp, "invalid")
		return Result{Feedback: violationFeedback(v), Violations: v}
	}

	if d.breach != nil && d.breach.IsBreached(ctx, req.Password) {
		d.count(ActionSignUp, "breached")
		return Result{Feedback: errorFeedback(MsgBreached)}
	}

	res, err := d.client.SignUp(ctx, email, req.Password, backend.SignUpOptions{
		EmailRedirectTo: d.baseURL + d.nav.SignUpRedirect,
	})
	if err != nil {
		d.log.Info().Err(err).Msg("sign-up failed")
		d.record(ctx, ActionSignUp, "", email, err)
		d.count(ActionSignUp, "failure")
		return Result{Feedback: errorFeedback(serviceMessage(err, MsgSignUpFailed))}
	}

	var id string
	if res.User != nil {
		id = res.User.ID
	}
	d.record(ctx, ActionSignUp, id, email, nil)
	d.count(ActionSignUp, "success")

	if res.Session != nil {
		return Result{
			Feedback: successFeedback(MsgSignUpSignedIn),
			Navigate: d.nav.Protected,
			Delay:    d.nav.SignInDelay,
		}
	}
	return Result{Feedback: successFeedback(MsgSignUpSuccess)}
}

// SignInWithOAuth starts a provider sign-in and navigates to the provider
// immediately.
func (d *Dispatcher) SignInWithOAuth(ctx context.Context, provider string, origin Origin) Result {
	url, err := d.client.SignInWithOAuth(ctx, provider, backend.OAuthOptions{
		RedirectTo: d.baseURL + d.nav.OAuthCallback,
	})
	if err != nil {
		d.log.Error().Err(err).Str("provider", provider).Msg("oauth sign-in failed")
		d.count(ActionOAuth, "failure")
		return Result{Feedback: errorFeedback(oauthFailureMessage(provider, origin))}
	}

	d.count(ActionOAuth, "success")
	return Result{Navigate: url}
}

// CompleteOAuth exchanges the provider's code for a session.
func (d *Dispatcher) CompleteOAuth(ctx context.Context, code string) Result {
	if code == "" {
		d.count(ActionOAuthCallback, "invalid")
		return Result{Feedback: errorFeedback(MsgSignInFailed), Navigate: d.nav.Entry}
	}

	session, err := d.client.CompleteOAuth(ctx, code)
	if err != nil {
		d.log.Warn().Err(err).Msg("oauth code exchange failed")
		d.record(ctx, ActionOAuthCallback, "", "", err)
		d.count(ActionOAuthCallback, "failure")
		msg := MsgSignInFailed
		if !errors.Is(err, ErrMissingVerifier) {
			msg = serviceMessage(err, MsgSignInFailed)
		}
		return Result{Feedback: errorFeedback(msg), Navigate: d.nav.Entry}
	}

	var email string
	if session.User != nil {
		email = session.User.Email
	}
	d.record(ctx, ActionOAuthCallback, userID(session), email, nil)
	d.count(ActionOAuthCallback, "success")
	return Result{Feedback: successFeedback(MsgSignInSuccess), Navigate: d.nav.Protected}
}

// SignOut always navigates to the entry point. Backend failures are only
// logged.
func (d *Dispatcher) SignOut(ctx context.Context) Result {
	err := d.client.SignOut(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("sign-out failed")
		d.count(ActionSignOut, "failure")
	} else {
		d.count(ActionSignOut, "success")
	}
	d.record(ctx, ActionSignOut, "", "", err)
	return Result{Navigate: d.nav.Entry}
}

func (d *Dispatcher) count(action, result string) {
	metrics.AuthActionsTotal.WithLabelValues(action, result).Inc()
}

func (d *Dispatcher) record(ctx context.Context, action, id, email string, err error) {
	if d.audit == nil {
		return
	}
	meta := ClientMetaFrom(ctx)
	d.audit.LogAuth(audit.AuthEvent{
		UserID:    id,
		Email:     email,
		Action:    action,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Err:       err,
	})
}

func userID(s *backend.Session) string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// serviceMessage picks the message for a failed backend call: the
// service's own message, the fallback when it has none, or a generic
// message for transport and internal errors.
func serviceMessage(err error, fallback string) string {
	if be, ok := backend.AsError(err); ok {
		if be.Message != "" {
			return be.Message
		}
		return fallback
	}
	return MsgUnexpected
}

func oauthFailureMessage(provider string, origin Origin) string {
	name := providerName(provider)
	if origin == OriginRegister {
		return name + " registration failed."
	}
	return name + " login failed."
}

func providerName(provider string) string {
	if provider == "" {
		return "OAuth"
	}
	r, size := utf8.DecodeRuneInString(provider)
	return string(unicode.ToUpper(r)) + provider[size:]
}

func errorFeedback(msg string) *Feedback {
	return &Feedback{Message: msg, Kind: FeedbackError}
}

func successFeedback(msg string) *Feedback {
	return &Feedback{Message: msg, Kind: FeedbackSuccess}
}

// violationFeedback reports a single violation as is and several as a
// bulleted list.
func violationFeedback(v []validation.Violation) *Feedback {
	if len(v) == 1 {
		return errorFeedback(v[0].Message)
	}
	items := validation.Messages(v)
	lines := make([]string, len(items))
	for i, m := range items {
		lines[i] = "• " + m
	}
	return &Feedback{Message: strings.Join(lines, "\n"), Kind: FeedbackError, Items: items}
}

// ClientMeta identifies the caller for audit and rate limiting.
type ClientMeta struct {
	IP        string
	UserAgent string
}

type clientMetaKey struct{}

// WithClientMeta attaches caller details to ctx.
func WithClientMeta(ctx context.Context, m ClientMeta) context.Context {
	return context.WithValue(ctx, clientMetaKey{}, m)
}

// ClientMetaFrom returns the caller details attached to ctx, if any.
func ClientMetaFrom(ctx context.Context) ClientMeta {
	m, _ := ctx.Value(clientMetaKey{}).(ClientMeta)
	return m
}
