package auth

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/roadwatch/internal/backend"
	"github.com/mrlokans/roadwatch/internal/config"
	"github.com/mrlokans/roadwatch/internal/logger"
	"github.com/mrlokans/roadwatch/internal/theme"
)

const msgEmailConfirmed = "Your email has been confirmed. You can now sign in."

// Error codes carried in the error query parameter of redirects.
const (
	ErrorCodeSessionExpired = "session_expired"
	ErrorCodeOAuthFailed    = "oauth_failed"
	ErrorCodeConfirmFailed  = "confirmation_failed"
)

var redirectErrorMessages = map[string]string{
	ErrorCodeSessionExpired: "Session expired. Please try again.",
	ErrorCodeOAuthFailed:    "Sign-in with the provider failed. Please try again.",
	ErrorCodeConfirmFailed:  "This confirmation link is invalid or has expired.",
}

// isLocalPath validates that a redirect path is local to prevent open redirect attacks.
func isLocalPath(path string) bool {
	if path == "" || !strings.HasPrefix(path, "/") {
		return false
	}
	// Protocol-relative (//evil.com), embedded schemes and backslash tricks.
	if strings.HasPrefix(path, "//") || strings.Contains(path, "://") || strings.Contains(path, "\\") {
		return false
	}
	return true
}

// Confirmer confirms an e-mail address from a confirmation link. Only the
// local backend provides one.
type Confirmer interface {
	ConfirmEmail(ctx context.Context, token string) (*backend.User, error)
}

// AccountRecorder receives account lifecycle events.
type AccountRecorder interface {
	LogAccount(userID, email, action, description string)
}

// ControllerDeps holds the collaborators of an AuthController.
type ControllerDeps struct {
	Dispatcher    *Dispatcher
	Sessions      *SessionManager
	Confirmer     Confirmer
	Audit         AccountRecorder
	Navigation    config.Navigation
	TemplatesPath string
	// Theme resolves the page theme; nil renders every page light.
	Theme func(c *gin.Context) theme.Resolution
}

// AuthController serves the sign-in and registration pages and the auth
// callbacks.
type AuthController struct {
	dispatcher *Dispatcher
	sessions   *SessionManager
	confirmer  Confirmer
	audit      AccountRecorder
	nav        config.Navigation
	templates  *template.Template
	theme      func(c *gin.Context) theme.Resolution
	log        zerolog.Logger
}

// NewAuthController creates a new authentication controller.
func NewAuthController(deps ControllerDeps) *AuthController {
	log := logger.Component("auth_controller")

	pattern := filepath.Join(deps.TemplatesPath, "auth", "*.html")
	tmpl, err := template.ParseGlob(pattern)
	if err != nil {
		// Without templates every page is rendered as JSON.
		log.Warn().Err(err).Str("pattern", pattern).Msg("auth templates not loaded")
		tmpl = nil
	}

	return &AuthController{
		dispatcher: deps.Dispatcher,
		sessions:   deps.Sessions,
		confirmer:  deps.Confirmer,
		audit:      deps.Audit,
		nav:        deps.Navigation,
		templates:  tmpl,
		theme:      deps.Theme,
		log:        log,
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ac *AuthController) RegisterRoutes(router gin.IRouter) {
	router.GET(ac.nav.Entry, ac.LoginPage)
	router.POST(ac.nav.Entry, ac.Login)
	router.GET("/register", ac.RegisterPage)
	router.POST("/register", ac.Register)
	router.POST("/auth/oauth/:provider", ac.OAuth)
	router.GET(ac.nav.OAuthCallback, ac.OAuthCallback)
	router.GET("/auth/confirm", ac.Confirm)
	router.POST("/logout", ac.Logout)
}

// LoginPage renders the sign-in form.
func (ac *AuthController) LoginPage(c *gin.Context) {
	data := ac.pageData(c, "Sign In")
	if code := c.Query("error"); code != "" {
		data["Feedback"] = redirectErrorFeedback(code)
	} else if c.Query("confirmed") != "" {
		data["Feedback"] = successFeedback(msgEmailConfirmed)
	}
	ac.renderTemplate(c, "login.html", http.StatusOK, data)
}

// Login handles the sign-in form submission.
func (ac *AuthController) Login(c *gin.Context) {
	email := c.PostForm("email")
	res := ac.dispatcher.SignIn(requestContext(c), SignInRequest{
		Email:    email,
		Password: c.PostForm("password"),
	})
	ac.respond(c, "login.html", "Sign In", email, res)
}

// RegisterPage renders the registration form.
func (ac *AuthController) RegisterPage(c *gin.Context) {
	data := ac.pageData(c, "Create Account")
	if code := c.Query("error"); code != "" {
		data["Feedback"] = redirectErrorFeedback(code)
	}
	ac.renderTemplate(c, "register.html", http.StatusOK, data)
}

// Register handles the registration form submission.
func (ac *AuthController) Register(c *gin.Context) {
	email := c.PostForm("email")
	res := ac.dispatcher.SignUp(requestContext(c), SignUpRequest{
		Email:    email,
		Password: c.PostForm("password"),
		Confirm:  c.PostForm("confirm_password"),
	})
	ac.respond(c, "register.html", "Create Account", email, res)
}

// OAuth starts a provider sign-in. The origin form field names the page the
// button was on.
func (ac *AuthController) OAuth(c *gin.Context) {
	origin := OriginLogin
	page, title := "login.html", "Sign In"
	if Origin(c.PostForm("origin")) == OriginRegister {
		origin = OriginRegister
		page, title = "register.html", "Create Account"
	}

	res := ac.dispatcher.SignInWithOAuth(requestContext(c), c.Param("provider"), origin)
	ac.respond(c, page, title, "", res)
}

// OAuthCallback completes a provider sign-in.
func (ac *AuthController) OAuthCallback(c *gin.Context) {
	if desc := c.Query("error_description"); desc != "" {
		ac.log.Warn().Str("error", c.Query("error")).Str("description", desc).Msg("provider returned an error")
		c.Redirect(http.StatusFound, withError(ac.nav.Entry, ErrorCodeOAuthFailed))
		return
	}

	res := ac.dispatcher.CompleteOAuth(requestContext(c), c.Query("code"))
	target := res.Navigate
	if !res.OK() {
		ac.log.Info().Str("feedback", res.Feedback.Message).Msg("oauth callback rejected")
		target = withError(target, ErrorCodeOAuthFailed)
	}
	c.Redirect(http.StatusFound, target)
}

// Confirm handles the link from a confirmation e-mail.
func (ac *AuthController) Confirm(c *gin.Context) {
	if ac.confirmer == nil {
		c.Status(http.StatusNotFound)
		return
	}

	user, err := ac.confirmer.ConfirmEmail(c.Request.Context(), c.Query("token"))
	if err != nil {
		ac.log.Info().Err(err).Msg("email confirmation failed")
		c.Redirect(http.StatusFound, withError(ac.nav.Entry, ErrorCodeConfirmFailed))
		return
	}

	if ac.audit != nil {
		ac.audit.LogAccount(user.ID, user.Email, "email_confirmed", "Email address confirmed")
	}

	target := ac.nav.SignUpRedirect
	if redirect := c.Query("redirect_to"); redirect != "" {
		if u, err := url.Parse(redirect); err == nil && isLocalPath(u.Path) {
			target = u.Path
		}
	}
	c.Redirect(http.StatusFound, target+"?confirmed=1")
}

// Logout signs out and returns to the entry point.
func (ac *AuthController) Logout(c *gin.Context) {
	res := ac.dispatcher.SignOut(requestContext(c))
	c.Redirect(http.StatusFound, res.Navigate)
}

// respond turns a dispatcher result into a redirect, a re-rendered form or
// JSON. The email is kept on re-render; passwords never are.
func (ac *AuthController) respond(c *gin.Context, page, title, email string, res Result) {
	if wantsJSON(c) || ac.templates == nil {
		c.JSON(resultStatus(res), gin.H{
			"feedback":   res.Feedback,
			"navigate":   res.Navigate,
			"delay_ms":   res.Delay.Milliseconds(),
			"violations": res.Violations,
		})
		return
	}

	if res.Navigate != "" && res.Delay <= 0 {
		c.Redirect(http.StatusSeeOther, res.Navigate)
		return
	}

	data := ac.pageData(c, title)
	data["Email"] = email
	data["Feedback"] = res.Feedback
	if res.Navigate != "" {
		data["RefreshURL"] = res.Navigate
		data["RefreshSeconds"] = int(res.Delay.Round(time.Second).Seconds())
	}
	ac.renderTemplate(c, page, resultStatus(res), data)
}

func (ac *AuthController) pageData(c *gin.Context, title string) gin.H {
	current := theme.Light
	if ac.theme != nil {
		current = ac.theme(c).Theme
	}
	return gin.H{
		"Title":     title,
		"Email":     "",
		"CSRFToken": GetCSRFToken(c),
		"CSRFField": CSRFFormField,
		"Theme":     current,
		"Glyph":     current.Glyph(),
	}
}

// renderTemplate renders an auth template or falls back to JSON.
func (ac *AuthController) renderTemplate(c *gin.Context, name string, status int, data gin.H) {
	if ac.templates == nil || wantsJSON(c) {
		c.JSON(status, data)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := ac.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		ac.log.Error().Err(err).Str("template", name).Msg("failed to render template")
	}
}

func resultStatus(res Result) int {
	switch {
	case res.OK():
		return http.StatusOK
	case res.Feedback.Message == MsgRateLimited:
		return http.StatusTooManyRequests
	case len(res.Violations) > 0:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// requestContext attaches the caller's IP and user agent for auditing.
func requestContext(c *gin.Context) context.Context {
	return WithClientMeta(c.Request.Context(), ClientMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

func withError(path, code string) string {
	return path + "?" + url.Values{"error": {code}}.Encode()
}

// redirectErrorFeedback maps an error code from a redirect to its fixed
// message. Unknown codes get the generic one.
func redirectErrorFeedback(code string) *Feedback {
	msg, ok := redirectErrorMessages[code]
	if !ok {
		msg = MsgUnexpected
	}
	return errorFeedback(msg)
}
