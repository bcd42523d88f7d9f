package auth

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/roadwatch/internal/backend"
	"github.com/mrlokans/roadwatch/internal/config"
	"github.com/mrlokans/roadwatch/internal/crypto"
)

func setupSessionManager(t *testing.T, secure bool) *SessionManager {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	sm, err := NewSessionManager(sqlDB, config.Auth{
		SessionLifetime: 24 * time.Hour,
		SecureCookies:   secure,
	})
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm
}

func TestNewSessionManager(t *testing.T) {
	sm := setupSessionManager(t, false)

	if sm.Cookie.Name != "session" {
		t.Errorf("Expected cookie name 'session', got '%s'", sm.Cookie.Name)
	}
	if !sm.Cookie.HttpOnly {
		t.Error("Cookie should be HttpOnly")
	}
	if sm.Cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("Expected SameSiteLaxMode, got %v", sm.Cookie.SameSite)
	}
	if sm.IdleTimeout != 12*time.Hour {
		t.Errorf("IdleTimeout = %v", sm.IdleTimeout)
	}
}

func TestSessionManager_SecureCookieConfig(t *testing.T) {
	if sm := setupSessionManager(t, true); !sm.Cookie.Secure {
		t.Error("Cookie.Secure should be true when SecureCookies is enabled")
	}
}

func TestSessionManager_TokenLifecycle(t *testing.T) {
	sm := setupSessionManager(t, false)
	session := &backend.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		User:         &backend.User{Email: "driver@example.com"},
	}

	handler := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if sm.GetSessionData(ctx) != nil {
			t.Error("GetSessionData should return nil before sign-in")
		}

		if err := sm.StartSession(ctx, session); err != nil {
			t.Fatalf("StartSession() error = %v", err)
		}
		if got := sm.GetTokens(ctx); got != session.Tokens() {
			t.Errorf("GetTokens() = %+v", got)
		}
		data := sm.GetSessionData(ctx)
		if data == nil || data.Email != "driver@example.com" || data.LoginAt.IsZero() {
			t.Errorf("GetSessionData() = %+v", data)
		}

		sm.PutTokens(ctx, backend.Tokens{AccessToken: "access-2", RefreshToken: "refresh-2"})
		if got := sm.GetTokens(ctx).AccessToken; got != "access-2" {
			t.Errorf("AccessToken after PutTokens = %q", got)
		}

		sm.ClearTokens(ctx)
		if sm.HasTokens(ctx) {
			t.Error("HasTokens() after ClearTokens")
		}

		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

func TestSessionManager_Verifier(t *testing.T) {
	sm := NewMemorySessionManager()
	ctx := loadedContext(t, sm)

	sm.PutVerifier(ctx, "v1")
	if got := sm.PopVerifier(ctx); got != "v1" {
		t.Errorf("PopVerifier() = %q", got)
	}
	if got := sm.PopVerifier(ctx); got != "" {
		t.Errorf("second PopVerifier() = %q, want empty", got)
	}
}

func TestSessionLoadSave_PersistsAcrossRequests(t *testing.T) {
	sm := NewMemorySessionManager()

	router := gin.New()
	router.Use(sm.SessionLoadSave())
	router.POST("/login", func(c *gin.Context) {
		err := sm.StartSession(c.Request.Context(), &backend.Session{AccessToken: "a", RefreshToken: "r"})
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Redirect(http.StatusSeeOther, "/dashboard")
	})
	router.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, sm.GetTokens(c.Request.Context()).AccessToken)
	})
	router.POST("/logout", func(c *gin.Context) {
		_ = sm.DestroySession(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "session" || cookies[0].Value == "" {
		t.Fatalf("expected a session cookie on the redirect, got %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Body.String() != "a" {
		t.Errorf("whoami = %q, want a", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	cleared := rr.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Errorf("expected an expiring cookie on logout, got %+v", cleared)
	}
}

func TestSessionManager_SealedTokens(t *testing.T) {
	sealer, err := crypto.NewSealerFromSecret("test-secret", "session tokens")
	if err != nil {
		t.Fatal(err)
	}
	sm := NewMemorySessionManager(WithTokenSealer(sealer))
	ctx := loadedContext(t, sm)

	tokens := backend.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"}
	if err := sm.PutTokens(ctx, tokens); err != nil {
		t.Fatalf("PutTokens() error = %v", err)
	}

	if raw := sm.GetString(ctx, SessionKeyAccessToken); raw == "" || raw == "access-1" {
		t.Errorf("access token stored as %q, want sealed", raw)
	}
	if got := sm.GetTokens(ctx); got != tokens {
		t.Errorf("GetTokens() = %+v, want %+v", got, tokens)
	}

	// A value that does not open reads as signed out.
	sm.Put(ctx, SessionKeyAccessToken, "tampered")
	if sm.HasTokens(ctx) {
		t.Error("HasTokens() with an unreadable token")
	}
}

func TestSessionLoadSave_CookieRules(t *testing.T) {
	sm := NewMemorySessionManager()

	router := gin.New()
	router.Use(sm.SessionLoadSave())
	router.GET("/silent", func(c *gin.Context) {
		sm.PutVerifier(c.Request.Context(), "verifier")
	})
	router.GET("/untouched", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/silent", nil))
	if cookies := rr.Result().Cookies(); len(cookies) != 1 || cookies[0].Value == "" {
		t.Errorf("a modified session needs a cookie even without a body, got %+v", cookies)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/untouched", nil))
	if cookies := rr.Result().Cookies(); len(cookies) != 0 {
		t.Errorf("an untouched session must not set a cookie, got %+v", cookies)
	}
	if got := len(rr.Header().Values("Set-Cookie")); got != 0 {
		t.Errorf("Set-Cookie count = %d", got)
	}
}
