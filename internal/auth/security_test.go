package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// TestIsLocalPath verifies local path detection.
func TestIsLocalPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"empty", "", false},
		{"root", "/", true},
		{"local path", "/foo/bar", true},
		{"protocol-relative", "//evil.com", false},
		{"full URL", "https://evil.com", false},
		{"scheme in path", "/https://evil.com", false},
		{"no leading slash", "foo/bar", false},
		{"backslash", "/foo\\bar", false},
		{"javascript URL", "javascript:alert(1)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isLocalPath(tt.input)
			if result != tt.expected {
				t.Errorf("isLocalPath(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func testLimiter(max int) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		MaxAttempts:     max,
		WindowDuration:  time.Minute,
		LockoutDuration: time.Minute,
		CleanupInterval: time.Hour, // Long interval to prevent cleanup during test
	})
}

func TestRateLimiter_AllowsInitialAttempts(t *testing.T) {
	rl := testLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		allowed, _ := rl.Allow("192.168.1.1", "driver@example.com")
		if !allowed {
			t.Errorf("Attempt %d should be allowed", i+1)
		}
		rl.RecordFailure("192.168.1.1", "driver@example.com")
	}

	allowed, retryAfter := rl.Allow("192.168.1.1", "driver@example.com")
	if allowed {
		t.Error("4th attempt should be blocked")
	}
	if retryAfter == 0 {
		t.Error("retryAfter should be non-zero when blocked")
	}
}

func TestRateLimiter_EmailKeyIsNormalized(t *testing.T) {
	rl := testLimiter(2)
	defer rl.Stop()

	rl.RecordFailure("10.0.0.1", "Driver@Example.com")
	locked, _ := rl.RecordFailure("10.0.0.1", " driver@example.com ")
	if !locked {
		t.Fatal("second failure should lock the pair")
	}
	if allowed, _ := rl.Allow("10.0.0.1", "DRIVER@EXAMPLE.COM"); allowed {
		t.Error("case variants must share a counter")
	}
	if allowed, _ := rl.Allow("10.0.0.2", "driver@example.com"); !allowed {
		t.Error("another IP must not be locked")
	}
}

func TestRateLimiter_SuccessResetsCounter(t *testing.T) {
	rl := testLimiter(3)
	defer rl.Stop()

	rl.RecordFailure("192.168.1.1", "driver@example.com")
	rl.RecordFailure("192.168.1.1", "driver@example.com")
	rl.RecordSuccess("192.168.1.1", "driver@example.com")

	allowed, _ := rl.Allow("192.168.1.1", "driver@example.com")
	if !allowed {
		t.Error("Should be allowed after successful login")
	}
}

func TestRateLimiter_LockoutExpires(t *testing.T) {
	rl := testLimiter(1)
	defer rl.Stop()

	base := time.Now()
	rl.now = func() time.Time { return base }
	rl.RecordFailure("192.168.1.1", "driver@example.com")
	if allowed, _ := rl.Allow("192.168.1.1", "driver@example.com"); allowed {
		t.Fatal("should be locked")
	}

	rl.now = func() time.Time { return base.Add(2 * time.Minute) }
	if allowed, _ := rl.Allow("192.168.1.1", "driver@example.com"); !allowed {
		t.Error("lockout should have expired")
	}

	// The reservation from Allow expires with the window.
	rl.now = func() time.Time { return base.Add(5 * time.Minute) }
	rl.cleanup()
	rl.mu.Lock()
	n := len(rl.attempts)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("cleanup left %d records", n)
	}
}

func TestRateLimiter_ConcurrentAttemptsRespectLimit(t *testing.T) {
	rl := testLimiter(5)
	defer rl.Stop()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := rl.Allow("192.168.1.1", "driver@example.com"); ok {
				allowed.Add(1)
				rl.RecordFailure("192.168.1.1", "driver@example.com")
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 5 {
		t.Errorf("allowed %d attempts, want 5", got)
	}
}

func TestRateLimiter_InFlightAttemptsCountTowardLimit(t *testing.T) {
	rl := testLimiter(2)
	defer rl.Stop()

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("192.168.1.1", "driver@example.com"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if ok, _ := rl.Allow("192.168.1.1", "driver@example.com"); ok {
		t.Error("third concurrent attempt should be blocked")
	}

	rl.RecordSuccess("192.168.1.1", "driver@example.com")
	if ok, _ := rl.Allow("192.168.1.1", "driver@example.com"); !ok {
		t.Error("success should clear the reservations")
	}
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := testLimiter(1)
	rl.Stop()
	rl.Stop()
}

// TestSecurityHeaders tests that security headers are set correctly.
func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeadersMiddleware("https://auth.example.com"))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	headers := map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}

	for header, expected := range headers {
		if got := rr.Header().Get(header); got != expected {
			t.Errorf("Header %s = %q, want %q", header, got, expected)
		}
	}

	csp := rr.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-ancestors 'none'") {
		t.Errorf("CSP missing frame-ancestors: %s", csp)
	}
	if !strings.Contains(csp, "form-action 'self' https://example.com https://auth.example.com") {
		t.Errorf("CSP form-action should include the auth origin, got: %s", csp)
	}

	if pp := rr.Header().Get("Permissions-Policy"); pp == "" {
		t.Error("Permissions-Policy header should be set")
	}
}

// TestHSTSHeader tests HSTS header is only set for HTTPS.
func TestHSTSHeader(t *testing.T) {
	router := gin.New()
	router.Use(StrictTransportSecurityMiddleware(31536000))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if hsts := rr.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Error("HSTS should not be set for HTTP requests")
	}

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if hsts := rr.Header().Get("Strict-Transport-Security"); hsts != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", hsts)
	}
}
