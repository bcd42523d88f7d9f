package breach

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// sha1("password") = 5BAA61E4C9B93F3F0682250B6CF8331B7EE68FD8
const (
	passwordPrefix = "5BAA6"
	passwordSuffix = "1E4C9B93F3F0682250B6CF8331B7EE68FD8"
)

func rangeServer(t *testing.T, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.Header.Get("Add-Padding") != "true" {
			t.Errorf("Add-Padding header = %q, want true", r.Header.Get("Add-Padding"))
		}
		if r.URL.Path != "/range/"+passwordPrefix {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHashPrefix(t *testing.T) {
	prefix, suffix := HashPrefix("password")
	if prefix != passwordPrefix {
		t.Errorf("prefix = %q, want %q", prefix, passwordPrefix)
	}
	if suffix != passwordSuffix {
		t.Errorf("suffix = %q, want %q", suffix, passwordSuffix)
	}
	if len(prefix) != PrefixLength {
		t.Errorf("prefix length = %d", len(prefix))
	}
}

func TestCheck_OnlyPrefixIsSent(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
	}))
	defer srv.Close()

	c := NewChecker(srv.URL, time.Second)
	if _, err := c.Check(context.Background(), "password"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if strings.Contains(gotPath, "password") || strings.Contains(gotPath, passwordSuffix) {
		t.Errorf("request leaked more than the prefix: %s", gotPath)
	}
	if gotPath != "/range/"+passwordPrefix {
		t.Errorf("path = %q", gotPath)
	}
}

func TestCheck_Breached(t *testing.T) {
	body := strings.Join([]string{
		"0018A45C4D1DEF81644B54AB7F969B88D65:1",
		passwordSuffix + ":3861493",
		"011053FD0102E94D6AE2F8B83D76FAF94F6:0",
	}, "\r\n")
	srv := rangeServer(t, body, nil)

	res, err := NewChecker(srv.URL, time.Second).Check(context.Background(), "password")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.Breached || res.Count != 3861493 {
		t.Errorf("got %+v, want breached with count 3861493", res)
	}
}

func TestCheck_LowercaseSuffixMatches(t *testing.T) {
	srv := rangeServer(t, strings.ToLower(passwordSuffix)+":12\n", nil)

	res, err := NewChecker(srv.URL, time.Second).Check(context.Background(), "password")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.Breached {
		t.Error("expected case-insensitive suffix match")
	}
}

func TestCheck_PaddingEntryIsNotBreached(t *testing.T) {
	srv := rangeServer(t, passwordSuffix+":0\n", nil)

	res, err := NewChecker(srv.URL, time.Second).Check(context.Background(), "password")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if res.Breached {
		t.Error("zero-count padding entry must not count as breached")
	}
}

func TestCheck_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewChecker(srv.URL, time.Second).Check(context.Background(), "password")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", statusErr.StatusCode)
	}
}

func TestIsBreached_FailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewChecker(url, 500*time.Millisecond)
	if c.IsBreached(context.Background(), "password") {
		t.Error("network failure must be treated as not breached")
	}

	errSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer errSrv.Close()

	if NewChecker(errSrv.URL, time.Second).IsBreached(context.Background(), "password") {
		t.Error("server error must be treated as not breached")
	}
}

func TestIsBreached(t *testing.T) {
	srv := rangeServer(t, passwordSuffix+":10\n", nil)
	c := NewChecker(srv.URL, time.Second)

	if !c.IsBreached(context.Background(), "password") {
		t.Error("expected breached")
	}
}

func TestDisabled(t *testing.T) {
	var hits int32
	srv := rangeServer(t, passwordSuffix+":10\n", &hits)

	c := NewChecker(srv.URL, time.Second, Disabled())
	if c.IsBreached(context.Background(), "password") {
		t.Error("disabled checker must never report a breach")
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("disabled checker must not call the API")
	}
}

func TestCheck_UsesCache(t *testing.T) {
	var hits int32
	srv := rangeServer(t, passwordSuffix+":10\n", &hits)

	c := NewChecker(srv.URL, time.Second, WithCache(NewMemoryCache(), time.Minute))
	for i := 0; i < 3; i++ {
		if !c.IsBreached(context.Background(), "password") {
			t.Fatalf("call %d: expected breached", i)
		}
	}

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("range API called %d times, want 1", got)
	}
}

func TestCheck_CacheErrorsAreIgnored(t *testing.T) {
	srv := rangeServer(t, passwordSuffix+":10\n", nil)

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewChecker(srv.URL, time.Second, WithCache(NewRedisCache(client), time.Minute))
	res, err := c.Check(context.Background(), "password")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.Breached {
		t.Error("expected breached despite unreachable cache")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	_ = cache.Set(ctx, "ABCDE", "body", time.Minute)

	if body, ok, _ := cache.Get(ctx, "ABCDE"); !ok || body != "body" {
		t.Fatalf("Get() = %q, %v; want body, true", body, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := cache.Get(ctx, "ABCDE"); ok {
		t.Error("expected entry to expire")
	}
}

func TestMemoryCache_CapEvictsSoonestExpiry(t *testing.T) {
	cache := NewMemoryCacheSize(3)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cache.Set(ctx, "AAAAA", "a", 3*time.Minute)
	_ = cache.Set(ctx, "BBBBB", "b", time.Minute)
	_ = cache.Set(ctx, "CCCCC", "c", 2*time.Minute)
	_ = cache.Set(ctx, "DDDDD", "d", 5*time.Minute)

	if n := cache.Len(); n != 3 {
		t.Fatalf("Len() = %d, want 3", n)
	}
	if _, ok, _ := cache.Get(ctx, "BBBBB"); ok {
		t.Error("entry closest to expiry should have been evicted")
	}
	for _, prefix := range []string{"AAAAA", "CCCCC", "DDDDD"} {
		if _, ok, _ := cache.Get(ctx, prefix); !ok {
			t.Errorf("expected %s to be cached", prefix)
		}
	}

	// Replacing a key never evicts another.
	_ = cache.Set(ctx, "AAAAA", "a2", 3*time.Minute)
	if n := cache.Len(); n != 3 {
		t.Errorf("Len() after replace = %d, want 3", n)
	}
}

func TestMemoryCache_ManyPrefixesStayBounded(t *testing.T) {
	cache := NewMemoryCacheSize(100)
	ctx := context.Background()

	for i := 0; i < 20000; i++ {
		_ = cache.Set(ctx, fmt.Sprintf("%05X", i), "body", time.Nanosecond)
	}
	if n := cache.Len(); n > 100 {
		t.Errorf("Len() = %d, want at most 100", n)
	}
}

func TestMemoryCache_SetSweepsExpired(t *testing.T) {
	cache := NewMemoryCacheSize(100)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_ = cache.Set(ctx, fmt.Sprintf("%05X", i), "body", time.Second)
	}

	now = now.Add(2 * time.Minute)
	_ = cache.Set(ctx, "FFFFF", "body", time.Minute)

	if n := cache.Len(); n != 1 {
		t.Errorf("Len() = %d, want only the fresh entry", n)
	}
}
