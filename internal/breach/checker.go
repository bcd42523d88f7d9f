// Package breach checks passwords against the Pwned Passwords range API
// using k-anonymity: only the first five hex characters of the SHA-1 digest
// leave the process.
package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlokans/roadwatch/internal/logger"
	"github.com/mrlokans/roadwatch/internal/metrics"
)

const (
	PrefixLength   = 5
	defaultTimeout = 5 * time.Second
	userAgent      = "roadwatch/1.0"
)

// StatusError is returned when the range API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("breach range API: HTTP %d", e.StatusCode)
}

// Result describes a completed range lookup.
type Result struct {
	Breached bool
	// Count is how many times the password appears in the corpus.
	Count int
}

// Checker queries the range API. The zero value is not usable; use NewChecker.
type Checker struct {
	httpClient *http.Client
	baseURL    string
	cache      Cache
	cacheTTL   time.Duration
	disabled   bool
	log        zerolog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(ch *Checker) { ch.httpClient = c }
}

// WithCache enables range response caching.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(ch *Checker) {
		ch.cache = cache
		ch.cacheTTL = ttl
	}
}

// Disabled turns the checker into a no-op that never reports a breach.
func Disabled() Option {
	return func(ch *Checker) { ch.disabled = true }
}

// NewChecker creates a checker for the range API at baseURL.
func NewChecker(baseURL string, timeout time.Duration, opts ...Option) *Checker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Checker{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        logger.Component("breach"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HashPrefix returns the upper-case SHA-1 hex digest of password split into
// the disclosed prefix and the private suffix.
func HashPrefix(password string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	return digest[:PrefixLength], digest[PrefixLength:]
}

// Check looks password up in the corpus. Errors are returned as-is; callers
// that must not block on the check use IsBreached.
func (c *Checker) Check(ctx context.Context, password string) (Result, error) {
	if c.disabled {
		return Result{}, nil
	}

	prefix, suffix := HashPrefix(password)

	body, err := c.rangeBody(ctx, prefix)
	if err != nil {
		return Result{}, err
	}

	count := findSuffix(body, suffix)
	return Result{Breached: count > 0, Count: count}, nil
}

// IsBreached reports whether password appears in the corpus. Any failure is
// treated as "not breached".
func (c *Checker) IsBreached(ctx context.Context, password string) bool {
	if c.disabled {
		metrics.BreachChecksTotal.WithLabelValues("disabled").Inc()
		return false
	}

	res, err := c.Check(ctx, password)
	if err != nil {
		c.log.Warn().Err(err).Msg("breach check failed, allowing password")
		metrics.BreachChecksTotal.WithLabelValues("error").Inc()
		return false
	}

	if res.Breached {
		metrics.BreachChecksTotal.WithLabelValues("breached").Inc()
	} else {
		metrics.BreachChecksTotal.WithLabelValues("clean").Inc()
	}
	return res.Breached
}

func (c *Checker) rangeBody(ctx context.Context, prefix string) (string, error) {
	if c.cache != nil {
		if body, ok, err := c.cache.Get(ctx, prefix); err != nil {
			c.log.Debug().Err(err).Str("prefix", prefix).Msg("range cache read failed")
		} else if ok {
			metrics.BreachCacheTotal.WithLabelValues("hit").Inc()
			return body, nil
		}
		metrics.BreachCacheTotal.WithLabelValues("miss").Inc()
	}

	body, err := c.fetchRange(ctx, prefix)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, prefix, body, c.cacheTTL); err != nil {
			c.log.Debug().Err(err).Str("prefix", prefix).Msg("range cache write failed")
		}
	}
	return body, nil
}

func (c *Checker) fetchRange(ctx context.Context, prefix string) (string, error) {
	url := fmt.Sprintf("%s/range/%s", c.baseURL, prefix)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Add-Padding", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch range: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read range: %w", err)
	}
	return string(data), nil
}

// findSuffix scans SUFFIX:COUNT lines and returns the count for suffix.
// Padding entries carry a zero count.
func findSuffix(body, suffix string) int {
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		candidate, countStr, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(candidate, suffix) {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil {
			return 0
		}
		return count
	}
	return 0
}
