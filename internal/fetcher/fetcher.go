// Package fetcher retrieves subscription payloads over HTTP with
// user-agent rotation, exponential backoff, and fallback through a pool
// of egress proxies, generalizing the teacher's
// internal/subscription/refresh.go fetchURL (a bare 20s-timeout GET) into
// a resilient multi-attempt client.
package fetcher

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Error is returned when every attempt to fetch a source is exhausted.
type Error struct {
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetcher: %s: exhausted %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is a successfully-fetched and validated payload.
type Result struct {
	Body       []byte
	StatusCode int
	Attempts   int
	UsedProxy  string
	// BestEffort is set when Validate couldn't recognize Body against any
	// of its known subscription shapes; the parser is still handed the
	// body, just with no expectation that it yields anything.
	BestEffort bool
}

// Options configures a single Fetch call. Zero-valued UserAgents,
// MaxRetries, PerAttemptTimeout, BaseBackoff, EgressFallbackAfter, Now and
// Sleep fall back to DefaultOptions' settings via applyDefaults;
// CacheBuster and EgressProxies are used as given.
type Options struct {
	UserAgents          []string
	MaxRetries          int
	PerAttemptTimeout   time.Duration
	BaseBackoff         time.Duration
	CacheBuster         bool
	EgressProxies       []string
	EgressFallbackAfter int // attempt count after which egress proxies are tried round-robin
	Now                 func() time.Time
	Sleep               func(time.Duration)
}

// DefaultOptions returns the baseline retry/backoff/UA policy.
func DefaultOptions() Options {
	return Options{
		UserAgents: []string{
			"ClashforWindows/0.20.39",
			"clash-verge/1.6.6",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/124.0 Safari/537.36",
			"sing-box/1.9.0",
		},
		MaxRetries:          3,
		PerAttemptTimeout:   15 * time.Second,
		BaseBackoff:         500 * time.Millisecond,
		CacheBuster:         true,
		EgressFallbackAfter: 2,
		Now:                 time.Now,
		Sleep:               time.Sleep,
	}
}

func (o Options) applyDefaults() Options {
	def := DefaultOptions()
	if len(o.UserAgents) == 0 {
		o.UserAgents = def.UserAgents
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = def.MaxRetries
	}
	if o.PerAttemptTimeout <= 0 {
		o.PerAttemptTimeout = def.PerAttemptTimeout
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = def.BaseBackoff
	}
	if o.EgressFallbackAfter <= 0 {
		o.EgressFallbackAfter = def.EgressFallbackAfter
	}
	if o.Now == nil {
		o.Now = def.Now
	}
	if o.Sleep == nil {
		o.Sleep = def.Sleep
	}
	return o
}

// totalAttempts is the attempt x user-agent cartesian product: every
// user agent gets MaxRetries tries before the next one rotates in.
func (o Options) totalAttempts() int {
	return o.MaxRetries * len(o.UserAgents)
}

// Fetch retrieves rawURL, retrying with UA rotation and exponential
// backoff, and — past EgressFallbackAfter attempts — round-robining
// through the configured egress proxies.
func Fetch(ctx context.Context, rawURL string, opts Options) (Result, error) {
	opts = opts.applyDefaults()
	total := opts.totalAttempts()

	var lastErr error
	for attempt := 0; attempt < total; attempt++ {
		ua := opts.UserAgents[attempt/opts.MaxRetries%len(opts.UserAgents)]
		targetURL := rawURL
		if opts.CacheBuster {
			targetURL = withCacheBuster(rawURL, opts.Now())
		}

		var proxyURL string
		if attempt >= opts.EgressFallbackAfter && len(opts.EgressProxies) > 0 {
			proxyURL = opts.EgressProxies[(attempt-opts.EgressFallbackAfter)%len(opts.EgressProxies)]
		}

		res, err := doAttempt(ctx, targetURL, ua, proxyURL, opts.PerAttemptTimeout)
		if err == nil {
			res.Attempts = attempt + 1
			res.UsedProxy = proxyURL
			return res, nil
		}
		lastErr = err

		sleepFor := backoffDuration(opts.BaseBackoff, attempt%opts.MaxRetries)
		if rle, ok := err.(*rateLimitError); ok {
			sleepFor += rle.extraSleep()
		}
		select {
		case <-ctx.Done():
			return Result{}, &Error{URL: rawURL, Attempts: attempt + 1, Err: ctx.Err()}
		default:
		}
		opts.Sleep(sleepFor)
	}
	return Result{}, &Error{URL: rawURL, Attempts: total, Err: lastErr}
}

type rateLimitError struct {
	retryAfter time.Duration
}

func (e *rateLimitError) Error() string { return "fetcher: rate limited (429)" }

func (e *rateLimitError) extraSleep() time.Duration {
	if e.retryAfter > 0 {
		return e.retryAfter
	}
	return 5 * time.Second
}

func backoffDuration(base time.Duration, attemptInCycle int) time.Duration {
	factor := math.Pow(1.5, float64(attemptInCycle))
	return time.Duration(float64(base) * factor)
}

func withCacheBuster(rawURL string, now time.Time) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("_t", fmt.Sprintf("%d", now.UnixMilli()))
	u.RawQuery = q.Encode()
	return u.String()
}

func doAttempt(ctx context.Context, targetURL, userAgent, proxyURL string, timeout time.Duration) (Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, targetURL, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")

	client := &http.Client{Timeout: timeout}
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return Result{}, fmt.Errorf("invalid egress proxy %q: %w", proxyURL, err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(parsed)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return Result{}, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return Result{}, &rateLimitError{retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	ok, bestEffort := Validate(body)
	if !ok {
		return Result{}, fmt.Errorf("fetcher: empty body")
	}
	return Result{Body: body, StatusCode: resp.StatusCode, BestEffort: bestEffort}, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := time.ParseDuration(header + "s"); err == nil {
		return secs
	}
	return 0
}

var knownURISchemeRe = regexp.MustCompile(`(?:vmess|vless|ss|ssr|trojan|hysteria2|hy2|http|https|socks5|socks)://`)

// Validate reports whether body is worth handing to the parser at all
// (ok — false only for a genuinely empty body) and whether it matched
// one of the recognized subscription shapes (rules b-e below) or is
// merely being given a best-effort shot. Rule (a) of §4.3 — "non-empty
// after trim" — is folded into ok rather than bestEffort, since an
// empty body can never parse to anything regardless of tagging.
//
// Rules: (a) non-empty after trim; (b) parses as base64 whose decoding
// contains a known URI prefix; (c) contains a known URI prefix directly;
// (d) contains "proxies:" / "Proxy:" / "- name:"; (e) starts+ends with
// matching {}/[] brackets. A body satisfying none of (b)-(e) is still
// returned (ok=true) but tagged bestEffort.
func Validate(body []byte) (ok, bestEffort bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false, false
	}
	if knownURISchemeRe.Match(trimmed) {
		return true, false
	}
	if strings.Contains(string(trimmed), "proxies:") || strings.Contains(string(trimmed), "Proxy:") || strings.Contains(string(trimmed), "- name:") {
		return true, false
	}
	if bracketed(trimmed, '{', '}') || bracketed(trimmed, '[', ']') {
		return true, false
	}
	if decoded, derr := decodeAnyBase64(string(trimmed)); derr == nil && knownURISchemeRe.Match(decoded) {
		return true, false
	}
	return true, true
}

func bracketed(body []byte, open, close byte) bool {
	return len(body) >= 2 && body[0] == open && body[len(body)-1] == close
}

func decodeAnyBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, s)
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	if raw, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
