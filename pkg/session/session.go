// Package session implements the per-host HTTP client: a cookie-jar-
// backed colly collector with a minimum-spacing rate limiter and an
// optional anti-bot pre-solve step through a pluggable AntiBotSolver. Every
// listing and extraction strategy issues its requests through a Session
// rather than talking to net/http directly, so rate limiting and cookie
// continuity are enforced uniformly.
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/chapterscout/chapterscout/internal/logger"
)

// defaultUserAgent mirrors a recent desktop Chrome build so static fetches
// aren't trivially distinguished from a browser by user agent alone.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config configures a Session.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MinInterval is the minimum spacing enforced between two requests to
	// the same host. Zero disables rate limiting.
	MinInterval time.Duration
	// Solver, if non-nil, is consulted before the first request to a
	// previously-unseen host, and again after MarkChallenged has been
	// called for that host.
	Solver AntiBotSolver
}

// DefaultConfig returns the session defaults. New fills an unset
// UserAgent or Timeout from them; a zero MinInterval is kept as given and
// disables rate limiting.
func DefaultConfig() Config {
	return Config{
		UserAgent:   defaultUserAgent,
		Timeout:     30 * time.Second,
		MinInterval: 2 * time.Second,
	}
}

// AntiBotSolver is the narrow interface a transparent anti-bot solving
// backend (e.g. FlareSolverr) must satisfy. Solve returns cookies to seed
// into the session's jar for host.
type AntiBotSolver interface {
	Solve(ctx context.Context, targetURL string) ([]*Cookie, error)
}

// Cookie is a minimal cookie representation independent of any particular
// HTTP client library, so AntiBotSolver implementations don't need to
// import colly.
type Cookie struct {
	Name, Value, Domain, Path string
}

// Response is the result of a successful Request call. HTTP status is not
// coerced into an error here — a 404 or 403 is a normal Response with a
// non-2xx StatusCode; callers (chapter classifiers, extractors) decide
// what a given status means for their own operation.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Headers     map[string][]string
}

// Session is a rate-limited, cookie-continuous HTTP client scoped to one
// crawl run. It is safe for concurrent use by multiple strategies
// operating against different hosts; the per-host maps share a single
// mutex.
type Session struct {
	cfg Config

	mu       sync.Mutex
	lastHit  map[string]time.Time
	solved   map[string]bool
	collector *colly.Collector
}

// New constructs a Session. A single colly.Collector (and its cookie jar)
// is shared across every Request call so that session cookies set by one
// page survive to the next.
func New(cfg Config) *Session {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	c := colly.NewCollector(colly.UserAgent(cfg.UserAgent))
	c.SetRequestTimeout(cfg.Timeout)

	return &Session{
		cfg:       cfg,
		lastHit:   make(map[string]time.Time),
		solved:    make(map[string]bool),
		collector: c,
	}
}

// RateLimit blocks, honoring ctx cancellation, until enough time has
// passed since the last request to targetURL's host for another request
// to be sent without violating MinInterval.
func (s *Session) RateLimit(ctx context.Context, targetURL string) error {
	if s.cfg.MinInterval <= 0 {
		return nil
	}

	host, err := hostOf(targetURL)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	last, seen := s.lastHit[host]
	s.mu.Unlock()
	if !seen {
		return nil
	}

	wait := s.cfg.MinInterval - time.Since(last)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Request performs a rate-limited GET against targetURL. headers, if
// non-nil, are merged on top of the session's defaults for this request
// only. Transport failures (DNS errors, timeouts, connection resets) are
// returned as an error; any HTTP response that was actually received,
// including 4xx/5xx, is returned as a non-nil *Response with a nil error.
func (s *Session) Request(ctx context.Context, targetURL string, headers map[string]string) (*Response, error) {
	if err := s.RateLimit(ctx, targetURL); err != nil {
		return nil, err
	}

	if err := s.maybeSolve(ctx, targetURL); err != nil {
		logger.Debug("anti-bot solve skipped", "url", targetURL, "error", err)
	}

	var (
		resp     *Response
		fetchErr error
	)

	// Clone rather than reuse the collector directly: Clone keeps the
	// shared cookie jar (so solved/session cookies persist across
	// requests) but gives this request its own callback set, so per-call
	// closures don't pile up on s.collector across the session's lifetime.
	client := s.collector.Clone()

	client.OnResponse(func(r *colly.Response) {
		resp = &Response{
			URL:         targetURL,
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        r.Body,
			Headers:     map[string][]string(*r.Headers),
		}
	})
	client.OnError(func(r *colly.Response, err error) {
		if r != nil {
			resp = &Response{
				URL:        targetURL,
				StatusCode: r.StatusCode,
				Body:       r.Body,
			}
			// colly reports non-2xx as OnError even though a response was
			// genuinely received; this is not a transport failure.
			return
		}
		fetchErr = err
	})

	defaultHeaders := map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
	}
	client.OnRequest(func(r *colly.Request) {
		for k, v := range defaultHeaders {
			r.Headers.Set(k, v)
		}
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})

	if err := client.Visit(targetURL); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if err := s.waitForIdle(ctx, client); err != nil {
		return nil, err
	}

	s.markHit(targetURL)

	if fetchErr != nil {
		return nil, fetchErr
	}
	return resp, nil
}

// waitForIdle lets an in-flight colly collector finish or the context be
// cancelled, whichever comes first. colly's Visit already blocks
// synchronously for a single in-process collector, so this mainly exists
// to honor ctx cancellation requested mid-request via Wait's return.
func (s *Session) waitForIdle(ctx context.Context, client *colly.Collector) error {
	done := make(chan struct{})
	go func() {
		client.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *Session) markHit(targetURL string) {
	host, err := hostOf(targetURL)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.lastHit[host] = time.Now()
	s.mu.Unlock()
}

// maybeSolve consults the configured AntiBotSolver once per host, seeding
// the collector's cookie jar with whatever cookies it returns.
func (s *Session) maybeSolve(ctx context.Context, targetURL string) error {
	if s.cfg.Solver == nil {
		return nil
	}

	host, err := hostOf(targetURL)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	already := s.solved[host]
	s.mu.Unlock()
	if already {
		return nil
	}

	cookies, err := s.cfg.Solver.Solve(ctx, targetURL)
	if err != nil {
		return err
	}

	s.seedCookies(targetURL, cookies)

	s.mu.Lock()
	s.solved[host] = true
	s.mu.Unlock()
	return nil
}

// MarkChallenged clears the cached solved state for targetURL's host so
// the next Request call re-consults the AntiBotSolver. Callers invoke
// this when a response turns out to be an anti-bot interstitial despite
// an earlier successful solve (e.g. the challenge rotated).
func (s *Session) MarkChallenged(targetURL string) {
	host, err := hostOf(targetURL)
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.solved, host)
	s.mu.Unlock()
}

// seedCookies installs solver-provided cookies into the collector's
// cookie jar so every subsequent request against this host carries the
// solved session automatically.
func (s *Session) seedCookies(targetURL string, cookies []*Cookie) {
	if len(cookies) == 0 {
		return
	}

	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		httpCookies = append(httpCookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}

	if err := s.collector.SetCookies(targetURL, httpCookies); err != nil {
		logger.Debug("failed to seed solver cookies", "url", targetURL, "error", err)
	}
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}
