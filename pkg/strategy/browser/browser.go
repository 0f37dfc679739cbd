// Package browser implements the browser-automation listing strategy:
// the strategy orchestrator's last resort for sites whose chapter list
// is assembled client-side in a way no regex or endpoint replay can
// reach. A real headless Chrome renders the page, scrolls it to trigger
// lazy loading, and the resulting DOM is mined for chapter links by the
// same set of methods the lighter strategies use against static HTML.
package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/chapterscout/chapterscout/pkg/classifier"
	"github.com/chapterscout/chapterscout/pkg/urlutil"
)

//go:embed scroll.js
var scrollScript string

//go:embed extract.js
var extractScript string

// defaultUserAgent mirrors a recent desktop Chrome build.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config configures a Browser.
type Config struct {
	UserAgent string
	// NavigateTimeout bounds the whole Detect call, including scrolling
	// and extraction.
	NavigateTimeout time.Duration
	// MaxScrolls caps the lazy-load scroll loop.
	MaxScrolls int
	// ScrollWait is how long to pause after each scroll step for content
	// to load before checking for convergence.
	ScrollWait time.Duration
	// Stealth enables anti-detection flags and fingerprint patching.
	Stealth bool
}

// DefaultConfig returns the defaults used when a caller leaves fields unset.
func DefaultConfig() Config {
	return Config{
		UserAgent:       defaultUserAgent,
		NavigateTimeout: 45 * time.Second,
		MaxScrolls:      20,
		ScrollWait:      500 * time.Millisecond,
		Stealth:         true,
	}
}

// Browser drives a headless Chrome instance via chromedp. One Browser
// owns one ExecAllocator and can serve many sequential Detect calls;
// each call gets its own browser tab (chromedp.NewContext).
type Browser struct {
	cfg       Config
	allocCtx  context.Context
	cancelAll context.CancelFunc
}

// New starts the exec allocator. The returned Browser must be Closed
// when no longer needed to tear down the underlying Chrome process.
func New(cfg Config) (*Browser, error) {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.NavigateTimeout == 0 {
		cfg.NavigateTimeout = def.NavigateTimeout
	}
	if cfg.MaxScrolls == 0 {
		cfg.MaxScrolls = def.MaxScrolls
	}
	if cfg.ScrollWait == 0 {
		cfg.ScrollWait = def.ScrollWait
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if cfg.Stealth {
		opts = stealthExecAllocatorOptions()
	}
	opts = append(opts, chromedp.UserAgent(cfg.UserAgent))

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Browser{cfg: cfg, allocCtx: allocCtx, cancelAll: cancel}, nil
}

// Close tears down the browser process.
func (b *Browser) Close() {
	b.cancelAll()
}

// linkCandidate mirrors the {url, text} shape extract.js returns for
// each link found in the rendered DOM.
type linkCandidate struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Result is what Detect returns.
type Result struct {
	URLs           []string
	Confidence     float64
	CoverageMin    *int
	CoverageMax    *int
	ChallengeType  string
}

// Detect navigates to tocURL in a real browser, scrolls to trigger lazy
// loading, and mines the rendered DOM for chapter URLs via known JS
// globals and every rendered anchor. minChapter/maxChapter, if
// non-nil, filter the result to that chapter-number range.
func (b *Browser) Detect(ctx context.Context, tocURL string, minChapter, maxChapter *int, shouldStop func() bool) (Result, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()

	timeoutCtx, cancelTimeout := context.WithTimeout(tabCtx, b.cfg.NavigateTimeout)
	defer cancelTimeout()

	var html, title string

	actions := []chromedp.Action{}
	if b.cfg.Stealth {
		actions = append(actions, injectStealthScript())
	}
	actions = append(actions,
		chromedp.Navigate(tocURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
	)

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		return Result{}, fmt.Errorf("navigate %s: %w", tocURL, err)
	}

	if challenge := detectChallengePage(title, html); challenge != "" {
		return Result{ChallengeType: challenge}, nil
	}

	if err := scrollAndWait(timeoutCtx, b.cfg.MaxScrolls, b.cfg.ScrollWait, shouldStop); err != nil {
		return Result{}, err
	}

	var rawCandidates []linkCandidate
	if err := chromedp.Run(timeoutCtx, chromedp.Evaluate(extractScript+"; extractCandidates();", &rawCandidates)); err != nil {
		return Result{}, fmt.Errorf("extract urls: %w", err)
	}

	var filtered []string
	for _, c := range rawCandidates {
		if classifier.IsChapterURL(c.URL, c.Text) {
			filtered = append(filtered, urlutil.Absolutize(c.URL, tocURL))
		}
	}
	filtered = dedupePreserveOrder(filtered)

	if minChapter != nil || maxChapter != nil {
		filtered = filterByChapterRange(filtered, minChapter, maxChapter)
	}

	if len(filtered) == 0 {
		return Result{}, nil
	}

	min, max := analyzeCoverage(filtered)
	validationScore := 1.0
	confidence := 0.8 + validationScore*0.2
	if confidence > 1.0 {
		confidence = 1.0
	}

	return Result{
		URLs:        filtered,
		Confidence:  confidence,
		CoverageMin: min,
		CoverageMax: max,
	}, nil
}

// RenderPage navigates to targetURL in a fresh tab and returns its
// settled outer HTML, without any scrolling or link extraction. The
// chapter extractor uses this as its browser-fallback render step; the
// listing Detect path above additionally scrolls before extracting.
func (b *Browser) RenderPage(ctx context.Context, targetURL string) (renderedHTML string, challengeType string, err error) {
	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()

	timeoutCtx, cancelTimeout := context.WithTimeout(tabCtx, b.cfg.NavigateTimeout)
	defer cancelTimeout()

	var title string

	actions := []chromedp.Action{}
	if b.cfg.Stealth {
		actions = append(actions, injectStealthScript())
	}
	actions = append(actions,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &renderedHTML),
		chromedp.Title(&title),
	)

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		return "", "", fmt.Errorf("navigate %s: %w", targetURL, err)
	}

	return renderedHTML, detectChallengePage(title, renderedHTML), nil
}

// scrollAndWait scrolls the active tab in increments, polling
// countChapterLinks (defined in scroll.js) for convergence so the loop
// stops as soon as lazy-loading stalls rather than always running
// maxScrolls times.
func scrollAndWait(ctx context.Context, maxScrolls int, wait time.Duration, shouldStop func() bool) error {
	if err := chromedp.Run(ctx, chromedp.Evaluate(scrollScript, nil)); err != nil {
		return fmt.Errorf("inject scroll helpers: %w", err)
	}

	var lastCount int
	for i := 0; i < maxScrolls; i++ {
		if shouldStop != nil && shouldStop() {
			break
		}

		var count int
		var atBottom bool
		err := chromedp.Run(ctx,
			chromedp.Evaluate("window.scrollBy(0, 500)", nil),
			chromedp.Sleep(wait),
			chromedp.Evaluate("countChapterLinks()", &count),
			chromedp.Evaluate("atScrollBottom()", &atBottom),
		)
		if err != nil {
			return fmt.Errorf("scroll step %d: %w", i, err)
		}

		if atBottom || count == lastCount {
			break
		}
		lastCount = count
	}

	return chromedp.Run(ctx,
		chromedp.Evaluate("window.scrollTo(0, 0)", nil),
		chromedp.Sleep(wait),
	)
}

var challengeSignatures = map[string][]string{
	"cloudflare": {"just a moment", "attention required", "cf-challenge", "cf_chl_opt", "checking your browser"},
	"turnstile":  {"cf-turnstile", "turnstile"},
	"hcaptcha":   {"hcaptcha"},
	"recaptcha":  {"recaptcha", "g-recaptcha"},
	"bot_detection": {"access denied", "blocked", "bot detection", "robot or human"},
}

// detectChallengePage inspects a rendered page's title and HTML for
// known anti-bot interstitial signatures, returning the challenge type
// name or "" if none matched.
func detectChallengePage(title, html string) string {
	lowerTitle := strings.ToLower(title)
	lowerHTML := strings.ToLower(html)

	for _, challenge := range []string{"cloudflare", "turnstile", "hcaptcha", "recaptcha", "bot_detection"} {
		for _, sig := range challengeSignatures[challenge] {
			if strings.Contains(lowerTitle, sig) || strings.Contains(lowerHTML, sig) {
				return challenge
			}
		}
	}
	return ""
}

func filterByChapterRange(urls []string, min, max *int) []string {
	if min == nil && max == nil {
		return urls
	}
	var out []string
	for _, u := range urls {
		n := urlutil.ExtractChapterNumber(u)
		if n == nil {
			continue
		}
		if min != nil && *n < *min {
			continue
		}
		if max != nil && *n > *max {
			continue
		}
		out = append(out, u)
	}
	return out
}

func analyzeCoverage(urls []string) (*int, *int) {
	var nums []int
	for _, u := range urls {
		if n := urlutil.ExtractChapterNumber(u); n != nil {
			nums = append(nums, *n)
		}
	}
	if len(nums) == 0 {
		return nil, nil
	}
	min, max := nums[0], nums[0]
	for _, n := range nums[1:] {
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
	}
	return &min, &max
}

func dedupePreserveOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// parseJSONForURLs mirrors the JS-side extraction logic for the rare
// case an API endpoint discovered mid-navigation returns a raw JSON
// body instead of HTML; unused by the default Detect path but kept as
// a helper for orchestrator-level API follow-up.
func parseJSONForURLs(body string) []string {
	var data any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return nil
	}

	var urls []string
	var walk func(any)
	walk = func(v any) {
		switch val := v.(type) {
		case map[string]any:
			for k, sub := range val {
				lower := strings.ToLower(k)
				if lower == "url" || lower == "href" || lower == "link" || lower == "chapter_url" {
					if s, ok := sub.(string); ok && strings.Contains(strings.ToLower(s), "chapter") {
						urls = append(urls, s)
						continue
					}
				}
				walk(sub)
			}
		case []any:
			for _, item := range val {
				walk(item)
			}
		}
	}
	walk(data)
	return urls
}
