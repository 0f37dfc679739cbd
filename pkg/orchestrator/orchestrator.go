// Package orchestrator drives the three listing strategies (JS mining,
// AJAX replay, browser automation) in priority order, applying a
// completeness accept gate after each one and stopping as soon as a
// strategy's result looks trustworthy enough to ship.
package orchestrator

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/chapterscout/chapterscout/internal/logger"
	"github.com/chapterscout/chapterscout/pkg/pagination"
	"github.com/chapterscout/chapterscout/pkg/profile"
	"github.com/chapterscout/chapterscout/pkg/session"
	"github.com/chapterscout/chapterscout/pkg/strategy/ajax"
	"github.com/chapterscout/chapterscout/pkg/strategy/browser"
	"github.com/chapterscout/chapterscout/pkg/strategy/jsmining"
	"github.com/chapterscout/chapterscout/pkg/urlutil"
)

// minURLsForGate is the smallest result size the accept gate will even
// evaluate; anything smaller always falls through to the next strategy.
const minURLsForGate = 10

// ErrorTag enumerates the only three ways FetchListing can fail.
type ErrorTag string

const (
	ErrInvalidURL         ErrorTag = "invalid_url"
	ErrAllStrategiesEmpty ErrorTag = "all_strategies_empty"
	ErrCancelled          ErrorTag = "cancelled"
)

// Metadata describes what happened during a FetchListing call,
// independent of whether it succeeded.
type Metadata struct {
	MethodUsed     *string
	URLsFound      int
	ReferenceCount *int
	MethodsTried   map[string]int
	// ClampedCrossHost counts URLs a strategy returned that were filtered
	// out for failing the same-host invariant, across every attempt.
	ClampedCrossHost int
}

// ListingResult is the tagged-variant return of FetchListing: Error is
// nil on success, in which case URLs is the accepted (or best-effort)
// listing.
type ListingResult struct {
	URLs     []string
	Metadata Metadata
	Error    *ErrorTag
}

// defaultOrder is used for a host the profile has no history for, or
// when no Profile collaborator is configured at all.
var defaultOrder = []string{"javascript", "ajax", "browser_automation"}

// Orchestrator wires together the collaborators needed to run every
// listing strategy against a single session.
type Orchestrator struct {
	sess    *session.Session
	browser *browser.Browser
	profile profile.Profile
}

// New constructs an Orchestrator. browserDriver and prof may both be nil:
// with no browser, the browser_automation attempt returns no URLs and is
// recorded as a failed attempt; with no
// profile, strategies always run in defaultOrder.
func New(sess *session.Session, browserDriver *browser.Browser, prof profile.Profile) *Orchestrator {
	return &Orchestrator{sess: sess, browser: browserDriver, profile: prof}
}

type attemptFunc func(ctx context.Context, tocURL string, shouldStop func() bool) ([]string, error)

// FetchListing resolves the ordered chapter URL list for tocURL, escalating
// through strategies until one passes the completeness accept gate or all
// have been tried.
func (o *Orchestrator) FetchListing(ctx context.Context, tocURL string, minChapter, maxChapter *int, shouldStop func() bool) ListingResult {
	if !isValidTocURL(tocURL) {
		tag := ErrInvalidURL
		return ListingResult{Error: &tag}
	}

	meta := Metadata{MethodsTried: make(map[string]int)}

	host := hostOf(tocURL)
	order := o.strategyOrder(host)

	attempts := map[string]attemptFunc{
		"javascript": func(ctx context.Context, tocURL string, shouldStop func() bool) ([]string, error) {
			r, err := jsmining.Detect(ctx, o.sess, tocURL, shouldStop)
			return r.URLs, err
		},
		"ajax": func(ctx context.Context, tocURL string, shouldStop func() bool) ([]string, error) {
			r, err := ajax.Detect(ctx, o.sess, tocURL, shouldStop)
			return r.URLs, err
		},
		"browser_automation": func(ctx context.Context, tocURL string, shouldStop func() bool) ([]string, error) {
			if o.browser == nil {
				return nil, nil
			}
			r, err := o.browser.Detect(ctx, tocURL, minChapter, maxChapter, shouldStop)
			return r.URLs, err
		},
	}

	var bestURLs []string

	for _, name := range order {
		run, ok := attempts[name]
		if !ok {
			continue
		}

		if shouldStop != nil && shouldStop() {
			tag := ErrCancelled
			meta.URLsFound = len(bestURLs)
			return ListingResult{URLs: sortAndDedupe(bestURLs), Metadata: meta, Error: &tag}
		}

		start := time.Now()
		urls, err := run(ctx, tocURL, shouldStop)
		elapsed := time.Since(start)
		if err != nil {
			logger.Debug("listing strategy failed", "strategy", name, "url", tocURL, "error", err)
			urls = nil
		}

		urls, clamped := clampSameHost(urls, tocURL)
		meta.ClampedCrossHost += clamped
		if clamped > 0 {
			logger.Debug("clamped cross-host urls", "strategy", name, "url", tocURL, "count", clamped)
		}

		meta.MethodsTried[name] = len(urls)

		if len(urls) > len(bestURLs) {
			bestURLs = urls
		}

		if len(urls) < minURLsForGate {
			o.notify(host, name, false, elapsed)
			continue
		}

		sorted := sortAndDedupe(urls)
		chapterNumbers := chapterNumbersOf(sorted)

		min := 1
		if minChapter != nil {
			min = *minChapter
		}
		verdict := pagination.Analyze(chapterNumbers, min)

		hardSignature := len(sorted) == 55 && name != "browser_automation"
		accepted := !hardSignature && !verdict.IsPaginated && coversRange(chapterNumbers, minChapter, maxChapter)

		o.notify(host, name, accepted, elapsed)

		if accepted {
			used := name
			result := Metadata{MethodUsed: &used, URLsFound: len(sorted), MethodsTried: meta.MethodsTried, ClampedCrossHost: meta.ClampedCrossHost}
			if verdict.EstimatedTotal > 0 {
				total := verdict.EstimatedTotal
				result.ReferenceCount = &total
			}
			return ListingResult{URLs: sorted, Metadata: result}
		}
	}

	if len(bestURLs) == 0 {
		tag := ErrAllStrategiesEmpty
		return ListingResult{Metadata: meta, Error: &tag}
	}

	sorted := sortAndDedupe(bestURLs)
	meta.URLsFound = len(sorted)
	return ListingResult{URLs: sorted, Metadata: meta}
}

// strategyOrder resolves the profile's preferred order for host, filtered
// down to (and supplemented with) the strategies this orchestrator can
// actually run, preserving the profile's relative ordering.
func (o *Orchestrator) strategyOrder(host string) []string {
	var preferred []string
	if o.profile != nil {
		preferred = o.profile.OptimalOrder(host)
	}
	if len(preferred) == 0 {
		preferred = defaultOrder
	}

	known := map[string]bool{"javascript": true, "ajax": true, "browser_automation": true}
	seen := make(map[string]bool, len(preferred))
	order := make([]string, 0, len(defaultOrder))
	for _, name := range preferred {
		if known[name] && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	for _, name := range defaultOrder {
		if !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	return order
}

func (o *Orchestrator) notify(host, strategy string, success bool, elapsed time.Duration) {
	if o.profile == nil {
		return
	}
	o.profile.Update(host, strategy, success, float64(elapsed.Microseconds())/1000.0)
}

// coversRange implements the accept gate's covers_range check: if a
// minimum is required, the discovered set must reach at least that far;
// if both bounds are set, in-range coverage must be at least 0.8.
func coversRange(chapterNumbers []int, minChapter, maxChapter *int) bool {
	if len(chapterNumbers) == 0 {
		return minChapter == nil
	}

	max := chapterNumbers[0]
	for _, n := range chapterNumbers[1:] {
		if n > max {
			max = n
		}
	}

	if minChapter != nil && max < *minChapter {
		return false
	}

	if minChapter != nil && maxChapter != nil {
		lo, hi := *minChapter, *maxChapter
		if hi < lo {
			return true
		}
		span := hi - lo + 1
		present := 0
		set := make(map[int]bool, len(chapterNumbers))
		for _, n := range chapterNumbers {
			set[n] = true
		}
		for n := lo; n <= hi; n++ {
			if set[n] {
				present++
			}
		}
		if float64(present)/float64(span) < 0.8 {
			return false
		}
	}

	return true
}

func chapterNumbersOf(urls []string) []int {
	var nums []int
	for _, u := range urls {
		if n := urlutil.ExtractChapterNumber(u); n != nil {
			nums = append(nums, *n)
		}
	}
	return nums
}

// clampSameHost filters urls down to those sharing tocURL's host,
// returning the kept list and a count of how many were dropped.
func clampSameHost(urls []string, tocURL string) ([]string, int) {
	kept := make([]string, 0, len(urls))
	clamped := 0
	for _, u := range urls {
		if urlutil.SameHost(u, tocURL) {
			kept = append(kept, u)
		} else {
			clamped++
		}
	}
	return kept, clamped
}

// sortAndDedupe deduplicates urls, then sorts the ones with a parsable
// chapter number ascending, appending the unparsable ones afterward in
// their original relative order.
func sortAndDedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	deduped := make([]string, 0, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		deduped = append(deduped, u)
	}

	var numbered []string
	var unnumbered []string
	numbers := make(map[string]int, len(deduped))
	for _, u := range deduped {
		if n := urlutil.ExtractChapterNumber(u); n != nil {
			numbers[u] = *n
			numbered = append(numbered, u)
		} else {
			unnumbered = append(unnumbered, u)
		}
	}

	sort.SliceStable(numbered, func(i, j int) bool {
		return numbers[numbered[i]] < numbers[numbered[j]]
	})

	return append(numbered, unnumbered...)
}

// isValidTocURL rejects anything that isn't a parseable http(s) URL,
// matching the §6 "invalid_url" input-validation error.
func isValidTocURL(rawURL string) bool {
	if strings.ContainsRune(rawURL, 0) {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
