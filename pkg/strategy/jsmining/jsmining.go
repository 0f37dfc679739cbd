// Package jsmining implements the JavaScript variable mining strategy:
// regex-scan a listing page's raw HTML for inline JS chapter-array
// literals, without ever executing the script. This is the cheapest and
// usually most reliable strategy for sites that hydrate their chapter
// list client-side from a pre-embedded JSON blob.
package jsmining

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/chapterscout/chapterscout/pkg/classifier"
	"github.com/chapterscout/chapterscout/pkg/session"
	"github.com/chapterscout/chapterscout/pkg/urlutil"
)

// Result is what Detect returns: the ordered, deduplicated chapter URLs
// it found plus a confidence score in [0,1] and an optional total-chapter
// estimate mined from an explicit counter variable.
type Result struct {
	URLs           []string
	Confidence     float64
	EstimatedTotal *int
	CoverageMin    *int
	CoverageMax    *int
}

var arrayPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)chapters\s*[:=]\s*\[([^\]]+)\]`),
	regexp.MustCompile(`(?is)chapterList\s*[:=]\s*\[([^\]]+)\]`),
	regexp.MustCompile(`(?is)chapterUrls\s*[:=]\s*\[([^\]]+)\]`),
	regexp.MustCompile(`(?is)chaptersArray\s*[:=]\s*\[([^\]]+)\]`),
	regexp.MustCompile(`(?is)chapter_data\s*[:=]\s*\[([^\]]+)\]`),
	regexp.MustCompile(`(?is)window\.chapters\s*[:=]\s*\[([^\]]+)\]`),
	regexp.MustCompile(`(?is)var\s+chapters\s*[:=]\s*\[([^\]]+)\]`),
	regexp.MustCompile(`(?is)let\s+chapters\s*[:=]\s*\[([^\]]+)\]`),
	regexp.MustCompile(`(?is)const\s+chapters\s*[:=]\s*\[([^\]]+)\]`),
	regexp.MustCompile(`(?is)getChapters\(\)\s*[:=]\s*\[([^\]]+)\]`),
	regexp.MustCompile(`(?is)loadChapters\(\)\s*[:=]\s*\[([^\]]+)\]`),
	regexp.MustCompile(`(?is)chapters\s*[:=]\s*\{[^}]*urls?\s*:\s*\[([^\]]+)\]`),
	regexp.MustCompile(`(?is)chapterList\s*[:=]\s*\{[^}]*data\s*:\s*\[([^\]]+)\]`),
}

var jsonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)JSON\.parse\(\s*['"]([^'"]*chapters?[^'"]*)['"]\s*\)`),
	regexp.MustCompile("(?is)JSON\\.parse\\(\\s*`([^`]*chapters?[^`]*)`\\s*\\)"),
}

var stringLiteralPattern = regexp.MustCompile(`["']([^"']+)["']`)

var totalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)totalChapters\s*[:=]\s*(\d+)`),
	regexp.MustCompile(`(?i)chapterCount\s*[:=]\s*(\d+)`),
	regexp.MustCompile(`(?i)total_count\s*[:=]\s*(\d+)`),
	regexp.MustCompile(`(?i)maxChapter\s*[:=]\s*(\d+)`),
}

var jsonKeyNames = map[string]struct{}{
	"url": {}, "href": {}, "link": {}, "chapter_url": {},
}

// Detect fetches toc_url through sess and mines its raw HTML for inline
// chapter URL arrays. shouldStop is polled between the fetch and the
// (purely CPU-bound) mining step so a cancelled run doesn't waste work
// parsing a page nobody wants anymore.
func Detect(ctx context.Context, sess *session.Session, tocURL string, shouldStop func() bool) (Result, error) {
	resp, err := sess.Request(ctx, tocURL, nil)
	if err != nil {
		return Result{}, err
	}
	if shouldStop != nil && shouldStop() {
		return Result{}, context.Canceled
	}

	html := string(resp.Body)
	urls := mineURLs(html)
	if len(urls) == 0 {
		return Result{Confidence: 0}, nil
	}

	urls, validationScore := validateAndNormalize(urls, tocURL)
	min, max := coverageRange(urls)

	confidence := validationScore*0.8 + 0.2
	if confidence > 1.0 {
		confidence = 1.0
	}

	result := Result{
		URLs:        urls,
		Confidence:  confidence,
		CoverageMin: min,
		CoverageMax: max,
	}
	result.EstimatedTotal = estimateTotal(html, urls, min, max)
	return result, nil
}

func mineURLs(html string) []string {
	var found []string

	for _, p := range arrayPatterns {
		for _, m := range p.FindAllStringSubmatch(html, -1) {
			found = append(found, parseArrayLiteral(m[1])...)
		}
	}
	for _, p := range jsonPatterns {
		for _, m := range p.FindAllStringSubmatch(html, -1) {
			found = append(found, parseJSONContent(m[1])...)
		}
	}

	return dedupePreserveOrder(found)
}

func parseArrayLiteral(content string) []string {
	var urls []string
	for _, m := range stringLiteralPattern.FindAllStringSubmatch(content, -1) {
		candidate := strings.TrimSpace(m[1])
		if !classifier.IsChapterURL(candidate, "") {
			continue
		}
		urls = append(urls, normalizeRelative(candidate))
	}
	return urls
}

func parseJSONContent(raw string) []string {
	unescaped := strings.NewReplacer(`\n`, "", `\t`, "", `\r`, "").Replace(raw)

	var data any
	if err := json.Unmarshal([]byte(unescaped), &data); err != nil {
		return parseArrayLiteral(unescaped)
	}

	var urls []string
	var walk func(any)
	walk = func(v any) {
		switch val := v.(type) {
		case map[string]any:
			for k, sub := range val {
				if _, ok := jsonKeyNames[strings.ToLower(k)]; ok {
					if s, ok := sub.(string); ok && classifier.IsChapterURL(s, "") {
						urls = append(urls, s)
					}
					continue
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

func normalizeRelative(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "//") {
		return u
	}
	if strings.HasPrefix(u, "/") {
		return u
	}
	return "/" + u
}

func validateAndNormalize(urls []string, base string) ([]string, float64) {
	valid := make([]string, 0, len(urls))
	for _, u := range urls {
		abs := urlutil.Absolutize(u, base)
		valid = append(valid, abs)
	}
	if len(urls) == 0 {
		return valid, 0
	}
	return valid, float64(len(valid)) / float64(len(urls))
}

func coverageRange(urls []string) (*int, *int) {
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

func estimateTotal(html string, urls []string, min, max *int) *int {
	for _, p := range totalPatterns {
		m := p.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > 1 && n < 10000 {
			return &n
		}
	}

	if max != nil && len(urls) > 10 && *max == len(urls) {
		doubled := *max * 2
		return &doubled
	}

	return nil
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
