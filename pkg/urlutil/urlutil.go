// Package urlutil provides URL resolution and chapter-number extraction
// helpers shared by every listing strategy and the chapter extractor.
package urlutil

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Absolutize resolves url against base using standard URL joining
// (scheme inheritance, ".." collapsing). If url is already absolute it is
// returned unchanged (after reparsing). If either URL fails to parse, the
// original url string is returned.
func Absolutize(rawURL, base string) string {
	b, err := url.Parse(base)
	if err != nil {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return b.ResolveReference(u).String()
}

// SameHost reports whether rawURL and base share the same host, compared
// case-insensitively. A malformed rawURL is treated as same-host so that
// upstream filtering is never the security boundary — the chapter
// classifier is.
func SameHost(rawURL, base string) bool {
	baseURL, err := url.Parse(base)
	if err != nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return strings.EqualFold(u.Host, baseURL.Host)
}

// chapterNumberPatterns are applied in order; the first match wins.
var chapterNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)chapter[-_]?(\d+)`),
	regexp.MustCompile(`(?i)ch[-_]?(\d+)`),
	regexp.MustCompile(`(?i)chapter[-_]?(\d+)[-_]?\d*`),
	regexp.MustCompile(`(?i)/novel/[^/]+_(\d+)\.html`),
	regexp.MustCompile(`(?i)/novel/\d+/(?:chapter[-_]?)?(\d+)\.html`),
}

var (
	numericHTMLPath = regexp.MustCompile(`/(\d+)\.html`)
	novelIDOnlyPath = regexp.MustCompile(`(?i)/novel/\d+$`)
)

// ExtractChapterNumber applies the ordered pattern cascade above and
// returns the first match as an integer, or nil if nothing matched.
func ExtractChapterNumber(rawURL string) *int {
	for _, pattern := range chapterNumberPatterns {
		m := pattern.FindStringSubmatch(rawURL)
		if m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return &n
			}
		}
	}

	// Rule 6: bare numeric .html path, only within a plausible chapter
	// range and not a trailing novel-ID segment.
	if m := numericHTMLPath.FindStringSubmatch(rawURL); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= 10000 && !novelIDOnlyPath.MatchString(rawURL) {
			return &n
		}
	}

	return nil
}

// rawChapterNumberPattern captures composite numbering like "1-3" or "1_4"
// in full, rather than just the leading digit run.
var rawChapterNumberPattern = regexp.MustCompile(`(?i)chapter[-_]?(\d+(?:[-_]\d+)*)`)

// ExtractRawChapterNumber returns the full matched numbering token
// (e.g. "1-3"), preserving composite forms that ExtractChapterNumber
// normalizes down to their leading digit run. Returns nil if no chapter
// token is found.
func ExtractRawChapterNumber(rawURL string) *string {
	if m := rawChapterNumberPattern.FindStringSubmatch(rawURL); m != nil {
		raw := m[1]
		return &raw
	}
	if m := chapterNumberPatterns[1].FindStringSubmatch(rawURL); m != nil {
		raw := m[1]
		return &raw
	}
	return nil
}

// NumberingPattern is the diagnostic classification of a sample of URLs'
// raw chapter-number tokens.
type NumberingPattern string

const (
	NumberingStandard NumberingPattern = "standard"
	NumberingWeird     NumberingPattern = "weird"
	NumberingMixed     NumberingPattern = "mixed"
)

// AnalyzeNumbering samples the first 20 URLs and classifies their raw
// chapter-number tokens. Used only for diagnostic metadata; callers must
// not branch extraction behavior on the result.
func AnalyzeNumbering(sampleURLs []string) (NumberingPattern, []string) {
	limit := len(sampleURLs)
	if limit > 20 {
		limit = 20
	}

	var raw []string
	for _, u := range sampleURLs[:limit] {
		if tok := ExtractRawChapterNumber(u); tok != nil {
			raw = append(raw, *tok)
		}
	}

	if len(raw) == 0 {
		return NumberingStandard, nil
	}

	weird := 0
	for _, tok := range raw {
		if strings.ContainsAny(tok, "-_") {
			weird++
		}
	}

	examples := raw
	if len(examples) > 5 {
		examples = examples[:5]
	}

	switch {
	case weird == 0:
		return NumberingStandard, examples
	case weird == len(raw):
		return NumberingWeird, examples
	default:
		return NumberingMixed, examples
	}
}
