// Package ajax implements the AJAX endpoint replay strategy: discover a
// novel's internal ID and candidate JSON/HTML API endpoints from a
// listing page's HTML, then replay each endpoint looking for chapter
// URLs, without ever executing any client-side script.
package ajax

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/chapterscout/chapterscout/pkg/classifier"
	"github.com/chapterscout/chapterscout/pkg/session"
	"github.com/chapterscout/chapterscout/pkg/urlutil"
)

// maxEndpointsTried caps how many candidate endpoints get replayed, so a
// page with a pathological number of matches can't turn into a request
// storm against the target host.
const maxEndpointsTried = 20

// urlCollectThreshold stops trying further endpoints once enough chapter
// URLs have already been collected.
const urlCollectThreshold = 100

// Result is what Detect returns.
type Result struct {
	URLs               []string
	Confidence         float64
	CoverageMin        *int
	CoverageMax        *int
	EndpointsTried     int
	SuccessfulEndpoints int
}

var novelIDDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)data-novel-id=["'](\d+)["']`),
	regexp.MustCompile(`(?i)data-book-id=["'](\d+)["']`),
	regexp.MustCompile(`(?i)data-id=["'](\d+)["']`),
}

var novelIDJSPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)novelId["']?\s*[:=]\s*["']?(\d+)["']?`),
	regexp.MustCompile(`(?i)novel_id["']?\s*[:=]\s*["']?(\d+)["']?`),
	regexp.MustCompile(`(?i)bookId["']?\s*[:=]\s*["']?(\d+)["']?`),
}

var novelIDURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/novel/(\d+)/`),
	regexp.MustCompile(`/book/(\d+)/`),
}

// extractNovelID tries data attributes, then JS variables, then the
// listing URL's own path, in that order.
func extractNovelID(html, tocURL string) string {
	for _, p := range novelIDDataPatterns {
		if m := p.FindStringSubmatch(html); m != nil {
			return m[1]
		}
	}
	for _, p := range novelIDJSPatterns {
		if m := p.FindStringSubmatch(html); m != nil {
			return m[1]
		}
	}
	for _, p := range novelIDURLPatterns {
		if m := p.FindStringSubmatch(tocURL); m != nil {
			return m[1]
		}
	}
	return ""
}

var jsEndpointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ajaxChapterUrl["']?\s*[:=]\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)chapterApiUrl["']?\s*[:=]\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)ajaxUrl["']?\s*[:=]\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)apiEndpoint["']?\s*[:=]\s*["']([^"']+)["']`),
}

var fetchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)fetch\(\s*["']([^"']*chapters?[^"']*)["']`),
	regexp.MustCompile(`(?is)XMLHttpRequest[^}]*open\(\s*["']GET["']\s*,\s*["']([^"']*chapters?[^"']*)["']`),
}

// discoverEndpoints finds candidate AJAX endpoints from inline JS
// variables, well-known endpoint shapes keyed on the novel ID, and
// fetch()/XHR call sites, deduplicated and capped at maxEndpointsTried.
func discoverEndpoints(html, novelID string) []string {
	var endpoints []string

	for _, p := range jsEndpointPatterns {
		for _, m := range p.FindAllStringSubmatch(html, -1) {
			endpoints = append(endpoints, expandEndpoint(m[1], novelID)...)
		}
	}

	if novelID != "" {
		endpoints = append(endpoints,
			"/api/chapters?novel_id="+novelID,
			"/ajax/chapter-list?novelId="+novelID,
			"/api/novel/"+novelID+"/chapters",
			"/book/ajax-chapters?bookId="+novelID,
			"/api/chapter/archive?novelId="+novelID,
			"/ajax/get-chapters?novel_id="+novelID,
		)
	}

	for _, p := range fetchPatterns {
		for _, m := range p.FindAllStringSubmatch(html, -1) {
			endpoints = append(endpoints, expandEndpoint(m[1], novelID)...)
		}
	}

	endpoints = dedupePreserveOrder(endpoints)
	if len(endpoints) > maxEndpointsTried {
		endpoints = endpoints[:maxEndpointsTried]
	}
	return endpoints
}

var templateVars = []string{"{novelId}", "{id}", "{novel_id}"}

// expandEndpoint substitutes template variables with the discovered
// novel ID and, separately, appends a small set of common pagination
// query-parameter variants so a first-page-only endpoint is also tried
// with page=1/offset=0/start=0/p=1.
func expandEndpoint(raw, novelID string) []string {
	var out []string

	if novelID != "" {
		expanded := raw
		for _, tv := range templateVars {
			expanded = strings.ReplaceAll(expanded, tv, novelID)
		}
		out = append(out, expanded)
	}

	base := raw
	if idx := strings.Index(raw, "?"); idx >= 0 {
		base = raw[:idx]
	}

	for _, param := range []string{"page", "offset", "start", "p"} {
		if strings.Contains(raw, param+"=") {
			continue
		}
		sep := "?"
		if strings.Contains(raw, "?") {
			sep = "&"
		}
		out = append(out, raw+sep+param+"="+defaultParamValue(param))
		_ = base
	}

	return out
}

func defaultParamValue(param string) string {
	switch param {
	case "page", "p":
		return "1"
	default:
		return "0"
	}
}

// Detect fetches tocURL, discovers candidate AJAX endpoints, replays each
// one through sess, and extracts chapter URLs from whichever of
// JSON/HTML response shape each endpoint actually returns.
func Detect(ctx context.Context, sess *session.Session, tocURL string, shouldStop func() bool) (Result, error) {
	resp, err := sess.Request(ctx, tocURL, nil)
	if err != nil {
		return Result{}, err
	}

	html := string(resp.Body)
	novelID := extractNovelID(html, tocURL)
	endpoints := discoverEndpoints(html, novelID)
	if len(endpoints) == 0 {
		return Result{}, nil
	}

	var allURLs []string
	successful := 0

	for _, endpoint := range endpoints {
		if shouldStop != nil && shouldStop() {
			break
		}

		absolute := urlutil.Absolutize(endpoint, tocURL)
		epResp, err := sess.Request(ctx, absolute, nil)
		if err != nil || epResp.StatusCode >= 400 {
			continue
		}

		urls := parseEndpointResponse(epResp.ContentType, string(epResp.Body))
		if len(urls) > 0 {
			allURLs = append(allURLs, urls...)
			successful++
		}

		if len(allURLs) >= urlCollectThreshold {
			break
		}
	}

	if len(allURLs) == 0 {
		return Result{EndpointsTried: len(endpoints)}, nil
	}

	allURLs = dedupePreserveOrder(allURLs)
	for i, u := range allURLs {
		allURLs[i] = urlutil.Absolutize(u, tocURL)
	}

	min, max := coverageRange(allURLs)

	confidence := 0.7 + 0.2 + float64(successful)*0.1
	if confidence > 1.0 {
		confidence = 1.0
	}

	return Result{
		URLs:                allURLs,
		Confidence:          confidence,
		CoverageMin:         min,
		CoverageMax:         max,
		EndpointsTried:      len(endpoints),
		SuccessfulEndpoints: successful,
	}, nil
}

func parseEndpointResponse(contentType, body string) []string {
	lower := strings.ToLower(contentType)
	switch {
	case strings.Contains(lower, "json"):
		return parseJSONResponse(body)
	case strings.Contains(lower, "html"), strings.Contains(lower, "text"):
		return parseHTMLResponse(body)
	default:
		if urls := parseJSONResponse(body); len(urls) > 0 {
			return urls
		}
		return parseHTMLResponse(body)
	}
}

var chapterArrayKeys = map[string]struct{}{
	"chapters": {}, "chapterlist": {}, "data": {}, "list": {},
	"items": {}, "chapter_data": {}, "chapters_list": {}, "chapter_items": {},
}

var urlFieldNames = []string{"url", "href", "link", "chapter_url", "chapterUrl"}

// parseJSONResponse walks an arbitrary JSON document (object or array)
// via gjson, looking for arrays keyed by a recognized chapter-list field
// name, then pulling a URL out of each chapter object.
func parseJSONResponse(body string) []string {
	if !gjson.Valid(body) {
		return nil
	}

	var urls []string
	root := gjson.Parse(body)

	var walk func(result gjson.Result)
	walk = func(result gjson.Result) {
		if result.IsObject() {
			result.ForEach(func(key, value gjson.Result) bool {
				if _, ok := chapterArrayKeys[strings.ToLower(key.String())]; ok && value.IsArray() {
					urls = append(urls, extractURLsFromChapterArray(value)...)
					return true
				}
				walk(value)
				return true
			})
			return
		}
		if result.IsArray() {
			result.ForEach(func(_, item gjson.Result) bool {
				walk(item)
				return true
			})
		}
	}

	if root.IsArray() {
		urls = append(urls, extractURLsFromChapterArray(root)...)
	} else {
		walk(root)
	}

	return urls
}

func extractURLsFromChapterArray(arr gjson.Result) []string {
	var urls []string
	arr.ForEach(func(_, chapter gjson.Result) bool {
		if !chapter.IsObject() {
			return true
		}
		for _, field := range urlFieldNames {
			v := chapter.Get(field)
			if v.Exists() && v.Type == gjson.String {
				u := strings.TrimSpace(v.String())
				if u != "" && classifier.IsChapterURL(u, "") {
					urls = append(urls, u)
					break
				}
			}
		}
		return true
	})
	return urls
}

func parseHTMLResponse(body string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var urls []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if classifier.IsChapterURL(href, sel.Text()) {
			urls = append(urls, href)
		}
	})
	return urls
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
