// Package chapterextractor implements the chapter extractor: fetch one
// chapter URL, select its title and prose content out of the surrounding
// page chrome, and hand the harvested text to the TTS cleaner. The HTTP
// path is tried first; a real browser render is the fallback for
// anti-bot-gated or transport-failing pages.
package chapterextractor

import (
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/yosssi/gohtml"

	"github.com/chapterscout/chapterscout/internal/logger"
	"github.com/chapterscout/chapterscout/pkg/session"
	"github.com/chapterscout/chapterscout/pkg/strategy/browser"
	"github.com/chapterscout/chapterscout/pkg/ttsclean"
	"github.com/chapterscout/chapterscout/pkg/urlutil"
)

// minViableContentLength is the shortest extracted-content length that is
// accepted without falling through to the readability last resort.
const minViableContentLength = 40

// ErrorTag enumerates the ways ExtractChapter can fail.
type ErrorTag string

const (
	ErrChapterNotFound    ErrorTag = "chapter_not_found"
	ErrRemoved            ErrorTag = "removed"
	ErrAntiBotNotBypassed ErrorTag = "anti_bot_not_bypassed"
	ErrNoContent          ErrorTag = "no_content"
	ErrTransportFailure   ErrorTag = "transport_failure"
	ErrCancelled          ErrorTag = "cancelled"
)

// Extraction is the tagged-variant result of ExtractChapter: on success
// both Content and Title are populated and Error is nil; on failure only
// Error is populated.
type Extraction struct {
	Content *string
	Title   *string
	Error   *ErrorTag
}

// Config carries the ordered selector lists tried for title and content.
// Defaults mirror the common shapes seen across webnovel aggregator
// sites, most site-specific first.
type Config struct {
	TitleSelectors   []string
	ContentSelectors []string
}

// DefaultConfig returns the selector lists used when Config is zero-valued.
func DefaultConfig() Config {
	return Config{
		TitleSelectors: []string{
			"h1.chapter-title",
			"h1#chapter-title",
			"h2.chapter-title",
			".chapter-title",
			"#chapter-title",
			"h1",
			"h2",
		},
		ContentSelectors: []string{
			"div.cha-words",
			"div.cha-content",
			"div.chapter-c",
			"div#chapter-c",
			"div.text-left",
			"div#text-chapter",
			"div.chapter-content-wrapper",
			"div.chapter-content",
			"div#chapter-content",
			"div.chapter-body",
			"div#chapter-body",
			"div.content",
			"div#content",
			"div.text-content",
			"article",
			"div.read-content",
			"div.chapter-text",
			"div#novel-content",
			"div.novel-content",
			"div.entry-content",
			"div.post-content",
			"div.story-content",
			"div#story-content",
			"div.chapter-inner",
			"div.reading-content",
			"div#reading-content",
			"div.text",
			"div#text",
			"div.chap-content",
			"div#chap-content",
		},
	}
}

var interstitialTokens = []string{
	"verify you are human", "just a moment", "cloudflare",
	"ddos protection", "cf-browser-verification", "please wait",
}

var removedTokens = regexp.MustCompile(`(?i)not found|removed|deleted|does not exist`)

var navLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(previous|next)\s+(chapter|page)`),
	regexp.MustCompile(`(?i)^\s*chapter\s+\d+\s*$`),
	regexp.MustCompile(`(?i)^\s*table of contents`),
	regexp.MustCompile(`(?i)^\s*advertisement`),
	regexp.MustCompile(`(?i)^\s*comment`),
	regexp.MustCompile(`(?i)^\s*(read online|download|pdf)`),
}

var navShortWords = []string{"previous", "next", "table of contents", "advertisement", "comment"}

var titlePrefixPattern = regexp.MustCompile(`(?i)^chapter\s+\d+[:\s]*`)
var titleSuffixPattern = regexp.MustCompile(`(?i)\s*-\s*.*novel.*$`)

// Extractor extracts chapter content, falling back to a rendered browser
// page for anti-bot-gated or transport-failing requests.
type Extractor struct {
	sess    *session.Session
	browser *browser.Browser
	cfg     Config
}

// New constructs an Extractor. browserDriver may be nil, in which case
// the browser fallback path always fails with ErrTransportFailure.
func New(sess *session.Session, browserDriver *browser.Browser, cfg Config) *Extractor {
	def := DefaultConfig()
	if len(cfg.TitleSelectors) == 0 {
		cfg.TitleSelectors = def.TitleSelectors
	}
	if len(cfg.ContentSelectors) == 0 {
		cfg.ContentSelectors = def.ContentSelectors
	}
	return &Extractor{sess: sess, browser: browserDriver, cfg: cfg}
}

// ExtractChapter fetches chapterURL and returns its cleaned prose and
// title, or a tagged failure reason.
func (e *Extractor) ExtractChapter(ctx context.Context, chapterURL string, shouldStop func() bool) Extraction {
	if shouldStop != nil && shouldStop() {
		tag := ErrCancelled
		return Extraction{Error: &tag}
	}

	html, needsBrowser, tag := e.fetchWithRetry(ctx, chapterURL, shouldStop)
	if tag != nil {
		return Extraction{Error: tag}
	}

	renderedByBrowser := false
	if needsBrowser {
		if e.browser == nil {
			t := ErrTransportFailure
			return Extraction{Error: &t}
		}
		rendered, _, err := e.browser.RenderPage(ctx, chapterURL)
		if err != nil {
			logger.Debug("browser fallback render failed", "url", chapterURL, "error", err)
			t := ErrTransportFailure
			return Extraction{Error: &t}
		}
		html = rendered
		renderedByBrowser = true
	}

	return e.extractFromHTML(html, chapterURL, renderedByBrowser)
}

// fetchWithRetry implements the primary HTTP path's retry/backoff rules:
// up to three attempts, a 2s then 4s backoff before the second and third
// attempts (after a transport error or a 403), and a fallback-to-browser signal rather than a hard error when every
// attempt exhausts without a usable response.
func (e *Extractor) fetchWithRetry(ctx context.Context, chapterURL string, shouldStop func() bool) (html string, needsBrowser bool, errTag *ErrorTag) {
	backoffs := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

	for attempt := 0; attempt < 3; attempt++ {
		if shouldStop != nil && shouldStop() {
			tag := ErrCancelled
			return "", false, &tag
		}

		resp, err := e.sess.Request(ctx, chapterURL, nil)
		if err != nil {
			if attempt < len(backoffs)-1 {
				if sleepErr := sleepCancelable(ctx, backoffs[attempt], shouldStop); sleepErr != nil {
					tag := ErrCancelled
					return "", false, &tag
				}
				continue
			}
			return "", true, nil
		}

		switch {
		case resp.StatusCode == 200:
			return string(resp.Body), false, nil
		case resp.StatusCode == 404:
			tag := ErrChapterNotFound
			return "", false, &tag
		case resp.StatusCode == 403:
			if removedTokens.MatchString(previewOf(string(resp.Body), 500)) {
				tag := ErrRemoved
				return "", false, &tag
			}
			if attempt < len(backoffs)-1 {
				if sleepErr := sleepCancelable(ctx, backoffs[attempt], shouldStop); sleepErr != nil {
					tag := ErrCancelled
					return "", false, &tag
				}
				continue
			}
			return "", true, nil
		default:
			return "", true, nil
		}
	}

	return "", true, nil
}

func previewOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func sleepCancelable(ctx context.Context, d time.Duration, shouldStop func() bool) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	poll := time.NewTicker(50 * time.Millisecond)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-poll.C:
			if shouldStop != nil && shouldStop() {
				return context.Canceled
			}
		}
	}
}

// extractFromHTML runs steps 3-8 of the chapter extraction pipeline
// against an already-fetched HTML document, whichever path (HTTP or
// browser render) produced it.
func (e *Extractor) extractFromHTML(htmlContent, chapterURL string, renderedByBrowser bool) Extraction {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		tag := ErrNoContent
		return Extraction{Error: &tag}
	}

	title := e.extractTitle(doc, chapterURL)
	text := e.extractContent(doc)
	if len(strings.TrimSpace(text)) < minViableContentLength {
		if fallback := readabilityFallback(htmlContent); fallback != "" {
			text = fallback
		}
	}

	cleaned := ttsclean.Clean(text)

	if renderedByBrowser {
		lower := strings.ToLower(text)
		for _, tok := range interstitialTokens {
			if strings.Contains(lower, tok) && len(cleaned) < 200 {
				tag := ErrAntiBotNotBypassed
				return Extraction{Error: &tag}
			}
		}
	}

	if cleaned == "" {
		logger.Debug("no content extracted, dumping page for inspection",
			"url", chapterURL, "html", previewOf(gohtml.Format(htmlContent), 2000))
		tag := ErrNoContent
		return Extraction{Error: &tag}
	}

	return Extraction{Content: &cleaned, Title: &title}
}

// extractTitle tries each configured selector in order, strips a leading
// "Chapter N:" prefix and trailing "- ...novel..." suffix, and falls back
// to a chapter-number-derived title or "Chapter 1".
func (e *Extractor) extractTitle(doc *goquery.Document, chapterURL string) string {
	for _, sel := range e.cfg.TitleSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text == "" {
			continue
		}
		text = titlePrefixPattern.ReplaceAllString(text, "")
		text = titleSuffixPattern.ReplaceAllString(text, "")
		text = strings.TrimSpace(text)
		if len(text) > 3 && len(text) < 200 {
			return text
		}
	}

	if n := urlutil.ExtractChapterNumber(chapterURL); n != nil {
		return "Chapter " + strconv.Itoa(*n)
	}
	return "Chapter 1"
}

var contentClassFallback = regexp.MustCompile(`(?i)content|chapter|text`)

// extractContent locates the chapter's content container, harvests its
// paragraphs, and falls back to a raw separator-joined text split when
// paragraph harvesting finds nothing usable.
func (e *Extractor) extractContent(doc *goquery.Document) string {
	container := e.findContentContainer(doc)
	if container == nil {
		return ""
	}

	if text := harvestParagraphs(container); text != "" {
		return text
	}

	return harvestFallbackLines(container)
}

func (e *Extractor) findContentContainer(doc *goquery.Document) *goquery.Selection {
	for _, sel := range e.cfg.ContentSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}

	classOrID := doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		return contentClassFallback.MatchString(class) || contentClassFallback.MatchString(id)
	})
	if classOrID.Length() > 0 {
		return classOrID.First()
	}
	if found := doc.Find("article").First(); found.Length() > 0 {
		return found
	}
	if found := doc.Find("body").First(); found.Length() > 0 {
		return found
	}
	return nil
}

// harvestParagraphs collects every <p> element plus every <div> that
// contains no <p> descendant (to avoid double-counting an ancestor
// container whose child <p> was already harvested), filters out
// navigation/UI noise, deduplicates whitespace-normalized text, and
// joins the result with blank lines.
func harvestParagraphs(container *goquery.Selection) string {
	var parts []string
	seen := make(map[string]bool)

	container.Find("p").Each(func(_ int, sel *goquery.Selection) {
		addIfUsable(sel.Text(), &parts, seen)
	})

	container.Find("div").Each(func(_ int, sel *goquery.Selection) {
		if sel.Find("p").Length() > 0 {
			return
		}
		addIfUsable(sel.Text(), &parts, seen)
	})

	return strings.Join(parts, "\n\n")
}

func addIfUsable(raw string, parts *[]string, seen map[string]bool) {
	text := strings.TrimSpace(raw)
	if len(text) <= 20 {
		return
	}
	if isNavigationText(text) {
		return
	}
	normalized := strings.Join(strings.Fields(text), " ")
	if seen[normalized] {
		return
	}
	seen[normalized] = true
	*parts = append(*parts, text)
}

func isNavigationText(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range navLinePatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	if len(text) < 50 {
		for _, w := range navShortWords {
			if strings.Contains(lower, w) {
				return true
			}
		}
	}
	return false
}

// readabilityFallback is the last resort when the selector cascade and the
// line-based harvest both come up short: it hands the raw page to
// go-readability's boilerplate-removal heuristics and takes whatever prose
// it scores highest. Swallows its own errors since an empty return just
// means the caller keeps its original (also-thin) text.
func readabilityFallback(htmlContent string) string {
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(htmlContent), nil)
	if err != nil || article.Node == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := article.RenderText(&buf); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

// harvestFallbackLines is used when paragraph harvesting finds nothing:
// it takes the container's full text split on newlines and re-applies
// the same filters line by line.
func harvestFallbackLines(container *goquery.Selection) string {
	full := container.Text()
	var parts []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(full, "\n") {
		addIfUsable(line, &parts, seen)
	}
	return strings.Join(parts, "\n\n")
}
