package chapterextractor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func newExtractor() *Extractor {
	return New(nil, nil, Config{})
}

func TestExtractTitleStripsPrefixAndSuffix(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><h1 class="chapter-title">Chapter 12: The Awakening - My Novel Site</h1></body></html>`))
	e := newExtractor()
	title := e.extractTitle(doc, "https://site.com/chapter-12")
	if title != "The Awakening" {
		t.Errorf("got %q", title)
	}
}

func TestExtractTitleFallsBackToChapterNumber(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(`<html><body></body></html>`))
	e := newExtractor()
	title := e.extractTitle(doc, "https://site.com/chapter-42")
	if title != "Chapter 42" {
		t.Errorf("got %q, want Chapter 42", title)
	}
}

func TestExtractTitleFallsBackToChapterOne(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(`<html><body></body></html>`))
	e := newExtractor()
	title := e.extractTitle(doc, "https://site.com/about")
	if title != "Chapter 1" {
		t.Errorf("got %q, want Chapter 1", title)
	}
}

func TestExtractContentHarvestsParagraphs(t *testing.T) {
	html := `<html><body><div class="chapter-content">
		<p>This is the first paragraph of the chapter, long enough to pass the filter.</p>
		<p>Previous Chapter</p>
		<p>This is the second paragraph, also long enough to survive filtering rules.</p>
	</div></body></html>`
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(html))
	e := newExtractor()
	text := e.extractContent(doc)
	if !strings.Contains(text, "first paragraph") || !strings.Contains(text, "second paragraph") {
		t.Fatalf("got %q", text)
	}
	if strings.Contains(text, "Previous Chapter") {
		t.Errorf("navigation text should have been filtered: %q", text)
	}
}

func TestExtractContentDeduplicates(t *testing.T) {
	html := `<html><body><div class="chapter-content">
		<p>This exact paragraph appears more than once in the markup by mistake.</p>
		<p>This exact paragraph appears more than once in the markup by mistake.</p>
	</div></body></html>`
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(html))
	e := newExtractor()
	text := e.extractContent(doc)
	if strings.Count(text, "appears more than once") != 1 {
		t.Errorf("expected dedup, got %q", text)
	}
}

func TestExtractContentFallsBackToDivsWithoutP(t *testing.T) {
	html := `<html><body><div class="chapter-content">
		<div>This paragraph lives directly in a div with no nested p tag at all.</div>
	</div></body></html>`
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(html))
	e := newExtractor()
	text := e.extractContent(doc)
	if !strings.Contains(text, "lives directly in a div") {
		t.Fatalf("got %q", text)
	}
}

func TestIsNavigationText(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Previous Chapter", true},
		{"Chapter 12", true},
		{"Table of Contents", true},
		{"This is a perfectly normal sentence of prose that happens to be long.", false},
	}
	for _, c := range cases {
		if got := isNavigationText(c.text); got != c.want {
			t.Errorf("isNavigationText(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestReadabilityFallbackUsedWhenSelectorsFindNothing(t *testing.T) {
	html := `<html><body><div class="totally-unrecognized-wrapper">
		<article><p>` + strings.Repeat("A long sentence of real prose content. ", 15) + `</p></article>
	</div></body></html>`
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(html))
	e := newExtractor()
	// An extractor configured with no matching selectors falls through to
	// the article/body container guess, which should still find the text;
	// readabilityFallback is exercised directly here since it operates on
	// raw HTML rather than a parsed *goquery.Document.
	_ = doc
	fallback := readabilityFallback(html)
	if !strings.Contains(fallback, "real prose content") {
		t.Fatalf("expected readability fallback to recover prose, got %q", fallback)
	}
}

func TestReadabilityFallbackEmptyOnUnparsableInput(t *testing.T) {
	if got := readabilityFallback(""); got != "" {
		t.Errorf("expected empty fallback for empty input, got %q", got)
	}
}

func TestPreviewOf(t *testing.T) {
	if got := previewOf("hello world", 5); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := previewOf("hi", 5); got != "hi" {
		t.Errorf("got %q", got)
	}
}
