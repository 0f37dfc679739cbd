package browser

import (
	"testing"

	"github.com/chapterscout/chapterscout/pkg/classifier"
)

func TestDetectChallengePageCloudflare(t *testing.T) {
	challenge := detectChallengePage("Just a moment...", "<html></html>")
	if challenge != "cloudflare" {
		t.Errorf("got %q, want cloudflare", challenge)
	}
}

func TestDetectChallengePageHCaptcha(t *testing.T) {
	challenge := detectChallengePage("Verify you are human", `<div class="h-captcha hcaptcha-box"></div>`)
	if challenge != "hcaptcha" {
		t.Errorf("got %q, want hcaptcha", challenge)
	}
}

func TestDetectChallengePageNone(t *testing.T) {
	challenge := detectChallengePage("My Novel - Chapter List", "<html><body>chapters here</body></html>")
	if challenge != "" {
		t.Errorf("got %q, want empty", challenge)
	}
}

func TestClassifierVerdictsOnBrowserCandidatePairs(t *testing.T) {
	cases := []struct {
		url, text string
		want      bool
	}{
		{"/novel/foo/chapter-12", "", true},
		{"/novel/foo/page-1", "Chapter 12", true},
		{"/about", "About Us", false},
		{"/novel/foo/extras", "Bonus", false},
	}
	for _, c := range cases {
		if got := classifier.IsChapterURL(c.url, c.text); got != c.want {
			t.Errorf("IsChapterURL(%q, %q) = %v, want %v", c.url, c.text, got, c.want)
		}
	}
}

func TestFilterByChapterRange(t *testing.T) {
	urls := []string{
		"https://site.com/chapter-1",
		"https://site.com/chapter-5",
		"https://site.com/chapter-10",
	}
	min, max := 3, 8
	filtered := filterByChapterRange(urls, &min, &max)
	if len(filtered) != 1 || filtered[0] != "https://site.com/chapter-5" {
		t.Fatalf("got %v", filtered)
	}
}

func TestFilterByChapterRangeNoBounds(t *testing.T) {
	urls := []string{"https://site.com/chapter-1", "https://site.com/chapter-2"}
	filtered := filterByChapterRange(urls, nil, nil)
	if len(filtered) != 2 {
		t.Fatalf("expected unfiltered passthrough, got %v", filtered)
	}
}

func TestAnalyzeCoverage(t *testing.T) {
	min, max := analyzeCoverage([]string{
		"https://site.com/chapter-4",
		"https://site.com/chapter-17",
	})
	if min == nil || max == nil || *min != 4 || *max != 17 {
		t.Fatalf("got min=%v max=%v", min, max)
	}
}

func TestAnalyzeCoverageNoNumbers(t *testing.T) {
	min, max := analyzeCoverage([]string{"https://site.com/about"})
	if min != nil || max != nil {
		t.Fatalf("expected nil range, got min=%v max=%v", min, max)
	}
}

func TestDedupePreserveOrder(t *testing.T) {
	in := []string{"a", "b", "a", "c", "b"}
	out := dedupePreserveOrder(in)
	want := []string{"a", "b", "c"}
	if len(out) != len(want) {
		t.Fatalf("got %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %q, want %q", i, out[i], want[i])
		}
	}
}

func TestParseJSONForURLs(t *testing.T) {
	body := `{"data": {"chapters": [{"url": "/novel/foo/chapter-1"}, {"href": "/novel/foo/chapter-2"}]}}`
	urls := parseJSONForURLs(body)
	if len(urls) != 2 {
		t.Fatalf("got %v", urls)
	}
}

func TestParseJSONForURLsInvalid(t *testing.T) {
	if urls := parseJSONForURLs("not json"); urls != nil {
		t.Errorf("expected nil, got %v", urls)
	}
}
