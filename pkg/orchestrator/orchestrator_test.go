package orchestrator

import (
	"context"
	"testing"
)

func TestIsValidTocURL(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://example.com/toc", true},
		{"http://example.com/toc", true},
		{"javascript:alert(1)", false},
		{"ftp://example.com/toc", false},
		{"not a url at all", false},
		{"", false},
	}
	for _, c := range cases {
		if got := isValidTocURL(c.url); got != c.want {
			t.Errorf("isValidTocURL(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}

func TestFetchListingRejectsInvalidURL(t *testing.T) {
	o := New(nil, nil, nil)
	result := o.FetchListing(context.Background(), "javascript:void(0)", nil, nil, nil)
	if result.Error == nil || *result.Error != ErrInvalidURL {
		t.Fatalf("expected invalid_url error, got %+v", result)
	}
}

func TestFetchListingReturnsCancelledWhenShouldStopFiresImmediately(t *testing.T) {
	o := New(nil, nil, nil)
	result := o.FetchListing(context.Background(), "https://example.com/toc", nil, nil, func() bool { return true })
	if result.Error == nil || *result.Error != ErrCancelled {
		t.Fatalf("expected cancelled error, got %+v", result)
	}
}

func TestHostOf(t *testing.T) {
	if got := hostOf("https://example.com/a/b"); got != "example.com" {
		t.Errorf("got %q, want example.com", got)
	}
}

func TestSortAndDedupe(t *testing.T) {
	urls := []string{
		"https://site.com/chapter-3",
		"https://site.com/chapter-1",
		"https://site.com/chapter-3",
		"https://site.com/chapter-2",
	}
	got := sortAndDedupe(urls)
	want := []string{
		"https://site.com/chapter-1",
		"https://site.com/chapter-2",
		"https://site.com/chapter-3",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSortAndDedupeTrailsUnparsableURLsInInputOrder(t *testing.T) {
	urls := []string{
		"https://site.com/about",
		"https://site.com/chapter-5",
		"https://site.com/contact",
		"https://site.com/chapter-2",
	}
	got := sortAndDedupe(urls)
	want := []string{
		"https://site.com/chapter-2",
		"https://site.com/chapter-5",
		"https://site.com/about",
		"https://site.com/contact",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClampSameHostFiltersCrossHostURLs(t *testing.T) {
	urls := []string{
		"https://site.com/chapter-1",
		"https://evil.com/chapter-2",
		"https://site.com/chapter-3",
	}
	kept, clamped := clampSameHost(urls, "https://site.com/toc")
	if clamped != 1 {
		t.Fatalf("got clamped=%d, want 1", clamped)
	}
	want := []string{"https://site.com/chapter-1", "https://site.com/chapter-3"}
	if len(kept) != len(want) {
		t.Fatalf("got %v, want %v", kept, want)
	}
	for i := range want {
		if kept[i] != want[i] {
			t.Errorf("kept[%d] = %q, want %q", i, kept[i], want[i])
		}
	}
}

func TestChapterNumbersOf(t *testing.T) {
	nums := chapterNumbersOf([]string{
		"https://site.com/chapter-5",
		"https://site.com/about",
		"https://site.com/chapter-9",
	})
	if len(nums) != 2 || nums[0] != 5 || nums[1] != 9 {
		t.Fatalf("got %v", nums)
	}
}

func TestCoversRangeNoMinimum(t *testing.T) {
	if !coversRange([]int{1, 2, 3}, nil, nil) {
		t.Error("expected no-bound case to pass")
	}
}

func TestCoversRangeFailsBelowMinimum(t *testing.T) {
	min := 50
	if coversRange([]int{1, 2, 3}, &min, nil) {
		t.Error("expected coverage to fail when max is below minChapter")
	}
}

func TestCoversRangeFailsSparseCoverage(t *testing.T) {
	min, max := 1, 20
	// only 5 of 20 present
	nums := []int{1, 2, 3, 4, 20}
	if coversRange(nums, &min, &max) {
		t.Error("expected sparse coverage below 0.8 to fail")
	}
}

func TestCoversRangeAcceptsDenseCoverage(t *testing.T) {
	min, max := 1, 10
	nums := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if !coversRange(nums, &min, &max) {
		t.Error("expected full coverage to pass")
	}
}

func TestCoversRangeEmptyNumbersFailsWhenMinRequired(t *testing.T) {
	min := 1
	if coversRange(nil, &min, nil) {
		t.Error("expected empty chapter numbers with a required minimum to fail")
	}
}

type stubProfile struct {
	order      []string
	updates    []string
	selectors  []string
}

func (s *stubProfile) OptimalOrder(host string) []string { return s.order }
func (s *stubProfile) Update(host, strategy string, success bool, elapsedMillis float64) {
	s.updates = append(s.updates, strategy)
}
func (s *stubProfile) LearnedSelectors(host string) []string { return s.selectors }

func TestStrategyOrderUsesProfileWhenPresent(t *testing.T) {
	o := New(nil, nil, &stubProfile{order: []string{"ajax", "javascript", "something_unknown"}})
	order := o.strategyOrder("example.com")
	want := []string{"ajax", "javascript", "browser_automation"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestStrategyOrderFallsBackToDefault(t *testing.T) {
	o := New(nil, nil, nil)
	order := o.strategyOrder("example.com")
	want := []string{"javascript", "ajax", "browser_automation"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}
