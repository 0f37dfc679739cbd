package profile

import (
	"reflect"
	"testing"
)

func TestOptimalOrderDefaultsForUnknownHost(t *testing.T) {
	p := NewInMemoryProfile()
	got := p.OptimalOrder("unseen.example.com")
	want := []string{"javascript", "ajax", "html_parsing", "browser_automation", "api_reverse"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want default order %v", got, want)
	}
}

func TestUpdateAndOptimalOrderPromotesSuccessfulStrategy(t *testing.T) {
	p := NewInMemoryProfile()
	host := "site.com"

	for i := 0; i < 10; i++ {
		p.Update(host, "javascript", false, 500)
	}
	for i := 0; i < 10; i++ {
		p.Update(host, "ajax", true, 200)
	}

	order := p.OptimalOrder(host)
	ajaxIdx, jsIdx := -1, -1
	for i, name := range order {
		if name == "ajax" {
			ajaxIdx = i
		}
		if name == "javascript" {
			jsIdx = i
		}
	}
	if ajaxIdx == -1 || jsIdx == -1 {
		t.Fatalf("expected both strategies present in order: %v", order)
	}
	if ajaxIdx >= jsIdx {
		t.Errorf("expected ajax (consistently successful) to rank above javascript (consistently failing), got order %v", order)
	}
}

func TestUpdateEMAConverges(t *testing.T) {
	p := NewInMemoryProfile()
	host := "site.com"

	for i := 0; i < 200; i++ {
		p.Update(host, "javascript", true, 100)
	}

	st := p.stateFor(host)
	rate := st.successRate["javascript"]
	if rate < 0.99 {
		t.Errorf("EMA success rate after 200 successes = %v, want close to 1.0", rate)
	}
}

func TestAddSelectorRetentionCap(t *testing.T) {
	p := NewInMemoryProfile()
	host := "site.com"

	for i := 0; i < 30; i++ {
		sel := selectorName(i)
		// Give later selectors a higher success rate so ranking is stable.
		p.AddSelector(host, sel, i >= 10)
	}

	selectors := p.LearnedSelectors(host)
	if len(selectors) != maxRetainedSelectors {
		t.Fatalf("len(selectors) = %d, want %d", len(selectors), maxRetainedSelectors)
	}
}

func TestLearnedSelectorsOrderedBySuccessRate(t *testing.T) {
	p := NewInMemoryProfile()
	host := "site.com"

	p.AddSelector(host, "div.bad", false)
	p.AddSelector(host, "div.good", true)

	selectors := p.LearnedSelectors(host)
	if len(selectors) != 2 || selectors[0] != "div.good" {
		t.Errorf("selectors = %v, want div.good ranked first", selectors)
	}
}

func TestLearnedSelectorsEmptyForUnknownHost(t *testing.T) {
	p := NewInMemoryProfile()
	if got := p.LearnedSelectors("unseen.example.com"); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func selectorName(i int) string {
	letters := "abcdefghijklmnopqrstuvwxyz"
	return "div." + string(letters[i%len(letters)]) + string(rune('0'+i/len(letters)))
}
