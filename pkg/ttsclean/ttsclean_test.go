package ttsclean

import "testing"

func TestCleanStripsHTML(t *testing.T) {
	got := Clean("<p>Hello <b>world</b>.</p>")
	want := "Hello world."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCleanRemovesTranslatorCredit(t *testing.T) {
	got := Clean("Translated by: SomeTranslator\nThe hero walked into the room.")
	if containsAny(got, "Translated by", "SomeTranslator") {
		t.Errorf("translator credit survived: %q", got)
	}
	if !containsAny(got, "The hero walked into the room.") {
		t.Errorf("prose was dropped: %q", got)
	}
}

func TestCleanRemovesNavigationTokens(t *testing.T) {
	got := Clean("Next Chapter\nThe story continues here with more words.")
	if containsAny(got, "Next Chapter") {
		t.Errorf("navigation token survived: %q", got)
	}
}

func TestCleanRemovesURLsAndEmails(t *testing.T) {
	got := Clean("Visit https://example.com/spam or email me at person@example.com for the full text of this chapter.")
	if containsAny(got, "https://", "@example.com") {
		t.Errorf("url/email survived: %q", got)
	}
}

func TestCleanCollapsesSeparatorRuns(t *testing.T) {
	got := Clean("The chapter begins here.\n-----\nAnd it keeps going onward.")
	if containsAny(got, "-----") {
		t.Errorf("separator run survived: %q", got)
	}
}

func TestCleanSubstitutesKnownEmoji(t *testing.T) {
	got := Clean("He stared at the statue 🗿 in silence for a long moment.")
	if !containsAny(got, "(stone face)") {
		t.Errorf("expected stone-face substitution, got %q", got)
	}
}

func TestCleanDropsUnmappedEmoji(t *testing.T) {
	got := Clean("She smiled 😀 warmly at the very long winded greeting today.")
	if containsAny(got, "😀") {
		t.Errorf("unmapped emoji survived: %q", got)
	}
}

func TestCleanRemapsBrackets(t *testing.T) {
	got := Clean("The system [notification] appeared before his very own eyes today.")
	if containsAny(got, "[", "]") {
		t.Errorf("square brackets survived: %q", got)
	}
	if !containsAny(got, "(notification)") {
		t.Errorf("expected bracket remap, got %q", got)
	}
}

func TestCleanNormalizesEllipsis(t *testing.T) {
	got := Clean("Wait..... what is happening to me right now in this place?")
	if containsAny(got, "....") {
		t.Errorf("over-long ellipsis survived: %q", got)
	}
	if !containsAny(got, "...") {
		t.Errorf("expected normalized ellipsis, got %q", got)
	}
}

func TestCleanCollapsesExcessiveBangs(t *testing.T) {
	got := Clean("No!!!!! This cannot possibly be happening right now to me.")
	if containsAny(got, "!!!") {
		t.Errorf("bang run not collapsed: %q", got)
	}
}

func TestCleanDropsStandaloneUIWordLines(t *testing.T) {
	got := Clean("Like\nShare\nThe actual chapter prose continues on for quite a while here.")
	if containsAny(got, "Like\n", "Share\n") {
		t.Errorf("UI indicator line survived: %q", got)
	}
}

func TestCleanCapsBlankLines(t *testing.T) {
	got := Clean("First real paragraph of real prose here.\n\n\n\n\nSecond real paragraph follows after the gap.")
	if containsAny(got, "\n\n\n") {
		t.Errorf("blank-line run not capped: %q", got)
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	once := Clean("Translated by: X\nNext Chapter\nThe hero walked on toward the horizon line.")
	twice := Clean(once)
	if once != twice {
		t.Errorf("Clean is not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestCleanPreservesOrdinaryProse(t *testing.T) {
	prose := "The old man looked at the sky, wondering if it would rain again before nightfall."
	got := Clean(prose)
	if got != prose {
		t.Errorf("ordinary prose was altered:\ngot:  %q\nwant: %q", got, prose)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(sub) == 0 {
			continue
		}
		if indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}
