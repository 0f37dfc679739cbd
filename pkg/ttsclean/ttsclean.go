// Package ttsclean implements the deterministic text-to-speech-safe
// prose cleaner: a fixed ordered pipeline of stages that strips website
// chrome, translator credits, navigation tokens, and non-speakable
// symbols from raw extracted chapter text, leaving prose safe to feed
// directly to a TTS engine.
package ttsclean

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

// Clean runs the full ordered pipeline over raw and returns TTS-safe
// prose. The pipeline is deterministic: the same input always produces
// the same output.
func Clean(raw string) string {
	text := raw
	text = stripHTML(text)
	text = normalizeTableGlyphs(text)
	text = removeUIBoilerplate(text)
	text = removeTranslatorCredits(text)
	text = removeNavigationTokens(text)
	text = removeURLsEmailsHandles(text)
	text = removeTimestamps(text)
	text = removeSeparatorRuns(text)
	text = trimContextAwareUIWords(text)
	text = trimTrailingRepeats(text)
	text = filterLineWhitelist(text)
	text = substituteEmoji(text)
	text = remapBrackets(text)
	text = normalizePunctuation(text)
	text = fixPunctuationSpacing(text)
	text = removeStandaloneSymbolLines(text)
	text = finalWhitespacePass(text)
	return strings.TrimSpace(text)
}

var (
	tagPattern = regexp.MustCompile(`(?s)<[^>]+>`)
)

// stripHTML removes any surviving tags and decodes entities. Callers are
// expected to have already run a DOM-aware extractor; this stage is a
// safety net for stray markup that leaks through.
func stripHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}

var (
	tableBarRun   = regexp.MustCompile(`\|{2,}`)
	tableCornerRun = regexp.MustCompile(`\+-+\+`)
	tableDashRun  = regexp.MustCompile(`-{3,}`)
)

func normalizeTableGlyphs(s string) string {
	s = tableBarRun.ReplaceAllString(s, " | ")
	s = tableCornerRun.ReplaceAllString(s, " ")
	s = tableDashRun.ReplaceAllString(s, " ")
	return s
}

var concatenatedUITokens = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bLatestMost\b`),
	regexp.MustCompile(`(?i)\bMostOldest\b`),
	regexp.MustCompile(`(?i)\bLikedOldest\b`),
	regexp.MustCompile(`(?i)\bNewestOldest\b`),
}

var socialBoilerplate = []*regexp.Regexp{
	regexp.MustCompile(`(?i)What do you think\?.*?Sort by`),
	regexp.MustCompile(`(?i)Thank You For Your Support`),
	regexp.MustCompile(`(?i)Like\s*\d+\s*Comment\s*\d+\s*Share`),
	regexp.MustCompile(`(?i)Leave a comment`),
	regexp.MustCompile(`(?i)\d+\s+comments?`),
}

func removeUIBoilerplate(s string) string {
	for _, p := range concatenatedUITokens {
		s = p.ReplaceAllString(s, "")
	}
	for _, p := range socialBoilerplate {
		s = p.ReplaceAllString(s, "")
	}
	return s
}

var translatorCreditPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^\s*Translated\s+by\s*:?.*$`),
	regexp.MustCompile(`(?im)^\s*Translator\s*:?.*$`),
	regexp.MustCompile(`(?im)^\s*Edited\s+by\s*:?.*$`),
	regexp.MustCompile(`(?im)^\s*Editor\s*:?.*$`),
	regexp.MustCompile(`(?im)^\s*Proofread\s+by\s*:?.*$`),
	regexp.MustCompile(`(?im)^\s*By\s+[A-Z][\w\s]{1,40}\s*\|.*$`),
	regexp.MustCompile(`(?im)^\s*T/N\s*:?.*$`),
	regexp.MustCompile(`(?im)^\s*TL\s*Note\s*:?.*$`),
}

func removeTranslatorCredits(s string) string {
	for _, p := range translatorCreditPatterns {
		s = p.ReplaceAllString(s, "")
	}
	return s
}

var navigationTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bNext\s+Chapter\b`),
	regexp.MustCompile(`(?i)\bPrevious\s+Chapter\b`),
	regexp.MustCompile(`(?i)\bPrev\s+Chapter\b`),
	regexp.MustCompile(`(?i)\bTable\s+of\s+Contents\b`),
	regexp.MustCompile(`(?i)\bTOC\b`),
	regexp.MustCompile(`(?i)\bAdvertisement\b`),
	regexp.MustCompile(`(?i)\bPlease\s+enable\s+JavaScript\b.*`),
	regexp.MustCompile(`(?i)\b(NovelFull|FanMTL|WuxiaWorld|WebNovel|Webnovel|NovelUpdates)\b`),
	regexp.MustCompile(`\b\d+\s*/\s*\d+\b`),
}

func removeNavigationTokens(s string) string {
	for _, p := range navigationTokenPatterns {
		s = p.ReplaceAllString(s, "")
	}
	return s
}

var (
	urlPattern    = regexp.MustCompile(`https?://\S+`)
	emailPattern  = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	handlePattern = regexp.MustCompile(`(?:^|\s)@\w+`)
	hashtagPattern = regexp.MustCompile(`(?:^|\s)#\w+`)
)

func removeURLsEmailsHandles(s string) string {
	s = urlPattern.ReplaceAllString(s, "")
	s = emailPattern.ReplaceAllString(s, "")
	s = handlePattern.ReplaceAllString(s, " ")
	s = hashtagPattern.ReplaceAllString(s, " ")
	return s
}

var timestampPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}:\d{2}(:\d{2})?\s*(?i:[ap]m)?\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(hours?|minutes?|days?|weeks?|months?)\s+ago\b`),
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
}

func removeTimestamps(s string) string {
	for _, p := range timestampPatterns {
		s = p.ReplaceAllString(s, "")
	}
	return s
}

var separatorRunPatterns = []*regexp.Regexp{
	regexp.MustCompile(`={2,}`),
	regexp.MustCompile(`-{3,}`),
	regexp.MustCompile(`_{3,}`),
	regexp.MustCompile(`\*{3,}`),
	regexp.MustCompile(`~{2,}`),
	regexp.MustCompile(`×+`),
}

func removeSeparatorRuns(s string) string {
	for _, p := range separatorRunPatterns {
		s = p.ReplaceAllString(s, " ")
	}
	return s
}

var sortByPattern = regexp.MustCompile(`(?i)Sort\s+by\s*:\s*(Latest|Most|Oldest)\b(?:[ \t,]*(?:Latest|Most|Oldest|Newest|Liked)\b)*`)

// trimContextAwareUIWords collapses "Sort by: Latest, Most, Oldest" style
// UI controls down to just the leading label, since the trailing option
// list reads as nonsense prose.
func trimContextAwareUIWords(s string) string {
	return sortByPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := sortByPattern.FindStringSubmatch(m)
		if len(sub) < 2 {
			return ""
		}
		return "Sort by:"
	})
}

var trailingRepeatPattern = regexp.MustCompile(`(?i)(Liked|Oldest|Newest|Most)(\s*)+$`)

func trimTrailingRepeats(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = trailingRepeatPattern.ReplaceAllString(line, "")
	}
	return strings.Join(lines, "\n")
}

var uiIndicatorWords = map[string]struct{}{
	"like": {}, "share": {}, "comment": {}, "comments": {},
	"reply": {}, "report": {}, "bookmark": {}, "follow": {},
	"subscribe": {}, "login": {}, "register": {}, "menu": {},
}

var sentenceEndPattern = regexp.MustCompile(`[.!?]`)

// filterLineWhitelist drops lines that look like standalone UI chrome: a
// bare UI-indicator word, or a short line with no terminal punctuation.
func filterLineWhitelist(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			out = append(out, line)
			continue
		}
		lower := strings.ToLower(trimmed)
		if _, isUI := uiIndicatorWords[lower]; isUI {
			continue
		}
		if len([]rune(trimmed)) >= 15 || sentenceEndPattern.MatchString(trimmed) {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// emojiReplacements maps emoji and pictographic runes to a bracketed or
// plain-word substitution, so a TTS engine never has to read a glyph it
// cannot vocalize sensibly.
var emojiReplacements = map[rune]string{
	'🗿': " (stone face) ",
	'😀': "", '😃': "", '😄': "", '😁': "", '😆': "", '😅': "",
	'😂': "", '🤣': "", '😊': "", '😇': "", '🙂': "", '🙃': "",
	'😉': "", '😌': "", '😍': "", '🥰': "", '😘': "", '😗': "",
	'😙': "", '😚': "", '😋': "", '😛': "", '😝': "", '😜': "",
	'🤪': "", '🤨': "", '🧐': "", '🤓': "", '😎': "", '🥸': "",
	'🤩': "", '🥳': "", '😏': "", '😒': "", '😞': "", '😔': "",
	'😟': "", '😕': "", '🙁': "", '☹': "", '😣': "", '😖': "",
	'😫': "", '😩': "", '🥺': "", '😢': "", '😭': "", '😤': "",
	'😠': "", '😡': "", '🤬': "", '🤯': "", '😳': "", '🥵': "",
	'🥶': "", '😱': "", '😨': "", '😰': "", '😥': "", '😓': "",
	'🤗': "", '🤔': "", '🫡': "", '🤭': "", '🤫': "", '🤥': "",
	'😶': "", '😐': "", '😑': "", '😬': "", '🙄': "", '😯': "",
	'😦': "", '😧': "", '😮': "", '😲': "", '🥱': "", '😴': "",
	'🤤': "", '😪': "",
	'→': " to ", '←': " from ", '↑': " up ", '↓': " down ",
	'⭐': " (star) ", '✨': " (sparkle) ", '❤': " (heart) ",
	'💔': " (broken heart) ", '♠': " (spade) ", '♥': " (heart) ",
	'♦': " (diamond) ", '♣': " (club) ", '🎵': " (music note) ",
	'🎶': " (music notes) ", '©': " (copyright) ", '®': " (registered) ",
	'™': " (trademark) ",
	'…': "...",
	'—': " - ", '–': " - ",
	'‘': "'", '’': "'", '“': "\"", '”': "\"",
}

func substituteEmoji(s string) string {
	var b strings.Builder
	for _, r := range s {
		if repl, ok := emojiReplacements[r]; ok {
			b.WriteString(repl)
			continue
		}
		if !isTTSSafe(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ttsSafePunctuation whitelists the fixed punctuation set the original
// implementation keeps regardless of Unicode category.
const ttsSafePunctuation = " .,!?;:()[]{}\"'/-_=+*&%$#@~`|\\"

// isTTSSafe reports whether r should survive into the cleaned output: any
// letter or digit, any of the fixed punctuation set, or a Unicode
// punctuation/symbol category rune below the pictographic range (so
// accented letters and typographic symbols used in normal prose pass
// through, but emoji that slipped past the substitution table do not).
func isTTSSafe(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	if strings.ContainsRune(ttsSafePunctuation, r) {
		return true
	}
	switch {
	case unicode.Is(unicode.Po, r), unicode.Is(unicode.Pd, r),
		unicode.Is(unicode.Pe, r), unicode.Is(unicode.Pf, r),
		unicode.Is(unicode.Pi, r), unicode.Is(unicode.Ps, r),
		unicode.Is(unicode.Sc, r), unicode.Is(unicode.Sk, r),
		unicode.Is(unicode.Sm, r):
		return true
	case unicode.Is(unicode.So, r):
		return r <= 0x1F000
	}
	return false
}

func remapBrackets(s string) string {
	s = strings.ReplaceAll(s, "[", "(")
	s = strings.ReplaceAll(s, "]", ")")
	return s
}

var (
	multiDotFour  = regexp.MustCompile(`\.{4,}`)
	multiDotThree = regexp.MustCompile(`\.{3}`)
	multiDotTwo   = regexp.MustCompile(`\.{2,}`)
	bangRun       = regexp.MustCompile(`!{3,}`)
	questionRun   = regexp.MustCompile(`\?{3,}`)
	commaRun      = regexp.MustCompile(`,{2,}`)
	semicolonRun  = regexp.MustCompile(`;{2,}`)
	colonRun      = regexp.MustCompile(`:{2,}`)
)

func normalizePunctuation(s string) string {
	s = multiDotFour.ReplaceAllString(s, "...")
	s = multiDotThree.ReplaceAllString(s, "...")
	s = multiDotTwo.ReplaceAllString(s, "...")
	s = bangRun.ReplaceAllString(s, "!")
	s = questionRun.ReplaceAllString(s, "??")
	s = commaRun.ReplaceAllString(s, ",")
	s = semicolonRun.ReplaceAllString(s, ";")
	s = colonRun.ReplaceAllString(s, ":")
	return s
}

var (
	spaceBeforePunct = regexp.MustCompile(`\s+([,.!?;:])`)
	emptyBrackets    = regexp.MustCompile(`\(\s*\)|\[\s*\]|\{\s*\}`)
)

func fixPunctuationSpacing(s string) string {
	s = spaceBeforePunct.ReplaceAllString(s, "$1")
	s = emptyBrackets.ReplaceAllString(s, "")
	return s
}

var standaloneSymbolLine = regexp.MustCompile(`^[^\w]*$`)

func removeStandaloneSymbolLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && standaloneSymbolLine.MatchString(trimmed) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

var (
	repeatedSpaces    = regexp.MustCompile(`[ \t]{2,}`)
	threeOrMoreBlanks = regexp.MustCompile(`\n{3,}`)
)

func finalWhitespacePass(s string) string {
	s = repeatedSpaces.ReplaceAllString(s, " ")
	s = threeOrMoreBlanks.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}
