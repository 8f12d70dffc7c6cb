// Package textmatch normalizes page text and matches expected business facts
// against it using exact, fuzzy and word-overlap strategies.
package textmatch

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/user/site-auditor/internal/entity"
)

const (
	DefaultFuzzyThreshold   = 0.80
	DefaultPartialThreshold = 0.60

	nationalDigits = 10
)

var (
	breakTag  = regexp.MustCompile(`(?i)<br\s*/?>`)
	anyTag    = regexp.MustCompile(`<[^>]*>`)
	nonAlnum  = regexp.MustCompile(`[^a-z0-9 ]+`)
	spaceRuns = regexp.MustCompile(`\s+`)
	meridiem  = regexp.MustCompile(`(?i)(\d)\s*[ap]\.?m\b\.?`)
)

// Normalize lower-cases text, removes markup and punctuation, and collapses
// whitespace. Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(text string) string {
	text = breakTag.ReplaceAllString(text, " ")
	text = anyTag.ReplaceAllString(text, " ")
	text = strings.ToLower(text)
	text = nonAlnum.ReplaceAllString(text, " ")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Levenshtein returns the edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity returns 1 - distance/maxLen over the normalized inputs.
// Two empty strings are identical; exactly one empty string scores 0.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	la, lb := len([]rune(na)), len([]rune(nb))
	if la == 0 && lb == 0 {
		return 1
	}
	if la == 0 || lb == 0 {
		return 0
	}
	return 1 - float64(Levenshtein(na, nb))/float64(max(la, lb))
}

// FuzzyMatch reports whether a and b are at least threshold similar.
func FuzzyMatch(a, b string, threshold float64) bool {
	return Similarity(a, b) >= threshold
}

// FuzzyContains slides a window the size of needle over haystack and returns
// the best similarity found. Both inputs are normalized first.
func FuzzyContains(haystack, needle string, threshold float64) (bool, float64) {
	words := strings.Fields(Normalize(haystack))
	target := Normalize(needle)
	n := len(strings.Fields(target))
	if n == 0 {
		return len(words) == 0, boolScore(len(words) == 0)
	}
	if len(words) < n {
		s := Similarity(strings.Join(words, " "), target)
		return s >= threshold, s
	}
	best := 0.0
	for i := 0; i+n <= len(words); i++ {
		s := Similarity(strings.Join(words[i:i+n], " "), target)
		if s > best {
			best = s
		}
		if best == 1 {
			break
		}
	}
	return best >= threshold, best
}

// AllWordsPresent reports whether at least ratio of the words in small occur
// in big. Only words longer than two characters count as found.
func AllWordsPresent(big, small string, ratio float64) bool {
	words := strings.Fields(small)
	if len(words) == 0 {
		return false
	}
	found := 0
	for _, w := range words {
		if len(w) > 2 && strings.Contains(big, w) {
			found++
		}
	}
	return float64(found)/float64(len(words)) >= ratio
}

// DigitsOnly strips every non-digit character.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneMatch reports whether the digits of expected occur in the digits of
// text. Numbers longer than ten digits also match without their country code.
func PhoneMatch(text, expected string) bool {
	want := DigitsOnly(expected)
	if want == "" {
		return false
	}
	have := DigitsOnly(text)
	if strings.Contains(have, want) {
		return true
	}
	return len(want) > nationalDigits && strings.Contains(have, want[len(want)-nationalDigits:])
}

// Matcher applies the matching modes with configurable thresholds.
type Matcher struct {
	FuzzyThreshold   float64
	PartialThreshold float64
}

// NewMatcher returns a Matcher, substituting defaults for zero thresholds.
func NewMatcher(fuzzy, partial float64) *Matcher {
	if fuzzy <= 0 {
		fuzzy = DefaultFuzzyThreshold
	}
	if partial <= 0 {
		partial = DefaultPartialThreshold
	}
	return &Matcher{FuzzyThreshold: fuzzy, PartialThreshold: partial}
}

// MatchName looks for a company name, first in logo alt texts.
func (m *Matcher) MatchName(pageText string, logoAlts []string, name string) entity.MatchOutcome {
	out := entity.MatchOutcome{Expected: name}
	want := Normalize(name)
	if want == "" {
		return out
	}
	for _, alt := range logoAlts {
		na := Normalize(alt)
		if na == "" {
			continue
		}
		if strings.Contains(na, want) || FuzzyMatch(na, want, m.FuzzyThreshold) {
			out.Found, out.Mode, out.Score = true, entity.MatchLogo, Similarity(na, want)
			return out
		}
	}
	text := Normalize(pageText)
	if strings.Contains(text, want) {
		out.Found, out.Mode, out.Score = true, entity.MatchExact, 1
		return out
	}
	if ok, score := FuzzyContains(text, want, m.FuzzyThreshold); ok {
		out.Found, out.Mode, out.Score = true, entity.MatchFuzzy, score
	}
	return out
}

// MatchPhone compares digits only.
func (m *Matcher) MatchPhone(pageText, phone string) entity.MatchOutcome {
	out := entity.MatchOutcome{Expected: phone}
	if PhoneMatch(pageText, phone) {
		out.Found, out.Mode, out.Score = true, entity.MatchDigits, 1
	}
	return out
}

// MatchAddress tries exact containment, a fuzzy window, then word overlap.
func (m *Matcher) MatchAddress(pageText, address string) entity.MatchOutcome {
	out := entity.MatchOutcome{Expected: address}
	want := Normalize(address)
	if want == "" {
		return out
	}
	text := Normalize(pageText)
	if strings.Contains(text, want) {
		out.Found, out.Mode, out.Score = true, entity.MatchExact, 1
		return out
	}
	if ok, score := FuzzyContains(text, want, m.FuzzyThreshold); ok {
		out.Found, out.Mode, out.Score = true, entity.MatchFuzzy, score
		return out
	}
	if AllWordsPresent(text, want, m.PartialThreshold) {
		out.Found, out.Mode = true, entity.MatchPartial
	}
	return out
}

// MatchHours compares opening hours ignoring spacing, then ignoring am/pm
// markers, then fuzzily.
func (m *Matcher) MatchHours(pageText, hours string) entity.MatchOutcome {
	out := entity.MatchOutcome{Expected: hours}
	want := Normalize(hours)
	if want == "" {
		return out
	}
	text := Normalize(pageText)
	compactText := strings.ReplaceAll(text, " ", "")
	if strings.Contains(compactText, strings.ReplaceAll(want, " ", "")) {
		out.Found, out.Mode, out.Score = true, entity.MatchExact, 1
		return out
	}
	bareText := stripMeridiem(pageText)
	bareWant := stripMeridiem(hours)
	if bareWant != "" && strings.Contains(bareText, bareWant) {
		out.Found, out.Mode, out.Score = true, entity.MatchExact, 1
		return out
	}
	if ok, score := FuzzyContains(text, want, m.FuzzyThreshold); ok {
		out.Found, out.Mode, out.Score = true, entity.MatchFuzzy, score
	}
	return out
}

func stripMeridiem(s string) string {
	s = meridiem.ReplaceAllString(s, "${1} ")
	return strings.ReplaceAll(Normalize(s), " ", "")
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
