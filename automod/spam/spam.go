// Deterministic heuristic spam scoring for submitted content.
//
// The score is an integer from 0 to 10, computed from a fixed keyword list, a handful of suspicious-pattern checks, and simple content-quality checks. It is not a classifier: identical input always yields identical output, and the same scorer is safe for concurrent use.
package spam

import (
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MinScore = 0
	MaxScore = 10

	keywordWeight = 2
	patternWeight = 1

	minTitleLength       = 5
	minDescriptionLength = 10
	minWords             = 3

	repeatedRuneRun   = 5
	repeatedUnitCount = 5
	maxRepeatedUnit   = 3
)

const (
	PatternRepeatedChar     = "repeated-char"
	PatternCapsRun          = "caps-run"
	PatternDigitRun         = "digit-run"
	PatternRepeatedSequence = "repeated-sequence"
	PatternPunctuationRun   = "punctuation-run"
)

// Fixed list of spam keywords, matched as lower-case substrings.
var Keywords = []string{
	"spam",
	"fake",
	"test",
	"lorem ipsum",
	"click here",
	"buy now",
	"free money",
	"get rich",
	"make money fast",
	"viagra",
	"casino",
}

var (
	capsRun  = regexp.MustCompile(`[A-Z]{10,}`)
	digitRun = regexp.MustCompile(`\d{10,}`)
	punctRun = regexp.MustCompile(`[^\w\s]{5,}`)

	keywordMatcher = ahocorasick.NewStringMatcher(Keywords)
)

// Per-component explanation of a spam score.
type Report struct {
	Score            int      `json:"score"`
	Keywords         []string `json:"keywords"`
	Patterns         []string `json:"patterns"`
	ShortTitle       bool     `json:"shortTitle"`
	ShortDescription bool     `json:"shortDescription"`
	FewWords         bool     `json:"fewWords"`
}

// Computes the spam score (0..10) for a piece of content.
func Score(title, description string) int {
	return Explain(title, description).Score
}

// Same as Score, but also returns which checks contributed.
func Explain(title, description string) Report {
	raw := title + " " + description
	content := strings.ToLower(raw)
	rep := Report{
		Keywords: matchKeywords(content),
		Patterns: matchPatterns(raw, content),
	}

	score := keywordWeight*len(rep.Keywords) + patternWeight*len(rep.Patterns)

	if utf8.RuneCountInString(title) < minTitleLength {
		rep.ShortTitle = true
		score += 1
	}
	if utf8.RuneCountInString(description) < minDescriptionLength {
		rep.ShortDescription = true
		score += 1
	}
	if len(strings.Fields(content)) < minWords {
		rep.FewWords = true
		score += 2
	}

	rep.Score = clamp(score)
	return rep
}

// returns distinct keywords found in content, in keyword-list order
func matchKeywords(content string) []string {
	hits := keywordMatcher.MatchThreadSafe([]byte(foldMarks(content)))
	found := make(map[int]bool, len(hits))
	for _, idx := range hits {
		found[idx] = true
	}
	out := []string{}
	for idx, kw := range Keywords {
		if found[idx] {
			out = append(out, kw)
		}
	}
	return out
}

func matchPatterns(raw, content string) []string {
	rs := []rune(content)
	out := []string{}
	if hasRuneRun(rs, repeatedRuneRun) {
		out = append(out, PatternRepeatedChar)
	}
	// upper-case runs can only be seen before lower-casing
	if capsRun.MatchString(raw) {
		out = append(out, PatternCapsRun)
	}
	if digitRun.MatchString(content) {
		out = append(out, PatternDigitRun)
	}
	if hasRepeatedUnit(rs, maxRepeatedUnit, repeatedUnitCount) {
		out = append(out, PatternRepeatedSequence)
	}
	if punctRun.MatchString(content) {
		out = append(out, PatternPunctuationRun)
	}
	return out
}

// strips combining marks, so "späm" and "spam" match the same keyword
func foldMarks(s string) string {
	// transformers carry state, so one chain per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		return s
	}
	return out
}

// true if any rune repeats at least n times back to back
func hasRuneRun(rs []rune, n int) bool {
	run := 0
	for i := range rs {
		if i > 0 && rs[i] == rs[i-1] {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

// true if some unit of 1..maxUnit runes occurs at least n times back to back
func hasRepeatedUnit(rs []rune, maxUnit, n int) bool {
	for size := 1; size <= maxUnit; size++ {
		for start := 0; start+size*n <= len(rs); start++ {
			reps := 1
			for next := start + size; next+size <= len(rs) && slices.Equal(rs[start:start+size], rs[next:next+size]); next += size {
				reps++
				if reps >= n {
					return true
				}
			}
		}
	}
	return false
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
