// Package matcher decides whether a candidate store name is a fuzzy duplicate
// of a name already on record.
package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/arbovm/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold is the minimum similarity, on a 0..100 scale, for two names
// to count as the same store.
const DefaultThreshold = 90

// Options configures comparison.
type Options struct {
	Threshold int
	// IgnorePunctuation drops punctuation before scoring so "H&M" and "H M" compare equal.
	IgnorePunctuation bool
}

// DefaultOptions returns the default matching options
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold}
}

// WithThreshold returns options with a different threshold
func (o Options) WithThreshold(threshold int) Options {
	o.Threshold = threshold
	return o
}

// WithIgnorePunctuation returns options with punctuation stripping toggled
func (o Options) WithIgnorePunctuation(ignore bool) Options {
	o.IgnorePunctuation = ignore
	return o
}

// Match is the outcome of comparing one candidate against the stored names.
// MatchedName is the stored name verbatim, never its normalized form.
type Match struct {
	IsDuplicate bool    `json:"is_duplicate"`
	MatchedName string  `json:"matched_name,omitempty"`
	BestName    string  `json:"best_name,omitempty"`
	Score       float64 `json:"score"`
	Index       int     `json:"-"`
}

// Normalize folds case and compatibility forms, trims, and collapses runs of
// whitespace to a single space.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeLoose is Normalize with punctuation removed.
func NormalizeLoose(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return r
	}, norm.NFKC.String(s))
	return Normalize(s)
}

// Ratio scores two strings on a 0..100 scale from their Levenshtein distance
// relative to the longer one, counted in runes. Two empty strings score 100.
func Ratio(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 100
	}
	d := levenshtein.Distance(a, b)
	return float64(100*(maxLen-d)) / float64(maxLen)
}

// Similarity normalizes both names and returns their ratio.
func Similarity(a, b string) float64 {
	return Ratio(Normalize(a), Normalize(b))
}

// Matcher compares candidates against stored names under fixed options.
type Matcher struct {
	opts Options
}

// New creates a matcher
func New(opts Options) *Matcher {
	return &Matcher{opts: opts}
}

// Options returns the matcher options
func (m *Matcher) Options() Options {
	return m.opts
}

// normalize falls back to the strict form when a name is all punctuation,
// so such names still match themselves.
func (m *Matcher) normalize(s string) string {
	if m.opts.IgnorePunctuation {
		if loose := NormalizeLoose(s); loose != "" {
			return loose
		}
	}
	return Normalize(s)
}

// Best scores the candidate against every existing name and reports the
// highest. On equal scores the earliest name in existing wins. An empty
// candidate matches nothing.
func (m *Matcher) Best(candidate string, existing []string) Match {
	c := m.normalize(candidate)
	best := Match{Index: -1}
	if c == "" {
		return best
	}

	for i, name := range existing {
		score := Ratio(c, m.normalize(name))
		if best.Index < 0 || score > best.Score {
			best.Index = i
			best.Score = score
			best.BestName = name
		}
	}

	if best.Index >= 0 && best.Score >= float64(m.opts.Threshold) {
		best.IsDuplicate = true
		best.MatchedName = best.BestName
	}
	return best
}

// IsDuplicate reports whether candidate is a fuzzy duplicate of any existing
// name at the given threshold, and which stored name it matched.
func (m *Matcher) IsDuplicate(candidate string, existing []string) (bool, string) {
	res := m.Best(candidate, existing)
	return res.IsDuplicate, res.MatchedName
}

// IsDuplicate is the stateless form of Matcher.IsDuplicate.
func IsDuplicate(candidate string, existing []string, threshold int) (bool, string) {
	return New(DefaultOptions().WithThreshold(threshold)).IsDuplicate(candidate, existing)
}
