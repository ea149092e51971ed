package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
)

// countPattern matches follower/sales counters such as "12", "1.2k", "3,4M", "10k+".
var countPattern = regexp.MustCompile(`(?i)^\d[\d.,]*\s*[km]?\+?$`)

// brandEdgeRunes are punctuation and symbols kept at the edges of a name
// because brands use them ("H&M", "Yahoo!", "Levi's", "C++", "#1 Shop").
const brandEdgeRunes = "&!'+#@$%"

// CleanText collapses whitespace runs to one space and strips leading and
// trailing punctuation that brands do not use.
func CleanText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || isEdgeNoise(r)
	})
}

func isEdgeNoise(r rune) bool {
	if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
		return false
	}
	return !strings.ContainsRune(brandEdgeRunes, r)
}

// Rank filters out keyword and noise detections, then orders the rest by
// region size, largest first. Equal sizes keep detection order.
func Rank(set OcrResultSet, opts Options) Ranking {
	excludedWords := append(foldAll(opts.QualifyingKeywords), foldAll(opts.UIKeywords)...)
	minLen := opts.minTokenLength()
	sizer := opts.sizeStrategy()

	var r Ranking
	for i, d := range set {
		cleaned := CleanText(d.Text)
		if reason, excluded := exclusionReason(cleaned, excludedWords, minLen); excluded {
			r.Excluded = append(r.Excluded, Exclusion{Index: i, Text: d.Text, Reason: reason})
			continue
		}

		size, err := sizer.Size(d.BoundingPolygon)
		if err != nil {
			// One malformed polygon costs only its own detection.
			r.Excluded = append(r.Excluded, Exclusion{Index: i, Text: d.Text, Reason: ReasonGeometry})
			continue
		}

		r.Candidates = append(r.Candidates, Candidate{
			Name:       cleaned,
			RawText:    d.Text,
			Index:      i,
			Size:       size,
			Confidence: d.Confidence,
		})
	}

	sort.SliceStable(r.Candidates, func(a, b int) bool {
		return r.Candidates[a].Size > r.Candidates[b].Size
	})
	return r
}

// ExtractStoreName returns the cleaned text of the largest eligible detection.
// It fails with a no_candidate error when nothing is eligible.
func ExtractStoreName(set OcrResultSet, opts Options) (string, error) {
	best, ok := Rank(set, opts).Best()
	if !ok {
		return "", apperrors.NewNoCandidateError(
			fmt.Sprintf("no eligible store name among %d detections", len(set)), nil)
	}
	return best.Name, nil
}

func exclusionReason(cleaned string, excludedWords []string, minLen int) (string, bool) {
	if utf8.RuneCountInString(cleaned) < minLen {
		return ReasonTooShort, true
	}
	if isNumeric(cleaned) {
		return ReasonNumeric, true
	}
	folded := fold(cleaned)
	if isKeyword(folded, excludedWords) {
		return ReasonKeyword, true
	}
	if isCounter(folded, excludedWords) {
		return ReasonCount, true
	}
	return "", false
}

// isKeyword reports whether text equals or is wholly contained in an excluded word.
func isKeyword(lower string, excludedWords []string) bool {
	for _, w := range excludedWords {
		if strings.Contains(w, lower) {
			return true
		}
	}
	return false
}

// isCounter matches a bare count ("1.2k") or a count paired with a keyword
// on either side ("1.2k Sold", "Items 48").
func isCounter(lower string, excludedWords []string) bool {
	if countPattern.MatchString(lower) {
		return true
	}
	fields := strings.Fields(lower)
	if len(fields) < 2 {
		return false
	}
	first, last := fields[0], fields[len(fields)-1]
	if countPattern.MatchString(first) && isKeyword(strings.Join(fields[1:], " "), excludedWords) {
		return true
	}
	if countPattern.MatchString(last) && isKeyword(strings.Join(fields[:len(fields)-1], " "), excludedWords) {
		return true
	}
	return false
}

func isNumeric(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune(" .,:/%+-", r):
		default:
			return false
		}
	}
	return digits > 0
}
