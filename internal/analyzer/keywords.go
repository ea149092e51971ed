package analyzer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// IsQualifyingScreenshot reports whether any detection's text contains one of
// the keywords after folding (see fold). An empty result set or an empty
// keyword list never qualifies.
func IsQualifyingScreenshot(detections OcrResultSet, keywords []string) bool {
	return len(MatchedKeywords(detections, keywords)) > 0
}

// MatchedKeywords returns the folded keywords found in the detections, in
// keyword order, each at most once.
func MatchedKeywords(detections OcrResultSet, keywords []string) []string {
	folded := foldAll(keywords)
	if len(folded) == 0 || len(detections) == 0 {
		return nil
	}

	var matched []string
	for _, kw := range folded {
		for _, d := range detections {
			if strings.Contains(fold(d.Text), kw) {
				matched = append(matched, kw)
				break
			}
		}
	}
	return matched
}

// fold applies the matcher's folding: NFKC, then full Unicode case folding,
// so fullwidth "ＳＯＬＤ" and "sold" compare equal.
func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}

// foldAll folds every keyword and drops blanks; a blank keyword would match any text.
func foldAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if f := fold(kw); f != "" {
			out = append(out, f)
		}
	}
	return out
}
