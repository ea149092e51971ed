package analyzer

import "github.com/Hyllesen/scamvenge-telegram-bot/internal/geometry"

// TextDetection is one recognized text span from an image. Confidence is
// carried through untouched; nothing here filters on it.
type TextDetection struct {
	Text            string           `json:"text"`
	BoundingPolygon geometry.Polygon `json:"bounding_polygon"`
	Confidence      float64          `json:"confidence"`
}

// OcrResultSet is every detection found in one image. Order carries no
// meaning except as the tie-breaker when two regions have the same size.
type OcrResultSet []TextDetection

// Texts returns the raw text of every detection.
func (s OcrResultSet) Texts() []string {
	out := make([]string, len(s))
	for i, d := range s {
		out[i] = d.Text
	}
	return out
}

// Candidate is a detection that survived filtering, with its cleaned text and size.
type Candidate struct {
	Name       string  `json:"name"`
	RawText    string  `json:"raw_text"`
	Index      int     `json:"index"`
	Size       float64 `json:"size"`
	Confidence float64 `json:"confidence"`
}

// Exclusion records why a detection was not eligible.
type Exclusion struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// Exclusion reasons
const (
	ReasonGeometry = "geometry"
	ReasonTooShort = "too_short"
	ReasonNumeric  = "numeric"
	ReasonCount    = "count"
	ReasonKeyword  = "keyword"
)

// Ranking is the full outcome of candidate selection for one image.
type Ranking struct {
	Candidates []Candidate `json:"candidates"`
	Excluded   []Exclusion `json:"excluded,omitempty"`
}

// Best returns the top-ranked candidate.
func (r Ranking) Best() (Candidate, bool) {
	if len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}
