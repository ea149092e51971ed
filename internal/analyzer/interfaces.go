package analyzer

// ScreenshotAnalyzer validates an OCR result set and reduces it to one store name.
type ScreenshotAnalyzer interface {
	IsQualifyingScreenshot(set OcrResultSet) bool
	ExtractStoreName(set OcrResultSet) (string, error)
	Rank(set OcrResultSet) Ranking
	Options() Options
}
