package analyzer

// screenshotAnalyzer binds a fixed set of options to the pure functions.
type screenshotAnalyzer struct {
	opts Options
}

// NewScreenshotAnalyzer creates an analyzer with the given options
func NewScreenshotAnalyzer(opts Options) ScreenshotAnalyzer {
	return &screenshotAnalyzer{opts: opts}
}

// IsQualifyingScreenshot checks the configured qualifying keywords
func (a *screenshotAnalyzer) IsQualifyingScreenshot(set OcrResultSet) bool {
	return IsQualifyingScreenshot(set, a.opts.QualifyingKeywords)
}

// ExtractStoreName picks the store name from a result set
func (a *screenshotAnalyzer) ExtractStoreName(set OcrResultSet) (string, error) {
	return ExtractStoreName(set, a.opts)
}

// Rank returns every eligible candidate with exclusions
func (a *screenshotAnalyzer) Rank(set OcrResultSet) Ranking {
	return Rank(set, a.opts)
}

// Options returns the analyzer options
func (a *screenshotAnalyzer) Options() Options {
	return a.opts
}
