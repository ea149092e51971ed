package analyzer

import (
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/strategy"
)

// Default heuristics for store-follow screenshots.
var (
	DefaultQualifyingKeywords = []string{"following", "sold", "items"}
	DefaultUIKeywords         = []string{"follow", "message", "share", "more"}
)

const DefaultMinTokenLength = 2

// Options configures screenshot validation and store name extraction.
type Options struct {
	// QualifyingKeywords mark the screenshot genre; matching is case-insensitive substring.
	QualifyingKeywords []string
	// UIKeywords are extra chrome tokens (buttons, tabs) excluded from candidacy.
	UIKeywords []string
	// MinTokenLength is the shortest cleaned text, in runes, that can be a store name.
	MinTokenLength int
	// Size ranks detections; height unless configured otherwise.
	Size strategy.SizeStrategy
}

// DefaultOptions returns default extraction options
func DefaultOptions() Options {
	return Options{
		QualifyingKeywords: append([]string(nil), DefaultQualifyingKeywords...),
		UIKeywords:         append([]string(nil), DefaultUIKeywords...),
		MinTokenLength:     DefaultMinTokenLength,
		Size:               strategy.NewHeightStrategy(),
	}
}

// WithKeywords returns options using the given qualifying keywords
func (opts Options) WithKeywords(keywords ...string) Options {
	opts.QualifyingKeywords = append([]string(nil), keywords...)
	return opts
}

// WithUIKeywords returns options using the given chrome tokens
func (opts Options) WithUIKeywords(keywords ...string) Options {
	opts.UIKeywords = append([]string(nil), keywords...)
	return opts
}

// WithMinTokenLength returns options with a different minimum length
func (opts Options) WithMinTokenLength(n int) Options {
	opts.MinTokenLength = n
	return opts
}

// WithSizeStrategy returns options ranking by the given strategy
func (opts Options) WithSizeStrategy(s strategy.SizeStrategy) Options {
	opts.Size = s
	return opts
}

func (opts Options) sizeStrategy() strategy.SizeStrategy {
	if opts.Size == nil {
		return strategy.NewHeightStrategy()
	}
	return opts.Size
}

func (opts Options) minTokenLength() int {
	if opts.MinTokenLength < 1 {
		return DefaultMinTokenLength
	}
	return opts.MinTokenLength
}
