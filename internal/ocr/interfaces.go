// Package ocr adapts OCR engines to the analyzer's detection model and
// prepares screenshots for recognition.
package ocr

import (
	"context"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/analyzer"
)

// TextDetector turns encoded image bytes into text detections.
type TextDetector interface {
	Detect(ctx context.Context, image []byte) (analyzer.OcrResultSet, error)
	// Name identifies the engine in logs
	Name() string
	Close() error
}
