package ocr

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/analyzer"
	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/geometry"
)

// TesseractDetector runs the local Tesseract engine. A fresh client is used
// per call because gosseract clients are not safe for concurrent use.
type TesseractDetector struct {
	language string
}

var _ TextDetector = (*TesseractDetector)(nil)

// NewTesseractDetector creates a detector for the given Tesseract language code
func NewTesseractDetector(language string) *TesseractDetector {
	if language == "" {
		language = "eng"
	}
	return &TesseractDetector{language: language}
}

// Name returns the engine name
func (d *TesseractDetector) Name() string { return "tesseract" }

// Close is a no-op; clients are closed per call.
func (d *TesseractDetector) Close() error { return nil }

// Detect recognizes text lines with their bounding boxes
func (d *TesseractDetector) Detect(ctx context.Context, image []byte) (analyzer.OcrResultSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("ocr cancelled before start", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(d.language); err != nil {
		return nil, apperrors.NewOCRError("failed to set tesseract language", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return nil, apperrors.NewOCRError("failed to load image into tesseract", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, apperrors.NewOCRError("tesseract recognition failed", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("ocr deadline exceeded", err)
	}
	return fromTesseractBoxes(boxes), nil
}

func fromTesseractBoxes(boxes []gosseract.BoundingBox) analyzer.OcrResultSet {
	set := make(analyzer.OcrResultSet, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		r := b.Box
		set = append(set, analyzer.TextDetection{
			Text:            text,
			BoundingPolygon: geometry.FromRect(float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)),
			Confidence:      clamp01(b.Confidence / 100),
		})
	}
	return set
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
