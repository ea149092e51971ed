package validation

import (
	"fmt"
	"math"
	"unicode/utf8"

	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
	"github.com/Hyllesen/scamvenge-telegram-bot/pkg/models"
)

const (
	DefaultMaxDetections = 500
	DefaultMaxTextLength = 512
)

// DetectionValidator checks submitted OCR payloads before they reach the pipeline.
// An empty detection list is valid; the pipeline rejects it as a non-screenshot.
// Polygons are not checked here: the extractor drops a malformed one on its own.
type DetectionValidator struct {
	maxDetections int
	maxTextLength int
}

// NewDetectionValidator creates a validator with default limits
func NewDetectionValidator() *DetectionValidator {
	return &DetectionValidator{
		maxDetections: DefaultMaxDetections,
		maxTextLength: DefaultMaxTextLength,
	}
}

// NewDetectionValidatorWithLimits creates a validator with custom limits
func NewDetectionValidatorWithLimits(maxDetections, maxTextLength int) *DetectionValidator {
	v := NewDetectionValidator()
	if maxDetections > 0 {
		v.maxDetections = maxDetections
	}
	if maxTextLength > 0 {
		v.maxTextLength = maxTextLength
	}
	return v
}

// Validate checks sizes, text encoding and confidences
func (v *DetectionValidator) Validate(req models.DetectionRequest) error {
	if len(req.Detections) > v.maxDetections {
		return apperrors.NewValidationError(
			fmt.Sprintf("too many detections: %d (max %d)", len(req.Detections), v.maxDetections), nil)
	}

	for i, d := range req.Detections {
		if !utf8.ValidString(d.Text) {
			return apperrors.NewValidationError(fmt.Sprintf("detection %d: text is not valid UTF-8", i), nil)
		}
		if n := utf8.RuneCountInString(d.Text); n > v.maxTextLength {
			return apperrors.NewValidationError(
				fmt.Sprintf("detection %d: text has %d characters (max %d)", i, n, v.maxTextLength), nil)
		}
		if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
			return apperrors.NewValidationError(
				fmt.Sprintf("detection %d: confidence must be within [0,1]", i), nil)
		}
	}
	return nil
}
