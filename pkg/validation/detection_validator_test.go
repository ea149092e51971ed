package validation

import (
	"math"
	"strings"
	"testing"

	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/geometry"
	"github.com/Hyllesen/scamvenge-telegram-bot/pkg/models"
)

func detection(text string, confidence float64) models.Detection {
	return models.Detection{
		Text:            text,
		BoundingPolygon: geometry.FromRect(0, 0, 100, 40),
		Confidence:      confidence,
	}
}

func TestDetectionValidator(t *testing.T) {
	validator := NewDetectionValidatorWithLimits(3, 10)

	tests := []struct {
		name    string
		req     models.DetectionRequest
		wantErr bool
	}{
		{
			name: "typical screenshot",
			req: models.DetectionRequest{Detections: []models.Detection{
				detection("Following", 0.9), detection("Nike Store", 0.8),
			}},
		},
		{name: "empty set is allowed", req: models.DetectionRequest{}},
		{name: "zero confidence", req: models.DetectionRequest{Detections: []models.Detection{detection("Nike", 0)}}},
		{
			name: "too many detections",
			req: models.DetectionRequest{Detections: []models.Detection{
				detection("a", 1), detection("b", 1), detection("c", 1), detection("d", 1),
			}},
			wantErr: true,
		},
		{name: "text too long", req: models.DetectionRequest{Detections: []models.Detection{detection(strings.Repeat("x", 11), 0.5)}}, wantErr: true},
		{name: "confidence above one", req: models.DetectionRequest{Detections: []models.Detection{detection("Nike", 1.5)}}, wantErr: true},
		{name: "NaN confidence", req: models.DetectionRequest{Detections: []models.Detection{detection("Nike", math.NaN())}}, wantErr: true},
		{name: "invalid UTF-8", req: models.DetectionRequest{Detections: []models.Detection{detection("Nike\xff", 0.5)}}, wantErr: true},
		{
			name: "malformed polygon is left to the extractor",
			req: models.DetectionRequest{Detections: []models.Detection{{
				Text: "Nike", BoundingPolygon: geometry.Polygon{{X: 0, Y: 0}, {X: 10, Y: 10}},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestDetectionRequest_ResultSet(t *testing.T) {
	req := models.DetectionRequest{Detections: []models.Detection{detection("Nike Store", 0.7)}}
	set := req.ResultSet()
	if len(set) != 1 || set[0].Text != "Nike Store" || set[0].Confidence != 0.7 {
		t.Errorf("Unexpected result set %+v", set)
	}
	if len(set[0].BoundingPolygon) != 4 {
		t.Errorf("Expected 4-point polygon, got %d", len(set[0].BoundingPolygon))
	}
}
