// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"time"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/analyzer"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/geometry"
)

// Detection is one OCR text span as submitted by a client
type Detection struct {
	Text            string           `json:"text"`
	BoundingPolygon geometry.Polygon `json:"bounding_polygon"`
	Confidence      float64          `json:"confidence"`
}

// DetectionRequest carries the OCR output of one screenshot
type DetectionRequest struct {
	Reference  string      `json:"reference,omitempty"`
	Detections []Detection `json:"detections"`
}

// ResultSet converts the request into the analyzer's input
func (r DetectionRequest) ResultSet() analyzer.OcrResultSet {
	set := make(analyzer.OcrResultSet, len(r.Detections))
	for i, d := range r.Detections {
		set[i] = analyzer.TextDetection{
			Text:            d.Text,
			BoundingPolygon: d.BoundingPolygon,
			Confidence:      d.Confidence,
		}
	}
	return set
}

// FetchRequest asks the service to download a screenshot and process it
type FetchRequest struct {
	URL       string `json:"url" binding:"required"`
	Reference string `json:"reference,omitempty"`
}

// StoreResponse is a persisted store
type StoreResponse struct {
	ID              uint      `json:"id"`
	Name            string    `json:"name"`
	SourceMessageID *string   `json:"source_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// VerdictResponse is the outcome for one screenshot
type VerdictResponse struct {
	Reference   string         `json:"reference,omitempty"`
	StoreName   string         `json:"store_name"`
	IsDuplicate bool           `json:"is_duplicate"`
	MatchedName string         `json:"matched_name,omitempty"`
	Score       float64        `json:"score"`
	Record      *StoreResponse `json:"record,omitempty"`
	DryRun      bool           `json:"dry_run,omitempty"`
}

// StoresResponse is one page of stored records
type StoresResponse struct {
	Stores []StoreResponse `json:"stores"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// SkippedResponse is returned when a screenshot is intentionally not processed
type SkippedResponse struct {
	Skipped   bool   `json:"skipped"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Reference string `json:"reference,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// HealthResponse reports liveness and the active backends
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	OCREngine string `json:"ocr_engine"`
	DryRun    bool   `json:"dry_run"`
}
