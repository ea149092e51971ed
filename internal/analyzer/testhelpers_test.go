package analyzer

import "github.com/Hyllesen/scamvenge-telegram-bot/internal/geometry"

// det builds a detection whose region is a 100px wide box of the given height.
func det(text string, height float64) TextDetection {
	return TextDetection{
		Text:            text,
		BoundingPolygon: geometry.FromRect(0, 0, 100, height),
		Confidence:      0.9,
	}
}

// box builds a detection from explicit corner coordinates.
func box(text string, x1, y1, x2, y2 float64) TextDetection {
	return TextDetection{
		Text:            text,
		BoundingPolygon: geometry.FromRect(x1, y1, x2, y2),
		Confidence:      0.95,
	}
}
