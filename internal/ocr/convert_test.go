package ocr

import (
	"image"
	"testing"

	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/otiai10/gosseract/v2"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/geometry"
)

func TestFromTesseractBoxes(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		{Box: image.Rect(10, 20, 210, 100), Word: "Nike Store\n", Confidence: 91.5},
		{Box: image.Rect(0, 0, 5, 5), Word: "   ", Confidence: 10},
		{Box: image.Rect(10, 110, 90, 130), Word: "Following", Confidence: 130},
	}

	set := fromTesseractBoxes(boxes)
	if len(set) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(set))
	}
	if set[0].Text != "Nike Store" {
		t.Errorf("Expected trimmed text, got %q", set[0].Text)
	}
	if set[0].Confidence != 0.915 {
		t.Errorf("Expected confidence 0.915, got %v", set[0].Confidence)
	}
	if set[1].Confidence != 1 {
		t.Errorf("Expected confidence clamped to 1, got %v", set[1].Confidence)
	}
	h, err := geometry.Height(set[0].BoundingPolygon)
	if err != nil || h != 80 {
		t.Errorf("Expected height 80, got %v (%v)", h, err)
	}
}

func visionWord(text string, x1, y1, x2, y2 int32, conf float32, brk visionpb.TextAnnotation_DetectedBreak_BreakType) *visionpb.Word {
	symbols := make([]*visionpb.Symbol, 0, len(text))
	for i, r := range text {
		s := &visionpb.Symbol{Text: string(r)}
		if i == len(text)-1 && brk != visionpb.TextAnnotation_DetectedBreak_UNKNOWN {
			s.Property = &visionpb.TextAnnotation_TextProperty{
				DetectedBreak: &visionpb.TextAnnotation_DetectedBreak{Type: brk},
			}
		}
		symbols = append(symbols, s)
	}
	return &visionpb.Word{
		Symbols:    symbols,
		Confidence: conf,
		BoundingBox: &visionpb.BoundingPoly{Vertices: []*visionpb.Vertex{
			{X: x1, Y: y1}, {X: x2, Y: y1}, {X: x2, Y: y2}, {X: x1, Y: y2},
		}},
	}
}

func TestLinesFromAnnotation(t *testing.T) {
	space := visionpb.TextAnnotation_DetectedBreak_SPACE
	eol := visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE
	lineBreak := visionpb.TextAnnotation_DetectedBreak_LINE_BREAK

	ann := &visionpb.TextAnnotation{
		Pages: []*visionpb.Page{{
			Blocks: []*visionpb.Block{{
				Paragraphs: []*visionpb.Paragraph{{
					Words: []*visionpb.Word{
						visionWord("Nike", 10, 20, 90, 100, 0.9, space),
						visionWord("Store", 100, 22, 210, 98, 0.7, eol),
						visionWord("1.2k", 10, 110, 50, 125, 0.8, space),
						visionWord("Sold", 55, 110, 95, 125, 0.8, lineBreak),
					},
				}},
			}},
		}},
	}

	set := linesFromAnnotation(ann)
	if len(set) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %+v", len(set), set)
	}
	if set[0].Text != "Nike Store" || set[1].Text != "1.2k Sold" {
		t.Errorf("Unexpected line texts %q, %q", set[0].Text, set[1].Text)
	}

	r, err := geometry.BoundingBox(set[0].BoundingPolygon)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if r.MinX != 10 || r.MinY != 20 || r.MaxX != 210 || r.MaxY != 100 {
		t.Errorf("Expected union box 10,20-210,100, got %+v", r)
	}
	if c := set[0].Confidence; c < 0.799 || c > 0.801 {
		t.Errorf("Expected averaged confidence 0.8, got %v", c)
	}
}

func TestLinesFromAnnotation_Empty(t *testing.T) {
	if set := linesFromAnnotation(nil); len(set) != 0 {
		t.Errorf("Expected no detections, got %d", len(set))
	}
}
