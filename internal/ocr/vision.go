package ocr

import (
	"context"
	"fmt"
	"math"
	"strings"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/analyzer"
	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/geometry"
)

// VisionDetector uses Google Cloud Vision text detection.
type VisionDetector struct {
	client *gvision.ImageAnnotatorClient
}

var _ TextDetector = (*VisionDetector)(nil)

// NewVisionDetector creates a detector using Application Default Credentials
func NewVisionDetector(ctx context.Context) (*VisionDetector, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionDetector{client: client}, nil
}

// Name returns the engine name
func (v *VisionDetector) Name() string { return "vision" }

// Close releases the Vision API client
func (v *VisionDetector) Close() error {
	return v.client.Close()
}

// Detect sends the image to Vision and returns one detection per text line
func (v *VisionDetector) Detect(ctx context.Context, image []byte) (analyzer.OcrResultSet, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("vision request timed out", err)
		}
		return nil, apperrors.NewOCRError("vision API request failed", err)
	}
	if len(resp.GetResponses()) == 0 {
		return analyzer.OcrResultSet{}, nil
	}

	first := resp.GetResponses()[0]
	if first.GetError() != nil {
		return nil, apperrors.NewOCRError("vision API error: "+first.GetError().GetMessage(), nil)
	}
	return linesFromAnnotation(first.GetFullTextAnnotation()), nil
}

// line accumulates words until Vision reports a line break.
type line struct {
	words    []string
	rect     geometry.Rect
	hasRect  bool
	confSum  float64
	confSeen int
}

func (l *line) add(word string, verts []*visionpb.Vertex, conf float32) {
	l.words = append(l.words, word)
	l.confSum += float64(conf)
	l.confSeen++
	for _, vx := range verts {
		x, y := float64(vx.GetX()), float64(vx.GetY())
		if !l.hasRect {
			l.rect = geometry.Rect{MinX: x, MinY: y, MaxX: x, MaxY: y}
			l.hasRect = true
			continue
		}
		l.rect.MinX = math.Min(l.rect.MinX, x)
		l.rect.MinY = math.Min(l.rect.MinY, y)
		l.rect.MaxX = math.Max(l.rect.MaxX, x)
		l.rect.MaxY = math.Max(l.rect.MaxY, y)
	}
}

func (l *line) detection() (analyzer.TextDetection, bool) {
	text := strings.TrimSpace(strings.Join(l.words, " "))
	if text == "" || !l.hasRect {
		return analyzer.TextDetection{}, false
	}
	var conf float64
	if l.confSeen > 0 {
		conf = clamp01(l.confSum / float64(l.confSeen))
	}
	return analyzer.TextDetection{
		Text:            text,
		BoundingPolygon: geometry.FromRect(l.rect.MinX, l.rect.MinY, l.rect.MaxX, l.rect.MaxY),
		Confidence:      conf,
	}, true
}

func endsLine(w *visionpb.Word) bool {
	symbols := w.GetSymbols()
	if len(symbols) == 0 {
		return false
	}
	switch symbols[len(symbols)-1].GetProperty().GetDetectedBreak().GetType() {
	case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
		visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
		return true
	}
	return false
}

func linesFromAnnotation(ann *visionpb.TextAnnotation) analyzer.OcrResultSet {
	set := analyzer.OcrResultSet{}
	for _, page := range ann.GetPages() {
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				cur := &line{}
				flush := func() {
					if d, ok := cur.detection(); ok {
						set = append(set, d)
					}
					cur = &line{}
				}
				for _, w := range para.GetWords() {
					var sb strings.Builder
					for _, s := range w.GetSymbols() {
						sb.WriteString(s.GetText())
					}
					cur.add(sb.String(), w.GetBoundingBox().GetVertices(), w.GetConfidence())
					if endsLine(w) {
						flush()
					}
				}
				flush()
			}
		}
	}
	return set
}
