// Package geometry measures OCR bounding polygons.
package geometry

import (
	"encoding/json"
	"fmt"
	"math"

	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
)

// MinPoints is the smallest number of vertices a bounding polygon may have.
const MinPoints = 3

// Point is a vertex in image pixel coordinates. It encodes as a JSON pair [x, y],
// the layout OCR engines commonly emit.
type Point struct {
	X float64
	Y float64
}

// MarshalJSON encodes the point as [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON accepts [x, y] or {"x": .., "y": ..}.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("point must have exactly 2 coordinates, got %d", len(pair))
		}
		p.X, p.Y = pair[0], pair[1]
		return nil
	}
	var obj struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("point must be [x, y] or {\"x\":..,\"y\":..}: %w", err)
	}
	if obj.X == nil || obj.Y == nil {
		return fmt.Errorf("point object requires both x and y")
	}
	p.X, p.Y = *obj.X, *obj.Y
	return nil
}

// Polygon is an ordered sequence of vertices delimiting a detected region.
type Polygon []Point

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width of the box.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height of the box.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// FromRect builds the clockwise 4-point polygon of an axis-aligned rectangle.
func FromRect(minX, minY, maxX, maxY float64) Polygon {
	return Polygon{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}
}

// Validate checks the vertex count and that every coordinate is finite.
func (p Polygon) Validate() error {
	if len(p) < MinPoints {
		return apperrors.NewGeometryError(
			fmt.Sprintf("bounding polygon needs at least %d points, got %d", MinPoints, len(p)), nil)
	}
	for i, pt := range p {
		if !finite(pt.X) || !finite(pt.Y) {
			return apperrors.NewGeometryError(fmt.Sprintf("point %d has a non-finite coordinate", i), nil)
		}
	}
	return nil
}

// BoundingBox returns the axis-aligned box enclosing the polygon.
func BoundingBox(p Polygon) (Rect, error) {
	if err := p.Validate(); err != nil {
		return Rect{}, err
	}
	r := Rect{MinX: p[0].X, MinY: p[0].Y, MaxX: p[0].X, MaxY: p[0].Y}
	for _, pt := range p[1:] {
		r.MinX = math.Min(r.MinX, pt.X)
		r.MinY = math.Min(r.MinY, pt.Y)
		r.MaxX = math.Max(r.MaxX, pt.X)
		r.MaxY = math.Max(r.MaxY, pt.Y)
	}
	return r, nil
}

// Height is the bounding-box height of the polygon. A flat polygon has no
// usable size and is reported as a geometry error.
func Height(p Polygon) (float64, error) {
	r, err := BoundingBox(p)
	if err != nil {
		return 0, err
	}
	h := r.Height()
	if h <= 0 {
		return 0, apperrors.NewGeometryError("bounding polygon has zero height", nil)
	}
	return h, nil
}

// Area is the absolute shoelace area of the polygon.
func Area(p Polygon) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	var sum float64
	for i := range p {
		j := (i + 1) % len(p)
		sum += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	area := math.Abs(sum) / 2
	if area <= 0 {
		return 0, apperrors.NewGeometryError("bounding polygon has zero area", nil)
	}
	return area, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
