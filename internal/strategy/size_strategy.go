package strategy

import (
	"fmt"
	"strings"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/geometry"
)

// SizeStrategy turns a bounding polygon into the scalar used to rank
// detections. One strategy is used for every detection in a run; sizes from
// different strategies are not comparable.
type SizeStrategy interface {
	Size(polygon geometry.Polygon) (float64, error)
	GetStrategyName() string
}

// HeightStrategy ranks by bounding-box height. Store names in profile
// screenshots are set in a taller font than the surrounding chrome while
// their width varies with name length, so height is the default.
type HeightStrategy struct{}

// NewHeightStrategy creates a new height strategy
func NewHeightStrategy() SizeStrategy {
	return HeightStrategy{}
}

// Size returns the bounding-box height
func (HeightStrategy) Size(polygon geometry.Polygon) (float64, error) {
	return geometry.Height(polygon)
}

// GetStrategyName returns the strategy name
func (HeightStrategy) GetStrategyName() string {
	return "height"
}

// AreaStrategy ranks by polygon area.
type AreaStrategy struct{}

// NewAreaStrategy creates a new area strategy
func NewAreaStrategy() SizeStrategy {
	return AreaStrategy{}
}

// Size returns the polygon area
func (AreaStrategy) Size(polygon geometry.Polygon) (float64, error) {
	return geometry.Area(polygon)
}

// GetStrategyName returns the strategy name
func (AreaStrategy) GetStrategyName() string {
	return "area"
}

// ForMetric resolves a configured metric name ("height" or "area").
func ForMetric(name string) (SizeStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "height":
		return NewHeightStrategy(), nil
	case "area":
		return NewAreaStrategy(), nil
	default:
		return nil, fmt.Errorf("unsupported size metric: %s", name)
	}
}
