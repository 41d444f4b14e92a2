package models

import (
	"fmt"
	"math"
)

// Viewport is the visible geographic bounding box of the map.
// MinLon > MaxLon means the box crosses the antimeridian.
type Viewport struct {
	MinLat float64 `json:"minLat" yaml:"minLat"`
	MaxLat float64 `json:"maxLat" yaml:"maxLat"`
	MinLon float64 `json:"minLon" yaml:"minLon"`
	MaxLon float64 `json:"maxLon" yaml:"maxLon"`
}

// Validate checks that the viewport lies inside valid coordinate ranges
func (v Viewport) Validate() error {
	for _, c := range []float64{v.MinLat, v.MaxLat, v.MinLon, v.MaxLon} {
		if math.IsNaN(c) {
			return fmt.Errorf("coordinate is NaN")
		}
	}
	if v.MinLat < -90 || v.MaxLat > 90 {
		return fmt.Errorf("latitude out of range: [%f, %f]", v.MinLat, v.MaxLat)
	}
	if v.MinLat > v.MaxLat {
		return fmt.Errorf("minLat %f greater than maxLat %f", v.MinLat, v.MaxLat)
	}
	if v.MinLon < -180 || v.MinLon > 180 || v.MaxLon < -180 || v.MaxLon > 180 {
		return fmt.Errorf("longitude out of range: [%f, %f]", v.MinLon, v.MaxLon)
	}
	return nil
}

// CrossesAntimeridian reports whether the box wraps around longitude 180
func (v Viewport) CrossesAntimeridian() bool {
	return v.MinLon > v.MaxLon
}

// MapSnapshotResponse is the API view of the loader state
type MapSnapshotResponse struct {
	TotalCount         int64    `json:"totalCount"`
	IsSampled          bool     `json:"isSampled"`
	SafeMode           bool     `json:"safeMode"`
	CurrentLimit       int      `json:"currentLimit"`
	LimitMin           int      `json:"limitMin"`
	LimitMax           int      `json:"limitMax"`
	ConsecutiveSlow    int      `json:"consecutiveSlow"`
	ConsecutiveFailure int      `json:"consecutiveFailures"`
	VisibleCount       int      `json:"visibleCount"`
	FallbackCount      int      `json:"fallbackCount"`
	Visible            []Site   `json:"visible,omitempty"`
	VisibleIDs         []string `json:"visibleIds,omitempty"`
}

// SafeModeRequest toggles the process-wide safe mode
type SafeModeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
