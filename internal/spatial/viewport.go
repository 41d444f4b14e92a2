package spatial

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/jengzang/sites-backend-go/internal/models"
)

// ViewportRect converts a viewport to an S2 lat/lng rectangle. A viewport
// with MinLon > MaxLon becomes an inverted longitude interval that wraps
// across the antimeridian.
func ViewportRect(v models.Viewport) s2.Rect {
	lat := r1.Interval{
		Lo: v.MinLat * math.Pi / 180,
		Hi: v.MaxLat * math.Pi / 180,
	}
	lng := s1.IntervalFromEndpoints(v.MinLon*math.Pi/180, v.MaxLon*math.Pi/180)
	return s2.Rect{Lat: lat, Lng: lng}
}

// Contains reports whether the point lies inside the viewport
func Contains(v models.Viewport, lat, lon float64) bool {
	return ViewportRect(v).ContainsLatLng(s2.LatLngFromDegrees(lat, lon))
}

// Center returns the center of the viewport in degrees
func Center(v models.Viewport) (lat, lon float64) {
	c := ViewportRect(v).Center()
	return c.Lat.Degrees(), c.Lng.Degrees()
}

// AreaKm2 returns the surface area covered by the viewport
func AreaKm2(v models.Viewport) float64 {
	return ViewportRect(v).Area() * EarthRadiusKm * EarthRadiusKm
}

// DiagonalKm returns the great-circle distance between the south-west and
// north-east corners
func DiagonalKm(v models.Viewport) float64 {
	sw := s2.LatLngFromDegrees(v.MinLat, v.MinLon)
	ne := s2.LatLngFromDegrees(v.MaxLat, v.MaxLon)
	return sw.Distance(ne).Radians() * EarthRadiusKm
}

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
	EarthRadiusKm     = 6371.0    // Earth's mean radius in kilometers
)
