package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/jengzang/sites-backend-go/internal/models"
	"github.com/jengzang/sites-backend-go/internal/spatial"
	"github.com/jengzang/sites-backend-go/internal/stats"
)

// densityPrecision is a geohash length of roughly 150km cells
const densityPrecision = 3

// SiteSource reads the full dataset
type SiteSource interface {
	FetchAll(ctx context.Context) ([]models.Site, error)
}

// CellCount is the number of sites in one geohash cell
type CellCount struct {
	Geohash string `json:"geohash"`
	Count   int    `json:"count"`
}

// DatasetStats summarizes the stored sites
type DatasetStats struct {
	Total        int                `json:"total"`
	WithImage    int                `json:"withImage"`
	Wishlist     int                `json:"wishlist"`
	ByRegion     map[string]int     `json:"byRegion"`
	VisitedCount stats.Distribution `json:"visitedCount"`
	DensestCells []CellCount        `json:"densestCells"`
}

// StatsService handles business logic for dataset statistics
type StatsService struct {
	source SiteSource
}

// NewStatsService creates a new stats service
func NewStatsService(source SiteSource) *StatsService {
	return &StatsService{source: source}
}

// GetDatasetStats loads every site and summarizes them. top caps the
// number of dense cells returned.
func (s *StatsService) GetDatasetStats(ctx context.Context, top int) (*DatasetStats, error) {
	sites, err := s.source.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}

	out := &DatasetStats{
		Total:    len(sites),
		ByRegion: make(map[string]int),
	}
	visited := make([]float64, 0, len(sites))
	cells := make(map[string]int)

	for _, site := range sites {
		if site.ImageURL != "" {
			out.WithImage++
		}
		if site.Wishlist {
			out.Wishlist++
		}
		out.ByRegion[site.Region]++
		visited = append(visited, float64(site.VisitedCount))
		cells[spatial.Geohash(site.Latitude, site.Longitude, densityPrecision)]++
	}
	out.VisitedCount = stats.Describe(visited)

	for hash, n := range cells {
		out.DensestCells = append(out.DensestCells, CellCount{Geohash: hash, Count: n})
	}
	sort.Slice(out.DensestCells, func(i, j int) bool {
		a, b := out.DensestCells[i], out.DensestCells[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Geohash < b.Geohash
	})
	if top > 0 && len(out.DensestCells) > top {
		out.DensestCells = out.DensestCells[:top]
	}
	return out, nil
}
