package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jengzang/sites-backend-go/internal/database"
	"github.com/jengzang/sites-backend-go/internal/models"
)

const siteColumns = `s.id, s.name, s.location, s.region, s.latitude, s.longitude,
		s.difficulty, s.type, s.visitedCount, s.wishlist,
		COALESCE((SELECT m.url FROM site_media m
			WHERE m.site_id = s.id AND m.kind = 'hero'
			ORDER BY m.id LIMIT 1), '') AS image_url`

// Popular and wishlisted sites first; id breaks ties so pages are stable
const siteRanking = `ORDER BY s.visitedCount DESC, s.wishlist DESC, s.name ASC, s.id ASC`

// SiteRepository handles database operations for dive sites
type SiteRepository struct {
	db *sql.DB
}

// NewSiteRepository creates a new site repository
func NewSiteRepository(db *sql.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// FetchRanked retrieves the best ranked sites
func (r *SiteRepository) FetchRanked(ctx context.Context, limit int) ([]models.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites s ` + siteRanking + ` LIMIT ?`

	sites, err := r.querySites(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ranked sites: %w", err)
	}
	return sites, nil
}

// Count returns the number of sites
func (r *SiteRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count sites: %w", err)
	}
	return total, nil
}

// FetchInBounds retrieves the best ranked sites inside the viewport
func (r *SiteRepository) FetchInBounds(ctx context.Context, bounds models.Viewport, limit int) ([]models.Site, error) {
	conditions := []string{"s.latitude BETWEEN ? AND ?"}
	args := []interface{}{bounds.MinLat, bounds.MaxLat}

	if bounds.CrossesAntimeridian() {
		conditions = append(conditions, "(s.longitude >= ? OR s.longitude <= ?)")
	} else {
		conditions = append(conditions, "s.longitude BETWEEN ? AND ?")
	}
	args = append(args, bounds.MinLon, bounds.MaxLon, limit)

	query := `SELECT ` + siteColumns + ` FROM sites s WHERE ` +
		strings.Join(conditions, " AND ") + ` ` + siteRanking + ` LIMIT ?`

	sites, err := r.querySites(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sites in bounds: %w", err)
	}
	return sites, nil
}

// FetchAll retrieves every site in ranking order
func (r *SiteRepository) FetchAll(ctx context.Context) ([]models.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites s ` + siteRanking

	sites, err := r.querySites(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch all sites: %w", err)
	}
	return sites, nil
}

// InsertSites writes sites and their hero images in a single transaction
func (r *SiteRepository) InsertSites(ctx context.Context, sites []models.Site) error {
	return database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		siteStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO sites
			(id, name, location, region, latitude, longitude, difficulty, type, visitedCount, wishlist)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare site statement: %w", err)
		}
		defer siteStmt.Close()

		mediaStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO site_media
			(id, site_id, kind, url) VALUES (?, ?, 'hero', ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare media statement: %w", err)
		}
		defer mediaStmt.Close()

		for _, s := range sites {
			if _, err := siteStmt.ExecContext(ctx, s.ID, s.Name, s.Location, s.Region,
				s.Latitude, s.Longitude, s.Difficulty, s.Type, s.VisitedCount, s.Wishlist); err != nil {
				return fmt.Errorf("failed to insert site %s: %w", s.ID, err)
			}
			if s.ImageURL == "" {
				continue
			}
			if _, err := mediaStmt.ExecContext(ctx, s.ID+"-hero", s.ID, s.ImageURL); err != nil {
				return fmt.Errorf("failed to insert hero image for site %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

func (r *SiteRepository) querySites(ctx context.Context, query string, args ...interface{}) ([]models.Site, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		var s models.Site
		err := rows.Scan(
			&s.ID, &s.Name, &s.Location, &s.Region, &s.Latitude, &s.Longitude,
			&s.Difficulty, &s.Type, &s.VisitedCount, &s.Wishlist, &s.ImageURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, s)
	}

	return sites, rows.Err()
}
