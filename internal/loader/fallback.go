package loader

import "github.com/jengzang/sites-backend-go/internal/models"

// SampleBank keeps a small prefix of the authoritative records that is shown
// whenever a live query fails or comes back empty.
type SampleBank struct {
	sites []models.Site
}

// Rebuild replaces the sample with the first limit records of from.
// Prefix sampling keeps the result reproducible.
func (b *SampleBank) Rebuild(from []models.Site, limit int) {
	if limit < 0 {
		limit = 0
	}
	if limit > len(from) {
		limit = len(from)
	}
	b.sites = append([]models.Site(nil), from[:limit]...)
}

// Shrink trims the current sample to at most limit records
func (b *SampleBank) Shrink(limit int) {
	if limit < len(b.sites) {
		b.Rebuild(b.sites, limit)
	}
}

// Len returns the sample size
func (b *SampleBank) Len() int { return len(b.sites) }

// Sites returns a copy of the sample
func (b *SampleBank) Sites() []models.Site {
	return append([]models.Site(nil), b.sites...)
}
