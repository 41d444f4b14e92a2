package models

// Site represents a dive site shown on the map
type Site struct {
	ID           string  `json:"id" db:"id"`
	Name         string  `json:"name" db:"name"`
	Location     string  `json:"location" db:"location"`
	Region       string  `json:"region" db:"region"`
	Latitude     float64 `json:"latitude" db:"latitude"`
	Longitude    float64 `json:"longitude" db:"longitude"`
	Difficulty   string  `json:"difficulty" db:"difficulty"`
	Type         string  `json:"type" db:"type"`
	VisitedCount int     `json:"visitedCount" db:"visitedCount"`
	Wishlist     bool    `json:"wishlist" db:"wishlist"`

	// Hero image from site_media, empty when the site has none
	ImageURL string `json:"imageUrl,omitempty" db:"image_url"`
}

// SiteIDs returns the identifiers of the given sites in order
func SiteIDs(sites []Site) []string {
	ids := make([]string, len(sites))
	for i, s := range sites {
		ids[i] = s.ID
	}
	return ids
}

// SameSiteSet reports whether a and b contain the same set of site IDs.
// Order is ignored.
func SameSiteSet(a, b []Site) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		seen[s.ID] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s.ID]; !ok {
			return false
		}
	}
	return len(seen) == len(a)
}
