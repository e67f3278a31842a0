package model

// ProviderSerpAPI tags places discovered through SerpApi.
const ProviderSerpAPI = "serpapi"

// Place is a venue whose reviews are harvested.
type Place struct {
	PlaceID        string `json:"place_id"`
	DataID         string `json:"data_id,omitempty"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	Category       string `json:"category"`
	TotalReviews   int    `json:"total_reviews"`
	LastReviewDate string `json:"last_review_date,omitempty"`
	Provider       string `json:"provider"`
	PlaceURL       string `json:"place_url,omitempty"`
}

// LookupID returns the identifier the review provider expects: the
// secondary data id when known, else the primary place id.
func (p Place) LookupID() string {
	if p.DataID != "" {
		return p.DataID
	}
	return p.PlaceID
}

// MapsURL returns the canonical place link, falling back to a Google Maps
// URL built from the place id.
func (p Place) MapsURL() string {
	if p.PlaceURL != "" {
		return p.PlaceURL
	}
	if p.PlaceID != "" {
		return "https://www.google.com/maps/place/?q=place_id:" + p.PlaceID
	}
	return ""
}
