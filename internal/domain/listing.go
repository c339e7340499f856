package domain

// ListingSnapshot is the partially-filled result of scraping a listing page.
// A nil field is unknown and must not be merged as zero.
type ListingSnapshot struct {
	Title        *string  `json:"title,omitempty"`
	NightlyPrice *float64 `json:"nightlyPrice,omitempty"`
	Currency     *string  `json:"currency,omitempty"`
	ReviewCount  *int     `json:"reviewCount,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
	HostName     *string  `json:"hostName,omitempty"`
	IsSuperhost  *bool    `json:"isSuperhost,omitempty"`
}
