package model

import "time"

// WebsiteStatus classifies the outcome of website verification.
type WebsiteStatus string

const (
	WebsiteStatusActive    WebsiteStatus = "active"
	WebsiteStatusNoWebsite WebsiteStatus = "no_website"
	WebsiteStatusNotFound  WebsiteStatus = "not_found"
	WebsiteStatusTimeout   WebsiteStatus = "timeout"
	WebsiteStatusSSLError  WebsiteStatus = "ssl_error"
	WebsiteStatusParking   WebsiteStatus = "parking_page"
)

// Broken reports whether the status indicates a site that exists on paper
// but cannot be reached or trusted.
func (s WebsiteStatus) Broken() bool {
	switch s {
	case WebsiteStatusNotFound, WebsiteStatusTimeout, WebsiteStatusSSLError:
		return true
	}
	return false
}

// Address holds normalized address components from the places source.
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Formatted  string `json:"formatted,omitempty"`
}

// Candidate is a raw discovery result before enrichment. Created once by the
// discovery adapter and treated as immutable from then on.
type Candidate struct {
	PlaceID        string            `json:"place_id"`
	Name           string            `json:"name"`
	Categories     []string          `json:"categories,omitempty"`
	Address        Address           `json:"address"`
	Rating         float64           `json:"rating"`
	ReviewCount    int               `json:"review_count"`
	LastReviewAt   *time.Time        `json:"last_review_at,omitempty"`
	Website        string            `json:"website,omitempty"`
	Phone          string            `json:"phone,omitempty"`
	SocialProfiles map[string]string `json:"social_profiles,omitempty"`
}

// PrimaryCategory returns the first category tag, or "" when none were returned.
func (c Candidate) PrimaryCategory() string {
	if len(c.Categories) == 0 {
		return ""
	}
	return c.Categories[0]
}

// DaysSinceLastReview returns whole days since the most recent review, or -1
// when the source returned no review timestamps.
func (c Candidate) DaysSinceLastReview(now time.Time) int {
	if c.LastReviewAt == nil {
		return -1
	}
	return int(now.Sub(*c.LastReviewAt).Hours() / 24)
}
