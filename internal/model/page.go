package model

// PageType is the inferred category of a discovered page.
type PageType string

const (
	PageTypeHome      PageType = "home"
	PageTypeAbout     PageType = "about"
	PageTypePricing   PageType = "pricing"
	PageTypeContact   PageType = "contact"
	PageTypeTeam      PageType = "team"
	PageTypeServices  PageType = "services"
	PageTypePortfolio PageType = "portfolio"
	PageTypeCareers   PageType = "careers"
	PageTypeLocations PageType = "locations"
	PageTypeProducts  PageType = "products"
	PageTypeBlog      PageType = "blog"
	PageTypeLegal     PageType = "legal"
	PageTypeOther     PageType = "other"
)

// AllPageTypes returns every defined page type.
func AllPageTypes() []PageType {
	return []PageType{
		PageTypeHome,
		PageTypeAbout,
		PageTypePricing,
		PageTypeContact,
		PageTypeTeam,
		PageTypeServices,
		PageTypePortfolio,
		PageTypeCareers,
		PageTypeLocations,
		PageTypeProducts,
		PageTypeBlog,
		PageTypeLegal,
		PageTypeOther,
	}
}

// DiscoveredPage is a URL found under a root site during one enrichment run.
type DiscoveredPage struct {
	URL        string   `json:"url"`
	Type       PageType `json:"type"`
	AnchorText string   `json:"anchor_text,omitempty"`
	Depth      int      `json:"depth"`
}

// Sitemap is the deduplicated set of pages discovered under one root URL.
type Sitemap struct {
	Root  string           `json:"root"`
	Pages []DiscoveredPage `json:"pages"`
}

// URLSet returns the set of discovered URLs for membership checks.
func (s Sitemap) URLSet() map[string]DiscoveredPage {
	set := make(map[string]DiscoveredPage, len(s.Pages))
	for _, p := range s.Pages {
		set[p.URL] = p
	}
	return set
}

// Home returns the home page entry if present.
func (s Sitemap) Home() (DiscoveredPage, bool) {
	for _, p := range s.Pages {
		if p.Type == PageTypeHome {
			return p, true
		}
	}
	return DiscoveredPage{}, false
}

// PathTag identifies which path of a fallback chain produced a result.
type PathTag string

const (
	PathSucceeded PathTag = "succeeded"
	PathFellBack  PathTag = "fell_back"
	PathFailed    PathTag = "failed"
)

// SelectionCost records what the page-selection step spent.
type SelectionCost struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	EstimatedUSD float64 `json:"estimated_usd"`
}

// PageSelection is the subset of a Sitemap chosen for crawling.
// Invariants: the home page is always included and len(Pages) never exceeds
// the configured maximum.
type PageSelection struct {
	Pages          []DiscoveredPage `json:"pages"`
	Rationale      string           `json:"rationale"`
	Path           PathTag          `json:"path"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
	Cost           SelectionCost    `json:"cost"`
}
