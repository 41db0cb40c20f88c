package model

// ConfidenceWeights allocates points per filled extraction field. The defaults
// are calibrated empirically; treat them as configuration, not constants.
type ConfidenceWeights struct {
	Email       int `yaml:"email" mapstructure:"email"`
	Phone       int `yaml:"phone" mapstructure:"phone"`
	Description int `yaml:"description" mapstructure:"description"`
	Services    int `yaml:"services" mapstructure:"services"`
	ContactName int `yaml:"contact_name" mapstructure:"contact_name"`
	ServicesMin int `yaml:"services_min" mapstructure:"services_min"`
}

// DefaultConfidenceWeights returns the calibrated point allocation
// (email 30, phone 25, description 20, ≥3 services 15, contact name 10).
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		Email:       30,
		Phone:       25,
		Description: 20,
		Services:    15,
		ContactName: 10,
		ServicesMin: 3,
	}
}

// PagePatch carries only the fields one page visit discovered. Patches are
// merged into an ExtractionRecord by Apply; they never overwrite set fields.
type PagePatch struct {
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	ContactName string   `json:"contact_name,omitempty"`
	Description string   `json:"description,omitempty"`
	Services    []string `json:"services,omitempty"`
	Structured  bool     `json:"structured,omitempty"`
	PageType    PageType `json:"page_type,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// Empty reports whether the patch carries no extracted fields.
func (p PagePatch) Empty() bool {
	return p.Email == "" && p.Phone == "" && p.ContactName == "" &&
		p.Description == "" && len(p.Services) == 0
}

// ExtractionRecord accumulates contact and description data across visited
// pages. Fields are sticky: once set, later patches never overwrite them.
type ExtractionRecord struct {
	Email        string                `json:"email,omitempty"`
	Phone        string                `json:"phone,omitempty"`
	ContactName  string                `json:"contact_name,omitempty"`
	Description  string                `json:"description,omitempty"`
	Services     []string              `json:"services,omitempty"`
	Confidence   int                   `json:"confidence"`
	PagesVisited []PageType            `json:"pages_visited,omitempty"`
	VisionUsed   bool                  `json:"vision_used"`
	Intel        *BusinessIntelligence `json:"intel,omitempty"`
}

// Apply performs the sticky merge of a page patch. Services are appended in
// insertion order with case-insensitive dedup. Confidence is NOT recomputed
// here; callers recompute after each page so the two concerns stay separate.
func (r *ExtractionRecord) Apply(p PagePatch) {
	if r.Email == "" && p.Email != "" {
		r.Email = p.Email
	}
	if r.Phone == "" && p.Phone != "" {
		r.Phone = p.Phone
	}
	if r.ContactName == "" && p.ContactName != "" {
		r.ContactName = p.ContactName
	}
	if r.Description == "" && p.Description != "" {
		r.Description = p.Description
	}
	if len(p.Services) > 0 {
		seen := make(map[string]bool, len(r.Services))
		for _, s := range r.Services {
			seen[normalizeService(s)] = true
		}
		for _, s := range p.Services {
			key := normalizeService(s)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			r.Services = append(r.Services, s)
		}
	}
	if p.PageType != "" {
		r.PagesVisited = append(r.PagesVisited, p.PageType)
	}
}

// Recompute recalculates the confidence score from the currently filled
// fields. The score is a completeness heuristic in [0,100], not a probability,
// and is monotonically non-decreasing in the number of filled fields.
func (r *ExtractionRecord) Recompute(w ConfidenceWeights) {
	score := 0
	if r.Email != "" {
		score += w.Email
	}
	if r.Phone != "" {
		score += w.Phone
	}
	if r.Description != "" {
		score += w.Description
	}
	if len(r.Services) >= w.ServicesMin {
		score += w.Services
	}
	if r.ContactName != "" {
		score += w.ContactName
	}
	if score > 100 {
		score = 100
	}
	r.Confidence = score
}

func normalizeService(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c+('a'-'A'))
		case c == ' ' || c == '\t':
			// collapse whitespace for dedup purposes
			if len(out) > 0 && out[len(out)-1] != ' ' {
				out = append(out, ' ')
			}
		default:
			out = append(out, c)
		}
	}
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}

// BusinessIntelligence holds maturity and budget signals derived from the
// full set of crawled page bodies, independent of contact extraction.
type BusinessIntelligence struct {
	EmployeeCountHint int  `json:"employee_count_hint,omitempty"`
	FoundedYear       int  `json:"founded_year,omitempty"`
	YearsInBusiness   int  `json:"years_in_business,omitempty"`
	PricingVisible    bool `json:"pricing_visible"`
	HasBlog           bool `json:"has_blog"`
	LatestContentYear int  `json:"latest_content_year,omitempty"`
	ContentFresh      bool `json:"content_fresh"`
}
