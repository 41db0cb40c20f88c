package model

import "time"

// RelevanceThreshold is the score at and above which a prospect is relevant.
const RelevanceThreshold = 60

// ScoreBreakdown reports per-dimension relevance points. Both the AI path and
// the rule-based fallback populate the same six dimensions so downstream
// consumers see a consistent schema regardless of which path executed.
type ScoreBreakdown struct {
	IndustryMatch    int `json:"industry_match"`
	LocationMatch    int `json:"location_match"`
	Quality          int `json:"quality"`
	OnlinePresence   int `json:"online_presence"`
	DataCompleteness int `json:"data_completeness"`
	ReviewRecency    int `json:"review_recency"`
}

// Total sums the dimension points.
func (b ScoreBreakdown) Total() int {
	return b.IndustryMatch + b.LocationMatch + b.Quality +
		b.OnlinePresence + b.DataCompleteness + b.ReviewRecency
}

// RelevanceResult is the 0-100 fit estimate against a target profile.
// Produced once per candidate; immutable.
type RelevanceResult struct {
	Score          int            `json:"score"`
	Relevant       bool           `json:"relevant"`
	Reasoning      string         `json:"reasoning"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	Path           PathTag        `json:"path"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
}

// TargetProfile describes the customer profile candidates are scored against.
type TargetProfile struct {
	Industry string `yaml:"industry" mapstructure:"industry"`
	City     string `yaml:"city" mapstructure:"city"`
	State    string `yaml:"state" mapstructure:"state"`
	Niche    string `yaml:"niche" mapstructure:"niche"`
}

// Prospect is the persisted, deduplicated business entity: one row per
// distinct external place identifier, shared across campaigns.
type Prospect struct {
	ID             string            `json:"id"`
	PlaceID        string            `json:"place_id"`
	Name           string            `json:"name"`
	Categories     []string          `json:"categories,omitempty"`
	Address        Address           `json:"address"`
	Rating         float64           `json:"rating"`
	ReviewCount    int               `json:"review_count"`
	LastReviewAt   *time.Time        `json:"last_review_at,omitempty"`
	Website        string            `json:"website,omitempty"`
	WebsiteStatus  WebsiteStatus     `json:"website_status"`
	SocialProfiles map[string]string `json:"social_profiles,omitempty"`
	Extraction     *ExtractionRecord `json:"extraction,omitempty"`
	Relevance      *RelevanceResult  `json:"relevance,omitempty"`
	EnrichedAt     *time.Time        `json:"enriched_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// CampaignLink joins a Prospect to one campaign's workflow. At most one link
// exists per (campaign, prospect) pair; deleting a link never deletes the
// prospect.
type CampaignLink struct {
	ID            string    `json:"id"`
	CampaignID    string    `json:"campaign_id"`
	ProspectID    string    `json:"prospect_id"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	ScoreOverride *int      `json:"score_override,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// LinkOutcome is the campaign linker's decision for one candidate.
type LinkOutcome string

const (
	LinkCreatedProspect LinkOutcome = "created_prospect"
	LinkReusedAndLinked LinkOutcome = "reused_and_linked"
	LinkSkippedExisting LinkOutcome = "skipped_existing"
)

// RunStatus represents the state of a discovery run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
	RunStatusCanceled RunStatus = "canceled"
)

// DiscoveryRun records one execution of the discovery pipeline for a campaign.
type DiscoveryRun struct {
	ID         string     `json:"id"`
	CampaignID string     `json:"campaign_id"`
	Query      string     `json:"query"`
	Status     RunStatus  `json:"status"`
	Discovered int        `json:"discovered"`
	Enriched   int        `json:"enriched"`
	Linked     int        `json:"linked"`
	Skipped    int        `json:"skipped"`
	Discarded  int        `json:"discarded"`
	CostUSD    float64    `json:"cost_usd"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
