package relevance

import (
	"fmt"
	"strings"

	"github.com/sells-group/prospect-cli/internal/model"
)

// fallbackScore applies the deterministic rubric. Each dimension awards a
// fraction of its configured weight from observable facts alone, so two runs
// over the same candidate always agree.
func (s *Scorer) fallbackScore(cand model.Candidate, status model.WebsiteStatus, rec *model.ExtractionRecord, profile model.TargetProfile) model.RelevanceResult {
	b := model.ScoreBreakdown{
		IndustryMatch:    s.scoreIndustry(cand, rec, profile),
		LocationMatch:    s.scoreLocation(cand, profile),
		Quality:          s.scoreQuality(cand),
		OnlinePresence:   s.scoreOnlinePresence(cand, status),
		DataCompleteness: s.scoreCompleteness(rec),
		ReviewRecency:    s.scoreRecency(cand),
	}
	score := b.Total()

	return model.RelevanceResult{
		Score:    score,
		Relevant: score >= s.threshold,
		Reasoning: fmt.Sprintf(
			"Rule-based: industry %d/%d, location %d/%d, quality %d/%d, presence %d/%d, completeness %d/%d, recency %d/%d.",
			b.IndustryMatch, s.weights.Industry,
			b.LocationMatch, s.weights.Location,
			b.Quality, s.weights.Quality,
			b.OnlinePresence, s.weights.OnlinePresence,
			b.DataCompleteness, s.weights.DataCompleteness,
			b.ReviewRecency, s.weights.ReviewRecency,
		),
		Breakdown: b,
		Path:      model.PathFellBack,
	}
}

// scoreIndustry awards full points for a category match against the profile
// industry, half for a mention in the description or services.
func (s *Scorer) scoreIndustry(cand model.Candidate, rec *model.ExtractionRecord, profile model.TargetProfile) int {
	industry := strings.ToLower(strings.TrimSpace(profile.Industry))
	if industry == "" {
		return s.weights.Industry
	}

	for _, cat := range cand.Categories {
		if tokensOverlap(strings.ToLower(cat), industry) {
			return s.weights.Industry
		}
	}
	if rec != nil {
		haystack := strings.ToLower(rec.Description + " " + strings.Join(rec.Services, " "))
		if strings.Contains(haystack, industry) {
			return s.weights.Industry / 2
		}
	}
	if niche := strings.ToLower(strings.TrimSpace(profile.Niche)); niche != "" {
		name := strings.ToLower(cand.Name)
		if strings.Contains(name, niche) {
			return s.weights.Industry / 2
		}
	}
	return 0
}

func (s *Scorer) scoreLocation(cand model.Candidate, profile model.TargetProfile) int {
	stateMatch := profile.State == "" || strings.EqualFold(cand.Address.State, profile.State)
	cityMatch := profile.City == "" || strings.EqualFold(cand.Address.City, profile.City)
	switch {
	case stateMatch && cityMatch:
		return s.weights.Location
	case stateMatch:
		return s.weights.Location / 2
	}
	return 0
}

// scoreQuality tiers on rating bands alone; review volume is deliberately
// ignored so a great five-review business is not penalized.
func (s *Scorer) scoreQuality(cand model.Candidate) int {
	switch {
	case cand.Rating >= 4.5:
		return s.weights.Quality
	case cand.Rating >= 4.0:
		return s.weights.Quality * 2 / 3
	case cand.Rating >= 3.5:
		return s.weights.Quality / 3
	}
	return 0
}

func (s *Scorer) scoreOnlinePresence(cand model.Candidate, status model.WebsiteStatus) int {
	switch {
	case status == model.WebsiteStatusActive:
		return s.weights.OnlinePresence
	case len(cand.SocialProfiles) > 0:
		return s.weights.OnlinePresence / 2
	}
	return 0
}

// scoreCompleteness counts the populated contact fields on the extraction.
func (s *Scorer) scoreCompleteness(rec *model.ExtractionRecord) int {
	if rec == nil {
		return 0
	}
	populated := 0
	for _, v := range []string{rec.Email, rec.Phone, rec.ContactName} {
		if strings.TrimSpace(v) != "" {
			populated++
		}
	}
	switch {
	case populated >= 3:
		return s.weights.DataCompleteness
	case populated == 2:
		return s.weights.DataCompleteness * 2 / 3
	case populated == 1:
		return s.weights.DataCompleteness / 3
	}
	return 0
}

func (s *Scorer) scoreRecency(cand model.Candidate) int {
	days := cand.DaysSinceLastReview(s.now())
	switch {
	case days < 0:
		return 0
	case days < 30:
		return s.weights.ReviewRecency
	case days < 90:
		return s.weights.ReviewRecency * 2 / 3
	case days < 180:
		return s.weights.ReviewRecency / 3
	}
	return 0
}

// tokensOverlap reports whether any whitespace- or underscore-separated token
// of the category appears in the industry string or vice versa. Place
// categories arrive as snake_case tags like "plumbing_contractor".
func tokensOverlap(category, industry string) bool {
	split := func(s string) []string {
		return strings.FieldsFunc(s, func(r rune) bool {
			return r == ' ' || r == '_' || r == '-'
		})
	}
	industryTokens := map[string]bool{}
	for _, t := range split(industry) {
		industryTokens[t] = true
	}
	for _, t := range split(category) {
		if industryTokens[t] {
			return true
		}
	}
	return false
}
