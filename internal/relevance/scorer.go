// Package relevance estimates how well an enriched candidate fits the target
// customer profile. The AI scorer explains its judgement; a deterministic
// weighted rubric stands in whenever the model is unavailable or returns an
// invalid structure. Both paths fill the same six-dimension breakdown.
package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
)

const scorerSystemPrompt = `You score how well a local business matches a target customer profile, on a 0-100 scale split across six dimensions with fixed maximums: industry_match (36), location_match (18), quality (18), online_presence (9), data_completeness (9), review_recency (10). Respond with a valid JSON object and nothing else:
{"score": <0-100>, "reasoning": "<2-3 sentences>", "breakdown": {"industry_match": 0, "location_match": 0, "quality": 0, "online_presence": 0, "data_completeness": 0, "review_recency": 0}}
The score must equal the sum of the breakdown values and each value must stay within its maximum.`

// Scorer produces RelevanceResults for enriched candidates.
type Scorer struct {
	ai        anthropic.Client
	model     string
	weights   config.RelevanceWeights
	threshold int
	now       func() time.Time
}

// NewScorer creates a Scorer. ai may be nil to force the rule-based path.
func NewScorer(ai anthropic.Client, modelID string, weights config.RelevanceWeights, threshold int) *Scorer {
	if threshold <= 0 {
		threshold = model.RelevanceThreshold
	}
	return &Scorer{ai: ai, model: modelID, weights: weights, threshold: threshold, now: time.Now}
}

// Score rates one candidate against the profile. AI failures and invalid
// model output are absorbed into the fallback path, never returned as errors.
func (s *Scorer) Score(ctx context.Context, cand model.Candidate, status model.WebsiteStatus, rec *model.ExtractionRecord, profile model.TargetProfile) (model.RelevanceResult, anthropic.TokenUsage) {
	var usage anthropic.TokenUsage

	if s.ai == nil {
		res := s.fallbackScore(cand, status, rec, profile)
		res.FallbackReason = "no ai client configured"
		return res, usage
	}

	res, aiUsage, err := s.aiScore(ctx, cand, status, rec, profile)
	usage.Add(aiUsage)
	if err != nil {
		zap.L().Warn("relevance: ai scoring failed, using rule-based fallback",
			zap.String("place_id", cand.PlaceID),
			zap.Error(err),
		)
		fb := s.fallbackScore(cand, status, rec, profile)
		fb.FallbackReason = err.Error()
		return fb, usage
	}
	return res, usage
}

type scorerReply struct {
	Score     int                  `json:"score"`
	Reasoning string               `json:"reasoning"`
	Breakdown model.ScoreBreakdown `json:"breakdown"`
}

func (s *Scorer) aiScore(ctx context.Context, cand model.Candidate, status model.WebsiteStatus, rec *model.ExtractionRecord, profile model.TargetProfile) (model.RelevanceResult, anthropic.TokenUsage, error) {
	var resp *anthropic.MessageResponse
	err := resilience.Do(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
		var innerErr error
		resp, innerErr = s.ai.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     s.model,
			MaxTokens: 1024,
			System:    anthropic.BuildCachedSystemBlocks(scorerSystemPrompt),
			Messages: []anthropic.Message{
				{Role: "user", Content: s.buildPrompt(cand, status, rec, profile)},
			},
		})
		return innerErr
	})
	if err != nil {
		return model.RelevanceResult{}, anthropic.TokenUsage{}, eris.Wrap(err, "relevance: create message")
	}
	resp.Usage.LogCost(s.model, "relevance")

	var reply scorerReply
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &reply); err != nil {
		return model.RelevanceResult{}, resp.Usage, eris.Wrap(err, "relevance: parse scorer reply")
	}
	if err := s.validateReply(reply); err != nil {
		return model.RelevanceResult{}, resp.Usage, err
	}

	return model.RelevanceResult{
		Score:     reply.Score,
		Relevant:  reply.Score >= s.threshold,
		Reasoning: reply.Reasoning,
		Breakdown: reply.Breakdown,
		Path:      model.PathSucceeded,
	}, resp.Usage, nil
}

// validateReply enforces the structured-output contract: dimension bounds,
// total consistency, and a non-empty rationale.
func (s *Scorer) validateReply(reply scorerReply) error {
	b := reply.Breakdown
	checks := []struct {
		name  string
		value int
		max   int
	}{
		{"industry_match", b.IndustryMatch, s.weights.Industry},
		{"location_match", b.LocationMatch, s.weights.Location},
		{"quality", b.Quality, s.weights.Quality},
		{"online_presence", b.OnlinePresence, s.weights.OnlinePresence},
		{"data_completeness", b.DataCompleteness, s.weights.DataCompleteness},
		{"review_recency", b.ReviewRecency, s.weights.ReviewRecency},
	}
	for _, c := range checks {
		if c.value < 0 || c.value > c.max {
			return eris.Errorf("relevance: dimension %s=%d outside [0,%d]", c.name, c.value, c.max)
		}
	}
	if reply.Score != b.Total() {
		return eris.Errorf("relevance: score %d does not match breakdown total %d", reply.Score, b.Total())
	}
	if strings.TrimSpace(reply.Reasoning) == "" {
		return eris.New("relevance: empty reasoning")
	}
	return nil
}

func (s *Scorer) buildPrompt(cand model.Candidate, status model.WebsiteStatus, rec *model.ExtractionRecord, profile model.TargetProfile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Target profile: industry=%q niche=%q city=%q state=%q\n\n",
		profile.Industry, profile.Niche, profile.City, profile.State)
	fmt.Fprintf(&sb, "Business: %s\n", cand.Name)
	fmt.Fprintf(&sb, "Categories: %s\n", strings.Join(cand.Categories, ", "))
	fmt.Fprintf(&sb, "Location: %s, %s\n", cand.Address.City, cand.Address.State)
	fmt.Fprintf(&sb, "Rating: %.1f (%d reviews)\n", cand.Rating, cand.ReviewCount)
	if cand.LastReviewAt != nil {
		fmt.Fprintf(&sb, "Last review: %s\n", cand.LastReviewAt.Format("2006-01-02"))
	}
	fmt.Fprintf(&sb, "Website: %q (status %s)\n", cand.Website, status)
	if len(cand.SocialProfiles) > 0 {
		fmt.Fprintf(&sb, "Social profiles: %d\n", len(cand.SocialProfiles))
	}
	if rec != nil {
		fmt.Fprintf(&sb, "\nExtraction (confidence %d):\n", rec.Confidence)
		fmt.Fprintf(&sb, "  email=%q phone=%q contact=%q\n", rec.Email, rec.Phone, rec.ContactName)
		if rec.Description != "" {
			fmt.Fprintf(&sb, "  description: %s\n", rec.Description)
		}
		if len(rec.Services) > 0 {
			fmt.Fprintf(&sb, "  services: %s\n", strings.Join(rec.Services, "; "))
		}
		if rec.Intel != nil {
			fmt.Fprintf(&sb, "  intel: years_in_business=%d pricing_visible=%t content_fresh=%t\n",
				rec.Intel.YearsInBusiness, rec.Intel.PricingVisible, rec.Intel.ContentFresh)
		}
	}
	return sb.String()
}
