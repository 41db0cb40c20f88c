package relevance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
	aimocks "github.com/sells-group/prospect-cli/pkg/anthropic/mocks"
)

func defaultWeights() config.RelevanceWeights {
	return config.RelevanceWeights{
		Industry:         36,
		Location:         18,
		Quality:          18,
		OnlinePresence:   9,
		DataCompleteness: 9,
		ReviewRecency:    10,
	}
}

func strongCandidate(now time.Time) model.Candidate {
	recent := now.Add(-10 * 24 * time.Hour)
	return model.Candidate{
		PlaceID:      "p1",
		Name:         "Rainier Plumbing Co",
		Categories:   []string{"plumbing_contractor", "plumber"},
		Address:      model.Address{City: "Seattle", State: "WA"},
		Rating:       4.7,
		ReviewCount:  120,
		LastReviewAt: &recent,
		Website:      "https://rainierplumbing.example",
	}
}

func seattleProfile() model.TargetProfile {
	return model.TargetProfile{Industry: "plumbing", City: "Seattle", State: "WA"}
}

func newTestScorer(ai anthropic.Client, at time.Time) *Scorer {
	s := NewScorer(ai, "haiku-test", defaultWeights(), 60)
	s.now = func() time.Time { return at }
	return s
}

func validReply(score int) string {
	return fmt.Sprintf(`{"score": %d, "reasoning": "Strong category and location fit.", "breakdown": {"industry_match": 36, "location_match": 18, "quality": 18, "online_presence": 9, "data_completeness": 0, "review_recency": %d}}`, score, score-81)
}

func TestScore_AIPath(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	ai := aimocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: validReply(91)}},
		Usage:   anthropic.TokenUsage{InputTokens: 400, OutputTokens: 60},
	}, nil).Once()

	s := newTestScorer(ai, now)
	res, usage := s.Score(context.Background(), strongCandidate(now), model.WebsiteStatusActive, nil, seattleProfile())

	assert.Equal(t, model.PathSucceeded, res.Path)
	assert.Equal(t, 91, res.Score)
	assert.True(t, res.Relevant)
	assert.Equal(t, int64(400), usage.InputTokens)
}

func TestScore_InvalidBreakdownFallsBack(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		body string
	}{
		{"dimension over max", `{"score": 50, "reasoning": "x", "breakdown": {"industry_match": 40, "location_match": 0, "quality": 10, "online_presence": 0, "data_completeness": 0, "review_recency": 0}}`},
		{"score total mismatch", `{"score": 99, "reasoning": "x", "breakdown": {"industry_match": 36, "location_match": 18, "quality": 18, "online_presence": 9, "data_completeness": 9, "review_recency": 0}}`},
		{"empty reasoning", `{"score": 90, "reasoning": " ", "breakdown": {"industry_match": 36, "location_match": 18, "quality": 18, "online_presence": 9, "data_completeness": 9, "review_recency": 0}}`},
		{"not json", `definitely not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := aimocks.NewMockClient(t)
			ai.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
				Content: []anthropic.ContentBlock{{Type: "text", Text: tt.body}},
			}, nil).Once()

			s := newTestScorer(ai, now)
			res, _ := s.Score(context.Background(), strongCandidate(now), model.WebsiteStatusActive, nil, seattleProfile())
			assert.Equal(t, model.PathFellBack, res.Path)
			assert.NotEmpty(t, res.FallbackReason)
			assert.Equal(t, res.Score, res.Breakdown.Total(), "fallback breakdown stays consistent")
		})
	}
}

func TestScore_APIErrorFallsBack(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	ai := aimocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("overloaded")).Once()

	s := newTestScorer(ai, now)
	res, _ := s.Score(context.Background(), strongCandidate(now), model.WebsiteStatusActive, nil, seattleProfile())
	assert.Equal(t, model.PathFellBack, res.Path)
	assert.Contains(t, res.FallbackReason, "overloaded")
}

func TestFallback_StrongCandidateIsRelevant(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := newTestScorer(nil, now)
	rec := &model.ExtractionRecord{
		Email:       "hi@rainierplumbing.example",
		Phone:       "(206) 555-0100",
		ContactName: "Dana Ray",
	}

	res, _ := s.Score(context.Background(), strongCandidate(now), model.WebsiteStatusActive, rec, seattleProfile())

	assert.Equal(t, model.PathFellBack, res.Path)
	// 36 + 18 + 18 + 9 + 9 + 10
	assert.Equal(t, 100, res.Score)
	assert.True(t, res.Relevant)
}

func TestFallback_WrongIndustryScoresLow(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := newTestScorer(nil, now)
	cand := strongCandidate(now)
	cand.Categories = []string{"pet_store"}
	cand.Name = "Happy Paws"

	res, _ := s.Score(context.Background(), cand, model.WebsiteStatusActive, nil, seattleProfile())
	assert.Zero(t, res.Breakdown.IndustryMatch)
	assert.False(t, res.Relevant)
}

func TestFallback_StateOnlyLocationIsHalf(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := newTestScorer(nil, now)
	cand := strongCandidate(now)
	cand.Address.City = "Tacoma"

	res, _ := s.Score(context.Background(), cand, model.WebsiteStatusActive, nil, seattleProfile())
	assert.Equal(t, 9, res.Breakdown.LocationMatch)
}

func TestFallback_SocialOnlyPresence(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := newTestScorer(nil, now)
	cand := strongCandidate(now)
	cand.Website = ""
	cand.SocialProfiles = map[string]string{"instagram": "https://instagram.com/x"}

	res, _ := s.Score(context.Background(), cand, model.WebsiteStatusNoWebsite, nil, seattleProfile())
	assert.Equal(t, 4, res.Breakdown.OnlinePresence)
}

func TestFallback_RecencyTiers(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := newTestScorer(nil, now)

	tests := []struct {
		daysAgo int
		want    int
	}{
		{10, 10},
		{60, 6},
		{150, 3},
		{200, 0},
	}
	for _, tt := range tests {
		cand := strongCandidate(now)
		last := now.Add(-time.Duration(tt.daysAgo) * 24 * time.Hour)
		cand.LastReviewAt = &last
		res, _ := s.Score(context.Background(), cand, model.WebsiteStatusActive, nil, seattleProfile())
		assert.Equal(t, tt.want, res.Breakdown.ReviewRecency, "days ago %d", tt.daysAgo)
	}

	cand := strongCandidate(now)
	cand.LastReviewAt = nil
	res, _ := s.Score(context.Background(), cand, model.WebsiteStatusActive, nil, seattleProfile())
	assert.Zero(t, res.Breakdown.ReviewRecency)
}

func TestFallback_QualityRatingBandsIgnoreReviewCount(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := newTestScorer(nil, now)

	tests := []struct {
		rating      float64
		reviewCount int
		want        int
	}{
		{4.6, 5, 18}, // a handful of reviews still earns the top band
		{4.5, 1, 18},
		{4.2, 200, 12},
		{3.7, 50, 6},
		{3.0, 500, 0},
	}
	for _, tt := range tests {
		cand := strongCandidate(now)
		cand.Rating = tt.rating
		cand.ReviewCount = tt.reviewCount
		res, _ := s.Score(context.Background(), cand, model.WebsiteStatusActive, nil, seattleProfile())
		assert.Equal(t, tt.want, res.Breakdown.Quality, "rating %.1f with %d reviews", tt.rating, tt.reviewCount)
	}
}

func TestFallback_CompletenessCountsContactFields(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := newTestScorer(nil, now)

	tests := []struct {
		name string
		rec  *model.ExtractionRecord
		want int
	}{
		{"all three", &model.ExtractionRecord{Email: "a@b.c", Phone: "555", ContactName: "Dana"}, 9},
		{"two fields", &model.ExtractionRecord{Email: "a@b.c", Phone: "555"}, 6},
		{"one field", &model.ExtractionRecord{Phone: "555"}, 3},
		{"blank fields", &model.ExtractionRecord{Email: "  ", Confidence: 90}, 0},
		{"no record", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := s.Score(context.Background(), strongCandidate(now), model.WebsiteStatusActive, tt.rec, seattleProfile())
			assert.Equal(t, tt.want, res.Breakdown.DataCompleteness)
		})
	}
}

func TestTokensOverlap(t *testing.T) {
	assert.True(t, tokensOverlap("plumbing_contractor", "plumbing"))
	assert.True(t, tokensOverlap("coffee-shop", "coffee shop"))
	assert.False(t, tokensOverlap("pet_store", "plumbing"))
}
