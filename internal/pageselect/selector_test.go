package pageselect

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
	aimocks "github.com/sells-group/prospect-cli/pkg/anthropic/mocks"
)

func siteFixture() model.Sitemap {
	return model.Sitemap{
		Root: "https://acme.example/",
		Pages: []model.DiscoveredPage{
			{URL: "https://acme.example/", Type: model.PageTypeHome, Depth: 0},
			{URL: "https://acme.example/about", Type: model.PageTypeAbout, Depth: 1},
			{URL: "https://acme.example/pricing", Type: model.PageTypePricing, Depth: 1},
			{URL: "https://acme.example/contact", Type: model.PageTypeContact, Depth: 1},
			{URL: "https://acme.example/blog", Type: model.PageTypeBlog, Depth: 1},
			{URL: "https://acme.example/blog/post-1", Type: model.PageTypeOther, Depth: 2},
		},
	}
}

func textResponse(body string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: body}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}
}

func TestSelect_AIPath(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(
		`{"urls": ["https://acme.example/about", "https://acme.example/pricing"], "rationale": "contact-rich pages"}`,
	), nil).Once()

	s := NewSelector(ai, "haiku-test", 7)
	sel, err := s.Select(context.Background(), siteFixture(), "cafe")
	require.NoError(t, err)

	assert.Equal(t, model.PathSucceeded, sel.Path)
	require.Len(t, sel.Pages, 3)
	assert.Equal(t, model.PageTypeHome, sel.Pages[0].Type, "home page is always first")
	assert.Equal(t, "contact-rich pages", sel.Rationale)
	assert.Equal(t, int64(100), sel.Cost.InputTokens)
}

func TestSelect_DropsInventedURLs(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(
		`{"urls": ["https://acme.example/about", "https://acme.example/made-up"], "rationale": "x"}`,
	), nil).Once()

	s := NewSelector(ai, "haiku-test", 7)
	sel, err := s.Select(context.Background(), siteFixture(), "cafe")
	require.NoError(t, err)
	assert.Equal(t, model.PathSucceeded, sel.Path)
	for _, p := range sel.Pages {
		assert.NotContains(t, p.URL, "made-up")
	}
}

func TestSelect_FallbackOnBadJSON(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("not json at all"), nil).Once()

	s := NewSelector(ai, "haiku-test", 4)
	sel, err := s.Select(context.Background(), siteFixture(), "cafe")
	require.NoError(t, err)

	assert.Equal(t, model.PathFellBack, sel.Path)
	assert.NotEmpty(t, sel.FallbackReason)
	require.NotEmpty(t, sel.Pages)
	assert.Equal(t, model.PageTypeHome, sel.Pages[0].Type)
	assert.LessOrEqual(t, len(sel.Pages), 4)
	// Failed attempt's spend is still attributed.
	assert.Equal(t, int64(100), sel.Cost.InputTokens)
}

func TestSelect_FallbackOnAPIError(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("rate limited")).Once()

	s := NewSelector(ai, "haiku-test", 7)
	sel, err := s.Select(context.Background(), siteFixture(), "cafe")
	require.NoError(t, err)
	assert.Equal(t, model.PathFellBack, sel.Path)
	assert.Contains(t, sel.FallbackReason, "rate limited")
}

func TestSelect_CategoryShapesPrompt(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	var prompt string
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(anthropic.MessageRequest)
			prompt = req.Messages[0].Content
		}).
		Return(textResponse(`{"urls": ["https://acme.example/pricing"], "rationale": "x"}`), nil).Once()

	s := NewSelector(ai, "haiku-test", 7)
	_, err := s.Select(context.Background(), siteFixture(), "marketing_agency")
	require.NoError(t, err)
	assert.Contains(t, prompt, "marketing_agency")
	assert.Contains(t, prompt, "portfolio", "service categories steer the selector toward portfolio pages")
}

func TestSelect_AgencyFavorsTeamAndPortfolioOverBlog(t *testing.T) {
	sm := model.Sitemap{
		Root: "https://studio.example/",
		Pages: []model.DiscoveredPage{
			{URL: "https://studio.example/", Type: model.PageTypeHome, Depth: 0},
			{URL: "https://studio.example/blog/2019-update", Type: model.PageTypeBlog, Depth: 2},
			{URL: "https://studio.example/pricing", Type: model.PageTypePricing, Depth: 1},
			{URL: "https://studio.example/team", Type: model.PageTypeTeam, Depth: 1},
			{URL: "https://studio.example/portfolio", Type: model.PageTypePortfolio, Depth: 1},
		},
	}
	s := NewSelector(nil, "", 4)
	sel, err := s.Select(context.Background(), sm, "agency")
	require.NoError(t, err)

	require.Len(t, sel.Pages, 4)
	assert.Equal(t, model.PageTypeHome, sel.Pages[0].Type)
	for _, p := range sel.Pages {
		assert.NotContains(t, p.URL, "/blog/", "stale blog posts lose to pricing, team, and portfolio")
	}
}

func TestPriorityHint(t *testing.T) {
	assert.Contains(t, priorityHint("marketing_agency"), "portfolio")
	assert.Contains(t, priorityHint("plumbing_contractor"), "services")
	assert.Contains(t, priorityHint("book_store"), "products")
	assert.Contains(t, priorityHint(""), "about")
}

func TestSelect_FallbackPriorityOrder(t *testing.T) {
	s := NewSelector(nil, "", 4)
	sel, err := s.Select(context.Background(), siteFixture(), "cafe")
	require.NoError(t, err)

	require.Len(t, sel.Pages, 4)
	assert.Equal(t, model.PageTypeHome, sel.Pages[0].Type)
	assert.Equal(t, model.PageTypeAbout, sel.Pages[1].Type)
	assert.Equal(t, model.PageTypePricing, sel.Pages[2].Type)
	assert.Equal(t, model.PageTypeContact, sel.Pages[3].Type)
}

func TestSelect_FallbackFillsShallowestFirst(t *testing.T) {
	sm := model.Sitemap{
		Root: "https://acme.example/",
		Pages: []model.DiscoveredPage{
			{URL: "https://acme.example/", Type: model.PageTypeHome, Depth: 0},
			{URL: "https://acme.example/deep/page", Type: model.PageTypeOther, Depth: 2},
			{URL: "https://acme.example/shallow", Type: model.PageTypeOther, Depth: 1},
		},
	}
	s := NewSelector(nil, "", 2)
	sel, err := s.Select(context.Background(), sm, "")
	require.NoError(t, err)
	require.Len(t, sel.Pages, 2)
	assert.Equal(t, "https://acme.example/shallow", sel.Pages[1].URL)
}

func TestSelect_CapEnforcedOnAIOverrun(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(
		`{"urls": ["https://acme.example/about","https://acme.example/pricing","https://acme.example/contact","https://acme.example/blog","https://acme.example/blog/post-1"], "rationale": "all of them"}`,
	), nil).Once()

	s := NewSelector(ai, "haiku-test", 3)
	sel, err := s.Select(context.Background(), siteFixture(), "cafe")
	require.NoError(t, err)
	assert.Len(t, sel.Pages, 3)
	assert.Equal(t, model.PageTypeHome, sel.Pages[0].Type)
}

func TestSelect_EmptySitemap(t *testing.T) {
	s := NewSelector(nil, "", 7)
	sel, err := s.Select(context.Background(), model.Sitemap{Root: "https://acme.example/"}, "cafe")
	require.Error(t, err)
	assert.Equal(t, model.PathFailed, sel.Path)
}
