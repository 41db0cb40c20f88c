package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/pkg/places"
	placesmocks "github.com/sells-group/prospect-cli/pkg/places/mocks"
)

type stubLinkIndex struct {
	ids []string
	err error
}

func (s *stubLinkIndex) ListCampaignPlaceIDs(ctx context.Context, campaignID string) ([]string, error) {
	return s.ids, s.err
}

func place(id, name string, rating float64, website string) places.Place {
	return places.Place{
		ID:              id,
		DisplayName:     places.DisplayName{Text: name},
		Types:           []string{"cafe"},
		Rating:          rating,
		UserRatingCount: 50,
		WebsiteURI:      website,
	}
}

func TestDiscover_FiltersByRatingAndCap(t *testing.T) {
	client := placesmocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.MatchedBy(func(req places.TextSearchRequest) bool {
		return req.Query == "coffee shops, Seattle" && req.PageToken == ""
	})).Return(&places.TextSearchResponse{
		Places: []places.Place{
			place("p1", "Roast House", 4.6, "https://roasthouse.example"),
			place("p2", "Meh Coffee", 3.2, ""),
			place("p3", "Bean Scene", 4.1, "https://beanscene.example"),
			place("p4", "Drip Lab", 4.8, ""),
			place("p5", "Percolate", 4.0, ""),
			place("p6", "Sixth Cup", 4.9, ""),
		},
	}, nil).Once()

	a := NewAdapter(client, nil, "en", 3, time.Millisecond)
	res, err := a.Discover(context.Background(), Request{
		Query:     "coffee shops, Seattle",
		MinRating: 4.0,
		Limit:     5,
	})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 5)
	for _, c := range res.Candidates {
		assert.GreaterOrEqual(t, c.Rating, 4.0)
	}
}

func TestDiscover_PagesWithTokenDelay(t *testing.T) {
	client := placesmocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.MatchedBy(func(req places.TextSearchRequest) bool {
		return req.PageToken == ""
	})).Return(&places.TextSearchResponse{
		Places:        []places.Place{place("p1", "One", 4.5, "")},
		NextPageToken: "tok-2",
	}, nil).Once()
	client.On("TextSearch", mock.Anything, mock.MatchedBy(func(req places.TextSearchRequest) bool {
		return req.PageToken == "tok-2"
	})).Return(&places.TextSearchResponse{
		Places: []places.Place{place("p2", "Two", 4.5, "")},
	}, nil).Once()

	a := NewAdapter(client, nil, "en", 3, time.Millisecond)
	res, err := a.Discover(context.Background(), Request{Query: "q", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 2)
	assert.Equal(t, 2, res.Searches, "one request per fetched page")
}

func TestDiscover_SkipsCampaignLinked(t *testing.T) {
	client := placesmocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).Return(&places.TextSearchResponse{
		Places: []places.Place{
			place("p1", "Already Linked", 4.5, ""),
			place("p2", "Fresh", 4.5, ""),
		},
	}, nil).Once()

	a := NewAdapter(client, &stubLinkIndex{ids: []string{"p1"}}, "en", 1, time.Millisecond)
	res, err := a.Discover(context.Background(), Request{Query: "q", Limit: 10, CampaignID: "c1"})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "p2", res.Candidates[0].PlaceID)
}

func TestDiscover_SkipsMalformedResult(t *testing.T) {
	client := placesmocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).Return(&places.TextSearchResponse{
		Places: []places.Place{
			{ID: "", DisplayName: places.DisplayName{Text: "No ID"}},
			place("p2", "Good", 4.5, ""),
		},
	}, nil).Once()

	a := NewAdapter(client, nil, "en", 1, time.Millisecond)
	res, err := a.Discover(context.Background(), Request{Query: "q", Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "p2", res.Candidates[0].PlaceID)
}

func TestDiscover_SearchCountSurvivesFiltering(t *testing.T) {
	client := placesmocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).Return(&places.TextSearchResponse{
		Places: []places.Place{
			place("p1", "Too Low", 2.1, ""),
			place("p2", "Already Linked", 4.5, ""),
			place("p3", "Kept", 4.6, ""),
		},
	}, nil).Once()

	a := NewAdapter(client, &stubLinkIndex{ids: []string{"p2"}}, "en", 3, time.Millisecond)
	res, err := a.Discover(context.Background(), Request{Query: "q", MinRating: 4.0, Limit: 10, CampaignID: "c1"})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, 1, res.Searches, "discarded results do not shrink the billed request count")
}

func TestDiscover_AuthFailureIsFatal(t *testing.T) {
	client := placesmocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).
		Return(nil, &places.APIError{StatusCode: 403, Body: "bad key"}).Once()

	a := NewAdapter(client, nil, "en", 3, time.Millisecond)
	_, err := a.Discover(context.Background(), Request{Query: "q", Limit: 10})
	require.Error(t, err)
}

func TestToCandidate_SocialWebsiteCorrection(t *testing.T) {
	p := place("p1", "Insta Shop", 4.5, "https://www.instagram.com/instashop")
	cand, ok := toCandidate(p)
	require.True(t, ok)
	assert.Empty(t, cand.Website, "social url must not remain in the website field")
	assert.Equal(t, "https://www.instagram.com/instashop", cand.SocialProfiles["instagram"])
}

func TestToCandidate_AddressComponents(t *testing.T) {
	p := place("p1", "Addr Co", 4.5, "")
	p.AddressComponents = []places.AddressComponent{
		{LongText: "100", Types: []string{"street_number"}},
		{LongText: "Pike Street", Types: []string{"route"}},
		{LongText: "Seattle", Types: []string{"locality"}},
		{LongText: "Washington", ShortText: "WA", Types: []string{"administrative_area_level_1"}},
		{LongText: "98101", Types: []string{"postal_code"}},
		{LongText: "United States", ShortText: "US", Types: []string{"country"}},
	}
	p.Reviews = []places.Review{
		{PublishTime: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{PublishTime: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)},
	}

	cand, ok := toCandidate(p)
	require.True(t, ok)
	assert.Equal(t, "100 Pike Street", cand.Address.Street)
	assert.Equal(t, "Seattle", cand.Address.City)
	assert.Equal(t, "WA", cand.Address.State)
	assert.Equal(t, "98101", cand.Address.PostalCode)
	require.NotNil(t, cand.LastReviewAt)
	assert.Equal(t, 2026, cand.LastReviewAt.Year())
}

func TestDetectSocialPlatform(t *testing.T) {
	tests := []struct {
		url      string
		platform string
		social   bool
	}{
		{"https://www.facebook.com/roasthouse", "facebook", true},
		{"https://m.facebook.com/roasthouse", "facebook", true},
		{"https://x.com/roasthouse", "twitter", true},
		{"https://www.yelp.com/biz/roast-house", "yelp", true},
		{"https://roasthouse.example", "", false},
		{"not a url", "", false},
	}
	for _, tt := range tests {
		platform, social := detectSocialPlatform(tt.url)
		assert.Equal(t, tt.social, social, tt.url)
		assert.Equal(t, tt.platform, platform, tt.url)
	}
}
