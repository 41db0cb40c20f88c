// Package discovery queries the places source for businesses matching a text
// query and normalizes the results into pipeline Candidates.
package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/pkg/places"
)

// LinkIndex is the subset of the store the adapter needs for duplicate-aware
// paging: which place IDs are already linked to a campaign.
type LinkIndex interface {
	ListCampaignPlaceIDs(ctx context.Context, campaignID string) ([]string, error)
}

// Request holds the inputs for one discovery call.
type Request struct {
	Query      string
	MinRating  float64
	Limit      int
	CampaignID string // when set, already-linked businesses are skipped
}

// Result is the outcome of one discovery call. Searches is the number of
// text-search requests actually issued, retries included, so cost tracking
// charges what was spent rather than an estimate from surviving candidates.
type Result struct {
	Candidates []model.Candidate
	Searches   int
}

// Adapter pages through the places source, filters by rating, skips known
// campaign duplicates, and corrects social URLs out of the website field.
type Adapter struct {
	places     places.Client
	links      LinkIndex
	language   string
	maxPages   int
	tokenDelay time.Duration
	retry      resilience.RetryConfig
}

// NewAdapter creates a discovery Adapter. links may be nil when no campaign
// deduplication is wanted.
func NewAdapter(client places.Client, links LinkIndex, language string, maxPages int, tokenDelay time.Duration) *Adapter {
	if maxPages <= 0 {
		maxPages = 3
	}
	if language == "" {
		language = "en"
	}
	return &Adapter{
		places:     client,
		links:      links,
		language:   language,
		maxPages:   maxPages,
		tokenDelay: tokenDelay,
		retry:      resilience.DefaultRetryConfig(),
	}
}

// Discover returns up to req.Limit candidates with rating >= req.MinRating.
// Transport and authentication failures abort the whole call; a single
// malformed result is skipped and logged.
func (a *Adapter) Discover(ctx context.Context, req Request) (Result, error) {
	if req.Query == "" {
		return Result{}, eris.New("discovery: empty query")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	linked, err := a.linkedPlaceIDs(ctx, req.CampaignID)
	if err != nil {
		return Result{}, err
	}

	log := zap.L().With(zap.String("query", req.Query))
	var candidates []model.Candidate
	searches := 0
	pageToken := ""

	for page := 0; page < a.maxPages && len(candidates) < limit; page++ {
		if pageToken != "" {
			// The provider needs a short delay before a continuation token
			// becomes valid.
			select {
			case <-ctx.Done():
				return Result{Candidates: candidates, Searches: searches}, ctx.Err()
			case <-time.After(a.tokenDelay):
			}
		}

		var resp *places.TextSearchResponse
		searchErr := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			searches++
			var innerErr error
			resp, innerErr = a.places.TextSearch(ctx, places.TextSearchRequest{
				Query:     req.Query,
				Language:  a.language,
				PageToken: pageToken,
			})
			return classifySearchError(innerErr)
		})
		if searchErr != nil {
			return Result{Searches: searches}, eris.Wrap(searchErr, "discovery: text search")
		}

		for _, place := range resp.Places {
			cand, ok := toCandidate(place)
			if !ok {
				log.Warn("discovery: skipping malformed place result",
					zap.String("place_id", place.ID),
				)
				continue
			}
			if cand.Rating < req.MinRating {
				continue
			}
			if linked[cand.PlaceID] {
				log.Debug("discovery: skipping already-linked place",
					zap.String("place_id", cand.PlaceID),
					zap.String("campaign_id", req.CampaignID),
				)
				continue
			}
			candidates = append(candidates, cand)
			if len(candidates) >= limit {
				break
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	log.Info("discovery: search complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("searches", searches),
		zap.Float64("min_rating", req.MinRating),
	)
	return Result{Candidates: candidates, Searches: searches}, nil
}

func (a *Adapter) linkedPlaceIDs(ctx context.Context, campaignID string) (map[string]bool, error) {
	linked := make(map[string]bool)
	if campaignID == "" || a.links == nil {
		return linked, nil
	}
	ids, err := a.links.ListCampaignPlaceIDs(ctx, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: list campaign place ids")
	}
	for _, id := range ids {
		linked[id] = true
	}
	return linked, nil
}

// classifySearchError marks retryable provider failures as transient so the
// retry wrapper re-attempts them, and leaves auth errors permanent.
func classifySearchError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *places.APIError
	if errors.As(err, &apiErr) {
		if !apiErr.Auth() && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return resilience.NewTransientError(err, apiErr.StatusCode)
		}
	}
	return err
}

// toCandidate converts a place record, normalizing a social-profile URL out
// of the website field when the source mislabels one. Returns ok=false for
// results missing the fields the pipeline cannot proceed without.
func toCandidate(p places.Place) (model.Candidate, bool) {
	if p.ID == "" || p.DisplayName.Text == "" {
		return model.Candidate{}, false
	}

	cand := model.Candidate{
		PlaceID:     p.ID,
		Name:        p.DisplayName.Text,
		Categories:  p.Types,
		Rating:      p.Rating,
		ReviewCount: p.UserRatingCount,
		Phone:       p.NationalPhoneNumber,
		Address:     toAddress(p),
	}

	if latest := latestReviewTime(p.Reviews); !latest.IsZero() {
		cand.LastReviewAt = &latest
	}

	if p.WebsiteURI != "" {
		if platform, isSocial := detectSocialPlatform(p.WebsiteURI); isSocial {
			// Data-quality correction, not an error.
			cand.SocialProfiles = map[string]string{platform: p.WebsiteURI}
			zap.L().Info("discovery: moved social url out of website field",
				zap.String("place_id", p.ID),
				zap.String("platform", platform),
			)
		} else {
			cand.Website = p.WebsiteURI
		}
	}

	return cand, true
}

func toAddress(p places.Place) model.Address {
	addr := model.Address{Formatted: p.FormattedAddress}
	var streetNumber, route string
	for _, comp := range p.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "street_number":
				streetNumber = comp.LongText
			case "route":
				route = comp.LongText
			case "locality", "postal_town":
				addr.City = comp.LongText
			case "administrative_area_level_1":
				addr.State = comp.ShortText
			case "postal_code":
				addr.PostalCode = comp.LongText
			case "country":
				addr.Country = comp.ShortText
			}
		}
	}
	switch {
	case streetNumber != "" && route != "":
		addr.Street = streetNumber + " " + route
	case route != "":
		addr.Street = route
	}
	return addr
}

func latestReviewTime(reviews []places.Review) time.Time {
	var latest time.Time
	for _, r := range reviews {
		if r.PublishTime.After(latest) {
			latest = r.PublishTime
		}
	}
	return latest
}
