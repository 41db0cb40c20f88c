// Package pipeline orchestrates a discovery run: places search, website
// verification, inactivity filtering, page discovery and selection,
// extraction, intelligence aggregation, relevance scoring, and campaign
// linking. Candidates run concurrently; pages within one candidate run
// sequentially through a dedicated browser session.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/cost"
	"github.com/sells-group/prospect-cli/internal/discovery"
	"github.com/sells-group/prospect-cli/internal/extract"
	"github.com/sells-group/prospect-cli/internal/intel"
	"github.com/sells-group/prospect-cli/internal/linker"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/store"
	"github.com/sells-group/prospect-cli/internal/verify"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
)

// Discoverer finds candidates for a query and reports what the search cost.
type Discoverer interface {
	Discover(ctx context.Context, req discovery.Request) (discovery.Result, error)
}

// Verifier classifies a candidate's claimed website.
type Verifier interface {
	Verify(ctx context.Context, rawURL string) verify.Result
}

// Crawler maps the pages under a root URL.
type Crawler interface {
	Discover(ctx context.Context, rootURL string) (model.Sitemap, error)
}

// PageSelector picks the pages worth visiting for a business of the given
// category.
type PageSelector interface {
	Select(ctx context.Context, sitemap model.Sitemap, category string) (model.PageSelection, error)
}

// Extractor folds page visits into one extraction record.
type Extractor interface {
	Extract(ctx context.Context, sel model.PageSelection) (model.ExtractionRecord, anthropic.TokenUsage, error)
	Visited() []extract.VisitedPage
}

// ExtractorFactory creates an Extractor bound to a fresh browser session. The
// returned func releases the session. Called once per candidate worker.
type ExtractorFactory func(ctx context.Context) (Extractor, func(), error)

// RelevanceScorer scores a candidate against the target profile.
type RelevanceScorer interface {
	Score(ctx context.Context, cand model.Candidate, status model.WebsiteStatus, rec *model.ExtractionRecord, profile model.TargetProfile) (model.RelevanceResult, anthropic.TokenUsage)
}

// IntelAggregator derives maturity signals from crawled page bodies.
type IntelAggregator interface {
	Aggregate(pages []intel.PageBody) *model.BusinessIntelligence
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Store    store.Store
	Discover Discoverer
	Verify   Verifier
	Crawl    Crawler
	Select   PageSelector
	Score    RelevanceScorer
	Linker   *linker.Linker
	Sessions ExtractorFactory
	Tracker  *cost.Tracker
	Intel    IntelAggregator
}

// Pipeline runs discovery end to end for one campaign.
type Pipeline struct {
	cfg  *config.Config
	deps Deps
	now  func() time.Time
}

// New creates a Pipeline from explicit dependencies. Use Assemble for the
// production wiring.
func New(cfg *config.Config, deps Deps) *Pipeline {
	return &Pipeline{cfg: cfg, deps: deps, now: time.Now}
}

// RunOptions are the per-invocation inputs.
type RunOptions struct {
	CampaignID string
	Query      string
	Limit      int
}

// counters aggregates worker outcomes under one lock.
type counters struct {
	mu        sync.Mutex
	enriched  int
	linked    int
	skipped   int
	discarded int
}

// Run executes a full discovery run and persists its bookkeeping. Worker
// failures discard the candidate and never abort the run; cancellation stops
// new candidates from starting and lets in-flight ones wind down.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*model.DiscoveryRun, error) {
	if opts.CampaignID == "" {
		return nil, eris.New("pipeline: campaign id required")
	}

	run, err := p.deps.Store.CreateRun(ctx, opts.CampaignID, opts.Query)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log := zap.L().With(
		zap.String("run_id", run.ID),
		zap.String("campaign_id", opts.CampaignID),
	)

	res, err := p.deps.Discover.Discover(ctx, discovery.Request{
		Query:      opts.Query,
		MinRating:  p.cfg.Pipeline.MinRating,
		Limit:      opts.Limit,
		CampaignID: opts.CampaignID,
	})
	if err != nil {
		run.Status = model.RunStatusFailed
		p.finish(run)
		return run, eris.Wrap(err, "pipeline: discovery")
	}
	cands := res.Candidates
	run.Discovered = len(cands)
	if p.deps.Tracker != nil {
		p.deps.Tracker.AddSearches(res.Searches)
	}
	log.Info("pipeline: discovery complete",
		zap.Int("candidates", len(cands)),
		zap.Int("searches", res.Searches),
	)

	var tally counters
	var g errgroup.Group
	limit := p.cfg.Pipeline.MaxConcurrentCandidates
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	// Cancellation gates dequeuing only. Workers run on a detached context so
	// an in-flight candidate drains to a fully written prospect instead of
	// aborting mid-stage.
	workCtx := context.WithoutCancel(ctx)
	for _, cand := range cands {
		if ctx.Err() != nil {
			break
		}
		cand := cand
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			p.processCandidate(workCtx, opts.CampaignID, cand, &tally, log)
			return nil
		})
	}
	_ = g.Wait()

	run.Enriched = tally.enriched
	run.Linked = tally.linked
	run.Skipped = tally.skipped
	run.Discarded = tally.discarded
	if ctx.Err() != nil {
		run.Status = model.RunStatusCanceled
	} else {
		run.Status = model.RunStatusComplete
	}
	p.finish(run)

	log.Info("pipeline: run finished",
		zap.String("status", string(run.Status)),
		zap.Int("discovered", run.Discovered),
		zap.Int("enriched", run.Enriched),
		zap.Int("linked", run.Linked),
		zap.Int("skipped", run.Skipped),
		zap.Int("discarded", run.Discarded),
		zap.Float64("cost_usd", run.CostUSD),
	)
	return run, nil
}

// processCandidate carries one candidate through the stage sequence. All
// failures are terminal for the candidate only.
func (p *Pipeline) processCandidate(ctx context.Context, campaignID string, cand model.Candidate, tally *counters, log *zap.Logger) {
	clog := log.With(zap.String("place_id", cand.PlaceID), zap.String("name", cand.Name))

	decision, err := p.deps.Linker.Resolve(ctx, campaignID, cand)
	if err != nil {
		clog.Warn("pipeline: dedup lookup failed", zap.Error(err))
		tally.add(func(c *counters) { c.discarded++ })
		return
	}
	if decision.Outcome == model.LinkSkippedExisting {
		clog.Debug("pipeline: already in campaign")
		tally.add(func(c *counters) { c.skipped++ })
		return
	}

	vres := p.deps.Verify.Verify(ctx, cand.Website)
	if reason, drop := p.shouldDiscard(cand, vres.Status); drop {
		clog.Info("pipeline: candidate discarded",
			zap.String("reason", reason),
			zap.String("website_status", string(vres.Status)),
		)
		tally.add(func(c *counters) { c.discarded++ })
		return
	}

	var record *model.ExtractionRecord
	var enrichedAt *time.Time
	switch {
	case decision.ReuseEnrichment:
		record = decision.Existing.Extraction
		enrichedAt = decision.Existing.EnrichedAt
		clog.Debug("pipeline: reusing fresh extraction")
	case vres.Status == model.WebsiteStatusActive:
		rec, ok := p.enrich(ctx, vres.FinalURL, cand.PrimaryCategory(), clog)
		if ok {
			record = rec
			now := p.now().UTC()
			enrichedAt = &now
			tally.add(func(c *counters) { c.enriched++ })
		}
	}

	relevance, usage := p.deps.Score.Score(ctx, cand, vres.Status, record, p.cfg.Profile)
	p.track(p.cfg.Anthropic.HaikuModel, usage)

	prospect := p.buildProspect(cand, vres.Status, record, &relevance, enrichedAt)
	_, linked, err := p.deps.Linker.Commit(ctx, campaignID, prospect)
	if err != nil {
		clog.Warn("pipeline: persist failed", zap.Error(err))
		tally.add(func(c *counters) { c.discarded++ })
		return
	}
	if linked {
		tally.add(func(c *counters) { c.linked++ })
	} else {
		tally.add(func(c *counters) { c.skipped++ })
	}
	clog.Info("pipeline: candidate processed",
		zap.String("outcome", string(decision.Outcome)),
		zap.Int("relevance", relevance.Score),
		zap.Bool("linked", linked),
	)
}

// enrich crawls, selects, extracts, and aggregates intelligence for one
// verified site. Returns ok=false when no usable record came out.
func (p *Pipeline) enrich(ctx context.Context, rootURL, category string, clog *zap.Logger) (*model.ExtractionRecord, bool) {
	sitemap, err := p.deps.Crawl.Discover(ctx, rootURL)
	if err != nil {
		clog.Warn("pipeline: page discovery failed", zap.Error(err))
		return nil, false
	}

	sel, err := p.deps.Select.Select(ctx, sitemap, category)
	if err != nil {
		clog.Warn("pipeline: page selection failed", zap.Error(err))
		return nil, false
	}
	p.track(p.cfg.Anthropic.HaikuModel, anthropic.TokenUsage{
		InputTokens:  sel.Cost.InputTokens,
		OutputTokens: sel.Cost.OutputTokens,
	})

	extractor, release, err := p.deps.Sessions(ctx)
	if err != nil {
		clog.Warn("pipeline: browser session unavailable", zap.Error(err))
		return nil, false
	}
	defer release()

	record, usage, err := extractor.Extract(ctx, sel)
	p.track(p.cfg.Anthropic.SonnetModel, usage)
	if err != nil {
		clog.Warn("pipeline: extraction failed", zap.Error(err))
		return nil, false
	}

	if p.deps.Intel != nil {
		record.Intel = p.deps.Intel.Aggregate(toIntelBodies(extractor.Visited()))
	}
	return &record, true
}

// shouldDiscard applies the inactivity filters: signals that the business, not
// just its website, has gone quiet.
func (p *Pipeline) shouldDiscard(cand model.Candidate, status model.WebsiteStatus) (string, bool) {
	if status == model.WebsiteStatusParking {
		return "parked_domain", true
	}

	days := cand.DaysSinceLastReview(p.now())
	stale := p.cfg.Pipeline.InactivityDays > 0 && days >= p.cfg.Pipeline.InactivityDays

	if status.Broken() && stale {
		return "broken_site_and_stale_reviews", true
	}
	if status == model.WebsiteStatusNoWebsite && stale && cand.Rating < p.cfg.Pipeline.InactivityMinRating {
		return "no_website_stale_and_low_rating", true
	}
	return "", false
}

func (p *Pipeline) buildProspect(cand model.Candidate, status model.WebsiteStatus, rec *model.ExtractionRecord, rel *model.RelevanceResult, enrichedAt *time.Time) *model.Prospect {
	return &model.Prospect{
		PlaceID:        cand.PlaceID,
		Name:           cand.Name,
		Categories:     cand.Categories,
		Address:        cand.Address,
		Rating:         cand.Rating,
		ReviewCount:    cand.ReviewCount,
		LastReviewAt:   cand.LastReviewAt,
		Website:        cand.Website,
		WebsiteStatus:  status,
		SocialProfiles: cand.SocialProfiles,
		Extraction:     rec,
		Relevance:      rel,
		EnrichedAt:     enrichedAt,
	}
}

func (p *Pipeline) track(model string, usage anthropic.TokenUsage) {
	if p.deps.Tracker != nil {
		p.deps.Tracker.AddUsage(model, usage)
	}
}

// finish stamps the run total and persists it. Bookkeeping failures are
// logged, not returned; the run itself already happened.
func (p *Pipeline) finish(run *model.DiscoveryRun) {
	if p.deps.Tracker != nil {
		run.CostUSD = p.deps.Tracker.TotalUSD()
		p.deps.Tracker.LogSummary()
	}
	// Use a fresh context so a canceled run still gets recorded.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.deps.Store.FinishRun(ctx, run); err != nil {
		zap.L().Error("pipeline: record run failed",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
}

func (c *counters) add(fn func(*counters)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

func toIntelBodies(visited []extract.VisitedPage) []intel.PageBody {
	bodies := make([]intel.PageBody, 0, len(visited))
	for _, v := range visited {
		bodies = append(bodies, intel.PageBody{Type: v.Type, Text: v.Text})
	}
	return bodies
}
