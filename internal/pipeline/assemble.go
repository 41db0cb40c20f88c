package pipeline

import (
	"context"
	"time"

	"github.com/sells-group/prospect-cli/internal/browser"
	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/cost"
	"github.com/sells-group/prospect-cli/internal/crawl"
	"github.com/sells-group/prospect-cli/internal/discovery"
	"github.com/sells-group/prospect-cli/internal/extract"
	"github.com/sells-group/prospect-cli/internal/intel"
	"github.com/sells-group/prospect-cli/internal/linker"
	"github.com/sells-group/prospect-cli/internal/pageselect"
	"github.com/sells-group/prospect-cli/internal/relevance"
	"github.com/sells-group/prospect-cli/internal/store"
	"github.com/sells-group/prospect-cli/internal/verify"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
	"github.com/sells-group/prospect-cli/pkg/places"
)

// Assemble wires the production pipeline: every stage backed by its real
// implementation, one headless browser session per candidate worker.
func Assemble(cfg *config.Config, st store.Store, ai anthropic.Client, pl places.Client) *Pipeline {
	tokenDelay := time.Duration(cfg.Places.PageTokenDelayS) * time.Second
	verifyTimeout := time.Duration(cfg.Crawl.VerifyTimeoutSecs) * time.Second

	sessions := func(ctx context.Context) (Extractor, func(), error) {
		session, err := browser.NewSession(ctx, cfg.Browser)
		if err != nil {
			return nil, nil, err
		}
		ex := extract.New(session, ai, extract.Options{
			Weights:             cfg.Extract.Weights,
			EscalationThreshold: cfg.Extract.EscalationThreshold,
			PageTimeout:         time.Duration(cfg.Extract.PageTimeoutSecs) * time.Second,
			VisionTimeout:       time.Duration(cfg.Extract.VisionTimeoutSecs) * time.Second,
			VisionModel:         cfg.Anthropic.SonnetModel,
		})
		return ex, session.Close, nil
	}

	return New(cfg, Deps{
		Store:    st,
		Discover: discovery.NewAdapter(pl, st, cfg.Places.Language, cfg.Places.MaxPages, tokenDelay),
		Verify:   verify.New(verifyTimeout),
		Crawl:    crawl.NewDiscoverer(cfg.Crawl),
		Select:   pageselect.NewSelector(ai, cfg.Anthropic.HaikuModel, cfg.Select.MaxPages),
		Score:    relevance.NewScorer(ai, cfg.Anthropic.HaikuModel, cfg.Relevance.Weights, cfg.Relevance.Threshold),
		Linker:   linker.New(st, cfg.Dedupe),
		Sessions: sessions,
		Tracker:  cost.NewTracker(cfg.Pricing),
		Intel:    intel.NewAggregator(),
	})
}
