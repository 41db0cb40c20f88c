package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/browser"
	"github.com/sells-group/prospect-cli/internal/crawl"
	"github.com/sells-group/prospect-cli/internal/extract"
	"github.com/sells-group/prospect-cli/internal/intel"
	"github.com/sells-group/prospect-cli/internal/pageselect"
	anthropicpkg "github.com/sells-group/prospect-cli/pkg/anthropic"
)

var (
	enrichURL      string
	enrichCategory string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a single website without persisting",
	Long:  "Runs page discovery, selection, extraction, and intelligence aggregation against one site and prints the record. No database writes; useful for tuning extraction.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ai := anthropicpkg.NewClient(cfg.Anthropic.Key)

		sitemap, err := crawl.NewDiscoverer(cfg.Crawl).Discover(ctx, enrichURL)
		if err != nil {
			return eris.Wrap(err, "page discovery")
		}
		zap.L().Info("pages discovered", zap.Int("count", len(sitemap.Pages)))

		sel, err := pageselect.NewSelector(ai, cfg.Anthropic.HaikuModel, cfg.Select.MaxPages).Select(ctx, sitemap, enrichCategory)
		if err != nil {
			return eris.Wrap(err, "page selection")
		}
		zap.L().Info("pages selected",
			zap.Int("count", len(sel.Pages)),
			zap.String("path", string(sel.Path)),
		)

		session, err := browser.NewSession(ctx, cfg.Browser)
		if err != nil {
			return eris.Wrap(err, "browser session")
		}
		defer session.Close()

		extractor := extract.New(session, ai, extract.Options{
			Weights:             cfg.Extract.Weights,
			EscalationThreshold: cfg.Extract.EscalationThreshold,
			PageTimeout:         time.Duration(cfg.Extract.PageTimeoutSecs) * time.Second,
			VisionTimeout:       time.Duration(cfg.Extract.VisionTimeoutSecs) * time.Second,
			VisionModel:         cfg.Anthropic.SonnetModel,
		})
		record, usage, err := extractor.Extract(ctx, sel)
		if err != nil {
			return eris.Wrap(err, "extraction")
		}
		usage.LogCost(cfg.Anthropic.SonnetModel, "enrich")

		visited := extractor.Visited()
		bodies := make([]intel.PageBody, 0, len(visited))
		for _, v := range visited {
			bodies = append(bodies, intel.PageBody{Type: v.Type, Text: v.Text})
		}
		record.Intel = intel.NewAggregator().Aggregate(bodies)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichURL, "url", "", "website URL to enrich (required)")
	enrichCmd.Flags().StringVar(&enrichCategory, "category", "", "business category used to prioritize pages")
	_ = enrichCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(enrichCmd)
}
