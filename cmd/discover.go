package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/pipeline"
)

var (
	discoverCampaign string
	discoverQuery    string
	discoverLimit    int
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run a discovery run for a campaign",
	Long:  "Searches the places source for the query, enriches each candidate, scores relevance, and links prospects to the campaign. Ctrl-C stops new candidates and records a canceled run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Pipeline.Run(ctx, pipeline.RunOptions{
			CampaignID: discoverCampaign,
			Query:      discoverQuery,
			Limit:      discoverLimit,
		})
		if err != nil {
			return eris.Wrap(err, "discovery run")
		}

		zap.L().Info("discovery run complete",
			zap.String("run_id", run.ID),
			zap.Int("discovered", run.Discovered),
			zap.Int("linked", run.Linked),
			zap.Float64("cost_usd", run.CostUSD),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverCampaign, "campaign", "", "campaign ID to link prospects to (required)")
	discoverCmd.Flags().StringVar(&discoverQuery, "query", "", "places text search query (required)")
	discoverCmd.Flags().IntVar(&discoverLimit, "limit", 20, "max candidates to process")
	_ = discoverCmd.MarkFlagRequired("campaign")
	_ = discoverCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(discoverCmd)
}
