package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/store"
)

var prospectsCmd = &cobra.Command{
	Use:   "prospects",
	Short: "Inspect stored prospects",
}

var prospectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prospects",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		campaign, _ := cmd.Flags().GetString("campaign")
		relevant, _ := cmd.Flags().GetBool("relevant")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		prospects, err := st.ListProspects(ctx, store.ProspectFilter{
			CampaignID:   campaign,
			RelevantOnly: relevant,
			Limit:        limit,
		})
		if err != nil {
			return eris.Wrap(err, "prospects list")
		}

		if len(prospects) == 0 {
			fmt.Fprintln(os.Stderr, "No prospects found.")
			return nil
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(prospects)
		}

		formatProspectsList(os.Stdout, prospects)
		return nil
	},
}

var prospectsShowCmd = &cobra.Command{
	Use:   "show <place-id>",
	Short: "Show one prospect in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := st.GetProspectByPlaceID(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "prospects show")
		}
		if p == nil {
			return eris.Errorf("no prospect with place id %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

func formatProspectsList(w io.Writer, prospects []model.Prospect) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCITY\tRATING\tWEBSITE\tSCORE\tCONF\tEMAIL")
	for _, p := range prospects {
		score := "-"
		if p.Relevance != nil {
			score = fmt.Sprintf("%d", p.Relevance.Score)
		}
		conf := "-"
		email := ""
		if p.Extraction != nil {
			conf = fmt.Sprintf("%d", p.Extraction.Confidence)
			email = p.Extraction.Email
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%s\t%s\t%s\t%s\n",
			p.Name, p.Address.City, p.Rating, string(p.WebsiteStatus), score, conf, email)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	prospectsListCmd.Flags().String("campaign", "", "filter by campaign ID")
	prospectsListCmd.Flags().Bool("relevant", false, "only prospects that cleared the relevance threshold")
	prospectsListCmd.Flags().Int("limit", 50, "max rows")
	prospectsListCmd.Flags().Bool("json", false, "emit JSON instead of a table")
	prospectsCmd.AddCommand(prospectsListCmd)
	prospectsCmd.AddCommand(prospectsShowCmd)
	rootCmd.AddCommand(prospectsCmd)
}
