package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <url>",
	Short: "Classify a single website URL",
	Long:  "Fetches the URL and reports whether it is active, broken, or a parked domain. Useful for debugging verification decisions.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := verify.New(time.Duration(cfg.Crawl.VerifyTimeoutSecs) * time.Second)
		result := v.Verify(cmd.Context(), args[0])

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
