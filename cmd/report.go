package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/repository/sqlite"
	"github.com/naka-gawa/github-activity/internal/usecase"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Prints per-member breakdowns from stored activity",
	Long:  `Reads stored activity for the given date range without calling GitHub and prints one row per member with their top repositories and score.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := newLogger(cmd)
		cfg := loadConfig(cmd)

		since, _ := cmd.Flags().GetString("since")
		until, _ := cmd.Flags().GetString("until")
		format, _ := cmd.Flags().GetString("format")
		checkFormat(format)

		topN := cfg.Sync.TopRepos
		if cmd.Flags().Changed("top") {
			topN, _ = cmd.Flags().GetInt("top")
		}

		r, err := domain.NewDateRange(since, until)
		if err != nil {
			exitf("Invalid date range. Please use YYYY-MM-DD. Error: %v\n", err)
		}

		var rows []domain.MemberBreakdownRow
		err = withDB(cfg, logger, func(db *sqlite.DB) error {
			var err error
			rows, err = usecase.NewBreakdown(db, cfg.Scoring).PerMember(ctx, r, topN)
			return err
		})
		if err != nil {
			exitf("Failed to build report: %v\n", err)
		}

		if format == "text" {
			if err := usecase.WriteMembers(os.Stdout, rows); err != nil {
				exitf("Failed to write report: %v\n", err)
			}
			return
		}
		printJSON(struct {
			Range     domain.DateRange            `json:"range"`
			PerMember []domain.MemberBreakdownRow `json:"per_member"`
		}{Range: r, PerMember: rows})
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("since", "", "First day of the range (YYYY-MM-DD, required)")
	reportCmd.Flags().String("until", "", "Last day of the range (YYYY-MM-DD, defaults to --since)")
	reportCmd.MarkFlagRequired("since")
	reportCmd.Flags().Int("top", usecase.DefaultTopN, "Number of top repositories per member")
	reportCmd.Flags().StringP("format", "f", "json", "Output format: json or text")
}
