package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/gateway"
	"github.com/naka-gawa/github-activity/internal/repository/sqlite"
	"github.com/naka-gawa/github-activity/internal/usecase"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Collects activity for a date range and stores it",
	Long: `Collects commits, pull requests, reviews, merged pull requests and issues
of every known member in every known repository (or only the --repo ones) for
the given date range, stores them as daily buckets and prints the run report.
Re-running a range replaces the stored counters for that range.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := newLogger(cmd)
		cfg := loadConfig(cmd)

		since, _ := cmd.Flags().GetString("since")
		until, _ := cmd.Flags().GetString("until")
		repos, _ := cmd.Flags().GetStringSlice("repo")
		format, _ := cmd.Flags().GetString("format")
		printMembers, _ := cmd.Flags().GetBool("print-members")
		checkFormat(format)

		r, err := domain.NewDateRange(since, until)
		if err != nil {
			exitf("Invalid date range. Please use YYYY-MM-DD. Error: %v\n", err)
		}

		token := cfg.GitHub.Token()
		if token == "" {
			exitf("Error: %s environment variable is not set.\n", cfg.GitHub.TokenEnv)
		}

		opts := cfg.Sync.Options()
		if cmd.Flags().Changed("concurrency") {
			opts.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		}
		if cmd.Flags().Changed("commit-stats") {
			opts.FetchCommitStats, _ = cmd.Flags().GetBool("commit-stats")
		}
		if cmd.Flags().Changed("commit-stats-concurrency") {
			opts.CommitStatsConcurrency, _ = cmd.Flags().GetInt("commit-stats-concurrency")
		}
		if cmd.Flags().Changed("top") {
			opts.TopN, _ = cmd.Flags().GetInt("top")
		}

		// Inject dependencies and run the main business logic.
		githubGateway, err := gateway.NewGitHubGateway(token, logger, gateway.Options{
			MaxRetries: cfg.GitHub.MaxRetries,
			BaseURL:    cfg.GitHub.APIURL,
			GraphQLURL: cfg.GitHub.GraphQLURL,
		})
		if err != nil {
			exitf("Failed to create GitHub gateway: %v\n", err)
		}

		if quota, err := githubGateway.Quota(ctx); err != nil {
			logger.Warn("could not read API quota", slog.String("error", err.Error()))
		} else {
			logger.Info("API quota",
				slog.Int("remaining", quota.Remaining),
				slog.Int("limit", quota.Limit),
				slog.Time("reset_at", quota.ResetAt),
			)
		}

		var report *domain.SyncReport
		err = withDB(cfg, logger, func(db *sqlite.DB) error {
			var err error
			report, err = usecase.NewSyncer(githubGateway, db, db, cfg.Scoring, logger).SyncRange(ctx, r, repos, opts)
			return err
		})
		if err != nil {
			exitf("Failed to sync activity: %v\n", err)
		}

		if format == "text" {
			if err := usecase.WriteText(os.Stdout, report, printMembers); err != nil {
				exitf("Failed to write report: %v\n", err)
			}
			return
		}
		printJSON(report)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().String("since", "", "First day of the range (YYYY-MM-DD, required)")
	syncCmd.Flags().String("until", "", "Last day of the range (YYYY-MM-DD, defaults to --since)")
	syncCmd.MarkFlagRequired("since")
	syncCmd.Flags().StringSlice("repo", nil, "Only sync these repositories (owner/name, repeatable)")
	syncCmd.Flags().Int("concurrency", usecase.DefaultConcurrency, "Number of repositories synced at once")
	syncCmd.Flags().Bool("commit-stats", false, "Fetch additions/deletions for every commit")
	syncCmd.Flags().Int("commit-stats-concurrency", usecase.DefaultCommitStatsConcurrency, "Parallel commit stats requests per repository")
	syncCmd.Flags().Int("top", usecase.DefaultTopN, "Number of top repositories per member")
	syncCmd.Flags().StringP("format", "f", "json", "Output format: json or text")
	syncCmd.Flags().Bool("print-members", true, "Include per-member rows in text output")
}
