package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-activity/internal/repository/sqlite"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Writes the members and repositories of the config file to the database",
	Long: `Upserts the directory section of the config file (members and repositories
to track) into the database. Existing entries with the same id are renamed.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := newLogger(cmd)
		cfg := loadConfig(cmd)

		dir := cfg.Directory
		if len(dir.Members) == 0 && len(dir.Repositories) == 0 {
			exitf("Error: the config file has no directory members or repositories to seed.\n")
		}

		err := withDB(cfg, logger, func(db *sqlite.DB) error {
			for _, m := range dir.Members {
				if err := db.UpsertMember(ctx, m); err != nil {
					return fmt.Errorf("failed to seed members: %w", err)
				}
				logger.Debug("member seeded", slog.Int64("id", m.ID), slog.String("login", m.Login))
			}
			for _, r := range dir.Repositories {
				if err := db.UpsertRepository(ctx, r); err != nil {
					return fmt.Errorf("failed to seed repositories: %w", err)
				}
				logger.Debug("repository seeded", slog.Int64("id", r.ID), slog.String("full_name", r.FullName))
			}
			return nil
		})
		if err != nil {
			exitf("Error: %v\n", err)
		}

		fmt.Printf("Seeded %d members and %d repositories into %s\n", len(dir.Members), len(dir.Repositories), cfg.Database.Path)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
