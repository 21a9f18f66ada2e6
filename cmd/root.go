// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-activity/internal/config"
	"github.com/naka-gawa/github-activity/internal/repository/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "github-activity",
	Short: "A CLI tool to collect daily GitHub activity of a team.",
	Long: `github-activity collects commits, pull requests, reviews, merged pull requests
and issues of known members across known repositories, stores them as daily
buckets in a local database and reports per-member breakdowns with a score.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env file is fine; the token may come from the real environment.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("db", "", "Path to the sqlite database (overrides database.path)")
}

// newLogger discards everything unless --verbose is set, in which case it
// writes debug logs to standard error.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// loadConfig reads --config and exits the process when it is invalid.
func loadConfig(cmd *cobra.Command) *config.Config {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		exitf("Failed to load config: %v\n", err)
	}
	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return cfg
}

func openDB(cfg *config.Config, logger *slog.Logger) *sqlite.DB {
	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		exitf("Failed to open database: %v\n", err)
	}
	logger.Debug("database opened", slog.String("path", cfg.Database.Path))
	return db
}

// withDB opens the database, runs fn and closes the database before
// returning fn's error, so callers can exit on it safely.
func withDB(cfg *config.Config, logger *slog.Logger, fn func(db *sqlite.DB) error) error {
	db := openDB(cfg, logger)
	defer db.Close()
	return fn(db)
}

// printJSON writes v to standard output as pretty-printed JSON.
func printJSON(v any) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitf("Failed to marshal results to JSON: %v\n", err)
	}
	fmt.Println(string(jsonData))
}

func checkFormat(format string) {
	if format != "json" && format != "text" {
		exitf("Invalid --format %q. Please use json or text.\n", format)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
