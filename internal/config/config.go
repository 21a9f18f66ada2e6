// Package config loads the tool's YAML configuration.
//
// Sections:
//   - github    token env var, optional enterprise endpoints, retry budget
//   - database  sqlite file path
//   - sync      worker pool widths and the number of top repositories per member
//   - scoring   per-metric score weights
//   - directory members and repositories written by the seed command
//
// Load(path) applies defaults before unmarshalling, then validates.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/gateway"
	"github.com/naka-gawa/github-activity/internal/usecase"
)

// Default values for the configuration.
const (
	DefaultTokenEnv = "GITHUB_TOKEN"
	DefaultDBPath   = "github-activity.db"
)

// Config is the whole configuration file.
type Config struct {
	GitHub    GitHubConfig        `yaml:"github"`
	Database  DatabaseConfig      `yaml:"database"`
	Sync      SyncConfig          `yaml:"sync"`
	Scoring   domain.ScoreWeights `yaml:"scoring"`
	Directory DirectoryConfig     `yaml:"directory"`
}

// GitHubConfig configures the upstream API client.
type GitHubConfig struct {
	// TokenEnv is the name of the environment variable holding the API token.
	TokenEnv string `yaml:"token_env"`

	// APIURL and GraphQLURL point the clients at a GitHub Enterprise host.
	// Both are empty for github.com.
	APIURL     string `yaml:"api_url"`
	GraphQLURL string `yaml:"graphql_url"`

	// MaxRetries is the total number of attempts per request.
	MaxRetries int `yaml:"max_retries"`
}

// Token returns the API token resolved from the environment.
func (g GitHubConfig) Token() string {
	if g.TokenEnv == "" {
		return ""
	}
	return os.Getenv(g.TokenEnv)
}

// DatabaseConfig locates the sqlite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SyncConfig tunes sync runs. Command-line flags override these values.
type SyncConfig struct {
	Concurrency            int  `yaml:"concurrency"`
	FetchCommitStats       bool `yaml:"fetch_commit_stats"`
	CommitStatsConcurrency int  `yaml:"commit_stats_concurrency"`
	TopRepos               int  `yaml:"top_repos"`
}

// Options converts the section into syncer options.
func (s SyncConfig) Options() usecase.Options {
	return usecase.Options{
		Concurrency:            s.Concurrency,
		FetchCommitStats:       s.FetchCommitStats,
		CommitStatsConcurrency: s.CommitStatsConcurrency,
		TopN:                   s.TopRepos,
	}
}

// DirectoryConfig lists the members and repositories to track.
type DirectoryConfig struct {
	Members      []domain.Member     `yaml:"members"`
	Repositories []domain.Repository `yaml:"repositories"`
}

// Load reads and parses the config file at path. An empty path yields the
// defaults. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		GitHub: GitHubConfig{
			TokenEnv:   DefaultTokenEnv,
			MaxRetries: gateway.DefaultMaxRetries,
		},
		Database: DatabaseConfig{Path: DefaultDBPath},
		Sync: SyncConfig{
			Concurrency:            usecase.DefaultConcurrency,
			CommitStatsConcurrency: usecase.DefaultCommitStatsConcurrency,
			TopRepos:               usecase.DefaultTopN,
		},
		Scoring: domain.DefaultScoreWeights(),
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.GitHub.MaxRetries < 1 {
		return fmt.Errorf("github.max_retries must be at least 1, got %d", cfg.GitHub.MaxRetries)
	}
	if cfg.GitHub.GraphQLURL != "" && cfg.GitHub.APIURL == "" {
		return fmt.Errorf("github.graphql_url requires github.api_url")
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if cfg.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1, got %d", cfg.Sync.Concurrency)
	}
	if cfg.Sync.CommitStatsConcurrency < 1 {
		return fmt.Errorf("sync.commit_stats_concurrency must be at least 1, got %d", cfg.Sync.CommitStatsConcurrency)
	}
	if cfg.Sync.TopRepos < 1 {
		return fmt.Errorf("sync.top_repos must be at least 1, got %d", cfg.Sync.TopRepos)
	}
	if err := validateScoring(cfg.Scoring); err != nil {
		return err
	}
	return validateDirectory(cfg.Directory)
}

func validateScoring(w domain.ScoreWeights) error {
	weights := []struct {
		name  string
		value float64
	}{
		{"commit", w.Commit},
		{"pull_request", w.PullRequest},
		{"pr_merged", w.PRMerged},
		{"review_approved", w.ReviewApproved},
		{"review_changes_requested", w.ReviewChangesRequested},
		{"review_commented", w.ReviewCommented},
		{"issue", w.Issue},
		{"additions_divisor", w.AdditionsDivisor},
		{"additions_cap", w.AdditionsCap},
	}
	for _, wt := range weights {
		if wt.value < 0 {
			return fmt.Errorf("scoring.%s must not be negative", wt.name)
		}
	}
	return nil
}

func validateDirectory(d DirectoryConfig) error {
	ids := make(map[int64]struct{})
	logins := make(map[string]struct{})
	for i, m := range d.Members {
		if m.ID <= 0 {
			return fmt.Errorf("directory.members[%d]: id must be positive", i)
		}
		if m.Login == "" {
			return fmt.Errorf("directory.members[%d]: login must not be empty", i)
		}
		if _, dup := ids[m.ID]; dup {
			return fmt.Errorf("directory.members[%d]: duplicate id %d", i, m.ID)
		}
		login := strings.ToLower(m.Login)
		if _, dup := logins[login]; dup {
			return fmt.Errorf("directory.members[%d]: duplicate login %q", i, m.Login)
		}
		ids[m.ID] = struct{}{}
		logins[login] = struct{}{}
	}

	ids = make(map[int64]struct{})
	for i, r := range d.Repositories {
		if r.ID <= 0 {
			return fmt.Errorf("directory.repositories[%d]: id must be positive", i)
		}
		owner, name, ok := strings.Cut(r.FullName, "/")
		if !ok || owner == "" || name == "" {
			return fmt.Errorf("directory.repositories[%d]: full_name %q is not owner/name", i, r.FullName)
		}
		if _, dup := ids[r.ID]; dup {
			return fmt.Errorf("directory.repositories[%d]: duplicate id %d", i, r.ID)
		}
		ids[r.ID] = struct{}{}
	}
	return nil
}
