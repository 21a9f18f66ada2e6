package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-activity/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultTokenEnv, cfg.GitHub.TokenEnv)
	assert.Equal(t, 3, cfg.GitHub.MaxRetries)
	assert.Equal(t, DefaultDBPath, cfg.Database.Path)
	assert.Equal(t, SyncConfig{Concurrency: 1, CommitStatsConcurrency: 5, TopRepos: 5}, cfg.Sync)
	assert.Equal(t, domain.DefaultScoreWeights(), cfg.Scoring)
	assert.Empty(t, cfg.Directory.Members)
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `github:
  token_env: GHE_TOKEN
  api_url: https://ghe.example.com/api/v3/
  graphql_url: https://ghe.example.com/api/graphql
  max_retries: 5
database:
  path: /var/lib/activity.db
sync:
  concurrency: 4
  fetch_commit_stats: true
  commit_stats_concurrency: 8
  top_repos: 3
scoring:
  commit: 2
  additions_divisor: 0
directory:
  members:
    - id: 1
      login: alice
    - id: 2
      login: bob
  repositories:
    - id: 10
      full_name: org/api
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, GitHubConfig{
		TokenEnv:   "GHE_TOKEN",
		APIURL:     "https://ghe.example.com/api/v3/",
		GraphQLURL: "https://ghe.example.com/api/graphql",
		MaxRetries: 5,
	}, cfg.GitHub)
	assert.Equal(t, "/var/lib/activity.db", cfg.Database.Path)
	assert.Equal(t, SyncConfig{Concurrency: 4, FetchCommitStats: true, CommitStatsConcurrency: 8, TopRepos: 3}, cfg.Sync)

	// unset weights keep their defaults
	want := domain.DefaultScoreWeights()
	want.Commit = 2
	want.AdditionsDivisor = 0
	assert.Equal(t, want, cfg.Scoring)

	assert.Equal(t, []domain.Member{{ID: 1, Login: "alice"}, {ID: 2, Login: "bob"}}, cfg.Directory.Members)
	assert.Equal(t, []domain.Repository{{ID: 10, FullName: "org/api"}}, cfg.Directory.Repositories)

	opts := cfg.Sync.Options()
	assert.Equal(t, 4, opts.Concurrency)
	assert.True(t, opts.FetchCommitStats)
	assert.Equal(t, 8, opts.CommitStatsConcurrency)
	assert.Equal(t, 3, opts.TopN)
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "zero retries",
			content: "github:\n  max_retries: 0\n",
			errMsg:  "github.max_retries",
		},
		{
			name:    "graphql without api url",
			content: "github:\n  graphql_url: https://ghe.example.com/api/graphql\n",
			errMsg:  "github.graphql_url requires github.api_url",
		},
		{
			name:    "empty database path",
			content: "database:\n  path: \"\"\n",
			errMsg:  "database.path",
		},
		{
			name:    "zero concurrency",
			content: "sync:\n  concurrency: 0\n",
			errMsg:  "sync.concurrency",
		},
		{
			name:    "negative weight",
			content: "scoring:\n  issue: -1\n",
			errMsg:  "scoring.issue must not be negative",
		},
		{
			name:    "first negative weight is reported",
			content: "scoring:\n  additions_cap: -1\n  issue: -1\n  commit: -2\n",
			errMsg:  "scoring.commit must not be negative",
		},
		{
			name:    "duplicate login ignoring case",
			content: "directory:\n  members:\n    - {id: 1, login: alice}\n    - {id: 2, login: Alice}\n",
			errMsg:  "duplicate login",
		},
		{
			name:    "repository without owner",
			content: "directory:\n  repositories:\n    - {id: 1, full_name: api}\n",
			errMsg:  "is not owner/name",
		},
		{
			name:    "malformed yaml",
			content: "sync: [",
			errMsg:  "parse yaml",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGitHubConfig_Token(t *testing.T) {
	t.Setenv("ACTIVITY_TEST_TOKEN", "secret")
	assert.Equal(t, "secret", GitHubConfig{TokenEnv: "ACTIVITY_TEST_TOKEN"}.Token())
	assert.Empty(t, GitHubConfig{}.Token())
}
