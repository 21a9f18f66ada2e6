// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/github-activity/internal/domain"
)

// Fetcher defines the behavior of a gateway for fetching activity from GitHub.
// Every method fetches a single page and has already been retried.
type Fetcher interface {
	ListCommits(ctx context.Context, fullName string, r domain.DateRange, page int) ([]Commit, error)
	GetCommitStats(ctx context.Context, fullName, sha string) (CommitStats, error)
	// ListPullRequests lists all pull requests sorted by creation date, newest first.
	ListPullRequests(ctx context.Context, fullName string, page int) ([]PullRequest, error)
	ListReviews(ctx context.Context, fullName string, number, page int) ([]Review, error)
	SearchIssues(ctx context.Context, query string, page int) ([]SearchHit, error)
}

// Options configures NewGitHubGateway.
type Options struct {
	// MaxRetries is the number of attempts per call. Defaults to DefaultMaxRetries.
	MaxRetries int
	// BaseURL and GraphQLURL point the clients at a GitHub Enterprise instance.
	// An empty GraphQLURL is derived from BaseURL.
	BaseURL    string
	GraphQLURL string
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	retrier       *Retrier
	logger        *slog.Logger
}

var _ Fetcher = (*GitHubGateway)(nil)

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *slog.Logger, opts Options) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}

	restClient := github.NewClient(httpClient)
	graphqlClient := githubv4.NewClient(httpClient)
	if opts.BaseURL != "" {
		restClient, err = restClient.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to set enterprise URL: %w", err)
		}
	}
	graphQLURL := opts.GraphQLURL
	if graphQLURL == "" && opts.BaseURL != "" {
		graphQLURL = enterpriseGraphQLURL(opts.BaseURL)
	}
	if graphQLURL != "" {
		graphqlClient = githubv4.NewEnterpriseClient(graphQLURL, httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		retrier:       NewRetrier(opts.MaxRetries, logger),
		logger:        logger,
	}, nil
}

// enterpriseGraphQLURL maps a GitHub Enterprise REST base URL, with or without
// the /api/v3 suffix, to the GraphQL endpoint of the same host.
func enterpriseGraphQLURL(apiURL string) string {
	base := strings.TrimSuffix(apiURL, "/")
	base = strings.TrimSuffix(base, "/api/v3")
	return base + "/api/graphql"
}

func splitFullName(fullName string) (string, string, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository name %q: want owner/name", fullName)
	}
	return owner, repo, nil
}

func (g *GitHubGateway) ListCommits(ctx context.Context, fullName string, r domain.DateRange, page int) ([]Commit, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	opts := &github.CommitsListOptions{
		Since:       r.Start(),
		Until:       r.End(),
		ListOptions: github.ListOptions{Page: page, PerPage: PageSize},
	}
	var result []*github.RepositoryCommit
	err = g.retrier.Do(ctx, "list commits "+fullName, func(ctx context.Context) error {
		var err error
		result, _, err = g.restClient.Repositories.ListCommits(ctx, owner, repo, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list commits for %s: %w", fullName, err)
	}
	commits := make([]Commit, 0, len(result))
	for _, c := range result {
		commits = append(commits, toCommit(c))
	}
	return commits, nil
}

func (g *GitHubGateway) GetCommitStats(ctx context.Context, fullName, sha string) (CommitStats, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return CommitStats{}, err
	}
	var result *github.RepositoryCommit
	err = g.retrier.Do(ctx, "get commit "+fullName+"@"+sha, func(ctx context.Context) error {
		var err error
		result, _, err = g.restClient.Repositories.GetCommit(ctx, owner, repo, sha, nil)
		return err
	})
	if err != nil {
		return CommitStats{}, fmt.Errorf("failed to get commit %s: %w", sha, err)
	}
	return CommitStats{
		Additions: result.GetStats().GetAdditions(),
		Deletions: result.GetStats().GetDeletions(),
	}, nil
}

func (g *GitHubGateway) ListPullRequests(ctx context.Context, fullName string, page int) ([]PullRequest, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	opts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{Page: page, PerPage: PageSize},
	}
	var result []*github.PullRequest
	err = g.retrier.Do(ctx, "list pulls "+fullName, func(ctx context.Context) error {
		var err error
		result, _, err = g.restClient.PullRequests.List(ctx, owner, repo, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests for %s: %w", fullName, err)
	}
	pulls := make([]PullRequest, 0, len(result))
	for _, pr := range result {
		pulls = append(pulls, toPullRequest(pr))
	}
	return pulls, nil
}

func (g *GitHubGateway) ListReviews(ctx context.Context, fullName string, number, page int) ([]Review, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	opts := &github.ListOptions{Page: page, PerPage: PageSize}
	var result []*github.PullRequestReview
	err = g.retrier.Do(ctx, fmt.Sprintf("list reviews %s#%d", fullName, number), func(ctx context.Context) error {
		var err error
		result, _, err = g.restClient.PullRequests.ListReviews(ctx, owner, repo, number, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for %s#%d: %w", fullName, number, err)
	}
	reviews := make([]Review, 0, len(result))
	for _, rv := range result {
		reviews = append(reviews, toReview(rv))
	}
	return reviews, nil
}

func (g *GitHubGateway) SearchIssues(ctx context.Context, query string, page int) ([]SearchHit, error) {
	opts := &github.SearchOptions{ListOptions: github.ListOptions{Page: page, PerPage: PageSize}}
	var result *github.IssuesSearchResult
	err := g.retrier.Do(ctx, "search issues", func(ctx context.Context) error {
		var err error
		result, _, err = g.restClient.Search.Issues(ctx, query, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search issues with REST API: %w", err)
	}
	hits := make([]SearchHit, 0, len(result.Issues))
	for _, is := range result.Issues {
		hits = append(hits, toSearchHit(is))
	}
	return hits, nil
}
