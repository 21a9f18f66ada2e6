package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-activity/internal/domain"
)

// fixedNow is the clock seen by the retry driver in tests.
var fixedNow = time.Unix(1_700_000_000, 0)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
// Sleeps are recorded instead of performed.
func setupTestGateway(t *testing.T, handler http.Handler, maxRetries int) (*GitHubGateway, *[]time.Duration) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// Setup REST client to point to the mock server.
	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	// Use NewEnterpriseClient to point the GraphQL client to our mock server's URL.
	graphqlClient := githubv4.NewEnterpriseClient(server.URL, server.Client())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var sleeps []time.Duration
	retrier := NewRetrier(maxRetries, logger)
	retrier.Now = func() time.Time { return fixedNow }
	retrier.Sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	gateway := &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		retrier:       retrier,
		logger:        logger,
	}
	return gateway, &sleeps
}

func testRange(t *testing.T) domain.DateRange {
	r, err := domain.NewDateRange("2024-05-01", "2024-05-07")
	require.NoError(t, err)
	return r
}

func TestGitHubGateway_ListCommits(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/org/repo-a/commits", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2024-05-01T00:00:00Z", q.Get("since"))
		assert.Equal(t, "2024-05-07T23:59:59Z", q.Get("until"))
		assert.Equal(t, "100", q.Get("per_page"))
		assert.Equal(t, "2", q.Get("page"))
		fmt.Fprint(w, `[
			{"sha":"a1","author":{"login":"Alice"},"commit":{"author":{"date":"2024-05-02T10:00:00Z"},"committer":{"date":"2024-05-03T10:00:00Z"}}},
			{"sha":"b2","author":null,"commit":{"committer":{"date":"2024-05-04T23:30:00Z"}}}
		]`)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler), 3)

	commits, err := gateway.ListCommits(context.Background(), "org/repo-a", testRange(t), 2)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "a1", commits[0].SHA)
	assert.Equal(t, "Alice", commits[0].AuthorLogin)
	assert.Equal(t, "2024-05-02", domain.DateOf(commits[0].Date()))
	assert.Equal(t, "", commits[1].AuthorLogin)
	assert.Equal(t, "2024-05-04", domain.DateOf(commits[1].Date()))
}

func TestGitHubGateway_InvalidFullName(t *testing.T) {
	gateway, _ := setupTestGateway(t, http.NotFoundHandler(), 3)
	_, err := gateway.ListCommits(context.Background(), "no-slash", testRange(t), 1)
	assert.Error(t, err)
	assert.Zero(t, StatusOf(err))
}

func TestGitHubGateway_RetryBehaviour(t *testing.T) {
	rateLimited := func(w http.ResponseWriter) {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(fixedNow.Add(5*time.Second).Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
	}
	serverError := func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message": "Internal Server Error"}`)
	}
	ok := func(w http.ResponseWriter) {
		fmt.Fprint(w, `[{"number": 1, "user": {"login": "bob"}, "created_at": "2024-05-02T00:00:00Z"}]`)
	}

	testCases := []struct {
		name           string
		maxRetries     int
		responses      []func(w http.ResponseWriter)
		expectedCalls  int32
		expectedSleeps []time.Duration
		expectError    bool
		expectedStatus int
	}{
		{
			name:           "transient error then success backs off once",
			maxRetries:     3,
			responses:      []func(http.ResponseWriter){serverError, ok},
			expectedCalls:  2,
			expectedSleeps: []time.Duration{2 * time.Second},
		},
		{
			name:           "rate limit waits until reset plus one second",
			maxRetries:     3,
			responses:      []func(http.ResponseWriter){rateLimited, ok},
			expectedCalls:  2,
			expectedSleeps: []time.Duration{6 * time.Second},
		},
		{
			name:           "rate limit waits count against the attempt budget",
			maxRetries:     2,
			responses:      []func(http.ResponseWriter){rateLimited, rateLimited, ok},
			expectedCalls:  2,
			expectedSleeps: []time.Duration{6 * time.Second},
			expectError:    true,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "exhausted retries return the last error",
			maxRetries:     3,
			responses:      []func(http.ResponseWriter){serverError, serverError, serverError, ok},
			expectedCalls:  3,
			expectedSleeps: []time.Duration{2 * time.Second, 4 * time.Second},
			expectError:    true,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:       "conflict is not retried",
			maxRetries: 3,
			responses: []func(http.ResponseWriter){func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusConflict)
				fmt.Fprint(w, `{"message": "Git Repository is empty."}`)
			}},
			expectedCalls:  1,
			expectError:    true,
			expectedStatus: http.StatusConflict,
		},
		{
			name:       "not found is not retried",
			maxRetries: 3,
			responses: []func(http.ResponseWriter){func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message": "Not Found"}`)
			}},
			expectedCalls:  1,
			expectError:    true,
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			handler := func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				tc.responses[n-1](w)
			}
			gateway, sleeps := setupTestGateway(t, http.HandlerFunc(handler), tc.maxRetries)

			pulls, err := gateway.ListPullRequests(context.Background(), "org/repo", 1)

			assert.Equal(t, tc.expectedCalls, calls.Load())
			assert.Equal(t, tc.expectedSleeps, *sleeps)
			if tc.expectError {
				require.Error(t, err)
				assert.Equal(t, tc.expectedStatus, StatusOf(err))
			} else {
				require.NoError(t, err)
				require.Len(t, pulls, 1)
				assert.Equal(t, 1, pulls[0].Number)
				assert.Equal(t, "bob", pulls[0].AuthorLogin)
			}
		})
	}
}

func TestGitHubGateway_ListPullRequestsQuery(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/org/repo/pulls", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "all", q.Get("state"))
		assert.Equal(t, "created", q.Get("sort"))
		assert.Equal(t, "desc", q.Get("direction"))
		assert.Equal(t, "100", q.Get("per_page"))
		fmt.Fprint(w, `[]`)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler), 3)
	pulls, err := gateway.ListPullRequests(context.Background(), "org/repo", 1)
	require.NoError(t, err)
	assert.Empty(t, pulls)
}

func TestGitHubGateway_ReviewsAndStats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/org/repo/pulls/7/reviews", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"user":{"login":"carol"},"state":"APPROVED","submitted_at":"2024-05-03T08:00:00Z"}]`)
	})
	mux.HandleFunc("/repos/org/repo/commits/abc", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sha":"abc","stats":{"additions":12,"deletions":3,"total":15}}`)
	})
	gateway, _ := setupTestGateway(t, mux, 3)

	reviews, err := gateway.ListReviews(context.Background(), "org/repo", 7, 1)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, Review{ReviewerLogin: "carol", State: "APPROVED", SubmittedAt: time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)}, reviews[0])

	stats, err := gateway.GetCommitStats(context.Background(), "org/repo", "abc")
	require.NoError(t, err)
	assert.Equal(t, CommitStats{Additions: 12, Deletions: 3}, stats)
}

func TestGitHubGateway_SearchIssues(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/issues", r.URL.Path)
		assert.Equal(t, "repo:org/repo is:pr is:merged merged:2024-05-01..2024-05-07", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"total_count":1,"items":[{"number":3,"user":{"login":"dave"},"created_at":"2024-04-20T00:00:00Z","updated_at":"2024-05-06T00:00:00Z","closed_at":"2024-05-05T12:00:00Z"}]}`)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler), 3)

	hits, err := gateway.SearchIssues(context.Background(), "repo:org/repo is:pr is:merged merged:2024-05-01..2024-05-07", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "dave", hits[0].AuthorLogin)
	assert.Equal(t, "2024-05-05", domain.DateOf(hits[0].MergeDate()))
}

func TestGitHubGateway_Quota(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "rateLimit")
		fmt.Fprint(w, `{"data":{"rateLimit":{"limit":5000,"remaining":4321,"resetAt":"2024-05-01T01:00:00Z"}}}`)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler), 3)

	quota, err := gateway.Quota(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5000, quota.Limit)
	assert.Equal(t, 4321, quota.Remaining)
	assert.Equal(t, time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC), quota.ResetAt.UTC())
}

func TestEnterpriseGraphQLURL(t *testing.T) {
	testCases := []struct {
		apiURL string
		want   string
	}{
		{apiURL: "https://ghe.example.com/api/v3/", want: "https://ghe.example.com/api/graphql"},
		{apiURL: "https://ghe.example.com/api/v3", want: "https://ghe.example.com/api/graphql"},
		{apiURL: "https://ghe.example.com/", want: "https://ghe.example.com/api/graphql"},
	}
	for _, tc := range testCases {
		t.Run(tc.apiURL, func(t *testing.T) {
			assert.Equal(t, tc.want, enterpriseGraphQLURL(tc.apiURL))
		})
	}
}

func TestNewGitHubGateway_QuotaFollowsAPIURL(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "Bearer ghe-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"data":{"rateLimit":{"limit":5000,"remaining":10,"resetAt":"2024-05-01T01:00:00Z"}}}`)
	}))
	t.Cleanup(server.Close)

	gateway, err := NewGitHubGateway("ghe-token", discardLogger(), Options{
		MaxRetries: 1,
		BaseURL:    server.URL + "/api/v3/",
	})
	require.NoError(t, err)

	quota, err := gateway.Quota(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, quota.Remaining)
	assert.Equal(t, []string{"/api/graphql"}, paths)
}
