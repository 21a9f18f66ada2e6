package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/shurcooL/githubv4"
)

// Quota is the primary API quota reported by GitHub.
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// rateLimitQuery reads the caller's quota without consuming it.
type rateLimitQuery struct {
	RateLimit struct {
		Limit     int
		Remaining int
		ResetAt   githubv4.DateTime
	}
}

// Quota fetches the remaining API quota using the GraphQL API.
func (g *GitHubGateway) Quota(ctx context.Context) (Quota, error) {
	var q rateLimitQuery
	if err := g.graphqlClient.Query(ctx, &q, nil); err != nil {
		return Quota{}, fmt.Errorf("failed to execute GraphQL query for rate limit: %w", err)
	}
	return Quota{
		Limit:     q.RateLimit.Limit,
		Remaining: q.RateLimit.Remaining,
		ResetAt:   q.RateLimit.ResetAt.Time,
	}, nil
}
