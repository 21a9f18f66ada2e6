package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/repository"
)

// DefaultTopN is how many repositories are attached to each member row.
const DefaultTopN = 5

// Breakdown answers per-member questions over stored buckets.
type Breakdown struct {
	activities repository.ActivityRepository
	weights    domain.ScoreWeights
}

// NewBreakdown creates a Breakdown scoring rows with weights.
func NewBreakdown(activities repository.ActivityRepository, weights domain.ScoreWeights) *Breakdown {
	return &Breakdown{activities: activities, weights: weights}
}

// PerMember returns one row per member with any activity in r, ordered by
// login. Each row carries its topN repositories and its score.
// Members without activity in r are not listed.
func (b *Breakdown) PerMember(ctx context.Context, r domain.DateRange, topN int) ([]domain.MemberBreakdownRow, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	rollups, err := b.activities.MemberRollups(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to load member rollups: %w", err)
	}
	repoRollups, err := b.activities.MemberRepoRollups(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to load member repository rollups: %w", err)
	}

	// repoRollups arrive ranked within each member.
	top := make(map[int64][]domain.TopRepo)
	for _, rr := range repoRollups {
		if len(top[rr.MemberID]) < topN {
			top[rr.MemberID] = append(top[rr.MemberID], rr.Repo)
		}
	}

	rows := make([]domain.MemberBreakdownRow, 0, len(rollups))
	for _, mr := range rollups {
		row := mr.Row
		row.TopRepos = top[mr.MemberID]
		if row.TopRepos == nil {
			row.TopRepos = []domain.TopRepo{}
		}
		row.Score = b.weights.Score(row)
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return strings.ToLower(rows[i].Login) < strings.ToLower(rows[j].Login)
	})
	return rows, nil
}
