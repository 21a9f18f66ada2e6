package usecase

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-activity/internal/domain"
)

func sampleReport() *domain.SyncReport {
	started := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	return &domain.SyncReport{
		RunID:      "cq0abc",
		Range:      domain.DateRange{Since: "2024-05-01", Until: "2024-05-31"},
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		DurationMs: 1500,
		PerRepo: []*domain.RepoReport{
			{
				FullName: "org/api", Commits: 4, PRsOpened: 2, PRsMerged: 1,
				ReviewsTotal: 3, ReviewsApproved: 1, ReviewsChanges: 1, ReviewsCommented: 1,
				Issues: 1, Additions: 120, Deletions: 7,
				Errors: []string{"commit-stats:abc:boom", "reviews-pr3:timeout"},
			},
			{FullName: "org/old", Skipped: "404 Not Found; 404 (pulls)", Errors: []string{}},
		},
		PerMember: []domain.MemberBreakdownRow{
			{
				Login: "alice", Commits: 4, PRsOpened: 2, PRsMerged: 1, ReviewsTotal: 3, ReviewsApproved: 1,
				Issues: 1, Additions: 120, ActiveDays: 5, ReposTouched: 1,
				TopRepos: []domain.TopRepo{{Repo: "org/api", Total: 11, Commits: 4, PRsOpened: 2, PRsMerged: 1, Reviews: 3, Issues: 1}},
				Score:    21.5,
			},
		},
		Totals: domain.Totals{Commits: 4, PRsOpened: 2, PRsMerged: 1, ReviewsTotal: 3, Issues: 1, Additions: 120, Deletions: 7, ProcessedRepos: 1, SkippedRepos: 1},
	}
}

func TestWriteText(t *testing.T) {
	header := `===== Sync Report =====
Run: cq0abc
Range: 2024-05-01 .. 2024-05-31
Started: 2024-06-01T03:00:00Z
Finished: 2024-06-01T03:00:01Z (duration 1500ms)
Repos processed: 1, skipped: 1
Totals -> commits:4 prsOpened:2 prsMerged:1 reviews:3 issues:1 additions:120 deletions:7
--- Per Repo ---
org/api -> commits:4 prsOpened:2 prsMerged:1 reviews:3 (A:1/C:1/Cm:1) issues:1 additions:120 deletions:7
  errors: commit-stats:abc:boom | reviews-pr3:timeout
org/old -> commits:0 prsOpened:0 prsMerged:0 reviews:0 (A:0/C:0/Cm:0) issues:0 additions:0 deletions:0 SKIPPED: 404 Not Found; 404 (pulls)
`
	members := `--- Per Member ---
alice -> commits:4 prsOpened:2 prsMerged:1 reviews:3 (A:1/C:0/Cm:0) issues:1 additions:120 deletions:0 activeDays:5 reposTouched:1 score:21.5
   • org/api -> total:11 commits:4 prsOpened:2 prsMerged:1 reviews:3 issues:1
`

	testCases := []struct {
		name        string
		withMembers bool
		want        string
	}{
		{name: "with members", withMembers: true, want: header + members},
		{name: "repositories only", withMembers: false, want: header},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteText(&buf, sampleReport(), tc.withMembers))
			assert.Equal(t, tc.want, buf.String())
		})
	}
}

func TestWriteMembers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMembers(&buf, []domain.MemberBreakdownRow{{Login: "bob", Score: 4}}))
	assert.Equal(t, "bob -> commits:0 prsOpened:0 prsMerged:0 reviews:0 (A:0/C:0/Cm:0) issues:0 additions:0 deletions:0 activeDays:0 reposTouched:0 score:4\n", buf.String())
}
