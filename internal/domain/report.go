package domain

import "time"

// RepoReport holds the outcome of syncing a single repository.
type RepoReport struct {
	FullName         string   `json:"full_name"`
	RepositoryID     int64    `json:"repository_id"`
	Commits          int      `json:"commits"`
	PRsOpened        int      `json:"prs_opened"`
	PRsMerged        int      `json:"prs_merged"`
	ReviewsTotal     int      `json:"reviews_total"`
	ReviewsApproved  int      `json:"reviews_approved"`
	ReviewsChanges   int      `json:"reviews_changes_requested"`
	ReviewsCommented int      `json:"reviews_commented"`
	Issues           int      `json:"issues"`
	Additions        int64    `json:"additions"`
	Deletions        int64    `json:"deletions"`
	Skipped          string   `json:"skipped,omitempty"`
	Errors           []string `json:"errors"`
}

// NewRepoReport returns a zero-valued report for repo.
func NewRepoReport(repo Repository) *RepoReport {
	return &RepoReport{
		FullName:     repo.FullName,
		RepositoryID: repo.ID,
		Errors:       []string{},
	}
}

// Skip records a skip reason, appending to any reason already present.
func (r *RepoReport) Skip(reason string) {
	if r.Skipped != "" {
		r.Skipped += "; " + reason
		return
	}
	r.Skipped = reason
}

// TopRepo is one entry of a member's most active repositories.
type TopRepo struct {
	Repo      string `json:"repo"`
	Total     int64  `json:"total"`
	Commits   int64  `json:"commits"`
	PRsOpened int64  `json:"prs_opened"`
	PRsMerged int64  `json:"prs_merged"`
	Reviews   int64  `json:"reviews"`
	Issues    int64  `json:"issues"`
}

// MemberBreakdownRow is the per-member rollup over a date range.
type MemberBreakdownRow struct {
	Login            string    `json:"login"`
	Commits          int64     `json:"commits"`
	PRsOpened        int64     `json:"prs_opened"`
	PRsMerged        int64     `json:"prs_merged"`
	Issues           int64     `json:"issues"`
	ReviewsTotal     int64     `json:"reviews_total"`
	ReviewsApproved  int64     `json:"reviews_approved"`
	ReviewsChanges   int64     `json:"reviews_changes_requested"`
	ReviewsCommented int64     `json:"reviews_commented"`
	Additions        int64     `json:"additions"`
	Deletions        int64     `json:"deletions"`
	ActiveDays       int       `json:"active_days"`
	ReposTouched     int       `json:"repos_touched"`
	TopRepos         []TopRepo `json:"top_repos"`
	Score            float64   `json:"score"`
}

// Totals sums the per-repository reports of a run.
type Totals struct {
	Commits        int   `json:"commits"`
	PRsOpened      int   `json:"prs_opened"`
	PRsMerged      int   `json:"prs_merged"`
	ReviewsTotal   int   `json:"reviews_total"`
	Issues         int   `json:"issues"`
	Additions      int64 `json:"additions"`
	Deletions      int64 `json:"deletions"`
	ProcessedRepos int   `json:"processed_repos"`
	SkippedRepos   int   `json:"skipped_repos"`
}

// SyncReport is the structured summary of one sync run.
type SyncReport struct {
	RunID      string               `json:"run_id"`
	Range      DateRange            `json:"range"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	DurationMs int64                `json:"duration_ms"`
	PerRepo    []*RepoReport        `json:"per_repo"`
	PerMember  []MemberBreakdownRow `json:"per_member"`
	Totals     Totals               `json:"totals"`
}
