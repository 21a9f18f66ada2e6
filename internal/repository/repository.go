// Package repository declares the storage contracts used by the sync core.
package repository

import (
	"context"

	"github.com/naka-gawa/github-activity/internal/domain"
)

// DirectoryRepository reads (and for seeding, writes) the member and repository directories.
type DirectoryRepository interface {
	ListMembers(ctx context.Context) ([]domain.Member, error)
	ListRepositories(ctx context.Context) ([]domain.Repository, error)
	UpsertMember(ctx context.Context, member domain.Member) error
	UpsertRepository(ctx context.Context, repo domain.Repository) error
}

// MemberRollup is one member's summed activity over a date range.
// TopRepos and Score are left for the caller to fill.
type MemberRollup struct {
	MemberID int64
	Row      domain.MemberBreakdownRow
}

// MemberRepoRollup is one member's summed activity in one repository.
type MemberRepoRollup struct {
	MemberID int64
	Repo     domain.TopRepo
}

// ActivityRepository persists activity buckets and reads range rollups.
type ActivityRepository interface {
	// UpsertBuckets writes every bucket, replacing the counters of rows that
	// already exist for the same key.
	UpsertBuckets(ctx context.Context, buckets []domain.Bucket) error
	ListBuckets(ctx context.Context, r domain.DateRange) ([]domain.Bucket, error)
	MemberRollups(ctx context.Context, r domain.DateRange) ([]MemberRollup, error)
	// MemberRepoRollups returns rows ordered by member, total descending, then repository name.
	MemberRepoRollups(ctx context.Context, r domain.DateRange) ([]MemberRepoRollup, error)
}
