package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/gateway"
)

// DefaultCommitStatsConcurrency is the width of the commit statistics sub-pool.
const DefaultCommitStatsConcurrency = 5

// RepoScope is everything a collector needs for one repository.
type RepoScope struct {
	Repo    domain.Repository
	Range   domain.DateRange
	Members MemberIndex
	Buckets *BucketAggregator
	Report  *domain.RepoReport
}

func (s *RepoScope) bump(memberID int64, typ domain.ActivityType, date string, additions, deletions int64) {
	s.Buckets.Bump(domain.BucketKey{
		MemberID:     memberID,
		RepositoryID: s.Repo.ID,
		Type:         typ,
		Date:         date,
	}, 1, additions, deletions)
}

// Collector turns upstream listings for one repository into bucket increments.
type Collector struct {
	fetcher gateway.Fetcher
	logger  *slog.Logger
	now     func() time.Time

	fetchCommitStats       bool
	commitStatsConcurrency int
}

// NewCollector creates a Collector. commitStatsConcurrency <= 0 uses the default width.
func NewCollector(fetcher gateway.Fetcher, logger *slog.Logger, fetchCommitStats bool, commitStatsConcurrency int) *Collector {
	if commitStatsConcurrency <= 0 {
		commitStatsConcurrency = DefaultCommitStatsConcurrency
	}
	return &Collector{
		fetcher:                fetcher,
		logger:                 logger,
		now:                    time.Now,
		fetchCommitStats:       fetchCommitStats,
		commitStatsConcurrency: commitStatsConcurrency,
	}
}

// CollectAll runs the four collectors in order: commits, pull requests with
// reviews, merged pull requests, issues. The first error stops the sequence.
func (c *Collector) CollectAll(ctx context.Context, s *RepoScope) error {
	steps := []func(context.Context, *RepoScope) error{
		c.Commits,
		c.PullRequests,
		c.MergedPullRequests,
		c.Issues,
	}
	for _, step := range steps {
		if err := step(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Commits counts commits in the range by author and commit date.
// A 409 or 404 marks the repository skipped instead of failing.
func (c *Collector) Commits(ctx context.Context, s *RepoScope) error {
	commits, err := gateway.Paginate(ctx, func(ctx context.Context, page int) ([]gateway.Commit, error) {
		return c.fetcher.ListCommits(ctx, s.Repo.FullName, s.Range, page)
	})
	if err != nil {
		switch gateway.StatusOf(err) {
		case http.StatusConflict:
			s.Report.Skip("409 Conflict (empty/archived repo)")
			c.logger.Warn("skip commits", slog.String("repo", s.Repo.FullName), slog.Int("status", http.StatusConflict))
			return nil
		case http.StatusNotFound:
			s.Report.Skip("404 Not Found")
			c.logger.Warn("skip commits", slog.String("repo", s.Repo.FullName), slog.Int("status", http.StatusNotFound))
			return nil
		}
		return err
	}

	s.Report.Commits += len(commits)

	var stats []gateway.CommitStats
	if c.fetchCommitStats && len(commits) > 0 {
		stats = c.commitStats(ctx, s, commits)
	}

	now := c.now()
	for i, cm := range commits {
		memberID, ok := s.Members.Lookup(cm.AuthorLogin)
		if !ok {
			continue
		}
		when := cm.Date()
		if when.IsZero() {
			when = now
		}
		var additions, deletions int64
		if stats != nil {
			additions = int64(stats[i].Additions)
			deletions = int64(stats[i].Deletions)
		}
		s.bump(memberID, domain.TypeCommit, domain.DateOf(when), additions, deletions)
	}
	return nil
}

// commitStats fetches per-commit line counts with a bounded pool of workers
// draining a shared index. Failures are recorded on the report, in commit order.
func (c *Collector) commitStats(ctx context.Context, s *RepoScope, commits []gateway.Commit) []gateway.CommitStats {
	stats := make([]gateway.CommitStats, len(commits))
	failures := make([]error, len(commits))

	var cursor atomic.Int64
	var g errgroup.Group
	for w := 0; w < min(c.commitStatsConcurrency, len(commits)); w++ {
		g.Go(func() error {
			for {
				i := int(cursor.Add(1) - 1)
				if i >= len(commits) {
					return nil
				}
				st, err := c.fetcher.GetCommitStats(ctx, s.Repo.FullName, commits[i].SHA)
				if err != nil {
					failures[i] = err
					continue
				}
				stats[i] = st
			}
		})
	}
	_ = g.Wait()

	for i, err := range failures {
		if err != nil {
			c.logger.Warn("failed to fetch commit stats",
				slog.String("repo", s.Repo.FullName),
				slog.String("sha", commits[i].SHA),
				slog.String("error", err.Error()),
			)
			s.Report.Errors = append(s.Report.Errors, fmt.Sprintf("commit-stats:%s:%v", commits[i].SHA, err))
			continue
		}
		s.Report.Additions += int64(stats[i].Additions)
		s.Report.Deletions += int64(stats[i].Deletions)
	}
	return stats
}

// PullRequests walks pull requests newest first. It relies on that order:
// the first pull request created before the range ends the walk.
func (c *Collector) PullRequests(ctx context.Context, s *RepoScope) error {
	for page := 1; ; page++ {
		pulls, err := c.fetcher.ListPullRequests(ctx, s.Repo.FullName, page)
		if err != nil {
			switch gateway.StatusOf(err) {
			case http.StatusConflict:
				s.Report.Skip("409 (pulls)")
				c.logger.Warn("skip pull requests", slog.String("repo", s.Repo.FullName), slog.Int("status", http.StatusConflict))
				return nil
			case http.StatusNotFound:
				s.Report.Skip("404 (pulls)")
				c.logger.Warn("skip pull requests", slog.String("repo", s.Repo.FullName), slog.Int("status", http.StatusNotFound))
				return nil
			}
			return err
		}
		if len(pulls) == 0 {
			return nil
		}

		for _, pr := range pulls {
			if pr.CreatedAt.IsZero() {
				continue
			}
			created := domain.DateOf(pr.CreatedAt)
			if created < s.Range.Since {
				return nil
			}
			if created > s.Range.Until {
				continue
			}

			if memberID, ok := s.Members.Lookup(pr.AuthorLogin); ok {
				s.bump(memberID, domain.TypePullRequest, created, 0, 0)
				s.Report.PRsOpened++
			}

			if err := c.reviews(ctx, s, pr.Number); err != nil {
				c.logger.Warn("failed to fetch reviews",
					slog.String("repo", s.Repo.FullName),
					slog.Int("pr", pr.Number),
					slog.String("error", err.Error()),
				)
				s.Report.Errors = append(s.Report.Errors, fmt.Sprintf("reviews-pr%d:%v", pr.Number, err))
			}
		}
	}
}

// reviews counts the reviews on one pull request submitted inside the range.
func (c *Collector) reviews(ctx context.Context, s *RepoScope, number int) error {
	reviews, err := gateway.Paginate(ctx, func(ctx context.Context, page int) ([]gateway.Review, error) {
		return c.fetcher.ListReviews(ctx, s.Repo.FullName, number, page)
	})
	if err != nil {
		return err
	}

	for _, rv := range reviews {
		if rv.SubmittedAt.IsZero() {
			continue
		}
		submitted := domain.DateOf(rv.SubmittedAt)
		if !s.Range.Contains(submitted) {
			continue
		}
		memberID, ok := s.Members.Lookup(rv.ReviewerLogin)
		if !ok {
			continue
		}

		s.bump(memberID, domain.TypeReview, submitted, 0, 0)
		s.Report.ReviewsTotal++

		typ, ok := domain.ReviewStateType(rv.State)
		if !ok {
			continue
		}
		s.bump(memberID, typ, submitted, 0, 0)
		switch typ {
		case domain.TypeReviewApproved:
			s.Report.ReviewsApproved++
		case domain.TypeReviewChangesRequested:
			s.Report.ReviewsChanges++
		case domain.TypeReviewCommented:
			s.Report.ReviewsCommented++
		}
	}
	return nil
}

// MergedPullRequests counts pull requests merged in the range, dated by the
// closest timestamp the search API returns.
func (c *Collector) MergedPullRequests(ctx context.Context, s *RepoScope) error {
	query := fmt.Sprintf("repo:%s is:pr is:merged merged:%s..%s", s.Repo.FullName, s.Range.Since, s.Range.Until)
	return c.search(ctx, query, func(hit gateway.SearchHit) {
		memberID, ok := s.Members.Lookup(hit.AuthorLogin)
		merged := hit.MergeDate()
		if !ok || merged.IsZero() {
			return
		}
		s.bump(memberID, domain.TypePRMerged, domain.DateOf(merged), 0, 0)
		s.Report.PRsMerged++
	})
}

// Issues counts issues opened in the range by reporter and creation date.
func (c *Collector) Issues(ctx context.Context, s *RepoScope) error {
	query := fmt.Sprintf("repo:%s type:issue created:%s..%s", s.Repo.FullName, s.Range.Since, s.Range.Until)
	return c.search(ctx, query, func(hit gateway.SearchHit) {
		memberID, ok := s.Members.Lookup(hit.AuthorLogin)
		if !ok || hit.CreatedAt.IsZero() {
			return
		}
		s.bump(memberID, domain.TypeIssue, domain.DateOf(hit.CreatedAt), 0, 0)
		s.Report.Issues++
	})
}

// search pages through an issue search until a page comes back short.
func (c *Collector) search(ctx context.Context, query string, fn func(gateway.SearchHit)) error {
	for page := 1; ; page++ {
		hits, err := c.fetcher.SearchIssues(ctx, query, page)
		if err != nil {
			return err
		}
		for _, hit := range hits {
			fn(hit)
		}
		if len(hits) < gateway.PageSize {
			return nil
		}
	}
}
