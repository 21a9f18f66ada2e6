// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/gateway"
	"github.com/naka-gawa/github-activity/internal/repository"
)

// DefaultConcurrency is the number of repositories synced at once.
const DefaultConcurrency = 1

// Options tunes a sync run.
type Options struct {
	Concurrency            int
	FetchCommitStats       bool
	CommitStatsConcurrency int
	TopN                   int
}

// Syncer is the use case for syncing activity of a date range.
// It fans repositories out to a bounded pool, merges their buckets,
// flushes them once and builds the run report.
type Syncer struct {
	fetcher    gateway.Fetcher
	directory  repository.DirectoryRepository
	activities repository.ActivityRepository
	breakdown  *Breakdown
	logger     *slog.Logger
	now        func() time.Time
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(
	fetcher gateway.Fetcher,
	directory repository.DirectoryRepository,
	activities repository.ActivityRepository,
	weights domain.ScoreWeights,
	logger *slog.Logger,
) *Syncer {
	return &Syncer{
		fetcher:    fetcher,
		directory:  directory,
		activities: activities,
		breakdown:  NewBreakdown(activities, weights),
		logger:     logger,
		now:        time.Now,
	}
}

// SyncRange collects activity in r for every known repository, or only those
// named in repoFilter when it is not empty, and persists it.
//
// A repository that fails is recorded in its report and the run goes on.
// Only directory reads, the flush and the breakdown query abort the run.
func (s *Syncer) SyncRange(ctx context.Context, r domain.DateRange, repoFilter []string, opts Options) (*domain.SyncReport, error) {
	startedAt := s.now().UTC()
	runID := xid.New().String()
	logger := s.logger.With(slog.String("run_id", runID))

	members, err := s.directory.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	repos, err := s.directory.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	repos = filterRepos(repos, repoFilter)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger.Info("sync started",
		slog.String("since", r.Since),
		slog.String("until", r.Until),
		slog.Int("members", len(members)),
		slog.Int("repos", len(repos)),
		slog.Int("concurrency", concurrency),
	)

	idx := NewMemberIndex(members)
	collector := NewCollector(s.fetcher, logger, opts.FetchCommitStats, opts.CommitStatsConcurrency)
	collector.now = s.now

	var (
		mu      sync.Mutex
		buckets = NewBucketAggregator()
		perRepo = make([]*domain.RepoReport, 0, len(repos))
	)

	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			scope := &RepoScope{
				Repo:    repo,
				Range:   r,
				Members: idx,
				Buckets: NewBucketAggregator(),
				Report:  domain.NewRepoReport(repo),
			}
			s.syncRepo(ctx, logger, collector, scope)

			mu.Lock()
			defer mu.Unlock()
			buckets.Merge(scope.Buckets)
			perRepo = append(perRepo, scope.Report)
			return nil
		})
	}
	_ = g.Wait()

	if err := s.activities.UpsertBuckets(ctx, buckets.Buckets()); err != nil {
		return nil, fmt.Errorf("failed to flush buckets: %w", err)
	}
	logger.Debug("buckets flushed", slog.Int("buckets", buckets.Len()))

	perMember, err := s.breakdown.PerMember(ctx, r, opts.TopN)
	if err != nil {
		return nil, err
	}

	sort.Slice(perRepo, func(i, j int) bool { return perRepo[i].FullName < perRepo[j].FullName })

	finishedAt := s.now().UTC()
	report := &domain.SyncReport{
		RunID:      runID,
		Range:      r,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		DurationMs: finishedAt.Sub(startedAt).Milliseconds(),
		PerRepo:    perRepo,
		PerMember:  perMember,
		Totals:     BuildTotals(perRepo),
	}

	logger.Info("sync finished",
		slog.Int("processed_repos", report.Totals.ProcessedRepos),
		slog.Int("skipped_repos", report.Totals.SkippedRepos),
		slog.Int64("duration_ms", report.DurationMs),
	)
	return report, nil
}

// syncRepo runs the collectors for one repository. Failures, panics included,
// end up on the repository report instead of escaping.
func (s *Syncer) syncRepo(ctx context.Context, logger *slog.Logger, collector *Collector, scope *RepoScope) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("repository sync panicked", slog.String("repo", scope.Repo.FullName), slog.Any("panic", p))
			scope.Report.Errors = append(scope.Report.Errors, fmt.Sprintf("panic: %v", p))
		}
	}()

	logger.Debug("syncing repository", slog.String("repo", scope.Repo.FullName))
	if err := collector.CollectAll(ctx, scope); err != nil {
		logger.Error("repository sync failed", slog.String("repo", scope.Repo.FullName), slog.String("error", err.Error()))
		scope.Report.Errors = append(scope.Report.Errors, err.Error())
	}
}

// filterRepos keeps the repositories whose full name matches one of names,
// ignoring case. An empty filter keeps everything.
func filterRepos(repos []domain.Repository, names []string) []domain.Repository {
	if len(names) == 0 {
		return repos
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	out := make([]domain.Repository, 0, len(names))
	for _, repo := range repos {
		if _, ok := want[strings.ToLower(repo.FullName)]; ok {
			out = append(out, repo)
		}
	}
	return out
}

// BuildTotals sums the repository reports. A repository with a skip reason
// counts as skipped; every other one counts as processed.
func BuildTotals(perRepo []*domain.RepoReport) domain.Totals {
	var t domain.Totals
	for _, rr := range perRepo {
		t.Commits += rr.Commits
		t.PRsOpened += rr.PRsOpened
		t.PRsMerged += rr.PRsMerged
		t.ReviewsTotal += rr.ReviewsTotal
		t.Issues += rr.Issues
		t.Additions += rr.Additions
		t.Deletions += rr.Deletions
		if rr.Skipped != "" {
			t.SkippedRepos++
		} else {
			t.ProcessedRepos++
		}
	}
	return t
}
