package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/repository"
)

var _ repository.ActivityRepository = (*DB)(nil)

// reviewTypesSQL is the quoted list of review bucket types for IN clauses.
var reviewTypesSQL = func() string {
	quoted := make([]string, 0, 4)
	for _, t := range domain.ActivityTypes {
		if t.IsReview() {
			quoted = append(quoted, "'"+string(t)+"'")
		}
	}
	return strings.Join(quoted, ", ")
}()

// UpsertBuckets writes all buckets in one transaction. On a key conflict the
// stored counters are overwritten with the new values, not added to.
func (db *DB) UpsertBuckets(ctx context.Context, buckets []domain.Bucket) error {
	if len(buckets) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO activities
			(member_id, repository_id, type, activity_date, count, additions, deletions)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(member_id, repository_id, type, activity_date)
		DO UPDATE SET
			count      = excluded.count,
			additions  = excluded.additions,
			deletions  = excluded.deletions,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range buckets {
		if _, err := stmt.ExecContext(ctx,
			b.MemberID, b.RepositoryID, string(b.Type), b.Date,
			b.Count, b.Additions, b.Deletions,
		); err != nil {
			return fmt.Errorf("sqlite: upserting bucket %d/%d/%s/%s: %w",
				b.MemberID, b.RepositoryID, b.Type, b.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing upsert: %w", err)
	}
	return nil
}

// ListBuckets returns the stored buckets inside r, ordered by key.
func (db *DB) ListBuckets(ctx context.Context, r domain.DateRange) ([]domain.Bucket, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT member_id, repository_id, type, activity_date, count, additions, deletions
		FROM activities
		WHERE activity_date BETWEEN ? AND ?
		ORDER BY member_id, repository_id, type, activity_date
	`, r.Since, r.Until)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing buckets: %w", err)
	}
	defer rows.Close()

	buckets := []domain.Bucket{}
	for rows.Next() {
		var b domain.Bucket
		var typ string
		if err := rows.Scan(&b.MemberID, &b.RepositoryID, &typ, &b.Date, &b.Count, &b.Additions, &b.Deletions); err != nil {
			return nil, fmt.Errorf("sqlite: scanning bucket: %w", err)
		}
		b.Type = domain.ActivityType(typ)
		if !b.Type.Valid() {
			return nil, fmt.Errorf("sqlite: unknown activity type %q", typ)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating buckets: %w", err)
	}
	return buckets, nil
}

// MemberRollups sums each member's buckets inside r. reviews_total sums the
// aggregate review bucket and the three state buckets.
func (db *DB) MemberRollups(ctx context.Context, r domain.DateRange) ([]repository.MemberRollup, error) {
	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			a.member_id,
			m.login,
			COALESCE(SUM(CASE WHEN a.type = 'commit' THEN a.count END), 0),
			COALESCE(SUM(CASE WHEN a.type = 'pull_request' THEN a.count END), 0),
			COALESCE(SUM(CASE WHEN a.type = 'pr_merged' THEN a.count END), 0),
			COALESCE(SUM(CASE WHEN a.type = 'issue' THEN a.count END), 0),
			COALESCE(SUM(CASE WHEN a.type IN (%s) THEN a.count END), 0),
			COALESCE(SUM(CASE WHEN a.type = 'review_approved' THEN a.count END), 0),
			COALESCE(SUM(CASE WHEN a.type = 'review_changes_requested' THEN a.count END), 0),
			COALESCE(SUM(CASE WHEN a.type = 'review_commented' THEN a.count END), 0),
			COALESCE(SUM(a.additions), 0),
			COALESCE(SUM(a.deletions), 0),
			COUNT(DISTINCT a.activity_date),
			COUNT(DISTINCT a.repository_id)
		FROM activities a
		JOIN members m ON m.id = a.member_id
		WHERE a.activity_date BETWEEN ? AND ?
		GROUP BY a.member_id, m.login
		ORDER BY m.login ASC
	`, reviewTypesSQL), r.Since, r.Until)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying member rollups: %w", err)
	}
	defer rows.Close()

	rollups := []repository.MemberRollup{}
	for rows.Next() {
		var mr repository.MemberRollup
		row := &mr.Row
		if err := rows.Scan(
			&mr.MemberID,
			&row.Login,
			&row.Commits,
			&row.PRsOpened,
			&row.PRsMerged,
			&row.Issues,
			&row.ReviewsTotal,
			&row.ReviewsApproved,
			&row.ReviewsChanges,
			&row.ReviewsCommented,
			&row.Additions,
			&row.Deletions,
			&row.ActiveDays,
			&row.ReposTouched,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning member rollup: %w", err)
		}
		rollups = append(rollups, mr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating member rollups: %w", err)
	}
	return rollups, nil
}

// MemberRepoRollups sums buckets per (member, repository) inside r. The total
// covers every type, review state buckets included.
func (db *DB) MemberRepoRollups(ctx context.Context, r domain.DateRange) ([]repository.MemberRepoRollup, error) {
	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			a.member_id,
			COALESCE(r.full_name, 'repository-' || a.repository_id) AS repo,
			COALESCE(SUM(a.count), 0) AS total,
			COALESCE(SUM(CASE WHEN a.type = 'commit' THEN a.count END), 0),
			COALESCE(SUM(CASE WHEN a.type = 'pull_request' THEN a.count END), 0),
			COALESCE(SUM(CASE WHEN a.type = 'pr_merged' THEN a.count END), 0),
			COALESCE(SUM(CASE WHEN a.type IN (%s) THEN a.count END), 0),
			COALESCE(SUM(CASE WHEN a.type = 'issue' THEN a.count END), 0)
		FROM activities a
		LEFT JOIN repositories r ON r.id = a.repository_id
		WHERE a.activity_date BETWEEN ? AND ?
		GROUP BY a.member_id, a.repository_id, r.full_name
		ORDER BY a.member_id ASC, total DESC, repo ASC
	`, reviewTypesSQL), r.Since, r.Until)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying member repo rollups: %w", err)
	}
	defer rows.Close()

	rollups := []repository.MemberRepoRollup{}
	for rows.Next() {
		var rr repository.MemberRepoRollup
		tr := &rr.Repo
		if err := rows.Scan(
			&rr.MemberID,
			&tr.Repo,
			&tr.Total,
			&tr.Commits,
			&tr.PRsOpened,
			&tr.PRsMerged,
			&tr.Reviews,
			&tr.Issues,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning member repo rollup: %w", err)
		}
		rollups = append(rollups, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating member repo rollups: %w", err)
	}
	return rollups, nil
}
