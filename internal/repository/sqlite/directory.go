package sqlite

import (
	"context"
	"fmt"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/repository"
)

var _ repository.DirectoryRepository = (*DB)(nil)

// ListMembers returns every member ordered by id.
func (db *DB) ListMembers(ctx context.Context) ([]domain.Member, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, login FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing members: %w", err)
	}
	defer rows.Close()

	members := []domain.Member{}
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.Login); err != nil {
			return nil, fmt.Errorf("sqlite: scanning member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating members: %w", err)
	}
	return members, nil
}

// ListRepositories returns every repository ordered by id.
func (db *DB) ListRepositories(ctx context.Context) ([]domain.Repository, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, full_name FROM repositories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing repositories: %w", err)
	}
	defer rows.Close()

	repos := []domain.Repository{}
	for rows.Next() {
		var r domain.Repository
		if err := rows.Scan(&r.ID, &r.FullName); err != nil {
			return nil, fmt.Errorf("sqlite: scanning repository: %w", err)
		}
		repos = append(repos, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating repositories: %w", err)
	}
	return repos, nil
}

// UpsertMember inserts a member or renames an existing one with the same id.
func (db *DB) UpsertMember(ctx context.Context, member domain.Member) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO members (id, login) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET login = excluded.login`,
		member.ID, member.Login,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting member %s: %w", member.Login, err)
	}
	return nil
}

// UpsertRepository inserts a repository or renames an existing one with the same id.
func (db *DB) UpsertRepository(ctx context.Context, repo domain.Repository) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO repositories (id, full_name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET full_name = excluded.full_name`,
		repo.ID, repo.FullName,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting repository %s: %w", repo.FullName, err)
	}
	return nil
}
