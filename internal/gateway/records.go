package gateway

import (
	"time"

	"github.com/google/go-github/v62/github"
)

// Commit is a commit listing entry reduced to what the collectors need.
type Commit struct {
	SHA         string
	AuthorLogin string
	AuthoredAt  time.Time
	CommittedAt time.Time
}

// Date returns the author date, falling back to the committer date.
// The zero time is returned when neither is known.
func (c Commit) Date() time.Time {
	if !c.AuthoredAt.IsZero() {
		return c.AuthoredAt
	}
	return c.CommittedAt
}

// CommitStats holds line counts for one commit.
type CommitStats struct {
	Additions int
	Deletions int
}

// PullRequest is a pull request listing entry.
type PullRequest struct {
	Number      int
	AuthorLogin string
	CreatedAt   time.Time
}

// Review is a submitted pull request review.
type Review struct {
	ReviewerLogin string
	State         string
	SubmittedAt   time.Time
}

// SearchHit is an issue or pull request returned by issue search.
type SearchHit struct {
	Number      int
	AuthorLogin string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    time.Time
}

// MergeDate approximates when a merged PR was merged: closed, then updated, then created.
func (h SearchHit) MergeDate() time.Time {
	switch {
	case !h.ClosedAt.IsZero():
		return h.ClosedAt
	case !h.UpdatedAt.IsZero():
		return h.UpdatedAt
	default:
		return h.CreatedAt
	}
}

func toCommit(c *github.RepositoryCommit) Commit {
	return Commit{
		SHA:         c.GetSHA(),
		AuthorLogin: c.GetAuthor().GetLogin(),
		AuthoredAt:  c.GetCommit().GetAuthor().GetDate().Time,
		CommittedAt: c.GetCommit().GetCommitter().GetDate().Time,
	}
}

func toPullRequest(pr *github.PullRequest) PullRequest {
	return PullRequest{
		Number:      pr.GetNumber(),
		AuthorLogin: pr.GetUser().GetLogin(),
		CreatedAt:   pr.GetCreatedAt().Time,
	}
}

func toReview(rv *github.PullRequestReview) Review {
	return Review{
		ReviewerLogin: rv.GetUser().GetLogin(),
		State:         rv.GetState(),
		SubmittedAt:   rv.GetSubmittedAt().Time,
	}
}

func toSearchHit(is *github.Issue) SearchHit {
	return SearchHit{
		Number:      is.GetNumber(),
		AuthorLogin: is.GetUser().GetLogin(),
		CreatedAt:   is.GetCreatedAt().Time,
		UpdatedAt:   is.GetUpdatedAt().Time,
		ClosedAt:    is.GetClosedAt().Time,
	}
}
