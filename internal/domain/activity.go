// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for bucket dates and ranges.
const DateLayout = "2006-01-02"

// ActivityType is the category of a daily activity bucket.
type ActivityType string

const (
	TypeCommit                 ActivityType = "commit"
	TypePullRequest            ActivityType = "pull_request"
	TypePRMerged               ActivityType = "pr_merged"
	TypeIssue                  ActivityType = "issue"
	TypeReview                 ActivityType = "review"
	TypeReviewApproved         ActivityType = "review_approved"
	TypeReviewChangesRequested ActivityType = "review_changes_requested"
	TypeReviewCommented        ActivityType = "review_commented"
)

// ActivityTypes lists every valid ActivityType.
var ActivityTypes = []ActivityType{
	TypeCommit,
	TypePullRequest,
	TypePRMerged,
	TypeIssue,
	TypeReview,
	TypeReviewApproved,
	TypeReviewChangesRequested,
	TypeReviewCommented,
}

// Valid reports whether t is one of the known activity types.
func (t ActivityType) Valid() bool {
	for _, known := range ActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsReview reports whether t is the aggregate review type or one of its state variants.
func (t ActivityType) IsReview() bool {
	return strings.HasPrefix(string(t), string(TypeReview))
}

// ReviewStateType maps a review state (APPROVED, CHANGES_REQUESTED, COMMENTED)
// to its bucket type. Unknown states return false.
func ReviewStateType(state string) (ActivityType, bool) {
	switch strings.ToUpper(state) {
	case "APPROVED":
		return TypeReviewApproved, true
	case "CHANGES_REQUESTED":
		return TypeReviewChangesRequested, true
	case "COMMENTED":
		return TypeReviewCommented, true
	}
	return "", false
}

// DateRange is an inclusive range of UTC calendar dates in DateLayout form.
type DateRange struct {
	Since string `json:"since"`
	Until string `json:"until"`
}

// NewDateRange validates and normalizes since/until. An empty until defaults to since.
func NewDateRange(since, until string) (DateRange, error) {
	if until == "" {
		until = since
	}
	s, err := time.Parse(DateLayout, since)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid since date %q: %w", since, err)
	}
	u, err := time.Parse(DateLayout, until)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid until date %q: %w", until, err)
	}
	if u.Before(s) {
		return DateRange{}, fmt.Errorf("until %s is before since %s", until, since)
	}
	return DateRange{Since: s.Format(DateLayout), Until: u.Format(DateLayout)}, nil
}

// Contains reports whether the calendar date day lies inside the range.
func (r DateRange) Contains(day string) bool {
	return day >= r.Since && day <= r.Until
}

// Start is the first instant of the range.
func (r DateRange) Start() time.Time {
	t, _ := time.Parse(DateLayout, r.Since)
	return t.UTC()
}

// End is the last whole second of the range.
func (r DateRange) End() time.Time {
	t, _ := time.Parse(DateLayout, r.Until)
	return t.UTC().Add(24*time.Hour - time.Second)
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Member is an organization member known to the directory.
type Member struct {
	ID    int64  `json:"id" yaml:"id"`
	Login string `json:"login" yaml:"login"`
}

// Repository is a repository known to the directory.
type Repository struct {
	ID       int64  `json:"id" yaml:"id"`
	FullName string `json:"full_name" yaml:"full_name"`
}

// BucketKey identifies one daily counter row.
type BucketKey struct {
	MemberID     int64
	RepositoryID int64
	Type         ActivityType
	Date         string
}

// Bucket is one daily counter row for a (member, repository, type) triple.
type Bucket struct {
	BucketKey
	Count     int64
	Additions int64
	Deletions int64
}
