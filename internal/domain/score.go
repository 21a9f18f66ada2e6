package domain

import (
	"math"

	"github.com/montanaflynn/stats"
)

// ScoreWeights is the weighting policy used to rank members.
type ScoreWeights struct {
	Commit                 float64 `yaml:"commit" json:"commit"`
	PullRequest            float64 `yaml:"pull_request" json:"pull_request"`
	PRMerged               float64 `yaml:"pr_merged" json:"pr_merged"`
	ReviewApproved         float64 `yaml:"review_approved" json:"review_approved"`
	ReviewChangesRequested float64 `yaml:"review_changes_requested" json:"review_changes_requested"`
	ReviewCommented        float64 `yaml:"review_commented" json:"review_commented"`
	Issue                  float64 `yaml:"issue" json:"issue"`

	// AdditionsDivisor and AdditionsCap bound the contribution of added lines:
	// min(additions/AdditionsDivisor, AdditionsCap). A zero divisor disables the term.
	AdditionsDivisor float64 `yaml:"additions_divisor" json:"additions_divisor"`
	AdditionsCap     float64 `yaml:"additions_cap" json:"additions_cap"`
}

// DefaultScoreWeights returns the stock weighting.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Commit:                 1,
		PullRequest:            3,
		PRMerged:               4,
		ReviewApproved:         3,
		ReviewChangesRequested: 2.5,
		ReviewCommented:        1.5,
		Issue:                  1,
		AdditionsDivisor:       40,
		AdditionsCap:           10,
	}
}

// Score computes the weighted score of row, rounded to two decimal places.
func (w ScoreWeights) Score(row MemberBreakdownRow) float64 {
	score := float64(row.Commits)*w.Commit +
		float64(row.PRsOpened)*w.PullRequest +
		float64(row.PRsMerged)*w.PRMerged +
		float64(row.ReviewsApproved)*w.ReviewApproved +
		float64(row.ReviewsChanges)*w.ReviewChangesRequested +
		float64(row.ReviewsCommented)*w.ReviewCommented +
		float64(row.Issues)*w.Issue
	if w.AdditionsDivisor > 0 {
		score += math.Min(float64(row.Additions)/w.AdditionsDivisor, w.AdditionsCap)
	}
	rounded, err := stats.Round(score, 2)
	if err != nil {
		return 0
	}
	return rounded
}
