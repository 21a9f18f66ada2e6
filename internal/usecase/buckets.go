package usecase

import (
	"sort"
	"strings"

	"github.com/naka-gawa/github-activity/internal/domain"
)

// BucketAggregator accumulates additive counters per bucket key.
// It is not safe for concurrent use; each repository fills its own and the
// syncer merges them one at a time.
type BucketAggregator struct {
	buckets map[domain.BucketKey]*domain.Bucket
}

// NewBucketAggregator returns an empty aggregator.
func NewBucketAggregator() *BucketAggregator {
	return &BucketAggregator{buckets: make(map[domain.BucketKey]*domain.Bucket)}
}

// Bump adds the deltas to key, creating a zero-valued entry on first touch.
func (a *BucketAggregator) Bump(key domain.BucketKey, count, additions, deletions int64) {
	b, ok := a.buckets[key]
	if !ok {
		b = &domain.Bucket{BucketKey: key}
		a.buckets[key] = b
	}
	b.Count += count
	b.Additions += additions
	b.Deletions += deletions
}

// Merge adds every entry of other into a.
func (a *BucketAggregator) Merge(other *BucketAggregator) {
	for key, b := range other.buckets {
		a.Bump(key, b.Count, b.Additions, b.Deletions)
	}
}

// Len returns the number of distinct keys.
func (a *BucketAggregator) Len() int {
	return len(a.buckets)
}

// Buckets returns a copy of every entry ordered by key.
func (a *BucketAggregator) Buckets() []domain.Bucket {
	out := make([]domain.Bucket, 0, len(a.buckets))
	for _, b := range a.buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		x, y := out[i], out[j]
		if x.MemberID != y.MemberID {
			return x.MemberID < y.MemberID
		}
		if x.RepositoryID != y.RepositoryID {
			return x.RepositoryID < y.RepositoryID
		}
		if x.Type != y.Type {
			return x.Type < y.Type
		}
		return x.Date < y.Date
	})
	return out
}

// MemberIndex maps lower-cased logins to member ids.
type MemberIndex map[string]int64

// NewMemberIndex builds the login lookup for members.
func NewMemberIndex(members []domain.Member) MemberIndex {
	idx := make(MemberIndex, len(members))
	for _, m := range members {
		idx[strings.ToLower(m.Login)] = m.ID
	}
	return idx
}

// Lookup finds the member id for login, ignoring case.
func (m MemberIndex) Lookup(login string) (int64, bool) {
	if login == "" {
		return 0, false
	}
	id, ok := m[strings.ToLower(login)]
	return id, ok
}
