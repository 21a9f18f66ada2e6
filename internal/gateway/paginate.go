package gateway

import "context"

// PageSize is the fixed per_page used for every listing.
const PageSize = 100

// PageFunc fetches one 1-based page of a listing.
type PageFunc[T any] func(ctx context.Context, page int) ([]T, error)

// Paginate requests page 1, 2, ... and concatenates the items, stopping at the
// first empty page. Items are not deduplicated.
func Paginate[T any](ctx context.Context, list PageFunc[T]) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		items, err := list(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return all, nil
		}
		all = append(all, items...)
	}
}
