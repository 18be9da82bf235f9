// Package listing stitches bounded, marker-based list requests into one result.
package listing

import (
	"context"
	"fmt"
)

// MaxPageSize is the largest page the service returns for one list request.
const MaxPageSize = 10000

// Page describes one list request.
type Page struct {
	// Limit is the page size to request.
	Limit int
	// Marker is the last name of the previous page; empty for the first page.
	Marker string
}

// FetchFunc performs one list request.
type FetchFunc[T any] func(ctx context.Context, page Page) ([]T, error)

// Collect returns up to max entries, requesting pages of min(max, MaxPageSize) entries.
//
// A follow-up page is requested only when the previous one was full and fewer than
// max entries were collected; it resumes after markerOf(last entry). The final page
// is truncated if it overshoots max.
func Collect[T any](ctx context.Context, max int, fetch FetchFunc[T], markerOf func(T) string) ([]T, error) {
	if max <= 0 {
		return []T{}, nil
	}

	pageSize := max
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	entries := make([]T, 0, pageSize)
	page := Page{Limit: pageSize}
	for n := 1; ; n++ {
		items, err := fetch(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("list page %d: %w", n, err)
		}
		entries = append(entries, items...)

		if len(entries) >= max {
			return entries[:max], nil
		}
		if len(items) < pageSize {
			return entries, nil
		}
		page.Marker = markerOf(items[len(items)-1])
	}
}
