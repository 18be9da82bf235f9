package listing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContainer serves sorted names the way the service does: names after marker, at most limit.
type fakeContainer struct {
	names []string
	pages []Page
}

func newFakeContainer(n int) *fakeContainer {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("obj-%06d", i)
	}
	sort.Strings(names)
	return &fakeContainer{names: names}
}

func (f *fakeContainer) fetch(_ context.Context, page Page) ([]string, error) {
	f.pages = append(f.pages, page)
	start := 0
	if page.Marker != "" {
		start = sort.SearchStrings(f.names, page.Marker) + 1
	}
	end := start + page.Limit
	if end > len(f.names) {
		end = len(f.names)
	}
	if start > end {
		start = end
	}
	return f.names[start:end], nil
}

func identity(s string) string { return s }

func TestCollect(t *testing.T) {
	tests := []struct {
		name      string
		available int
		max       int
		wantCount int
		wantPages []Page
	}{
		{
			name:      "max of one",
			available: 5,
			max:       1,
			wantCount: 1,
			wantPages: []Page{{Limit: 1}},
		},
		{
			name:      "short first page",
			available: 3,
			max:       10,
			wantCount: 3,
			wantPages: []Page{{Limit: 10}},
		},
		{
			name:      "one past the page size",
			available: 20000,
			max:       10001,
			wantCount: 10001,
			wantPages: []Page{{Limit: 10000}, {Limit: 10000, Marker: "obj-009999"}},
		},
		{
			name:      "exactly one full page and nothing more",
			available: 10000,
			max:       20000,
			wantCount: 10000,
			wantPages: []Page{{Limit: 10000}, {Limit: 10000, Marker: "obj-009999"}},
		},
		{
			name:      "empty container",
			available: 0,
			max:       5,
			wantCount: 0,
			wantPages: []Page{{Limit: 5}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeContainer(tt.available)

			got, err := Collect(context.Background(), tt.max, c.fetch, identity)
			require.NoError(t, err)

			assert.Len(t, got, tt.wantCount)
			assert.Equal(t, tt.wantPages, c.pages)
			assert.Equal(t, c.names[:tt.wantCount], got)
		})
	}
}

func TestCollect_ZeroMaxMakesNoRequest(t *testing.T) {
	c := newFakeContainer(10)
	got, err := Collect(context.Background(), 0, c.fetch, identity)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, c.pages)
}

func TestCollect_ManyPages(t *testing.T) {
	c := newFakeContainer(25000)
	got, err := Collect(context.Background(), 1000000, c.fetch, identity)
	require.NoError(t, err)
	assert.Len(t, got, 25000)
	assert.Len(t, c.pages, 3)
}

func TestCollect_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	var pages []Page
	fetch := func(_ context.Context, page Page) ([]string, error) {
		pages = append(pages, page)
		if len(pages) == 2 {
			return nil, boom
		}
		items := make([]string, page.Limit)
		items[len(items)-1] = "last"
		return items, nil
	}

	got, err := Collect(context.Background(), MaxPageSize+1, fetch, identity)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "list page 2")
	assert.Equal(t, "last", pages[1].Marker)
}
