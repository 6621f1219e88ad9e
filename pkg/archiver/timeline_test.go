package archiver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baraagdl/pkg/logger"
	"baraagdl/pkg/mastodon"
)

// fakeFetcher serves a fixed timeline of numbered posts, paged the way
// the server would page them, and records every cursor it was asked for.
type fakeFetcher struct {
	posts   []mastodon.Status
	cursors []string
	err     error
}

func makePosts(n int) []mastodon.Status {
	posts := make([]mastodon.Status, n)
	for i := range posts {
		posts[i] = mastodon.Status{
			ID:        fmt.Sprintf("%04d", n-i), // newest first
			CreatedAt: "2024-05-01T12:00:00Z",
		}
	}
	return posts
}

func (f *fakeFetcher) AccountStatuses(_ context.Context, _ string, maxID string) (mastodon.Page, error) {
	f.cursors = append(f.cursors, maxID)
	if f.err != nil {
		return nil, f.err
	}

	start := 0
	if maxID != "" {
		for i, p := range f.posts {
			if p.ID == maxID {
				start = i + 1
				break
			}
		}
	}

	end := start + mastodon.PageLimit
	if end > len(f.posts) {
		end = len(f.posts)
	}
	return mastodon.Page(f.posts[start:end]), nil
}

func TestFetchTimelinePagination(t *testing.T) {
	fetcher := &fakeFetcher{posts: makePosts(85)}

	timeline, err := FetchTimeline(context.Background(), fetcher, "42", logger.NewNopLogger())
	require.NoError(t, err)

	// 85 posts page as 40, 40, 5, and a short page does not stop the
	// walk, so a fourth empty fetch confirms exhaustion.
	require.Len(t, timeline, 3)
	assert.Len(t, timeline[0], 40)
	assert.Len(t, timeline[1], 40)
	assert.Len(t, timeline[2], 5)
	require.Len(t, fetcher.cursors, 4)

	assert.Equal(t, "", fetcher.cursors[0])
	assert.Equal(t, timeline[0][39].ID, fetcher.cursors[1])
	assert.Equal(t, timeline[1][39].ID, fetcher.cursors[2])
	assert.Equal(t, timeline[2][4].ID, fetcher.cursors[3])
}

func TestFetchTimelineExactMultiple(t *testing.T) {
	fetcher := &fakeFetcher{posts: makePosts(80)}

	timeline, err := FetchTimeline(context.Background(), fetcher, "42", logger.NewNopLogger())
	require.NoError(t, err)

	require.Len(t, timeline, 2)
	assert.Len(t, timeline[0], 40)
	assert.Len(t, timeline[1], 40)
	assert.Len(t, fetcher.cursors, 3)
}

func TestFetchTimelineEmptyAccount(t *testing.T) {
	fetcher := &fakeFetcher{}

	timeline, err := FetchTimeline(context.Background(), fetcher, "42", logger.NewNopLogger())
	require.NoError(t, err)
	assert.Empty(t, timeline)
	assert.Equal(t, []string{""}, fetcher.cursors)
}

func TestFetchTimelineFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("boom")}

	timeline, err := FetchTimeline(context.Background(), fetcher, "42", logger.NewNopLogger())
	require.Error(t, err)
	assert.Nil(t, timeline)
}
