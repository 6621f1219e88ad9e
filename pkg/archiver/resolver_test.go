package archiver

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baraagdl/pkg/errors"
	"baraagdl/pkg/logger"
	"baraagdl/pkg/mastodon"
)

type fakeProber struct {
	headers map[string]http.Header
	err     error
	probed  []string
}

func (f *fakeProber) ProbeHeaders(_ context.Context, url string) (http.Header, error) {
	f.probed = append(f.probed, url)
	if f.err != nil {
		return nil, f.err
	}
	return f.headers[url], nil
}

func timelineOf(statuses ...mastodon.Status) []mastodon.Page {
	return []mastodon.Page{statuses}
}

func TestResolveFilename(t *testing.T) {
	resolver := NewResolver(&fakeProber{}, logger.NewNopLogger())

	timeline := timelineOf(mastodon.Status{
		ID:        "111317461262918912",
		CreatedAt: "2024-05-01T12:34:56.000Z",
		MediaAttachments: []mastodon.MediaAttachment{
			{ID: "222", URL: "https://files.baraag.net/media/abc.png"},
		},
	})

	posts := resolver.Resolve(context.Background(), timeline)
	require.Len(t, posts, 1)

	post := posts["111317461262918912"]
	require.Len(t, post.Media, 1)
	att := post.Media["222"]
	assert.Equal(t, "2024-05-01_111317461262918912_222.png", att.Filename)
	assert.Equal(t, "https://files.baraag.net/media/abc.png", att.URL)
}

func TestResolveProxySubstitution(t *testing.T) {
	resolver := NewResolver(&fakeProber{}, logger.NewNopLogger())

	timeline := timelineOf(mastodon.Status{
		ID:        "100",
		CreatedAt: "2024-05-01T12:00:00Z",
		MediaAttachments: []mastodon.MediaAttachment{
			{
				ID:        "1",
				URL:       "https://cdn.example/media_proxy/abc.mp4?sig=xyz",
				RemoteURL: "https://origin.example/files/real.mp4?x=1",
			},
		},
	})

	posts := resolver.Resolve(context.Background(), timeline)
	att := posts["100"].Media["1"]

	assert.Equal(t, "https://origin.example/files/real.mp4", att.URL)
	assert.Equal(t, "2024-05-01_100_1.mp4", att.Filename)
}

func TestResolveProbesAmbiguousExtension(t *testing.T) {
	url := "https://redirect.example.com"
	prober := &fakeProber{headers: map[string]http.Header{
		url: {"Content-Disposition": []string{`attachment; filename="clip.webm"`}},
	}}
	resolver := NewResolver(prober, logger.NewNopLogger())

	timeline := timelineOf(mastodon.Status{
		ID:        "100",
		CreatedAt: "2024-05-01T12:00:00Z",
		MediaAttachments: []mastodon.MediaAttachment{
			{ID: "1", URL: url},
		},
	})

	posts := resolver.Resolve(context.Background(), timeline)
	att := posts["100"].Media["1"]

	assert.Equal(t, []string{url}, prober.probed)
	assert.Equal(t, "2024-05-01_100_1.webm", att.Filename)
}

func TestResolveProbeContentTypeFallback(t *testing.T) {
	url := "https://host.example/view/item"
	prober := &fakeProber{headers: map[string]http.Header{
		url: {"Content-Type": []string{"image/jpeg; charset=binary"}},
	}}
	resolver := NewResolver(prober, logger.NewNopLogger())

	timeline := timelineOf(mastodon.Status{
		ID:        "100",
		CreatedAt: "2024-05-01T12:00:00Z",
		MediaAttachments: []mastodon.MediaAttachment{
			{ID: "1", URL: url},
		},
	})

	posts := resolver.Resolve(context.Background(), timeline)
	assert.Equal(t, "2024-05-01_100_1.jpg", posts["100"].Media["1"].Filename)
}

func TestResolveSkipsAttachmentOnProbeFailure(t *testing.T) {
	prober := &fakeProber{err: fmt.Errorf("probe failed")}
	resolver := NewResolver(prober, logger.NewNopLogger())

	timeline := timelineOf(mastodon.Status{
		ID:        "100",
		CreatedAt: "2024-05-01T12:00:00Z",
		MediaAttachments: []mastodon.MediaAttachment{
			{ID: "1", URL: "https://redirect.example.com"},
			{ID: "2", URL: "https://files.baraag.net/media/ok.png"},
		},
	})

	posts := resolver.Resolve(context.Background(), timeline)
	post := posts["100"]

	// The unprobeable attachment is dropped, its sibling survives.
	require.Len(t, post.Media, 1)
	assert.Contains(t, post.Media, "2")
}

func TestProbeExtensionExhaustedReturnsProbeError(t *testing.T) {
	url := "https://host.example/view/item"
	prober := &fakeProber{headers: map[string]http.Header{url: {}}}
	resolver := NewResolver(prober, logger.NewNopLogger())

	_, err := resolver.probeExtension(context.Background(), url)
	require.Error(t, err)

	var apiErr *errors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errors.ErrorTypeProbe, apiErr.Type)
}

func TestResolveKeepsPostsWithoutMedia(t *testing.T) {
	resolver := NewResolver(&fakeProber{}, logger.NewNopLogger())

	timeline := timelineOf(mastodon.Status{
		ID:        "100",
		CreatedAt: "2024-05-01T12:00:00Z",
	})

	posts := resolver.Resolve(context.Background(), timeline)
	require.Contains(t, posts, "100")
	assert.Empty(t, posts["100"].Media)
}

func TestPostDate(t *testing.T) {
	tests := []struct {
		name      string
		createdAt string
		want      string
	}{
		{"rfc3339", "2024-05-01T12:34:56.000Z", "2024-05-01"},
		{"rfc3339 offset", "2024-05-01T23:59:59+09:00", "2024-05-01"},
		{"space separated", "2024-05-01 12:34:56", "2024-05-01"},
		{"garbage", "not-a-date", "not-a-date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, postDate(tt.createdAt))
		})
	}
}

func TestExtensionAmbiguous(t *testing.T) {
	assert.True(t, extensionAmbiguous(""))
	assert.True(t, extensionAmbiguous(".com"))
	assert.True(t, extensionAmbiguous(".com/view"))
	assert.True(t, extensionAmbiguous(".net/a.b/c"))
	assert.False(t, extensionAmbiguous(".png"))
	assert.False(t, extensionAmbiguous(".mp4"))
}
