package archiver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baraagdl/pkg/config"
	"baraagdl/pkg/logger"
	"baraagdl/pkg/mastodon"
	"baraagdl/pkg/storage"
)

// fakeClient serves a one-page timeline and canned download bodies,
// counting every download request.
type fakeClient struct {
	page      mastodon.Page
	served    bool
	downloads int
	failURLs  map[string]bool
}

func (f *fakeClient) AccountStatuses(_ context.Context, _ string, maxID string) (mastodon.Page, error) {
	if maxID == "" && !f.served {
		f.served = true
		return f.page, nil
	}
	return nil, nil
}

func (f *fakeClient) ProbeHeaders(_ context.Context, _ string) (http.Header, error) {
	return http.Header{"Content-Type": []string{"image/png"}}, nil
}

func (f *fakeClient) Download(_ context.Context, url string) (io.ReadCloser, error) {
	f.downloads++
	if f.failURLs[url] {
		return nil, fmt.Errorf("download failed: %s", url)
	}
	return io.NopCloser(strings.NewReader("media bytes for " + url)), nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Transcode = config.DefaultSettings()
	return cfg
}

func testAccount() mastodon.Account {
	return mastodon.Account{ID: "42", Acct: "artist@baraag.net"}
}

func onePostPage(attachments ...mastodon.MediaAttachment) mastodon.Page {
	return mastodon.Page{{
		ID:               "100",
		CreatedAt:        "2024-05-01T12:00:00Z",
		MediaAttachments: attachments,
	}}
}

func TestProcessAccountDownloads(t *testing.T) {
	client := &fakeClient{page: onePostPage(
		mastodon.MediaAttachment{ID: "1", URL: "https://files.baraag.net/a.png"},
		mastodon.MediaAttachment{ID: "2", URL: "https://files.baraag.net/b.mp4"},
	)}
	cfg := testConfig(t)
	archiver := New(client, cfg, logger.NewNopLogger())

	require.NoError(t, archiver.ProcessAccount(context.Background(), testAccount()))
	assert.Equal(t, 2, client.downloads)

	dir := filepath.Join(cfg.Output.BaseDirectory, storage.FolderName("artist@baraag.net", "42"))
	for _, name := range []string{"2024-05-01_100_1.png", "2024-05-01_100_2.mp4"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestProcessAccountIdempotent(t *testing.T) {
	client := &fakeClient{page: onePostPage(
		mastodon.MediaAttachment{ID: "1", URL: "https://files.baraag.net/a.png"},
	)}
	cfg := testConfig(t)
	archiver := New(client, cfg, logger.NewNopLogger())

	require.NoError(t, archiver.ProcessAccount(context.Background(), testAccount()))
	require.Equal(t, 1, client.downloads)

	// A second pass sees the file on disk and fetches nothing.
	client.served = false
	require.NoError(t, archiver.ProcessAccount(context.Background(), testAccount()))
	assert.Equal(t, 1, client.downloads)
}

func TestProcessAccountAbortsOnFailure(t *testing.T) {
	client := &fakeClient{
		page: onePostPage(
			mastodon.MediaAttachment{ID: "1", URL: "https://files.baraag.net/a.png"},
			mastodon.MediaAttachment{ID: "2", URL: "https://files.baraag.net/b.png"},
		),
		failURLs: map[string]bool{"https://files.baraag.net/a.png": true},
	}
	cfg := testConfig(t)
	archiver := New(client, cfg, logger.NewNopLogger())

	err := archiver.ProcessAccount(context.Background(), testAccount())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024-05-01_100_1.png")
	// The failure on the first attachment stops the account.
	assert.Equal(t, 1, client.downloads)
}

func TestProcessAccountContinuesOnFailure(t *testing.T) {
	client := &fakeClient{
		page: onePostPage(
			mastodon.MediaAttachment{ID: "1", URL: "https://files.baraag.net/a.png"},
			mastodon.MediaAttachment{ID: "2", URL: "https://files.baraag.net/b.png"},
		),
		failURLs: map[string]bool{"https://files.baraag.net/a.png": true},
	}
	cfg := testConfig(t)
	cfg.Download.ContinueOnError = true
	archiver := New(client, cfg, logger.NewNopLogger())

	require.NoError(t, archiver.ProcessAccount(context.Background(), testAccount()))
	assert.Equal(t, 2, client.downloads)

	dir := filepath.Join(cfg.Output.BaseDirectory, storage.FolderName("artist@baraag.net", "42"))
	_, err := os.Stat(filepath.Join(dir, "2024-05-01_100_2.png"))
	assert.NoError(t, err)
}

func TestProcessAccountsOrderAndCancel(t *testing.T) {
	client := &fakeClient{}
	cfg := testConfig(t)
	archiver := New(client, cfg, logger.NewNopLogger())

	accounts := map[string]mastodon.Account{
		"b@baraag.net": {ID: "2", Acct: "b@baraag.net"},
		"a@baraag.net": {ID: "1", Acct: "a@baraag.net"},
	}
	require.NoError(t, archiver.ProcessAccounts(context.Background(), accounts))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, archiver.ProcessAccounts(ctx, accounts), context.Canceled)
}
