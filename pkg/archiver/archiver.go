package archiver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"baraagdl/pkg/config"
	"baraagdl/pkg/logger"
	"baraagdl/pkg/mastodon"
	"baraagdl/pkg/storage"
	"baraagdl/pkg/transcode"
)

// Client is the slice of the API client the archiver needs
type Client interface {
	AccountStatuses(ctx context.Context, accountID, maxID string) (mastodon.Page, error)
	ProbeHeaders(ctx context.Context, url string) (http.Header, error)
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// ResultStatus classifies the outcome of one attachment acquisition
type ResultStatus string

const (
	StatusDownloaded ResultStatus = "downloaded"
	StatusSkipped    ResultStatus = "skipped"
	StatusFailed     ResultStatus = "failed"
)

// Result is the outcome of acquiring one attachment
type Result struct {
	PostID     string
	Attachment Attachment
	Status     ResultStatus
	Err        error
}

// Archiver drives the full per-account pass: timeline fetch, attachment
// resolution, acquisition, and transcoding. Everything runs strictly
// sequentially; the only cancellation is the caller's context.
type Archiver struct {
	client     Client
	cfg        *config.Config
	resolver   *Resolver
	transcoder *transcode.Transcoder
	logger     logger.Logger
}

// New creates an Archiver
func New(client Client, cfg *config.Config, log logger.Logger) *Archiver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Archiver{
		client:     client,
		cfg:        cfg,
		resolver:   NewResolver(client, log),
		transcoder: transcode.New(cfg.Transcode, log),
		logger:     log,
	}
}

// ProcessAccounts archives every account in the follow mapping, one
// account at a time
func (a *Archiver) ProcessAccounts(ctx context.Context, accounts map[string]mastodon.Account) error {
	handles := make([]string, 0, len(accounts))
	for handle := range accounts {
		handles = append(handles, handle)
	}
	sort.Strings(handles)

	for i, handle := range handles {
		if err := ctx.Err(); err != nil {
			return err
		}

		account := accounts[handle]
		a.logger.InfoWithFields("processing account", map[string]interface{}{
			"account":  account.Acct,
			"id":       account.ID,
			"position": fmt.Sprintf("%d/%d", i+1, len(handles)),
		})

		if err := a.ProcessAccount(ctx, account); err != nil {
			return fmt.Errorf("account %s: %w", account.Acct, err)
		}
	}

	return nil
}

// ProcessAccount archives one account: its full timeline is fetched and
// resolved, then every attachment is downloaded and, for videos,
// transcoded, before the function returns
func (a *Archiver) ProcessAccount(ctx context.Context, account mastodon.Account) error {
	timeline, err := FetchTimeline(ctx, a.client, account.ID, a.logger)
	if err != nil {
		return fmt.Errorf("fetching timeline: %w", err)
	}

	media := a.resolver.Resolve(ctx, timeline)

	manager, err := storage.NewManager(a.cfg.Output.BaseDirectory, storage.FolderName(account.Acct, account.ID))
	if err != nil {
		return err
	}

	for _, postID := range sortedPostIDs(media) {
		post := media[postID]
		for _, attachmentID := range sortedAttachmentIDs(post.Media) {
			if err := ctx.Err(); err != nil {
				return err
			}

			attachment := post.Media[attachmentID]
			result := a.acquire(ctx, manager, postID, attachment)

			if result.Status == StatusFailed {
				if !a.cfg.Download.ContinueOnError {
					return fmt.Errorf("downloading %s: %w", attachment.Filename, result.Err)
				}
				a.logger.WithError(result.Err).WithFields(map[string]interface{}{
					"post_id":  postID,
					"filename": attachment.Filename,
				}).Error("download failed, continuing")
				continue
			}

			a.maybeTranscode(ctx, manager, attachment)
		}
	}

	return nil
}

// acquire downloads one attachment into the account folder, skipping
// unconditionally when the file already exists
func (a *Archiver) acquire(ctx context.Context, manager *storage.Manager, postID string, attachment Attachment) Result {
	result := Result{PostID: postID, Attachment: attachment}

	if manager.Exists(attachment.Filename) {
		a.logger.DebugWithFields("file already exists, skipping", map[string]interface{}{
			"filename": attachment.Filename,
		})
		result.Status = StatusSkipped
		return result
	}

	body, err := a.client.Download(ctx, attachment.URL)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result
	}
	defer body.Close()

	if err := manager.Save(body, attachment.Filename); err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result
	}

	a.logger.InfoWithFields("downloaded attachment", map[string]interface{}{
		"attachment_id": attachment.ID,
		"filename":      attachment.Filename,
	})

	result.Status = StatusDownloaded
	return result
}

// maybeTranscode hands a downloaded video to the transcoder. Skipped
// files go through too, so derivatives missing from an earlier run are
// still produced.
func (a *Archiver) maybeTranscode(ctx context.Context, manager *storage.Manager, attachment Attachment) {
	if !a.transcoder.Enabled() {
		return
	}
	if !strings.HasSuffix(attachment.Filename, transcode.VideoExtension) {
		return
	}

	sizeMB, err := manager.SizeMB(attachment.Filename)
	if err != nil {
		a.logger.WithError(err).WithField("filename", attachment.Filename).Error("failed to stat downloaded file")
		return
	}

	a.transcoder.MaybeConvert(ctx, manager.Path(attachment.Filename), sizeMB)
}

func sortedPostIDs(media map[string]PostMedia) []string {
	ids := make([]string, 0, len(media))
	for id := range media {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedAttachmentIDs(media map[string]Attachment) []string {
	ids := make([]string, 0, len(media))
	for id := range media {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
