package archiver

import (
	"context"
	"mime"
	"net/http"
	"strings"
	"time"

	"baraagdl/pkg/errors"
	"baraagdl/pkg/logger"
	"baraagdl/pkg/mastodon"
)

// ProxyMarker in a primary attachment URL means the media is served
// through the instance's rewriting proxy. Proxy URLs are ephemeral, so
// the origin's remote URL is used instead.
const ProxyMarker = "media_proxy"

// Attachment is a resolved media attachment: a concrete downloadable URL
// and the deterministic local filename it maps to.
type Attachment struct {
	ID       string
	URL      string
	Filename string
}

// PostMedia groups a post's resolved attachments by attachment ID. Posts
// with zero resolved attachments keep an empty media map.
type PostMedia struct {
	ID    string
	Media map[string]Attachment
}

// Prober fetches response headers for a media URL
type Prober interface {
	ProbeHeaders(ctx context.Context, url string) (http.Header, error)
}

// Resolver turns a fetched timeline into resolved attachments
type Resolver struct {
	prober Prober
	logger logger.Logger
}

// NewResolver creates a Resolver
func NewResolver(prober Prober, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Resolver{prober: prober, logger: log}
}

// Resolve maps every post in the timeline to its resolved attachments,
// keyed by post ID. An attachment whose extension probe fails is logged
// and omitted; this is the only place per-item errors are swallowed.
func (r *Resolver) Resolve(ctx context.Context, timeline []mastodon.Page) map[string]PostMedia {
	posts := make(map[string]PostMedia)

	for _, page := range timeline {
		for _, status := range page {
			date := postDate(status.CreatedAt)

			post := PostMedia{
				ID:    status.ID,
				Media: make(map[string]Attachment),
			}

			for _, raw := range status.MediaAttachments {
				url := chooseURL(raw)

				ext := urlExtension(url)
				if extensionAmbiguous(ext) {
					probed, err := r.probeExtension(ctx, url)
					if err != nil {
						r.logger.WithError(err).WithFields(map[string]interface{}{
							"post_id":       status.ID,
							"attachment_id": raw.ID,
							"url":           url,
						}).Error("extension probe failed, skipping attachment")
						continue
					}
					ext = probed
				}

				filename := date + "_" + status.ID + "_" + raw.ID + ext

				post.Media[raw.ID] = Attachment{
					ID:       raw.ID,
					URL:      url,
					Filename: filename,
				}
			}

			posts[status.ID] = post
		}
	}

	return posts
}

// chooseURL applies the proxy substitution rule: a proxied primary URL is
// replaced by the remote URL with its query string stripped
func chooseURL(raw mastodon.MediaAttachment) string {
	if strings.Contains(raw.URL, ProxyMarker) && raw.RemoteURL != "" {
		remote, _, _ := strings.Cut(raw.RemoteURL, "?")
		return remote
	}
	return raw.URL
}

// urlExtension derives a candidate extension from the final dot segment
// of a URL
func urlExtension(url string) string {
	idx := strings.LastIndex(url, ".")
	if idx < 0 {
		return ""
	}
	return url[idx:]
}

// extensionAmbiguous reports whether the derived extension looks like a
// domain fragment or path rather than a real file extension, meaning the
// URL is a redirect or landing page
func extensionAmbiguous(ext string) bool {
	if ext == "" {
		return true
	}
	return strings.Contains(ext, "com") || strings.Contains(ext, "/")
}

// probeExtension resolves the real extension of a redirect-style URL from
// its response headers: Content-Disposition first, Content-Type second
func (r *Resolver) probeExtension(ctx context.Context, url string) (string, error) {
	headers, err := r.prober.ProbeHeaders(ctx, url)
	if err != nil {
		return "", err
	}

	if ext := extensionFromDisposition(headers.Get("Content-Disposition")); ext != "" {
		return ext, nil
	}
	if ext := extensionFromContentType(headers.Get("Content-Type")); ext != "" {
		return ext, nil
	}

	return "", &errors.Error{
		Type:    errors.ErrorTypeProbe,
		Message: "no usable extension in response headers for " + url,
	}
}

// extensionFromDisposition extracts the filename extension from a
// Content-Disposition header value
func extensionFromDisposition(disposition string) string {
	if disposition == "" {
		return ""
	}

	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}

	filename := strings.Trim(params["filename"], `"'`)
	if filename == "" {
		return ""
	}

	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return filename[idx:]
}

// preferredExtensions pins stable extensions for common media types;
// mime.ExtensionsByType ordering is not deterministic across platforms
var preferredExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

// extensionFromContentType maps a Content-Type header to an extension
func extensionFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}

	if ext, ok := preferredExtensions[mediaType]; ok {
		return ext
	}

	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

// postDate derives the ISO date portion of a post timestamp. Malformed
// timestamps fall back to the first whitespace-delimited token.
func postDate(createdAt string) string {
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		return ts.Format("2006-01-02")
	}

	fields := strings.Fields(createdAt)
	if len(fields) > 0 {
		return fields[0]
	}
	return createdAt
}
