package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"xplore/internal/featureflags"
	"xplore/internal/middleware"
	"xplore/internal/models"
	"xplore/internal/observability"
	"xplore/internal/storage"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxVideoBytes caps a single video upload.
const DefaultMaxVideoBytes int64 = 200 << 20

// Cleanup stages, used as the metric label of failed deletes.
const (
	stageCompensation = "compensation"
	stageUpdate       = "update"
	stageDelete       = "delete"
)

// VideoUpload is a streamed video attachment.
type VideoUpload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
}

// MediaInput is the media part of a create request. Images are base64
// payloads from JSON bodies; Files are raw image bytes from multipart parts
// and are stored after Images.
type MediaInput struct {
	Images []string
	Files  [][]byte
	Video  *VideoUpload
}

// Empty reports whether no media was supplied.
func (in MediaInput) Empty() bool {
	return len(in.Images) == 0 && len(in.Files) == 0 && in.Video == nil
}

// IngestedMedia is what ended up in the blob store for one request.
type IngestedMedia struct {
	Kind      models.MediaKind
	ImageURLs []string
	VideoURL  *string
}

// Uploaded lists every blob written for the request.
func (m IngestedMedia) Uploaded() []string {
	urls := append([]string(nil), m.ImageURLs...)
	if m.VideoURL != nil {
		urls = append(urls, *m.VideoURL)
	}
	return urls
}

// ImageUpdate is the outcome of diffing a post's images against an edit.
type ImageUpdate struct {
	Final   []string
	Added   []string
	Removed []string
}

// MediaIngest moves attachments into the blob store and keeps the store in
// step with the posts that reference them.
type MediaIngest struct {
	blobs         storage.BlobStore
	gate          *AdmissionGate
	prep          *ImagePrep
	flags         *featureflags.Manager
	maxVideoBytes int64
}

// MediaConfig tunes MediaIngest. Zero values fall back to defaults.
type MediaConfig struct {
	MaxVideoBytes     int64
	MaxImageDimension int
	TranscodeWebP     bool
}

func NewMediaIngest(blobs storage.BlobStore, gate *AdmissionGate, flags *featureflags.Manager, cfg MediaConfig) *MediaIngest {
	if gate == nil {
		gate = NewAdmissionGate(0)
	}
	if cfg.MaxVideoBytes <= 0 {
		cfg.MaxVideoBytes = DefaultMaxVideoBytes
	}
	return &MediaIngest{
		blobs:         blobs,
		gate:          gate,
		prep:          NewImagePrep(cfg.MaxImageDimension, cfg.TranscodeWebP),
		flags:         flags,
		maxVideoBytes: cfg.MaxVideoBytes,
	}
}

// Ingest uploads the attachments of a new post or comment. A video wins over
// images; without a video the images are stored; with neither the result is a
// plain text post. On failure nothing uploaded by this call is left behind.
func (m *MediaIngest) Ingest(ctx context.Context, userID uint, in MediaInput) (media IngestedMedia, err error) {
	span, ctx := observability.NewSpan(ctx, "media.ingest",
		attribute.Int("images", len(in.Images)+len(in.Files)),
		attribute.Bool("video", in.Video != nil),
	)
	defer span.Finish(&err)

	if in.Video != nil {
		url, err := m.uploadVideo(ctx, *in.Video)
		if err != nil {
			return IngestedMedia{}, err
		}
		return IngestedMedia{Kind: models.MediaKindVideoShort, ImageURLs: []string{}, VideoURL: &url}, nil
	}

	urls, err := m.uploadImages(ctx, userID, in.Images, in.Files)
	if err != nil {
		return IngestedMedia{}, err
	}
	return IngestedMedia{Kind: models.MediaKindTextImage, ImageURLs: urls}, nil
}

// UpdateImages uploads newImages and works out which of previous are dropped.
// retained is the full set the caller wants to keep; URLs not already attached
// are ignored. Nothing is deleted here: the caller removes Removed once the
// post is saved, or discards Added if saving fails.
func (m *MediaIngest) UpdateImages(ctx context.Context, userID uint, previous, retained, newImages []string) (ImageUpdate, error) {
	attached := make(map[string]bool, len(previous))
	for _, u := range previous {
		attached[u] = true
	}

	final := make([]string, 0, len(retained)+len(newImages))
	kept := make(map[string]bool, len(retained))
	for _, u := range retained {
		if attached[u] && !kept[u] {
			kept[u] = true
			final = append(final, u)
		}
	}

	added, err := m.uploadImages(ctx, userID, newImages, nil)
	if err != nil {
		return ImageUpdate{}, err
	}
	final = append(final, added...)

	var removed []string
	for _, u := range previous {
		if !kept[u] {
			removed = append(removed, u)
		}
	}
	return ImageUpdate{Final: final, Added: added, Removed: removed}, nil
}

// Discard deletes blobs written by a request that did not complete.
func (m *MediaIngest) Discard(ctx context.Context, urls []string) {
	m.cleanup(ctx, urls, stageCompensation)
}

// RemoveDetached deletes blobs no longer referenced after an edit.
func (m *MediaIngest) RemoveDetached(ctx context.Context, urls []string) {
	m.cleanup(ctx, urls, stageUpdate)
}

// RemovePostMedia deletes the blobs of removed posts.
func (m *MediaIngest) RemovePostMedia(ctx context.Context, posts []*models.Post) {
	var urls []string
	for _, p := range posts {
		urls = append(urls, p.MediaURLs()...)
	}
	m.cleanup(ctx, urls, stageDelete)
}

func (m *MediaIngest) uploadVideo(ctx context.Context, v VideoUpload) (string, error) {
	if v.Reader == nil || v.Size <= 0 {
		return "", models.NewValidationError("Video is empty")
	}
	if v.Size > m.maxVideoBytes {
		return "", models.NewValidationError(fmt.Sprintf("Video too large (max %dMB)", m.maxVideoBytes>>20))
	}
	contentType := strings.ToLower(strings.TrimSpace(v.ContentType))
	if !strings.HasPrefix(contentType, "video/") {
		return "", models.NewValidationError("Invalid video type")
	}

	release, err := m.gate.Admit(v.Size)
	if err != nil {
		return "", err
	}
	defer release()

	url, err := m.blobs.UploadVideo(ctx, v.Reader, v.Size, contentType)
	if err != nil {
		observability.MediaUploads.WithLabelValues("video", "failure").Inc()
		return "", models.NewMediaUploadError(err)
	}
	observability.MediaUploads.WithLabelValues("video", "success").Inc()
	return url, nil
}

// uploadImages prepares and stores images in order. Every payload is
// validated before the first upload; a failed upload removes the earlier ones.
func (m *MediaIngest) uploadImages(ctx context.Context, userID uint, payloads []string, files [][]byte) ([]string, error) {
	if len(payloads)+len(files) == 0 {
		return []string{}, nil
	}

	keepOriginal := m.flags.Enabled(featureflags.SkipWebPTranscode, userID)
	prepared := make([]preparedImage, 0, len(payloads)+len(files))
	add := func(img preparedImage, err error) error {
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == models.CodeValidation {
				appErr.Message = fmt.Sprintf("Image %d: %s", len(prepared)+1, appErr.Message)
			}
			return err
		}
		prepared = append(prepared, img)
		return nil
	}
	for _, payload := range payloads {
		if err := add(m.prep.Prepare(payload, keepOriginal)); err != nil {
			return nil, err
		}
	}
	for _, raw := range files {
		if err := add(m.prep.PrepareRaw(raw, keepOriginal)); err != nil {
			return nil, err
		}
	}

	urls := make([]string, 0, len(prepared))
	for _, img := range prepared {
		url, err := m.blobs.Upload(ctx, img.data, img.contentType)
		if err != nil {
			observability.MediaUploads.WithLabelValues("image", "failure").Inc()
			m.cleanup(ctx, urls, stageCompensation)
			return nil, models.NewMediaUploadError(err)
		}
		observability.MediaUploads.WithLabelValues("image", "success").Inc()
		urls = append(urls, url)
	}
	return urls, nil
}

// cleanup deletes urls best-effort. Failures are logged and counted, never returned.
func (m *MediaIngest) cleanup(ctx context.Context, urls []string, stage string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := m.blobs.Delete(ctx, url); err != nil {
			observability.MediaCleanupFailures.WithLabelValues(stage).Inc()
			middleware.Logger.WarnContext(ctx, "media cleanup failed",
				slog.String("stage", stage),
				slog.String("url", url),
				slog.String("error", err.Error()),
			)
		}
	}
}
