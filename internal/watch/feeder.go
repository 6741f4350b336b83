package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/manualdesk/internal/client"
	"github.com/raphaelgruber/manualdesk/internal/models"
)

// Uploader is the upload half of the admin controller.
type Uploader interface {
	Select(draft models.UploadDraft) error
	SetForm(meta models.UploadMetadata)
	Upload(ctx context.Context) (*client.UploadResponse, error)
	CancelDraft()
}

// Result is the outcome of one dropped file.
type Result struct {
	Path     string
	Response *client.UploadResponse
	Err      error
}

// Feeder uploads the files reported by a Watcher one after another.
type Feeder struct {
	uploader Uploader
	template models.UploadMetadata
	logger   *slog.Logger
}

// NewFeeder creates a feeder. template supplies the metadata of every
// upload; a blank model is replaced by the file name without extension.
func NewFeeder(u Uploader, template models.UploadMetadata, logger *slog.Logger) *Feeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feeder{uploader: u, template: template, logger: logger}
}

// Run consumes paths until the channel closes or ctx is done. Each
// outcome is passed to report, which may be nil.
func (f *Feeder) Run(ctx context.Context, paths <-chan string, report func(Result)) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-paths:
			if !ok {
				return
			}
			res := f.Upload(ctx, path)
			if report != nil {
				report(res)
			}
		}
	}
}

// Upload sends a single file through the uploader.
func (f *Feeder) Upload(ctx context.Context, path string) Result {
	res := Result{Path: path}

	draft, closeFn, err := models.OpenDraft(path)
	if err != nil {
		res.Err = err
		f.logger.Warn("cannot open dropped file", "path", path, "error", err)
		return res
	}
	defer closeFn()

	if err := f.uploader.Select(draft); err != nil {
		res.Err = err
		return res
	}

	meta := f.template
	if strings.TrimSpace(meta.Model) == "" {
		meta.Model = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	f.uploader.SetForm(meta)

	res.Response, res.Err = f.uploader.Upload(ctx)
	if res.Err != nil {
		// The draft holds an open file that is about to be closed.
		f.uploader.CancelDraft()
	}
	return res
}
