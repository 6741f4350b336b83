// Package admin implements the manual management workflow: listing,
// optimistic deletion with rollback, and uploads with progress feedback.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/manualdesk/internal/client"
	"github.com/raphaelgruber/manualdesk/internal/models"
)

// ErrUploadInProgress is returned when an upload is started while another
// one is outstanding.
var ErrUploadInProgress = errors.New("an upload is already in progress")

// ErrDeleteInProgress is returned when the manual is already being deleted.
var ErrDeleteInProgress = errors.New("a delete of this manual is already in progress")

// Status is the lifecycle state of a listed manual.
type Status int

const (
	// StatusStable means no operation is pending for the manual.
	StatusStable Status = iota
	// StatusPendingDelete means a delete request is in flight.
	StatusPendingDelete
	// StatusFailed means the last delete attempt failed and was rolled back.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPendingDelete:
		return "deleting"
	case StatusFailed:
		return "failed"
	default:
		return "stable"
	}
}

// View is the active admin screen.
type View int

const (
	ViewUpload View = iota
	ViewManage
)

// Backend is the subset of the API client the controller needs.
type Backend interface {
	ListFiles(ctx context.Context) ([]models.ManualFile, error)
	DeleteFile(ctx context.Context, fileID string) (*client.APIResponse, error)
	UploadFile(ctx context.Context, draft models.UploadDraft, meta models.UploadMetadata) (*client.UploadResponse, error)
	DownloadFile(ctx context.Context, filename string, w io.Writer) (int64, error)
}

// Options configures a Controller. Zero values select defaults.
type Options struct {
	Notifier Notifier
	Logger   *slog.Logger
	// OnProgress receives every change of the upload progress value.
	OnProgress func(percent int)
	// Tick is the interval of the synthetic progress advance.
	Tick time.Duration
	// Cooldown is how long the progress stays at 100 before resetting to 0.
	Cooldown time.Duration
	// SuccessTTL is how long upload success notices stay visible.
	SuccessTTL time.Duration
	// RefreshGuard bounds a listing refresh.
	RefreshGuard time.Duration
	Now          func() time.Time
}

const (
	progressStep = 10
	progressCap  = 90
)

// Messages shown to the user.
const (
	msgSelectFile      = "Please select a file to upload"
	msgRequiredFields  = "Brand and Model are required fields"
	msgUploadFailed    = "Upload failed. Please try again."
	msgInvalidFileID   = "Cannot delete: Invalid file ID"
	msgRefreshTimedOut = "Request timed out while loading manuals. Please check your connection and try again."
	msgRefreshSlow     = "Loading manuals is taking longer than expected. Showing an empty list for now."
	msgNoConnection    = "Cannot connect to server. Please check if the server is running."
)

// Controller holds the admin view-state. It is safe for concurrent use; the
// lock is never held across a backend call.
type Controller struct {
	backend    Backend
	notifier   Notifier
	logger     *slog.Logger
	onProgress func(int)
	tick       time.Duration
	cooldown   time.Duration
	successTTL time.Duration
	guard      time.Duration
	now        func() time.Time

	mu          sync.Mutex
	files       []models.ManualFile
	status      map[string]Status
	inFlight    map[string]bool
	downloading map[string]bool
	draft       *models.UploadDraft
	form        models.UploadMetadata
	view        View
	uploading   bool
	progress    int
	timers      []*time.Timer
}

// New creates a controller backed by b.
func New(b Backend, opts Options) *Controller {
	c := &Controller{
		backend:     b,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
		onProgress:  opts.OnProgress,
		tick:        opts.Tick,
		cooldown:    opts.Cooldown,
		successTTL:  opts.SuccessTTL,
		guard:       opts.RefreshGuard,
		now:         opts.Now,
		status:      make(map[string]Status),
		inFlight:    make(map[string]bool),
		downloading: make(map[string]bool),
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.onProgress == nil {
		c.onProgress = func(int) {}
	}
	if c.tick <= 0 {
		c.tick = 200 * time.Millisecond
	}
	if c.cooldown <= 0 {
		c.cooldown = 2 * time.Second
	}
	if c.successTTL <= 0 {
		c.successTTL = 4 * time.Second
	}
	if c.guard <= 0 {
		c.guard = 15 * time.Second
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.form = c.defaultForm()
	return c
}

// Close stops pending notice and progress timers.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
}

func (c *Controller) defaultForm() models.UploadMetadata {
	return models.UploadMetadata{
		Brand:    "Samsung",
		Year:     strconv.Itoa(c.now().Year()),
		Language: "en",
	}
}

func (c *Controller) notify(sev Severity, msg string, ttl time.Duration) {
	n := newNotice(sev, msg)
	n.TTL = ttl
	c.notifier.Notify(n)
	if ttl > 0 {
		c.after(ttl, func() { c.notifier.Dismiss(n.ID) })
	}
}

func (c *Controller) after(d time.Duration, f func()) {
	t := time.AfterFunc(d, f)
	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()
}

// =============================================================================
// STATE ACCESSORS
// =============================================================================

// Files returns a copy of the working set, newest first.
func (c *Controller) Files() []models.ManualFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ManualFile, len(c.files))
	copy(out, c.files)
	return out
}

// Status returns the lifecycle state of the manual with the given key.
func (c *Controller) Status(key string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status[key]
}

// Deleting reports whether a delete request for key is in flight.
func (c *Controller) Deleting(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight[key]
}

// Downloading reports whether a download for key is in flight.
func (c *Controller) Downloading(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downloading[key]
}

// Progress returns the current upload progress in percent.
func (c *Controller) Progress() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Uploading reports whether an upload is outstanding.
func (c *Controller) Uploading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploading
}

// View returns the active view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Form returns the current upload metadata form.
func (c *Controller) Form() models.UploadMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// SetForm replaces the upload metadata form.
func (c *Controller) SetForm(f models.UploadMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form = f
}

// Draft returns the selected upload draft, if any.
func (c *Controller) Draft() (models.UploadDraft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return models.UploadDraft{}, false
	}
	return *c.draft, true
}

// =============================================================================
// LISTING
// =============================================================================

// SetView switches the active view. Entering the manage view refreshes the
// listing.
func (c *Controller) SetView(ctx context.Context, v View) error {
	c.mu.Lock()
	c.view = v
	c.mu.Unlock()
	if v == ViewManage {
		return c.Refresh(ctx)
	}
	return nil
}

// Refresh reloads the working set from the backend. On failure the working
// set is emptied and a notice describes the cause.
func (c *Controller) Refresh(ctx context.Context) error {
	guarded, cancel := context.WithTimeout(ctx, c.guard)
	defer cancel()

	files, err := c.backend.ListFiles(guarded)
	if err == nil && guarded.Err() != nil && ctx.Err() == nil {
		c.notify(SeverityInfo, msgRefreshSlow, 0)
	}
	if err != nil {
		c.mu.Lock()
		c.files = nil
		c.mu.Unlock()

		switch client.KindOf(err) {
		case client.KindTimeout:
			c.notify(SeverityError, msgRefreshTimedOut, 0)
		case client.KindConnectivity:
			c.notify(SeverityError, msgNoConnection, 0)
		default:
			c.notify(SeverityError, "Failed to load manuals: "+err.Error(), 0)
		}
		c.logger.Warn("failed to load manuals", "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := make([]models.ManualFile, len(files))
	copy(kept, files)
	models.SortNewestFirst(kept)
	c.files = kept
	for key, st := range c.status {
		if st == StatusFailed {
			delete(c.status, key)
		}
	}
	c.logger.Debug("manual listing refreshed", "count", len(kept))
	return nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a manual optimistically: it disappears from the working set
// before the request is sent and is put back if the request fails.
func (c *Controller) Delete(ctx context.Context, file models.ManualFile) error {
	if strings.TrimSpace(file.FileID) == "" {
		err := &client.Error{Kind: client.KindLocalState, Op: "delete", Message: msgInvalidFileID}
		c.notify(SeverityError, err.Message, 0)
		return err
	}
	key := file.Key()

	c.mu.Lock()
	if c.inFlight[key] {
		c.mu.Unlock()
		return ErrDeleteInProgress
	}
	c.removeLocked(key)
	c.status[key] = StatusPendingDelete
	c.inFlight[key] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, key)
		if c.status[key] == StatusPendingDelete {
			delete(c.status, key)
		}
		c.mu.Unlock()
	}()

	c.notify(SeverityInfo, fmt.Sprintf("Deleting %s...", file.Name), 0)

	if _, err := c.backend.DeleteFile(ctx, file.FileID); err != nil {
		c.mu.Lock()
		if !c.containsLocked(key) {
			c.files = append(c.files, file)
			models.SortNewestFirst(c.files)
		}
		c.status[key] = StatusFailed
		c.mu.Unlock()

		c.logger.Warn("delete failed, restored manual", "file", file.Name, "file_id", file.FileID, "error", err)
		c.notify(SeverityError, fmt.Sprintf("Failed to delete %s. Please try again.", file.Name), 0)
		return err
	}

	c.logger.Info("manual deleted", "file", file.Name, "file_id", file.FileID)
	c.notify(SeveritySuccess, fmt.Sprintf("Successfully deleted %s", file.Name), 0)
	return nil
}

func (c *Controller) removeLocked(key string) {
	kept := c.files[:0]
	for _, f := range c.files {
		if f.Key() != key {
			kept = append(kept, f)
		}
	}
	c.files = kept
}

func (c *Controller) containsLocked(key string) bool {
	for _, f := range c.files {
		if f.Key() == key {
			return true
		}
	}
	return false
}

// =============================================================================
// UPLOAD
// =============================================================================

// Select validates a file picked for upload and makes it the current draft.
// Rejected files leave the previous draft in place.
func (c *Controller) Select(draft models.UploadDraft) error {
	if err := client.ValidateUpload(draft.Filename, draft.Size); err != nil {
		c.notify(SeverityError, err.Error(), 0)
		return err
	}

	c.mu.Lock()
	existing, dup := models.FindByName(c.files, draft.Filename)
	if !dup {
		c.draft = &draft
	}
	c.mu.Unlock()

	if dup {
		err := &client.Error{
			Kind:    client.KindValidation,
			Op:      "upload",
			Message: client.DuplicateMessage(existing.Name, existing.Brand, existing.Model, existing.Timestamp),
		}
		c.notify(SeverityError, err.Message, 0)
		return err
	}
	return nil
}

// CancelDraft discards the selected draft.
func (c *Controller) CancelDraft() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = nil
}

// Upload submits the selected draft with the current form. While the request
// is outstanding the progress value advances synthetically.
func (c *Controller) Upload(ctx context.Context) (*client.UploadResponse, error) {
	c.mu.Lock()
	if c.uploading {
		c.mu.Unlock()
		return nil, ErrUploadInProgress
	}
	var verr *client.Error
	switch {
	case c.draft == nil:
		verr = &client.Error{Kind: client.KindValidation, Op: "upload", Message: msgSelectFile}
	case strings.TrimSpace(c.form.Brand) == "" || strings.TrimSpace(c.form.Model) == "":
		verr = &client.Error{Kind: client.KindValidation, Op: "upload", Message: msgRequiredFields}
	}
	if verr != nil {
		c.mu.Unlock()
		c.notify(SeverityError, verr.Message, 0)
		return nil, verr
	}
	draft := *c.draft
	meta := c.form
	c.uploading = true
	c.progress = 0
	c.mu.Unlock()

	if meta.ProductType == "" {
		meta.ProductType = "Unknown"
	}
	if meta.Year == "" {
		meta.Year = strconv.Itoa(c.now().Year())
	}
	if seeker, ok := draft.Body.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			c.logger.Warn("failed to rewind upload draft", "file", draft.Filename, "error", err)
		}
	}

	c.setProgress(0)
	stop := c.startProgress()
	resp, err := c.backend.UploadFile(ctx, draft, meta)
	stop()

	c.setProgress(100)
	c.after(c.cooldown, func() { c.setProgress(0) })
	c.mu.Lock()
	c.uploading = false
	c.mu.Unlock()

	if err != nil {
		msg := msgUploadFailed
		var apiErr *client.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		c.logger.Warn("upload failed", "file", draft.Filename, "error", err)
		c.notify(SeverityError, msg, 0)
		return nil, err
	}

	c.mu.Lock()
	c.draft = nil
	c.form = c.defaultForm()
	view := c.view
	c.mu.Unlock()

	name := resp.Filename
	if name == "" {
		name = draft.Filename
	}
	c.logger.Info("manual uploaded", "file", name, "file_id", resp.FileID)
	c.notify(SeveritySuccess, "Successfully uploaded "+name, c.successTTL)

	if view == ViewManage {
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn("refresh after upload failed", "file", name, "error", err)
		}
	}
	return resp, nil
}

func (c *Controller) setProgress(p int) {
	c.mu.Lock()
	c.progress = p
	c.mu.Unlock()
	c.onProgress(p)
}

// startProgress advances the progress value every tick until the returned
// function is called. The stop function waits for the ticker goroutine.
func (c *Controller) startProgress() func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.mu.Lock()
				p := min(c.progress+progressStep, progressCap)
				changed := p != c.progress
				c.progress = p
				c.mu.Unlock()
				if changed {
					c.onProgress(p)
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// =============================================================================
// DOWNLOAD
// =============================================================================

// Download saves a manual into dir and returns the written path. A ".pdf"
// suffix is added when the name lacks one.
func (c *Controller) Download(ctx context.Context, file models.ManualFile, dir string) (string, error) {
	key := file.Key()
	c.mu.Lock()
	c.downloading[key] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.downloading, key)
		c.mu.Unlock()
	}()

	name := filepath.Base(file.Name)
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	path := filepath.Join(dir, name)

	out, err := os.Create(path)
	if err != nil {
		c.notify(SeverityError, fmt.Sprintf("Failed to download %s: %v", file.Name, err), 0)
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	_, err = c.backend.DownloadFile(ctx, file.Name, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", path, cerr)
	}
	if err != nil {
		os.Remove(path)
		c.logger.Warn("download failed", "file", file.Name, "error", err)
		c.notify(SeverityError, err.Error(), 0)
		return "", err
	}

	c.notify(SeveritySuccess, "Successfully downloaded "+file.Name, 0)
	return path, nil
}
