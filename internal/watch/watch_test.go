package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raphaelgruber/manualdesk/internal/client"
	"github.com/raphaelgruber/manualdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsSettledManuals(t *testing.T) {
	dir := t.TempDir()
	w, err := New(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	paths, err := w.Watch(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".partial.pdf"), []byte("x"), 0o644))
	target := filepath.Join(dir, "manual.pdf")
	require.NoError(t, os.WriteFile(target, []byte("%PDF"), 0o644))

	select {
	case got := <-paths:
		want, _ := filepath.Abs(target)
		assert.Equal(t, want, got)
	case <-ctx.Done():
		t.Fatal("timeout waiting for manual")
	}

	select {
	case got := <-paths:
		t.Errorf("unexpected path %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	w, err := New(0, nil)
	require.NoError(t, err)
	defer w.Stop()

	_, err = w.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestAccepted(t *testing.T) {
	assert.True(t, accepted("/tmp/a.PDF"))
	assert.True(t, accepted("notes.txt"))
	assert.False(t, accepted("/tmp/.a.pdf"))
	assert.False(t, accepted("/tmp/a.pdf.crdownload"))
}

type stubUploader struct {
	selected  []string
	forms     []models.UploadMetadata
	uploadErr error
	canceled  int
}

func (s *stubUploader) Select(d models.UploadDraft) error {
	s.selected = append(s.selected, d.Filename)
	return nil
}

func (s *stubUploader) SetForm(m models.UploadMetadata) { s.forms = append(s.forms, m) }

func (s *stubUploader) Upload(ctx context.Context) (*client.UploadResponse, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return &client.UploadResponse{Success: true, Filename: s.selected[len(s.selected)-1]}, nil
}

func (s *stubUploader) CancelDraft() { s.canceled++ }

func TestFeederUploadsEachPath(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "WA50.pdf")
	b := filepath.Join(dir, "guide.txt")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o644))

	u := &stubUploader{}
	f := NewFeeder(u, models.UploadMetadata{Brand: "Samsung", Model: "", Language: "en"}, nil)

	paths := make(chan string, 3)
	paths <- a
	paths <- b
	paths <- filepath.Join(dir, "gone.pdf")
	close(paths)

	var results []Result
	f.Run(context.Background(), paths, func(r Result) { results = append(results, r) })

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.Error(t, results[2].Err)
	assert.Equal(t, []string{"WA50.pdf", "guide.txt"}, u.selected)
	assert.Equal(t, "WA50", u.forms[0].Model)
	assert.Equal(t, "guide", u.forms[1].Model)
	assert.Equal(t, "Samsung", u.forms[1].Brand)
}

func TestFeederCancelsDraftOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	u := &stubUploader{uploadErr: errors.New("offline")}
	res := NewFeeder(u, models.UploadMetadata{Brand: "LG", Model: "X"}, nil).Upload(context.Background(), path)
	assert.Error(t, res.Err)
	assert.Equal(t, 1, u.canceled)
	assert.Equal(t, "X", u.forms[0].Model)
}
