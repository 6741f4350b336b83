package models

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxUploadSize is the largest manual the backend accepts (16 MiB).
const MaxUploadSize = 16 * 1024 * 1024

// AllowedExtensions lists the accepted manual file extensions.
var AllowedExtensions = []string{".pdf", ".txt", ".doc", ".docx"}

// UploadDraft is a manual selected for upload but not yet submitted.
type UploadDraft struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// Extension returns the lower-cased extension of the draft's file name,
// including the leading dot.
func (d UploadDraft) Extension() string {
	return strings.ToLower(filepath.Ext(d.Filename))
}

// OpenDraft opens a local file as an upload draft.
// The returned close function releases the file handle.
func OpenDraft(path string) (UploadDraft, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadDraft{}, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return UploadDraft{}, nil, err
	}
	return UploadDraft{
		Filename: filepath.Base(path),
		Size:     info.Size(),
		Body:     f,
	}, f.Close, nil
}

// IsAllowedExtension reports whether ext (with leading dot) is accepted.
func IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, a := range AllowedExtensions {
		if a == ext {
			return true
		}
	}
	return false
}
