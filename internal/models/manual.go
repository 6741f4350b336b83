// Package models defines the records exchanged with the manual service backend.
package models

import (
	"sort"
	"time"
)

// ManualFile is a manual as reported by the backend listing.
type ManualFile struct {
	Name        string     `json:"name"`
	FileID      string     `json:"file_id,omitempty"`
	Brand       string     `json:"brand,omitempty"`
	Model       string     `json:"model,omitempty"`
	ProductType string     `json:"product_type,omitempty"`
	Year        FlexString `json:"year,omitempty"`
	Language    string     `json:"language,omitempty"`
	Timestamp   Millis     `json:"timestamp"`
}

// Key returns the identity of the manual: its file ID, or its name when the
// backend did not assign one.
func (m ManualFile) Key() string {
	if m.FileID != "" {
		return m.FileID
	}
	return m.Name
}

// UploadedAt returns the upload time.
func (m ManualFile) UploadedAt() time.Time {
	return m.Timestamp.Time()
}

// SortNewestFirst orders manuals by timestamp, most recent first.
func SortNewestFirst(files []ManualFile) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Timestamp > files[j].Timestamp
	})
}

// FindByName returns the first manual with the given file name.
func FindByName(files []ManualFile, name string) (ManualFile, bool) {
	for _, f := range files {
		if f.Name == name {
			return f, true
		}
	}
	return ManualFile{}, false
}

// CatalogEntry is a manual as shown in a category listing.
// Demo entries are placeholders and have no file behind them.
type CatalogEntry struct {
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	ProductType string `json:"product_type"`
	Year        string `json:"year"`
	Language    string `json:"language"`
	FileID      string `json:"file_id,omitempty"`
	Filename    string `json:"filename,omitempty"`
	IsDemoData  bool   `json:"isDemoData,omitempty"`
}

// UploadMetadata is the descriptive form data sent along with an upload.
type UploadMetadata struct {
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	ProductType string `json:"product_type"`
	Year        string `json:"year"`
	Language    string `json:"language"`
}

// Fields returns the metadata as multipart form fields, skipping empty values.
func (u UploadMetadata) Fields() map[string]string {
	out := make(map[string]string, 5)
	for k, v := range map[string]string{
		"brand":        u.Brand,
		"model":        u.Model,
		"product_type": u.ProductType,
		"year":         u.Year,
		"language":     u.Language,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
