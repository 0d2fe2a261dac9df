// Package models provides the data structures returned by the DAM API
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingID is returned when a file record has no id
var ErrMissingID = errors.New("file record has no id")

// documentTypes are the MIME types reported as documents by File.IsDocument
var documentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// File represents a file stored in the DAM system.
// Values are only produced by decoding server responses.
type File struct {
	ID            string         `json:"id"`
	Filename      string         `json:"filename"`
	OriginalName  string         `json:"original_name"`
	MimeType      string         `json:"mime_type"`
	Size          int64          `json:"size"`
	StoragePath   string         `json:"storage_path"`
	FileURL       string         `json:"file_url"`
	UserID        string         `json:"user_id"`
	FolderID      *string        `json:"folder_id,omitempty"`
	Width         *int           `json:"width,omitempty"`
	Height        *int           `json:"height,omitempty"`
	Duration      *float64       `json:"duration,omitempty"`
	Metadata      map[string]any `json:"metadata"`
	Checksum      *string        `json:"checksum,omitempty"`
	IsPublic      bool           `json:"is_public"`
	DownloadCount int            `json:"download_count"`
	CreatedAt     *time.Time     `json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `json:"updated_at,omitempty"`
}

// IsImage reports whether the file has an image MIME type
func (f File) IsImage() bool {
	return strings.HasPrefix(f.MimeType, "image/")
}

// IsVideo reports whether the file has a video MIME type
func (f File) IsVideo() bool {
	return strings.HasPrefix(f.MimeType, "video/")
}

// IsDocument reports whether the file is an office or PDF document
func (f File) IsDocument() bool {
	return documentTypes[f.MimeType]
}

// UnmarshalJSON decodes a server file record. The id is required and timestamps
// must be ISO-8601 or absent.
func (f *File) UnmarshalJSON(data []byte) error {
	type plain File
	aux := struct {
		*plain
		IsPublic  *bool     `json:"is_public"`
		CreatedAt Timestamp `json:"created_at"`
		UpdatedAt Timestamp `json:"updated_at"`
	}{plain: (*plain)(f)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("invalid file record: %w", err)
	}
	if f.ID == "" {
		return ErrMissingID
	}

	f.IsPublic = true
	if aux.IsPublic != nil {
		f.IsPublic = *aux.IsPublic
	}
	if f.Metadata == nil {
		f.Metadata = map[string]any{}
	}
	f.CreatedAt = aux.CreatedAt.Ptr()
	f.UpdatedAt = aux.UpdatedAt.Ptr()
	return nil
}

// FileFromMap builds a File from a decoded JSON object
func FileFromMap(data map[string]any) (File, error) {
	var f File
	if err := remarshal(data, &f); err != nil {
		return File{}, err
	}
	return f, nil
}

// FilesFromValue builds files from a decoded JSON array. A nil value yields an empty slice.
func FilesFromValue(v any) ([]File, error) {
	if v == nil {
		return []File{}, nil
	}
	var files []File
	if err := remarshal(v, &files); err != nil {
		return nil, err
	}
	if files == nil {
		files = []File{}
	}
	return files, nil
}

// remarshal converts an already decoded JSON value into a typed destination
func remarshal(v any, dst any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	return json.Unmarshal(raw, dst)
}
