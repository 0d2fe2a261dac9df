// Package storage provides the object stores DAM files can be mirrored to and imported from
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/damsdk/internal/fileutil"
)

// Metadata keys written by the SDK
const (
	MetaFilename    = "filename"
	MetaContentType = "contentType"
	MetaFileID      = "damFileId"
	MetaChecksum    = "checksum"
)

// ErrInvalidKey is returned for keys that are empty or escape the provider root
var ErrInvalidKey = errors.New("invalid object key")

// Provider defines the interface for all storage implementations
type Provider interface {
	// Initialize sets up the provider from string options
	Initialize(config map[string]string) error

	// Store saves content under key and returns the identifier of the stored object
	Store(ctx context.Context, key string, content io.Reader, size int64, metadata map[string]string) (string, error)

	// Retrieve opens a stored object and returns its metadata
	Retrieve(ctx context.Context, id string) (io.ReadCloser, map[string]string, error)

	// Delete removes a stored object
	Delete(ctx context.Context, id string) error

	// List returns the objects whose identifier starts with prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectInfo describes a stored object
type ObjectInfo struct {
	ID          string
	Name        string
	Size        int64
	ContentType string
	ModifiedAt  time.Time
	Metadata    map[string]string
}

// Config selects and configures a provider
type Config struct {
	// Provider type: "local", "s3" or "gcs"
	Provider string `json:"provider"`

	// Provider-specific options such as basePath, bucket, region or prefix
	Options map[string]string `json:"options"`
}

var knownMetaKeys = []string{MetaFilename, MetaContentType, MetaFileID, MetaChecksum}

// canonicalMetaKey restores the casing of SDK metadata keys. S3 returns user
// metadata keys in HTTP header casing.
func canonicalMetaKey(key string) string {
	for _, known := range knownMetaKeys {
		if strings.EqualFold(key, known) {
			return known
		}
	}
	return key
}

// NewKey builds a unique object key "<uuid>-<name>" from the base name of name,
// with characters unsafe in filenames and spaces replaced by "_"
func NewKey(name string) string {
	name = strings.ReplaceAll(fileutil.SanitizeFilename(name), " ", "_")
	if name == "" || name == "." || name == ".." {
		name = "file"
	}
	return uuid.NewString() + "-" + name
}

// cleanKey normalizes key to a relative slash separated path
func cleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, `\`, "/")
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}
