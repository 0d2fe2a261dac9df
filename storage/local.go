package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const metaSuffix = ".meta"

// LocalStorage implements Provider on the local filesystem. Metadata is kept in a
// "<object>.meta" sidecar of key=value lines.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage provider
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{}
}

// Initialize sets up the local storage. Option basePath defaults to ./storage.
func (l *LocalStorage) Initialize(config map[string]string) error {
	if path, ok := config["basePath"]; ok && path != "" {
		l.basePath = path
	} else {
		l.basePath = "./storage"
	}

	if err := os.MkdirAll(l.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return nil
}

// BasePath returns the root directory of this provider
func (l *LocalStorage) BasePath() string {
	return l.basePath
}

func (l *LocalStorage) objectPath(id string) (string, string, error) {
	key, err := cleanKey(id)
	if err != nil {
		return "", "", err
	}
	return key, filepath.Join(l.basePath, filepath.FromSlash(key)), nil
}

// Store writes content to basePath/key
func (l *LocalStorage) Store(ctx context.Context, key string, content io.Reader, size int64, metadata map[string]string) (string, error) {
	id, filePath, err := l.objectPath(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(file, &ctxReader{ctx: ctx, r: content})
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err == nil && size >= 0 && written != size {
		err = fmt.Errorf("short write: expected %d bytes, got %d", size, written)
	}
	if err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to write file content: %w", err)
	}

	if len(metadata) > 0 {
		if err := writeMeta(filePath+metaSuffix, metadata); err != nil {
			return "", err
		}
	}
	return id, nil
}

// Retrieve opens a stored file and reads its sidecar metadata
func (l *LocalStorage) Retrieve(ctx context.Context, id string) (io.ReadCloser, map[string]string, error) {
	_, filePath, err := l.objectPath(id)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, readMeta(filePath + metaSuffix), nil
}

// Delete removes a stored file and its metadata
func (l *LocalStorage) Delete(ctx context.Context, id string) error {
	_, filePath, err := l.objectPath(id)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(filePath + metaSuffix); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	return nil
}

// List returns the stored files whose key starts with prefix
func (l *LocalStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var files []ObjectInfo

	err := filepath.Walk(l.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(info.Name(), metaSuffix) {
			return nil
		}

		relPath, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		id := filepath.ToSlash(relPath)
		if prefix != "" && !strings.HasPrefix(id, prefix) {
			return nil
		}

		metadata := readMeta(path + metaSuffix)
		name := info.Name()
		if original := metadata[MetaFilename]; original != "" {
			name = original
		}

		files = append(files, ObjectInfo{
			ID:          id,
			Name:        name,
			Size:        info.Size(),
			ContentType: metadata[MetaContentType],
			ModifiedAt:  info.ModTime(),
			Metadata:    metadata,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

func writeMeta(path string, metadata map[string]string) error {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		// values are single line
		v := strings.NewReplacer("\n", " ", "\r", " ").Replace(metadata[k])
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func readMeta(path string) map[string]string {
	metadata := make(map[string]string)
	data, err := os.ReadFile(path)
	if err != nil {
		return metadata
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		}
	}
	return metadata
}

// ctxReader stops a copy once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
