package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GoogleCloudStorage implements Provider for Google Cloud Storage
type GoogleCloudStorage struct {
	client     *storage.Client
	bucketName string
	prefix     string
}

// NewGoogleCloudStorage creates a new Google Cloud Storage provider
func NewGoogleCloudStorage() *GoogleCloudStorage {
	return &GoogleCloudStorage{}
}

// Initialize sets up the GCS client. Options: bucket (required), prefix,
// credentialFile, endpoint and anonymous for emulators.
func (g *GoogleCloudStorage) Initialize(config map[string]string) error {
	bucketName := config["bucket"]
	if bucketName == "" {
		return fmt.Errorf("bucket is required for Google Cloud Storage")
	}
	g.bucketName = bucketName
	g.prefix = config["prefix"]

	var opts []option.ClientOption
	if credFile := config["credentialFile"]; credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}
	if endpoint := config["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if v := config["anonymous"]; v != "" {
		anonymous, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid anonymous %q: %w", v, err)
		}
		if anonymous {
			opts = append(opts, option.WithoutAuthentication())
		}
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("failed to create Google Cloud Storage client: %w", err)
	}
	g.client = client
	return nil
}

// Close releases the underlying client
func (g *GoogleCloudStorage) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Store writes content to prefix+key
func (g *GoogleCloudStorage) Store(ctx context.Context, key string, content io.Reader, size int64, metadata map[string]string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	objectName := g.prefix + cleaned

	writer := g.client.Bucket(g.bucketName).Object(objectName).NewWriter(ctx)
	writer.Metadata = metadata
	if ct := metadata[MetaContentType]; ct != "" {
		writer.ContentType = ct
	}

	if _, err := io.Copy(writer, content); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to write file content to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize file upload to GCS: %w", err)
	}
	return objectName, nil
}

// Retrieve opens an object and returns its metadata
func (g *GoogleCloudStorage) Retrieve(ctx context.Context, id string) (io.ReadCloser, map[string]string, error) {
	obj := g.client.Bucket(g.bucketName).Object(id)

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get object attributes from GCS: %w", err)
	}

	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file from GCS: %w", err)
	}

	metadata := make(map[string]string, len(attrs.Metadata)+1)
	for k, v := range attrs.Metadata {
		metadata[k] = v
	}
	if attrs.ContentType != "" && metadata[MetaContentType] == "" {
		metadata[MetaContentType] = attrs.ContentType
	}
	return reader, metadata, nil
}

// Delete removes an object
func (g *GoogleCloudStorage) Delete(ctx context.Context, id string) error {
	if err := g.client.Bucket(g.bucketName).Object(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete file from GCS: %w", err)
	}
	return nil
}

// List returns the objects under the storage prefix plus prefix
func (g *GoogleCloudStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := g.client.Bucket(g.bucketName).Objects(ctx, &storage.Query{Prefix: g.prefix + prefix})

	var files []ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list files from GCS: %w", err)
		}

		files = append(files, ObjectInfo{
			ID:          attrs.Name,
			Name:        path.Base(attrs.Name),
			Size:        attrs.Size,
			ContentType: attrs.ContentType,
			ModifiedAt:  attrs.Updated,
			Metadata:    attrs.Metadata,
		})
	}
	return files, nil
}
