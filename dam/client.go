package dam

import (
	"context"

	"github.com/example/damsdk/models"
)

// Client is the synchronous DAM client. It is safe for concurrent use; each call
// blocks the calling goroutine for the round trip.
type Client struct {
	exec *executor
}

// NewClient validates cfg and creates a client. Zero fields of cfg take their defaults.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	exec, err := newExecutor(cfg.withDefaults())
	if err != nil {
		return nil, err
	}
	return &Client{exec: exec}, nil
}

// Config returns the effective configuration
func (c *Client) Config() Config {
	return c.exec.cfg
}

// UploadFile uploads a single file
func (c *Client) UploadFile(ctx context.Context, src Source, opts *models.UploadOptions) (*models.File, error) {
	return c.exec.uploadFile(ctx, src, opts)
}

// UploadFiles uploads up to Config.MaxBatchFiles files in one request
func (c *Client) UploadFiles(ctx context.Context, srcs []Source, opts *models.UploadOptions) (*models.UploadResponse, error) {
	return c.exec.uploadFiles(ctx, srcs, opts)
}

// ListFiles lists files. A nil opts lists with the defaults.
func (c *Client) ListFiles(ctx context.Context, opts *models.SearchOptions) (*models.FileListResponse, error) {
	return c.exec.listFiles(ctx, opts)
}

// GetFile gets a file by ID
func (c *Client) GetFile(ctx context.Context, id string) (*models.File, error) {
	return c.exec.getFile(ctx, id)
}

// DeleteFile deletes a file by ID and reports the server's success flag
func (c *Client) DeleteFile(ctx context.Context, id string) (bool, error) {
	return c.exec.deleteFile(ctx, id)
}

// FileURL builds the transform URL for a file without making a request
func (c *Client) FileURL(id string, opts *models.TransformOptions) string {
	return c.exec.fileURL(id, opts)
}

// ThumbnailURL builds the thumbnail URL for a file. size <= 0 selects 200.
func (c *Client) ThumbnailURL(id string, size int) string {
	return c.exec.thumbnailURL(id, size)
}

// DownloadFile streams a file, optionally transformed, to outputPath and returns the path
func (c *Client) DownloadFile(ctx context.Context, id, outputPath string, opts *models.TransformOptions) (string, error) {
	return c.exec.downloadFile(ctx, id, outputPath, opts)
}

// DashboardStats returns the dashboard statistics object
func (c *Client) DashboardStats(ctx context.Context) (map[string]any, error) {
	return c.exec.dashboardStats(ctx)
}

// StorageStats returns the storage statistics object
func (c *Client) StorageStats(ctx context.Context) (map[string]any, error) {
	return c.exec.storageStats(ctx)
}

// BatchDeleteFiles deletes several files and returns the raw response envelope.
// The endpoint requires a bearer token, see Config.TokenSource.
func (c *Client) BatchDeleteFiles(ctx context.Context, ids []string) (models.Envelope, error) {
	return c.exec.batchDeleteFiles(ctx, ids)
}

// Close releases idle connections. The client stays usable and reconnects on demand.
func (c *Client) Close() error {
	c.exec.close()
	return nil
}
