package dam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/example/damsdk/internal/dispatch"
	"github.com/example/damsdk/models"
)

// Future is the pending result of an AsyncClient call
type Future[T any] struct {
	task  *dispatch.Task
	value T
}

// Done is closed once the call has finished
func (f *Future[T]) Done() <-chan struct{} {
	return f.task.Done()
}

// Wait blocks until the call finishes or ctx is done. Abandoning the wait does
// not cancel the call; cancel the context passed to the call for that.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-f.task.Done():
	case <-ctx.Done():
		return zero, contextError(ctx.Err())
	}

	if err := f.task.Err(); err != nil {
		return zero, taskError(err)
	}
	return f.value, nil
}

// AsyncClient runs calls on a bounded worker pool and returns a Future for each.
// The HTTP client and pool are created on first use and released by Close; a
// call after Close creates them again.
type AsyncClient struct {
	cfg Config
	seq atomic.Uint64

	mu   sync.Mutex
	exec *executor
	pool *dispatch.Pool
}

// NewAsyncClient validates cfg and creates an async client. Nothing is allocated
// until the first call.
func NewAsyncClient(cfg Config) (*AsyncClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &AsyncClient{cfg: cfg.withDefaults()}, nil
}

// Config returns the effective configuration
func (c *AsyncClient) Config() Config {
	return c.cfg
}

func (c *AsyncClient) acquire() (*executor, *dispatch.Pool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.exec == nil {
		exec, err := newExecutor(c.cfg)
		if err != nil {
			return nil, nil, err
		}
		c.exec = exec
		c.pool = dispatch.NewPool(c.cfg.AsyncWorkers, c.cfg.AsyncQueueSize, exec.logger.Named("async"))
	}
	return c.exec, c.pool, nil
}

// Close fails queued calls with a closed-client error, waits for running calls
// and releases idle connections
func (c *AsyncClient) Close() error {
	c.mu.Lock()
	exec, pool := c.exec, c.pool
	c.exec, c.pool = nil, nil
	c.mu.Unlock()

	if pool != nil {
		pool.Stop()
	}
	if exec != nil {
		exec.close()
	}
	return nil
}

// AsyncStats describes the calls held by an AsyncClient
type AsyncStats struct {
	// Pending counts queued and running calls
	Pending int
	// Queued counts calls waiting for a worker
	Queued int
}

// Stats reports the calls currently held by the worker pool
func (c *AsyncClient) Stats() AsyncStats {
	c.mu.Lock()
	pool := c.pool
	c.mu.Unlock()

	if pool == nil {
		return AsyncStats{}
	}
	return AsyncStats{Pending: pool.ActiveTasks(), Queued: pool.QueueLen()}
}

// submit queues fn on the pool. It blocks while the queue is full unless
// Config.AsyncFailFast is set.
func submit[T any](c *AsyncClient, ctx context.Context, name string, fn func(context.Context, *executor) (T, error)) *Future[T] {
	id := fmt.Sprintf("%s-%d", name, c.seq.Add(1))
	f := &Future[T]{}

	exec, pool, err := c.acquire()
	if err != nil {
		f.task = dispatch.FailedTask(id, err)
		return f
	}

	task := dispatch.NewTask(ctx, id, func(ctx context.Context) error {
		v, err := fn(ctx, exec)
		f.value = v
		return err
	})
	if c.cfg.AsyncFailFast {
		err = pool.TrySubmit(task)
	} else {
		err = pool.Submit(ctx, task)
	}
	if err != nil {
		f.task = dispatch.FailedTask(id, err)
		return f
	}
	f.task = task
	return f
}

func failed[T any](c *AsyncClient, name string, err error) *Future[T] {
	return &Future[T]{task: dispatch.FailedTask(fmt.Sprintf("%s-%d", name, c.seq.Add(1)), err)}
}

// taskError maps pool and context outcomes to SDK errors
func taskError(err error) error {
	var dErr *Error
	switch {
	case errors.As(err, &dErr):
		return dErr
	case errors.Is(err, dispatch.ErrPoolClosed):
		return &Error{Kind: KindUnknown, Message: "client closed", Err: ErrClientClosed}
	case errors.Is(err, dispatch.ErrQueueFull):
		return &Error{Kind: KindUnknown, Message: "async queue is full", Err: ErrQueueFull}
	default:
		return contextError(err)
	}
}

func contextError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return wrapError(KindTimeout, err, "request timed out")
	case errors.Is(err, context.Canceled):
		return wrapError(KindUnknown, err, "request canceled")
	default:
		return wrapError(KindUnknown, err, "request failed")
	}
}

func notImplementedUpload(src Source) error {
	return newError(KindNotImplemented, "async uploads from readers are not supported (source %s)", src)
}

// UploadFile uploads a single file. Only path sources are supported.
func (c *AsyncClient) UploadFile(ctx context.Context, src Source, opts *models.UploadOptions) *Future[*models.File] {
	if !src.IsPath() {
		return failed[*models.File](c, "upload", notImplementedUpload(src))
	}
	return submit(c, ctx, "upload", func(ctx context.Context, e *executor) (*models.File, error) {
		return e.uploadFile(ctx, src, opts)
	})
}

// UploadFiles uploads several files in one request. Only path sources are supported.
func (c *AsyncClient) UploadFiles(ctx context.Context, srcs []Source, opts *models.UploadOptions) *Future[*models.UploadResponse] {
	for _, src := range srcs {
		if !src.IsPath() {
			return failed[*models.UploadResponse](c, "upload-multiple", notImplementedUpload(src))
		}
	}
	return submit(c, ctx, "upload-multiple", func(ctx context.Context, e *executor) (*models.UploadResponse, error) {
		return e.uploadFiles(ctx, srcs, opts)
	})
}

// ListFiles lists files. A nil opts lists with the defaults.
func (c *AsyncClient) ListFiles(ctx context.Context, opts *models.SearchOptions) *Future[*models.FileListResponse] {
	return submit(c, ctx, "list", func(ctx context.Context, e *executor) (*models.FileListResponse, error) {
		return e.listFiles(ctx, opts)
	})
}

// GetFile gets a file by ID
func (c *AsyncClient) GetFile(ctx context.Context, id string) *Future[*models.File] {
	return submit(c, ctx, "get", func(ctx context.Context, e *executor) (*models.File, error) {
		return e.getFile(ctx, id)
	})
}

// GetFiles gets several files concurrently, at most Config.AsyncWorkers at a
// time. The result keeps the order of ids; the first failure cancels the rest.
func (c *AsyncClient) GetFiles(ctx context.Context, ids ...string) *Future[[]*models.File] {
	return submit(c, ctx, "get-many", func(ctx context.Context, e *executor) ([]*models.File, error) {
		files := make([]*models.File, len(ids))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.AsyncWorkers)
		for i, id := range ids {
			i, id := i, id
			g.Go(func() error {
				file, err := e.getFile(gctx, id)
				if err != nil {
					return err
				}
				files[i] = file
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return files, nil
	})
}

// DeleteFile deletes a file by ID
func (c *AsyncClient) DeleteFile(ctx context.Context, id string) *Future[bool] {
	return submit(c, ctx, "delete", func(ctx context.Context, e *executor) (bool, error) {
		return e.deleteFile(ctx, id)
	})
}

// FileURL builds the transform URL for a file without making a request
func (c *AsyncClient) FileURL(id string, opts *models.TransformOptions) string {
	return fileURL(c.cfg.APIURL, id, opts)
}

// ThumbnailURL builds the thumbnail URL for a file. size <= 0 selects 200.
func (c *AsyncClient) ThumbnailURL(id string, size int) string {
	return thumbnailURL(c.cfg.APIURL, id, size)
}

// DownloadFile streams a file, optionally transformed, to outputPath
func (c *AsyncClient) DownloadFile(ctx context.Context, id, outputPath string, opts *models.TransformOptions) *Future[string] {
	return submit(c, ctx, "download", func(ctx context.Context, e *executor) (string, error) {
		return e.downloadFile(ctx, id, outputPath, opts)
	})
}

// DashboardStats returns the dashboard statistics object
func (c *AsyncClient) DashboardStats(ctx context.Context) *Future[map[string]any] {
	return submit(c, ctx, "stats-dashboard", func(ctx context.Context, e *executor) (map[string]any, error) {
		return e.dashboardStats(ctx)
	})
}

// StorageStats returns the storage statistics object
func (c *AsyncClient) StorageStats(ctx context.Context) *Future[map[string]any] {
	return submit(c, ctx, "stats-storage", func(ctx context.Context, e *executor) (map[string]any, error) {
		return e.storageStats(ctx)
	})
}

// BatchDeleteFiles deletes several files and returns the raw response envelope
func (c *AsyncClient) BatchDeleteFiles(ctx context.Context, ids []string) *Future[models.Envelope] {
	return submit(c, ctx, "bulk-delete", func(ctx context.Context, e *executor) (models.Envelope, error) {
		return e.batchDeleteFiles(ctx, ids)
	})
}
