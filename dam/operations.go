package dam

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/example/damsdk/models"
)

func (e *executor) uploadFile(ctx context.Context, src Source, opts *models.UploadOptions) (*models.File, error) {
	var opened openedFiles
	defer e.closeOpened(&opened)

	part, err := openSource(src, "file", -1, e.cfg.MaxFileSize, &opened)
	if err != nil {
		return nil, err
	}
	form, err := uploadForm(opts)
	if err != nil {
		return nil, err
	}

	env, err := e.do(ctx, &request{
		method:   http.MethodPost,
		endpoint: endpointUploadSingle,
		form:     form,
		files:    []filePart{part},
	})
	if err != nil {
		return nil, err
	}

	file, err := models.FileFromMap(env.DataObject())
	if err != nil {
		return nil, e.decodeError(err, "uploaded file")
	}
	return &file, nil
}

func (e *executor) uploadFiles(ctx context.Context, srcs []Source, opts *models.UploadOptions) (*models.UploadResponse, error) {
	if len(srcs) == 0 {
		return nil, newError(KindValidation, "no files to upload")
	}
	if len(srcs) > e.cfg.MaxBatchFiles {
		return nil, newError(KindValidation, "too many files: %d given, at most %d per upload", len(srcs), e.cfg.MaxBatchFiles)
	}

	var opened openedFiles
	defer e.closeOpened(&opened)

	parts := make([]filePart, 0, len(srcs))
	for i, src := range srcs {
		part, err := openSource(src, "files", i, e.cfg.MaxFileSize, &opened)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	form, err := uploadForm(opts)
	if err != nil {
		return nil, err
	}

	env, err := e.do(ctx, &request{
		method:   http.MethodPost,
		endpoint: endpointUploadMultiple,
		form:     form,
		files:    parts,
	})
	if err != nil {
		return nil, err
	}

	resp, err := models.NewUploadResponse(env)
	if err != nil {
		return nil, e.decodeError(err, "upload response")
	}
	return resp, nil
}

func (e *executor) closeOpened(opened *openedFiles) {
	if err := opened.Close(); err != nil {
		e.logger.Warn("failed to close upload sources", zap.Error(err))
	}
}

func (e *executor) listFiles(ctx context.Context, opts *models.SearchOptions) (*models.FileListResponse, error) {
	if opts == nil {
		opts = &models.SearchOptions{}
	}

	env, err := e.do(ctx, &request{
		method:   http.MethodGet,
		endpoint: endpointFiles,
		rawQuery: opts.Encode(),
	})
	if err != nil {
		return nil, err
	}

	resp, err := models.NewFileListResponse(env)
	if err != nil {
		return nil, e.decodeError(err, "file list")
	}
	return resp, nil
}

func (e *executor) getFile(ctx context.Context, id string) (*models.File, error) {
	if id == "" {
		return nil, newError(KindValidation, "file id is required")
	}

	env, err := e.do(ctx, &request{method: http.MethodGet, endpoint: fileEndpoint(id)})
	if err != nil {
		return nil, err
	}

	file, err := models.FileFromMap(env.DataObject())
	if err != nil {
		return nil, e.decodeError(err, "file "+id)
	}
	return &file, nil
}

func (e *executor) deleteFile(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, newError(KindValidation, "file id is required")
	}

	env, err := e.do(ctx, &request{method: http.MethodDelete, endpoint: fileEndpoint(id)})
	if err != nil {
		return false, err
	}
	return env.Success(), nil
}

func (e *executor) dashboardStats(ctx context.Context) (map[string]any, error) {
	env, err := e.do(ctx, &request{method: http.MethodGet, endpoint: endpointStatsDashboard})
	if err != nil {
		return nil, err
	}
	return env.DataObject(), nil
}

func (e *executor) storageStats(ctx context.Context) (map[string]any, error) {
	env, err := e.do(ctx, &request{method: http.MethodGet, endpoint: endpointStatsStorage})
	if err != nil {
		return nil, err
	}
	return env.DataObject(), nil
}

func (e *executor) batchDeleteFiles(ctx context.Context, ids []string) (models.Envelope, error) {
	if len(ids) == 0 {
		return nil, newError(KindValidation, "no file ids given")
	}

	return e.do(ctx, &request{
		method:   http.MethodPost,
		endpoint: endpointBulkDelete,
		jsonBody: map[string][]string{"file_ids": ids},
	})
}

func (e *executor) fileURL(id string, opts *models.TransformOptions) string {
	return fileURL(e.cfg.APIURL, id, opts)
}

func (e *executor) thumbnailURL(id string, size int) string {
	return thumbnailURL(e.cfg.APIURL, id, size)
}

// fileURL returns the transform URL for id. A nil opts yields the plain serve URL.
func fileURL(base, id string, opts *models.TransformOptions) string {
	r := request{endpoint: transformEndpoint(id)}
	if opts != nil {
		r.rawQuery = opts.Encode()
	}
	return r.url(base)
}

func thumbnailURL(base, id string, size int) string {
	if size <= 0 {
		size = DefaultThumbnailSize
	}
	r := request{endpoint: thumbnailEndpoint(id), rawQuery: "size=" + strconv.Itoa(size)}
	return r.url(base)
}

func validateTransform(opts *models.TransformOptions) error {
	if opts == nil {
		return nil
	}
	if err := opts.Validate(); err != nil {
		return wrapError(KindValidation, err, "invalid transform options")
	}
	return nil
}

func describe(id string, opts *models.TransformOptions) string {
	if opts == nil {
		return id
	}
	return fmt.Sprintf("%s?%s", id, opts.Encode())
}
