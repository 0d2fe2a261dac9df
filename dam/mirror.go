package dam

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/example/damsdk/models"
	"github.com/example/damsdk/storage"
)

// MirrorOptions controls MirrorFile
type MirrorOptions struct {
	// Key is the destination object key. Empty generates one from the file name.
	Key string
	// Transform mirrors a transformed rendition instead of the original
	Transform *models.TransformOptions
}

// MirrorResult describes a mirrored file
type MirrorResult struct {
	File     *models.File
	ObjectID string
	Bytes    int64
	// SHA256 is the hex digest of the stored content
	SHA256 string
}

// ImportOptions controls ImportFile and ImportPrefix
type ImportOptions struct {
	// Name overrides the uploaded filename. Ignored by ImportPrefix.
	Name string
	// Upload is sent with the upload request
	Upload *models.UploadOptions
	// RemoveSource deletes imported objects from the provider after a successful upload
	RemoveSource bool
}

// MirrorFile copies the content of file id into dst. The file record is fetched
// first so the stored object carries its name, type and ID as metadata.
func (c *Client) MirrorFile(ctx context.Context, id string, dst storage.Provider, opts MirrorOptions) (*MirrorResult, error) {
	return c.exec.mirrorFile(ctx, id, dst, opts)
}

// ImportFile uploads the object key of src to the DAM
func (c *Client) ImportFile(ctx context.Context, src storage.Provider, key string, opts ImportOptions) (*models.File, error) {
	return c.exec.importFile(ctx, src, key, opts)
}

// ImportPrefix uploads every object of src under prefix, Config.MaxBatchFiles per request
func (c *Client) ImportPrefix(ctx context.Context, src storage.Provider, prefix string, opts ImportOptions) (*models.UploadResponse, error) {
	return c.exec.importPrefix(ctx, src, prefix, opts)
}

func (e *executor) mirrorFile(ctx context.Context, id string, dst storage.Provider, opts MirrorOptions) (*MirrorResult, error) {
	if dst == nil {
		return nil, newError(KindValidation, "destination storage is required")
	}

	file, err := e.getFile(ctx, id)
	if err != nil {
		return nil, err
	}

	resp, release, err := e.openContent(ctx, id, opts.Transform)
	defer release()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	name := fileName(file)
	if opts.Transform != nil && opts.Transform.Format != "" {
		name = strings.TrimSuffix(name, path.Ext(name)) + "." + opts.Transform.Format
	}
	key := opts.Key
	if key == "" {
		key = storage.NewKey(name)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = file.MimeType
	}
	metadata := map[string]string{
		storage.MetaFilename:    name,
		storage.MetaContentType: contentType,
		storage.MetaFileID:      file.ID,
	}
	if file.Checksum != nil && opts.Transform == nil {
		metadata[storage.MetaChecksum] = *file.Checksum
	}

	size := resp.ContentLength
	if size < 0 && opts.Transform == nil {
		size = file.Size
	}

	hash := sha256.New()
	counter := &countingReader{r: io.TeeReader(resp.Body, hash)}
	objectID, err := dst.Store(ctx, key, counter, size, metadata)
	if err != nil {
		return nil, wrapError(KindUnknown, err, "failed to store %s", describe(id, opts.Transform))
	}

	e.logger.Info("file mirrored",
		zap.String("file", describe(id, opts.Transform)),
		zap.String("object", objectID),
		zap.Int64("bytes", counter.n))

	return &MirrorResult{
		File:     file,
		ObjectID: objectID,
		Bytes:    counter.n,
		SHA256:   hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

func (e *executor) importFile(ctx context.Context, src storage.Provider, key string, opts ImportOptions) (*models.File, error) {
	if src == nil {
		return nil, newError(KindValidation, "source storage is required")
	}

	rc, metadata, err := src.Retrieve(ctx, key)
	if err != nil {
		return nil, wrapError(KindValidation, err, "cannot import %s", key)
	}
	defer rc.Close()

	name := opts.Name
	if name == "" {
		name = objectName(key, metadata)
	}

	file, err := e.uploadFile(ctx, FromReader(name, rc), opts.Upload)
	if err != nil {
		return nil, err
	}
	e.logger.Info("file imported", zap.String("object", key), zap.String("file", file.ID))

	if opts.RemoveSource {
		if err := src.Delete(ctx, key); err != nil {
			return file, wrapError(KindUnknown, err, "imported %s as %s but failed to remove the source", key, file.ID)
		}
	}
	return file, nil
}

func (e *executor) importPrefix(ctx context.Context, src storage.Provider, prefix string, opts ImportOptions) (*models.UploadResponse, error) {
	if src == nil {
		return nil, newError(KindValidation, "source storage is required")
	}

	objects, err := src.List(ctx, prefix)
	if err != nil {
		return nil, wrapError(KindUnknown, err, "failed to list %q", prefix)
	}
	if len(objects) == 0 {
		return nil, newError(KindNotFound, "no objects under %q", prefix)
	}

	result := &models.UploadResponse{Success: true, Counts: map[string]int{}, Failed: []map[string]any{}}
	for start := 0; start < len(objects); start += e.cfg.MaxBatchFiles {
		end := min(start+e.cfg.MaxBatchFiles, len(objects))
		resp, err := e.importBatch(ctx, src, objects[start:end], opts)
		if err != nil {
			return result, err
		}

		result.Success = result.Success && resp.Success
		result.Message = resp.Message
		result.Files = append(result.Files, resp.Files...)
		result.Failed = append(result.Failed, resp.Failed...)
		for k, v := range resp.Counts {
			result.Counts[k] += v
		}
	}
	return result, nil
}

func (e *executor) importBatch(ctx context.Context, src storage.Provider, objects []storage.ObjectInfo, opts ImportOptions) (*models.UploadResponse, error) {
	var opened openedFiles
	defer e.closeOpened(&opened)

	srcs := make([]Source, 0, len(objects))
	for _, obj := range objects {
		rc, metadata, err := src.Retrieve(ctx, obj.ID)
		if err != nil {
			return nil, wrapError(KindValidation, err, "cannot import %s", obj.ID)
		}
		opened = append(opened, rc)
		srcs = append(srcs, FromReader(objectName(obj.ID, metadata), rc))
	}

	resp, err := e.uploadFiles(ctx, srcs, opts.Upload)
	if err != nil {
		return nil, err
	}

	if opts.RemoveSource && len(resp.Failed) == 0 {
		var result *multierror.Error
		for _, obj := range objects {
			if err := src.Delete(ctx, obj.ID); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if err := result.ErrorOrNil(); err != nil {
			return resp, wrapError(KindUnknown, err, "imported batch but failed to remove sources")
		}
	}
	return resp, nil
}

func fileName(f *models.File) string {
	if f.OriginalName != "" {
		return f.OriginalName
	}
	if f.Filename != "" {
		return f.Filename
	}
	return f.ID
}

func objectName(key string, metadata map[string]string) string {
	if name := metadata[storage.MetaFilename]; name != "" {
		return name
	}
	return path.Base(key)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
