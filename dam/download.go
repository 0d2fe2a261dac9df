package dam

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/example/damsdk/internal/metrics"
	"github.com/example/damsdk/models"
)

// openContent requests the served content of id. Non-200 responses are classified
// like any JSON call. The caller closes the returned body.
func (e *executor) openContent(ctx context.Context, id string, opts *models.TransformOptions) (*http.Response, func(), error) {
	if id == "" {
		return nil, func() {}, newError(KindValidation, "file id is required")
	}
	if err := validateTransform(opts); err != nil {
		return nil, func() {}, err
	}

	r := &request{method: http.MethodGet, endpoint: transformEndpoint(id)}
	if opts != nil {
		r.rawQuery = opts.Encode()
	}

	resp, release, err := e.sendStream(ctx, r)
	if err != nil {
		e.metrics.ObserveError(metrics.Route(r.endpoint), KindOf(err).String())
		return nil, release, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		defer release()

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, func() {}, e.transportError(readErr)
		}
		_, err = Classify(resp.StatusCode, body)
		e.metrics.ObserveError(metrics.Route(r.endpoint), KindOf(err).String())
		return nil, func() {}, err
	}
	return resp, release, nil
}

// downloadFile streams the content of id to outputPath. A partially written
// file is removed when the transfer fails.
func (e *executor) downloadFile(ctx context.Context, id, outputPath string, opts *models.TransformOptions) (string, error) {
	if outputPath == "" {
		return "", newError(KindValidation, "output path is required")
	}

	resp, release, err := e.openContent(ctx, id, opts)
	defer release()
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", wrapError(KindValidation, err, "cannot create %s", dir)
		}
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return "", wrapError(KindValidation, err, "cannot create %s", outputPath)
	}

	written, readErr, writeErr := copyChunks(out, resp.Body)
	closeErr := out.Close()
	if readErr != nil || writeErr != nil || closeErr != nil {
		_ = os.Remove(outputPath)
		switch {
		case readErr != nil:
			return "", e.transportError(readErr)
		case writeErr != nil:
			return "", wrapError(KindUnknown, writeErr, "failed to write %s", outputPath)
		default:
			return "", wrapError(KindUnknown, closeErr, "failed to write %s", outputPath)
		}
	}

	e.logger.Debug("file downloaded",
		zap.String("file", describe(id, opts)),
		zap.String("path", outputPath),
		zap.Int64("bytes", written))
	return outputPath, nil
}

// copyChunks copies src to dst in DefaultChunkSize writes and reports read and
// write failures separately
func copyChunks(dst io.Writer, src io.Reader) (written int64, readErr, writeErr error) {
	buf := make([]byte, DefaultChunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			m, werr := dst.Write(buf[:n])
			written += int64(m)
			if werr == nil && m < n {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				return written, nil, werr
			}
		}
		if err == io.EOF {
			return written, nil, nil
		}
		if err != nil {
			return written, err, nil
		}
	}
}
