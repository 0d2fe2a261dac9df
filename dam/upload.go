package dam

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/example/damsdk/internal/fileutil"
	"github.com/example/damsdk/models"
)

// Default part names for sources without a filename
const (
	defaultUploadName  = "uploaded_file"
	defaultBatchPrefix = "file_"
)

// sniffLen is the number of leading bytes inspected for a file signature
const sniffLen = 262

// Source is an upload input: a filesystem path or an in-memory reader
type Source struct {
	path   string
	name   string
	reader io.Reader
}

// FromPath uploads the file at path. Its size is checked against Config.MaxFileSize
// before anything is sent.
func FromPath(path string) Source {
	return Source{path: path}
}

// FromReader uploads the content of r under name. The content is read into
// memory before sending so retries can replay it. An empty name falls back to a
// generated one and the MIME type is then sniffed from the content.
func FromReader(name string, r io.Reader) Source {
	return Source{name: name, reader: r}
}

// IsPath reports whether the source is backed by a filesystem path
func (s Source) IsPath() bool {
	return s.reader == nil
}

// String returns the path or name used for the source
func (s Source) String() string {
	if s.IsPath() {
		return s.path
	}
	if s.name != "" {
		return s.name
	}
	return "<reader>"
}

// openedFiles tracks file handles opened for one upload
type openedFiles []io.Closer

// Close closes every handle exactly once and aggregates failures
func (o *openedFiles) Close() error {
	var result *multierror.Error
	for _, c := range *o {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	*o = nil
	return result.ErrorOrNil()
}

// openSource prepares src as the multipart part field. index >= 0 selects the
// batch naming scheme for anonymous readers.
func openSource(src Source, field string, index int, maxSize int64, opened *openedFiles) (filePart, error) {
	if src.IsPath() {
		return openPath(src.path, field, maxSize, opened)
	}

	name := src.name
	if name == "" {
		name = defaultUploadName
		if index >= 0 {
			name = fmt.Sprintf("%s%d", defaultBatchPrefix, index)
		}
	}
	return readSource(src.reader, name, src.name != "", field, maxSize)
}

func openPath(path, field string, maxSize int64, opened *openedFiles) (filePart, error) {
	if path == "" {
		return filePart{}, newError(KindValidation, "file path is empty")
	}

	if _, err := fileutil.CheckFileSize(path, maxSize); err != nil {
		if errors.Is(err, fileutil.ErrFileTooLarge) {
			return filePart{}, wrapError(KindFileTooLarge, err, "file %s exceeds maximum size of %d bytes", path, maxSize)
		}
		return filePart{}, wrapError(KindValidation, err, "cannot upload %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return filePart{}, wrapError(KindValidation, err, "cannot upload %s", path)
	}
	*opened = append(*opened, f)

	return filePart{
		field:    field,
		filename: fileutil.SanitizeFilename(path),
		mimeType: fileutil.GuessMIME(path),
		content:  f,
	}, nil
}

func readSource(r io.Reader, name string, named bool, field string, maxSize int64) (filePart, error) {
	if r == nil {
		return filePart{}, newError(KindValidation, "upload reader for %s is nil", name)
	}

	limited := r
	if maxSize > 0 {
		limited = io.LimitReader(r, maxSize+1)
	}
	data, err := io.ReadAll(limited)
	if err != nil {
		return filePart{}, wrapError(KindValidation, err, "failed to read upload %s", name)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return filePart{}, newError(KindFileTooLarge, "file %s exceeds maximum size of %d bytes", name, maxSize)
	}

	mimeType := fileutil.DefaultMIMEType
	if named {
		mimeType = fileutil.GuessMIME(name)
	}
	if mimeType == fileutil.DefaultMIMEType {
		if sniffed := fileutil.SniffMIME(data[:min(len(data), sniffLen)]); sniffed != "" {
			mimeType = sniffed
		}
	}

	return filePart{
		field:    field,
		filename: fileutil.SanitizeFilename(name),
		mimeType: mimeType,
		content:  bytes.NewReader(data),
	}, nil
}

// uploadForm returns the optional form fields for opts. Empty fields are not sent.
func uploadForm(opts *models.UploadOptions) ([]formField, error) {
	if opts == nil {
		return nil, nil
	}

	var form []formField
	if opts.FolderID != "" {
		form = append(form, formField{"folder_id", opts.FolderID})
	}
	if len(opts.Metadata) > 0 {
		data, err := json.Marshal(opts.Metadata)
		if err != nil {
			return nil, wrapError(KindValidation, err, "metadata is not JSON serializable")
		}
		form = append(form, formField{"metadata", string(data)})
	}
	if opts.OriginalName != "" {
		form = append(form, formField{"original_name", opts.OriginalName})
	}
	return form, nil
}
