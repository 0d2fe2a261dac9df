package dam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
)

// formField is a plain multipart form value
type formField struct {
	name  string
	value string
}

// filePart is a file section of a multipart body. content must be rewindable
// so retries can resend it.
type filePart struct {
	field    string
	filename string
	mimeType string
	content  io.ReadSeeker
}

// request describes one API call before it is turned into an *http.Request
type request struct {
	method   string
	endpoint string
	rawQuery string
	form     []formField
	files    []filePart
	jsonBody any
}

func escapeID(id string) string {
	return url.PathEscape(id)
}

// url joins the base url, endpoint and query
func (r *request) url(baseURL string) string {
	u := baseURL + r.endpoint
	if r.rawQuery != "" {
		u += "?" + r.rawQuery
	}
	return u
}

// build assembles the *http.Request. Bodies are always replayable through GetBody.
// release stops any body stream still running and must be called once the call is done.
func (r *request) build(ctx context.Context, baseURL string) (req *http.Request, release func(), err error) {
	var (
		body        io.Reader
		contentType string
		getBody     func() (io.ReadCloser, error)
	)
	release = func() {}

	switch {
	case len(r.files) > 0:
		mb := newMultipartBody(r.form, r.files)
		first, err := mb.open()
		if err != nil {
			return nil, release, wrapError(KindValidation, err, "failed to prepare upload")
		}
		body = first
		getBody = mb.open
		contentType = mb.contentType()
		release = mb.close

	case r.jsonBody != nil:
		data, err := json.Marshal(r.jsonBody)
		if err != nil {
			return nil, release, wrapError(KindValidation, err, "failed to encode request body")
		}
		body = bytes.NewReader(data)
		contentType = "application/json"

	case len(r.form) > 0:
		values := url.Values{}
		for _, f := range r.form {
			values.Set(f.name, f.value)
		}
		body = strings.NewReader(values.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err = http.NewRequestWithContext(ctx, r.method, r.url(baseURL), body)
	if err != nil {
		release()
		return nil, func() {}, wrapError(KindValidation, err, "failed to build %s %s request", r.method, r.endpoint)
	}
	if getBody != nil {
		req.GetBody = getBody
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, release, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// errBodyReplaced stops a writer whose body was superseded by a retry
var errBodyReplaced = errors.New("multipart body replaced")

// multipartBody streams form fields and files through a pipe. Each call to open
// stops the previous stream, rewinds every file and starts over, which lets the
// retry transport resend uploads without buffering them in memory.
type multipartBody struct {
	form     []formField
	files    []filePart
	boundary string

	mu      sync.Mutex
	current *io.PipeReader
	done    chan struct{}
}

func newMultipartBody(form []formField, files []filePart) *multipartBody {
	return &multipartBody{
		form:     form,
		files:    files,
		boundary: multipart.NewWriter(io.Discard).Boundary(),
	}
}

func (m *multipartBody) contentType() string {
	return "multipart/form-data; boundary=" + m.boundary
}

func (m *multipartBody) open() (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.CloseWithError(errBodyReplaced)
		<-m.done
	}

	for _, f := range m.files {
		if _, err := f.content.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to rewind %s: %w", f.filename, err)
		}
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})
	m.current = pr
	m.done = done

	go func() {
		defer close(done)
		pw.CloseWithError(m.write(pw))
	}()
	return pr, nil
}

// close stops the running stream, if any
func (m *multipartBody) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.CloseWithError(errBodyReplaced)
		<-m.done
		m.current = nil
	}
}

func (m *multipartBody) write(w io.Writer) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(m.boundary); err != nil {
		return err
	}

	for _, f := range m.form {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}

	for _, f := range m.files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.field), quoteEscaper.Replace(f.filename)))
		h.Set("Content-Type", f.mimeType)

		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		buf := make([]byte, DefaultChunkSize)
		if _, err := io.CopyBuffer(part, f.content, buf); err != nil {
			return fmt.Errorf("failed to stream %s: %w", f.filename, err)
		}
	}

	return mw.Close()
}
