package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	l := NewLocalStorage()
	require.NoError(t, l.Initialize(map[string]string{"basePath": t.TempDir()}))
	return l
}

func TestLocalStorageRoundTrip(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()

	meta := map[string]string{MetaFilename: "photo.jpg", MetaContentType: "image/jpeg", MetaFileID: "f1"}
	id, err := l.Store(ctx, "mirror/photo.jpg", strings.NewReader("jpeg-bytes"), 10, meta)
	require.NoError(t, err)
	assert.Equal(t, "mirror/photo.jpg", id)
	assert.FileExists(t, filepath.Join(l.BasePath(), "mirror", "photo.jpg"))

	rc, got, err := l.Retrieve(ctx, id)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, meta, got)

	require.NoError(t, l.Delete(ctx, id))
	assert.NoFileExists(t, filepath.Join(l.BasePath(), "mirror", "photo.jpg"))
	assert.NoFileExists(t, filepath.Join(l.BasePath(), "mirror", "photo.jpg.meta"))

	_, _, err = l.Retrieve(ctx, id)
	assert.Error(t, err)
}

func TestLocalStorageShortWrite(t *testing.T) {
	l := newLocal(t)

	_, err := l.Store(context.Background(), "a.txt", strings.NewReader("abc"), 5, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short write")
	assert.NoFileExists(t, filepath.Join(l.BasePath(), "a.txt"))

	// unknown size skips the check
	_, err = l.Store(context.Background(), "b.txt", strings.NewReader("abc"), -1, nil)
	assert.NoError(t, err)
}

func TestLocalStorageList(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()

	for _, key := range []string{"b/two.txt", "a/one.txt", "c.txt"} {
		_, err := l.Store(ctx, key, strings.NewReader(key), int64(len(key)), map[string]string{MetaFilename: "orig-" + filepath.Base(key)})
		require.NoError(t, err)
	}

	all, err := l.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a/one.txt", all[0].ID)
	assert.Equal(t, "orig-one.txt", all[0].Name)
	assert.Equal(t, int64(len("a/one.txt")), all[0].Size)

	filtered, err := l.List(ctx, "b/")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "b/two.txt", filtered[0].ID)
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	l := newLocal(t)

	for _, key := range []string{"", "../outside.txt", `a\..\..\b`, "/"} {
		_, err := l.Store(context.Background(), key, strings.NewReader("x"), 1, nil)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestLocalStorageCanceledContext(t *testing.T) {
	l := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Store(ctx, "x.txt", strings.NewReader("data"), 4, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewKey(t *testing.T) {
	tests := []struct {
		name, suffix string
	}{
		{`C:\uploads\my photo.jpg`, "my_photo.jpg"},
		{"/tmp/a<b>:c|d?e*.png", "a_b__c_d_e_.png"},
		{"", "file"},
		{"dir/..", "file"},
	}
	for _, tt := range tests {
		key := NewKey(tt.name)
		id, rest, ok := strings.Cut(key, "-"+tt.suffix)
		require.True(t, ok, key)
		assert.Empty(t, rest, key)
		_, err := uuid.Parse(id)
		assert.NoError(t, err, key)
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		key := NewKey("same.jpg")
		assert.False(t, seen[key], key)
		seen[key] = true
	}
}

func TestFactory(t *testing.T) {
	f := NewFactory()

	p, err := f.CreateProvider("local", map[string]string{"basePath": t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, p)

	_, err = f.CreateProvider("ftp", nil)
	assert.EqualError(t, err, "unsupported storage provider type: ftp")

	_, err = f.CreateProvider("s3", map[string]string{"region": "us-east-1"})
	require.Error(t, err)
	available, reason := f.IsProviderAvailable("s3")
	assert.False(t, available)
	assert.Contains(t, reason, "bucket is required")

	_, err = f.CreateProvider("s3", map[string]string{"region": "us-east-1", "bucket": "b"})
	assert.ErrorContains(t, err, "currently unavailable")

	// the aliases are tracked separately
	p, err = f.CreateProvider("aws", map[string]string{"region": "us-east-1", "bucket": "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", p.(*AmazonS3Storage).Bucket())

	f.Register("s3", func() Provider { return NewAmazonS3Storage() })
	available, _ = f.IsProviderAvailable("s3")
	assert.True(t, available)
}

func TestGoogleCloudStorageInitialize(t *testing.T) {
	g := NewGoogleCloudStorage()
	assert.EqualError(t, g.Initialize(map[string]string{}), "bucket is required for Google Cloud Storage")

	err := g.Initialize(map[string]string{"bucket": "b", "anonymous": "maybe"})
	assert.ErrorContains(t, err, "invalid anonymous")

	require.NoError(t, g.Initialize(map[string]string{
		"bucket":    "b",
		"endpoint":  "http://127.0.0.1:1/storage/v1/",
		"anonymous": "true",
	}))
	assert.NoError(t, g.Close())
}

// fakeS3 is a path style object store covering PutObject, GetObject and DeleteObject
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	headers map[string]http.Header
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	f := &fakeS3{objects: map[string][]byte{}, headers: map[string]http.Header{}}

	r := mux.NewRouter()
	r.HandleFunc("/{bucket}/{key:.+}", f.put).Methods(http.MethodPut)
	r.HandleFunc("/{bucket}/{key:.+}", f.get).Methods(http.MethodGet)
	r.HandleFunc("/{bucket}/{key:.+}", f.delete).Methods(http.MethodDelete)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) objectName(r *http.Request) string {
	vars := mux.Vars(r)
	return vars["bucket"] + "/" + vars["key"]
}

func (f *fakeS3) put(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.objects[f.objectName(r)] = data
	f.headers[f.objectName(r)] = r.Header.Clone()
	f.mu.Unlock()
	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

func (f *fakeS3) get(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	data, ok := f.objects[f.objectName(r)]
	header := f.headers[f.objectName(r)]
	f.mu.Unlock()
	if !ok {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>not found</Message></Error>`)
		return
	}
	for k, v := range header {
		if strings.HasPrefix(k, "X-Amz-Meta-") || k == "Content-Type" {
			w.Header()[k] = v
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (f *fakeS3) delete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	delete(f.objects, f.objectName(r))
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func TestAmazonS3StorageRoundTrip(t *testing.T) {
	fake, srv := newFakeS3(t)

	a := NewAmazonS3Storage()
	require.NoError(t, a.Initialize(map[string]string{
		"region":         "us-east-1",
		"bucket":         "assets",
		"prefix":         "dam/",
		"accessKey":      "test",
		"secretKey":      "test",
		"endpoint":       srv.URL,
		"forcePathStyle": "true",
	}))

	ctx := context.Background()
	meta := map[string]string{MetaFilename: "doc.pdf", MetaContentType: "application/pdf"}
	id, err := a.Store(ctx, "docs/doc.pdf", bytes.NewReader([]byte("%PDF-1.4")), 8, meta)
	require.NoError(t, err)
	assert.Equal(t, "dam/docs/doc.pdf", id)

	fake.mu.Lock()
	assert.Equal(t, []byte("%PDF-1.4"), fake.objects["assets/dam/docs/doc.pdf"])
	fake.mu.Unlock()

	rc, got, err := a.Retrieve(ctx, id)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, "doc.pdf", got[MetaFilename])
	assert.Equal(t, "application/pdf", got[MetaContentType])

	require.NoError(t, a.Delete(ctx, id))
	_, _, err = a.Retrieve(ctx, id)
	assert.Error(t, err)
}

func TestAmazonS3StorageInitialize(t *testing.T) {
	a := NewAmazonS3Storage()
	assert.EqualError(t, a.Initialize(map[string]string{"bucket": "b"}), "region is required for Amazon S3 storage")
	assert.EqualError(t, a.Initialize(map[string]string{"region": "eu-west-1"}), "bucket is required for Amazon S3 storage")

	err := a.Initialize(map[string]string{"region": "eu-west-1", "bucket": "b", "forcePathStyle": "sometimes"})
	assert.ErrorContains(t, err, "invalid forcePathStyle")

	_, err = a.objectKey("../x")
	assert.True(t, errors.Is(err, ErrInvalidKey))
}
