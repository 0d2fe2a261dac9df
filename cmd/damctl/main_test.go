package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/damsdk/dam"
	"github.com/example/damsdk/internal/damtest"
	"github.com/example/damsdk/storage"
)

func run(t *testing.T, srv *damtest.Server, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DAM_LOG_LEVEL", "error")

	base := []string{"--config", filepath.Join(t.TempDir(), "missing.json")}
	if srv != nil {
		base = append(base, "--api-url", srv.URL, "--key-id", damtest.KeyID, "--key-secret", damtest.KeySecret)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append(base, args...))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestUploadCommand(t *testing.T) {
	srv := damtest.New(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	out, err := run(t, srv, "upload", path, "--folder", "docs", "--meta", "owner=ops")
	require.NoError(t, err)

	file := decode(t, out)
	assert.Equal(t, "notes.txt", file["original_name"])
	assert.Equal(t, "11.00 B", file["size_human"])
	assert.Equal(t, "docs", file["folder_id"])
	assert.Equal(t, 1, srv.FileCount())
}

func TestUploadCommandMultiple(t *testing.T) {
	srv := damtest.New(t)
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.txt", "b.txt"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(name), 0644))
		paths = append(paths, path)
	}

	out, err := run(t, srv, append([]string{"upload"}, paths...)...)
	require.NoError(t, err)

	resp := decode(t, out)
	assert.Equal(t, true, resp["success"])
	assert.Len(t, resp["files"], 2)
	assert.Equal(t, 2, srv.FileCount())

	_, err = run(t, srv, "upload", paths[0], paths[1], "--name", "x.txt")
	assert.ErrorContains(t, err, "--name applies to single file uploads only")
}

func TestListAndGetCommands(t *testing.T) {
	srv := damtest.New(t)
	photo := srv.AddFile("photo.jpg", "image/jpeg", []byte("jpeg"), "")
	srv.AddFile("report.pdf", "application/pdf", []byte("pdf"), "")

	out, err := run(t, srv, "list", "--search", "photo", "--limit", "5")
	require.NoError(t, err)
	list := decode(t, out)
	files := list["files"].([]any)
	require.Len(t, files, 1)
	assert.Equal(t, photo.ID, files[0].(map[string]any)["id"])

	req, _ := srv.LastRequest()
	assert.Contains(t, req.RawQuery, "limit=5")
	assert.Contains(t, req.RawQuery, "search=photo")

	out, err = run(t, srv, "get", photo.ID)
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", decode(t, out)["original_name"])

	_, err = run(t, srv, "get", "missing")
	assert.ErrorIs(t, err, dam.ErrNotFound)
}

func TestDeleteCommand(t *testing.T) {
	srv := damtest.New(t)
	file := srv.AddFile("old.txt", "text/plain", []byte("old"), "")

	out, err := run(t, srv, "delete", file.ID)
	require.NoError(t, err)
	assert.Equal(t, true, decode(t, out)["deleted"])
	assert.Equal(t, 0, srv.FileCount())
}

func TestURLCommands(t *testing.T) {
	srv := damtest.New(t)

	out, err := run(t, srv, "url", "abc")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/api/transform/abc\n", out)

	out, err = run(t, srv, "url", "abc", "--width", "100", "--format", "webp")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/api/transform/abc?w=100&fit=cover&format=webp&quality=80\n", out)

	out, err = run(t, srv, "thumbnail", "abc", "--size", "64")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/api/transform/abc/thumbnail?size=64\n", out)

	assert.Equal(t, 0, srv.RequestCount(), "URLs are built locally")
}

func TestDownloadCommand(t *testing.T) {
	srv := damtest.New(t)
	file := srv.AddFile("photo.jpg", "image/jpeg", []byte("jpeg-bytes"), "")
	target := filepath.Join(t.TempDir(), "out", "photo.jpg")

	out, err := run(t, srv, "download", file.ID, target)
	require.NoError(t, err)
	assert.Equal(t, target, decode(t, out)["path"])

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestStatsCommands(t *testing.T) {
	srv := damtest.New(t)
	srv.AddFile("photo.jpg", "image/jpeg", []byte("jpeg"), "")

	out, err := run(t, srv, "stats", "dashboard")
	require.NoError(t, err)
	assert.EqualValues(t, 1, decode(t, out)["total_files"])

	out, err = run(t, srv, "stats", "storage")
	require.NoError(t, err)
	assert.EqualValues(t, 1, decode(t, out)["file_count"])
}

func TestMirrorCommand(t *testing.T) {
	srv := damtest.New(t)
	file := srv.AddFile("photo.jpg", "image/jpeg", []byte("jpeg-bytes"), "")
	dir := t.TempDir()

	out, err := run(t, srv, "mirror", file.ID, "--provider", "local", "--opt", "basePath="+dir, "--key", "mirror/photo.jpg")
	require.NoError(t, err)
	result := decode(t, out)
	assert.Equal(t, "mirror/photo.jpg", result["object_id"])
	assert.EqualValues(t, 10, result["bytes"])

	local := storage.NewLocalStorage()
	require.NoError(t, local.Initialize(map[string]string{"basePath": dir}))
	rc, meta, err := local.Retrieve(context.Background(), "mirror/photo.jpg")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, file.ID, meta[storage.MetaFileID])

	_, err = run(t, srv, "mirror", file.ID, "--provider", "ftp")
	assert.ErrorContains(t, err, "unsupported storage provider type: ftp")
}

func TestImportCommand(t *testing.T) {
	srv := damtest.New(t)
	dir := t.TempDir()
	local := storage.NewLocalStorage()
	require.NoError(t, local.Initialize(map[string]string{"basePath": dir}))
	ctx := context.Background()
	for _, key := range []string{"inbox/a.txt", "inbox/b.txt"} {
		_, err := local.Store(ctx, key, strings.NewReader(key), int64(len(key)), nil)
		require.NoError(t, err)
	}

	out, err := run(t, srv, "import", "inbox/a.txt", "--provider", "local", "--opt", "basePath="+dir, "--folder", "docs")
	require.NoError(t, err)
	file := decode(t, out)
	assert.Equal(t, "a.txt", file["original_name"])
	assert.Equal(t, "docs", file["folder_id"])

	out, err = run(t, srv, "import", "inbox/", "--prefix", "--remove-source", "--provider", "local", "--opt", "basePath="+dir)
	require.NoError(t, err)
	assert.Len(t, decode(t, out)["files"], 2)
	assert.Equal(t, 3, srv.FileCount())

	objects, err := local.List(ctx, "inbox/")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestMissingConfiguration(t *testing.T) {
	t.Setenv("DAM_API_URL", "")
	t.Setenv("DAM_API_KEY_ID", "")
	t.Setenv("DAM_API_KEY_SECRET", "")

	_, err := run(t, nil, "list")
	assert.ErrorIs(t, err, dam.ErrConfiguration)
}
