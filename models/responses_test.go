package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, raw string) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	return env
}

func TestNewFileListResponse(t *testing.T) {
	env := decodeEnvelope(t, `{
		"success": true,
		"data": [
			{"id": "file-1", "mime_type": "image/jpeg", "size": 1024, "created_at": "2024-01-01T00:00:00Z"},
			{"id": "file-2", "mime_type": "image/png", "size": 2048}
		],
		"pagination": {"total": 2, "limit": 50, "offset": 0, "hasMore": false}
	}`)

	resp, err := NewFileListResponse(env)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, resp.Files, 2)
	assert.Equal(t, "file-2", resp.Files[1].ID)
	assert.Equal(t, Pagination{Total: 2, Limit: 50}, resp.Pagination)
}

func TestPaginationSnakeCase(t *testing.T) {
	var p Pagination
	require.NoError(t, json.Unmarshal([]byte(`{"total": 120, "limit": 50, "offset": 50, "has_more": true}`), &p))
	assert.True(t, p.HasMore)
	assert.Equal(t, 120, p.Total)
}

func TestNewFileListResponseEmpty(t *testing.T) {
	resp, err := NewFileListResponse(Envelope{"success": true})
	require.NoError(t, err)
	assert.Empty(t, resp.Files)
	assert.Equal(t, Pagination{}, resp.Pagination)
}

func TestNewUploadResponse(t *testing.T) {
	env := decodeEnvelope(t, `{
		"success": true,
		"message": "2 of 3 files uploaded",
		"data": {
			"uploaded": [{"id": "a"}, {"id": "b"}],
			"failed": [{"filename": "c.exe", "error": "File type not allowed"}],
			"counts": {"uploaded": 2, "failed": 1, "total": 3}
		}
	}`)

	resp, err := NewUploadResponse(env)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "2 of 3 files uploaded", resp.Message)
	require.Len(t, resp.Files, 2)
	require.Len(t, resp.Failed, 1)
	assert.Equal(t, "c.exe", resp.Failed[0]["filename"])
	assert.Equal(t, map[string]int{"uploaded": 2, "failed": 1, "total": 3}, resp.Counts)
}

func TestNewUploadResponseMissingData(t *testing.T) {
	resp, err := NewUploadResponse(Envelope{"success": false})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Empty(t, resp.Files)
	assert.Empty(t, resp.Failed)
	assert.Empty(t, resp.Counts)
}

func TestEnvelopeAccessors(t *testing.T) {
	env := Envelope{"success": true, "message": "ok", "data": map[string]any{"total_files": 3.0}}
	assert.True(t, env.Success())
	assert.Equal(t, "ok", env.Message())
	assert.Equal(t, 3.0, env.DataObject()["total_files"])

	empty := Envelope{"data": []any{}}
	assert.False(t, empty.Success())
	assert.Empty(t, empty.DataObject())
}
