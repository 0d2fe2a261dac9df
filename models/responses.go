package models

import (
	"encoding/json"
	"fmt"
)

// Envelope is the {success, data, ...} JSON object returned by every endpoint
type Envelope map[string]any

// Success returns the envelope's success flag
func (e Envelope) Success() bool {
	ok, _ := e["success"].(bool)
	return ok
}

// Message returns the envelope's message field or ""
func (e Envelope) Message() string {
	msg, _ := e["message"].(string)
	return msg
}

// Data returns the raw data payload
func (e Envelope) Data() any {
	return e["data"]
}

// DataObject returns the data payload as an object. Missing or non-object data yields an empty map.
func (e Envelope) DataObject() map[string]any {
	if obj, ok := e["data"].(map[string]any); ok {
		return obj
	}
	return map[string]any{}
}

// Pagination describes a partial result window
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// UnmarshalJSON accepts both hasMore and has_more
func (p *Pagination) UnmarshalJSON(data []byte) error {
	type plain Pagination
	aux := struct {
		*plain
		HasMoreSnake *bool `json:"has_more"`
	}{plain: (*plain)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("invalid pagination: %w", err)
	}
	if aux.HasMoreSnake != nil {
		p.HasMore = *aux.HasMoreSnake
	}
	return nil
}

// FileListResponse is the result of a file listing
type FileListResponse struct {
	Success    bool
	Files      []File
	Pagination Pagination
}

// UploadResponse is the result of a multi-file upload
type UploadResponse struct {
	Success bool
	Message string
	Files   []File
	Failed  []map[string]any
	Counts  map[string]int
}

// NewFileListResponse maps a listing envelope
func NewFileListResponse(env Envelope) (*FileListResponse, error) {
	files, err := FilesFromValue(env.Data())
	if err != nil {
		return nil, err
	}

	var pagination Pagination
	if raw, ok := env["pagination"]; ok && raw != nil {
		if err := remarshal(raw, &pagination); err != nil {
			return nil, err
		}
	}

	return &FileListResponse{
		Success:    env.Success(),
		Files:      files,
		Pagination: pagination,
	}, nil
}

// NewUploadResponse maps a multi-upload envelope. Uploaded files are read from data.uploaded,
// failures from data.failed and per-outcome counts from data.counts.
func NewUploadResponse(env Envelope) (*UploadResponse, error) {
	data := env.DataObject()

	files, err := FilesFromValue(data["uploaded"])
	if err != nil {
		return nil, err
	}

	failed := []map[string]any{}
	if raw, ok := data["failed"]; ok && raw != nil {
		if err := remarshal(raw, &failed); err != nil {
			return nil, fmt.Errorf("invalid failed list: %w", err)
		}
	}

	counts := map[string]int{}
	if raw, ok := data["counts"]; ok && raw != nil {
		if err := remarshal(raw, &counts); err != nil {
			return nil, fmt.Errorf("invalid counts: %w", err)
		}
	}

	return &UploadResponse{
		Success: env.Success(),
		Message: env.Message(),
		Files:   files,
		Failed:  failed,
		Counts:  counts,
	}, nil
}
