package damtest

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/example/damsdk/models"
)

const maxMemory = 32 << 20

func sendJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func sendError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, map[string]any{"success": false, "message": message})
}

type uploadForm struct {
	folderID     string
	originalName string
	metadata     map[string]any
}

// parseUpload parses the multipart body and records its fields and parts
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (*uploadForm, bool) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		sendJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Failed to parse form"})
		return nil, false
	}

	form := &uploadForm{
		folderID:     r.FormValue("folder_id"),
		originalName: r.FormValue("original_name"),
	}

	s.updateRequest(r, func(req *Request) {
		req.Form = make(map[string]string)
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				req.Form[k] = v[0]
			}
		}
		for field, headers := range r.MultipartForm.File {
			for _, h := range headers {
				req.Parts = append(req.Parts, Part{
					Field:       field,
					Filename:    h.Filename,
					ContentType: h.Header.Get("Content-Type"),
					Size:        h.Size,
				})
			}
		}
	})

	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &form.metadata); err != nil {
			sendError(w, http.StatusUnprocessableEntity, "Invalid metadata")
			return nil, false
		}
	}
	return form, true
}

func readPart(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func partType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *Server) uploadSingle(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseUpload(w, r)
	if !ok {
		return
	}

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		sendJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "No file provided"})
		return
	}
	h := headers[0]
	if s.maxFileSize > 0 && h.Size > s.maxFileSize {
		sendError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	content, err := readPart(h)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	name := h.Filename
	if form.originalName != "" {
		name = form.originalName
	}

	s.mu.Lock()
	file := s.addLocked(name, partType(h), content, form.folderID, form.metadata)
	s.mu.Unlock()

	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "File uploaded successfully",
		"data":    file,
	})
}

func (s *Server) uploadMultiple(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseUpload(w, r)
	if !ok {
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		sendJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "No files provided"})
		return
	}

	uploaded := []models.File{}
	failed := []map[string]any{}
	for _, h := range headers {
		if s.maxFileSize > 0 && h.Size > s.maxFileSize {
			failed = append(failed, map[string]any{"filename": h.Filename, "error": "File too large"})
			continue
		}
		content, err := readPart(h)
		if err != nil {
			failed = append(failed, map[string]any{"filename": h.Filename, "error": err.Error()})
			continue
		}

		s.mu.Lock()
		uploaded = append(uploaded, s.addLocked(h.Filename, partType(h), content, form.folderID, form.metadata))
		s.mu.Unlock()
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success": len(uploaded) > 0,
		"message": fmt.Sprintf("%d of %d files uploaded", len(uploaded), len(headers)),
		"data": map[string]any{
			"uploaded": uploaded,
			"failed":   failed,
			"counts": map[string]int{
				"total":    len(headers),
				"uploaded": len(uploaded),
				"failed":   len(failed),
			},
		},
	})
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = models.DefaultSearchLimit
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	s.mu.Lock()
	var matched []models.File
	for _, rec := range s.files {
		f := rec.file
		if folder := q.Get("folder_id"); folder != "" && (f.FolderID == nil || *f.FolderID != folder) {
			continue
		}
		if mimeType := q.Get("mime_type"); mimeType != "" && !strings.HasPrefix(f.MimeType, mimeType) {
			continue
		}
		if search := q.Get("search"); search != "" && !strings.Contains(strings.ToLower(f.OriginalName), strings.ToLower(search)) {
			continue
		}
		matched = append(matched, f)
	}
	s.mu.Unlock()

	sortFiles(matched, q.Get("sort"), q.Get("order") != "asc")

	total := len(matched)
	start := min(offset, total)
	end := min(start+limit, total)
	page := append([]models.File{}, matched[start:end]...)

	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    page,
		"pagination": map[string]any{
			"total":    total,
			"limit":    limit,
			"offset":   offset,
			"has_more": end < total,
		},
	})
}

func sortFiles(files []models.File, field string, desc bool) {
	less := func(a, b models.File) bool {
		switch field {
		case "size":
			return a.Size < b.Size
		case "original_name", "filename":
			return a.OriginalName < b.OriginalName
		default:
			if a.CreatedAt.Equal(*b.CreatedAt) {
				return a.ID < b.ID
			}
			return a.CreatedAt.Before(*b.CreatedAt)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		if desc {
			return less(files[j], files[i])
		}
		return less(files[i], files[j])
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*record, bool) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	rec, ok := s.files[id]
	s.mu.Unlock()
	if !ok {
		sendError(w, http.StatusNotFound, "File not found")
		return nil, false
	}
	return rec, true
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "data": rec.file})
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.files, rec.file.ID)
	s.mu.Unlock()
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "message": "File deleted successfully"})
}

// transform serves the stored bytes. A format parameter only changes the content type.
func (s *Server) transform(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}

	contentType := rec.file.MimeType
	if format := r.URL.Query().Get("format"); format != "" {
		if !models.IsSupportedFormat(format) {
			sendError(w, http.StatusUnprocessableEntity, "Unsupported format")
			return
		}
		contentType = "image/" + format
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.content)))
	w.WriteHeader(http.StatusOK)
	w.Write(rec.content)
}

func (s *Server) thumbnail(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !rec.file.IsImage() {
		sendError(w, http.StatusUnprocessableEntity, "Thumbnails are only available for images")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(rec.content)
}

func (s *Server) dashboardStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var totalSize int64
	images := 0
	for _, rec := range s.files {
		totalSize += rec.file.Size
		if rec.file.IsImage() {
			images++
		}
	}
	count := len(s.files)
	s.mu.Unlock()

	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"total_files": count,
			"total_size":  totalSize,
			"images":      images,
		},
	})
}

func (s *Server) storageStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var used int64
	byType := map[string]int{}
	for _, rec := range s.files {
		used += rec.file.Size
		byType[rec.file.MimeType]++
	}
	count := len(s.files)
	s.mu.Unlock()

	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"used_bytes": used,
			"file_count": count,
			"by_type":    byType,
		},
	})
}

func (s *Server) bulkDelete(w http.ResponseWriter, r *http.Request) {
	if s.bearerToken != "" && r.Header.Get("Authorization") != "Bearer "+s.bearerToken {
		sendError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	s.updateRequest(r, func(req *Request) { req.JSON = body })

	rawIDs, _ := body["file_ids"].([]any)
	if len(rawIDs) == 0 {
		sendError(w, http.StatusUnprocessableEntity, "file_ids must be a non-empty array")
		return
	}

	deleted := []string{}
	notFound := []string{}
	s.mu.Lock()
	for _, raw := range rawIDs {
		id, _ := raw.(string)
		if _, ok := s.files[id]; ok {
			delete(s.files, id)
			deleted = append(deleted, id)
		} else {
			notFound = append(notFound, id)
		}
	}
	s.mu.Unlock()

	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("%d files deleted", len(deleted)),
		"data": map[string]any{
			"deleted":   deleted,
			"not_found": notFound,
		},
	})
}
