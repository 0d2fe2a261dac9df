// Package damtest provides an in-memory fake of the DAM HTTP API for tests
package damtest

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/damsdk/models"
)

// Default credentials accepted by the fake server
const (
	KeyID     = "test-key-id"
	KeySecret = "test-key-secret"
)

const (
	headerKeyID     = "X-API-Key-ID"
	headerKeySecret = "X-API-Key-Secret"
)

// Request is a recorded request
type Request struct {
	Method string
	// Path is the escaped request path
	Path     string
	RawQuery string
	Header   http.Header
	// Form and Parts are filled for multipart uploads
	Form  map[string]string
	Parts []Part
	// JSON holds the decoded body of JSON requests
	JSON map[string]any
}

// Part describes an uploaded multipart file part
type Part struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
}

type fault struct {
	remaining   int
	status      int
	contentType string
	body        string
}

type record struct {
	file    models.File
	content []byte
}

// Server is a fake DAM API backed by memory
type Server struct {
	*httptest.Server

	keyID       string
	keySecret   string
	bearerToken string
	maxFileSize int64
	logger      *zap.Logger

	mu       sync.Mutex
	files    map[string]*record
	requests []Request
	faults   []fault
	delay    time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithCredentials sets the accepted API key pair
func WithCredentials(keyID, keySecret string) Option {
	return func(s *Server) {
		s.keyID, s.keySecret = keyID, keySecret
	}
}

// WithBearerToken requires "Authorization: Bearer <token>" on bulk delete
func WithBearerToken(token string) Option {
	return func(s *Server) {
		s.bearerToken = token
	}
}

// WithMaxFileSize rejects uploaded files larger than n bytes
func WithMaxFileSize(n int64) Option {
	return func(s *Server) {
		s.maxFileSize = n
	}
}

// WithLogger logs every request at debug level
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New starts a fake server that is closed when the test ends
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := NewServer(opts...)
	t.Cleanup(s.Close)
	return s
}

// NewServer starts a fake server. The caller closes it.
func NewServer(opts ...Option) *Server {
	s := &Server{
		keyID:     KeyID,
		keySecret: KeySecret,
		logger:    zap.NewNop(),
		files:     make(map[string]*record),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Server = httptest.NewServer(Chain(s.routes(),
		s.apiKey(),
		s.inject(),
		s.record(),
		Recover(s.logger),
		Logger(s.logger),
	))
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/public/single", s.uploadSingle).Methods(http.MethodPost)
	r.HandleFunc("/api/public/multiple", s.uploadMultiple).Methods(http.MethodPost)
	r.HandleFunc("/api/public/files", s.listFiles).Methods(http.MethodGet)
	r.HandleFunc("/api/public/files/{id}", s.getFile).Methods(http.MethodGet)
	r.HandleFunc("/api/public/files/{id}", s.deleteFile).Methods(http.MethodDelete)
	r.HandleFunc("/api/transform/{id}/thumbnail", s.thumbnail).Methods(http.MethodGet)
	r.HandleFunc("/api/transform/{id}", s.transform).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/dashboard", s.dashboardStats).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/storage", s.storageStats).Methods(http.MethodGet)
	r.HandleFunc("/api/files/bulk-delete", s.bulkDelete).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "message": "Method not allowed"})
	})
	return r
}

// AddFile stores a file directly and returns its record
func (s *Server) AddFile(name, mimeType string, content []byte, folderID string) models.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(name, mimeType, content, folderID, nil)
}

func (s *Server) addLocked(name, mimeType string, content []byte, folderID string, metadata map[string]any) models.File {
	id := uuid.NewString()
	sum := sha256.Sum256(content)
	checksum := hex.EncodeToString(sum[:])
	now := time.Now().UTC()
	if metadata == nil {
		metadata = map[string]any{}
	}

	file := models.File{
		ID:           id,
		Filename:     id + path.Ext(name),
		OriginalName: name,
		MimeType:     mimeType,
		Size:         int64(len(content)),
		StoragePath:  "uploads/" + id + path.Ext(name),
		FileURL:      "/api/transform/" + id,
		UserID:       "api-key:" + s.keyID,
		Metadata:     metadata,
		Checksum:     &checksum,
		IsPublic:     true,
		CreatedAt:    &now,
		UpdatedAt:    &now,
	}
	if folderID != "" {
		file.FolderID = &folderID
	}

	s.files[id] = &record{file: file, content: content}
	return file
}

// File returns a stored file record
func (s *Server) File(id string) (models.File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[id]
	if !ok {
		return models.File{}, false
	}
	return rec.file, true
}

// Content returns the stored content of a file
func (s *Server) Content(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[id]
	if !ok {
		return nil, false
	}
	return rec.content, true
}

// FileCount returns the number of stored files
func (s *Server) FileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Requests returns a copy of the request log
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent request
func (s *Server) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// RequestCount returns the number of requests received
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Fail makes the next times requests answer status with a JSON body
func (s *Server) Fail(times, status int, body string) {
	s.FailRaw(times, status, "application/json", body)
}

// FailRaw makes the next times requests answer status with body of contentType
func (s *Server) FailRaw(times, status int, contentType, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{remaining: times, status: status, contentType: contentType, body: body})
}

// SetDelay delays every response by d
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Reset clears files, the request log, faults and the delay
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string]*record)
	s.requests = nil
	s.faults = nil
	s.delay = 0
}

func (s *Server) updateRequest(r *http.Request, fn func(*Request)) {
	index, ok := r.Context().Value(requestIndexKey{}).(int)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < len(s.requests) {
		fn(&s.requests[index])
	}
}
