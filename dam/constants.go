package dam

import "time"

// Version of the SDK reported in the User-Agent header
const Version = "1.0.0"

// Defaults applied by DefaultConfig and to zero Config fields
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultBackoffFactor  = 500 * time.Millisecond
	DefaultMaxFileSize    = 100 * 1024 * 1024
	DefaultMaxBatchFiles  = 10
	DefaultChunkSize      = 8192
	DefaultThumbnailSize  = 200
	DefaultAsyncWorkers   = 8
	DefaultAsyncQueueSize = 64
	DefaultUserAgent      = "DAM-Go-SDK/" + Version
)

// API endpoints
const (
	endpointUploadSingle   = "/api/public/single"
	endpointUploadMultiple = "/api/public/multiple"
	endpointFiles          = "/api/public/files"
	endpointTransform      = "/api/transform/"
	endpointStatsDashboard = "/api/stats/dashboard"
	endpointStatsStorage   = "/api/stats/storage"
	endpointBulkDelete     = "/api/files/bulk-delete"
)

// Credential headers sent with every request
const (
	HeaderKeyID     = "X-API-Key-ID"
	HeaderKeySecret = "X-API-Key-Secret"
)

func fileEndpoint(id string) string {
	return endpointFiles + "/" + escapeID(id)
}

func transformEndpoint(id string) string {
	return endpointTransform + escapeID(id)
}

func thumbnailEndpoint(id string) string {
	return transformEndpoint(id) + "/thumbnail"
}
