package models

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/damsdk/internal/fileutil"
)

// Defaults applied when option fields are left at their zero value
const (
	DefaultSearchLimit      = 50
	DefaultSearchSort       = "created_at"
	DefaultSearchOrder      = "desc"
	DefaultTransformFit     = "cover"
	DefaultTransformQuality = 80
)

var (
	// SupportedFormats lists the output formats accepted by the transform endpoint
	SupportedFormats = []string{"jpeg", "jpg", "png", "webp", "avif", "gif"}

	// FitOptions lists the resize modes accepted by the transform endpoint
	FitOptions = []string{"cover", "contain", "fill", "inside", "outside"}
)

// UploadOptions holds optional form fields sent with uploads
type UploadOptions struct {
	FolderID     string
	Metadata     map[string]any
	OriginalName string
}

// SearchOptions filters and paginates file listings.
// Zero values select the defaults: limit 50, sort created_at, order desc.
type SearchOptions struct {
	FolderID string
	MimeType string
	Search   string
	Limit    int
	Offset   int
	Sort     string
	Order    string
}

// Params returns the list query parameters with defaults applied. Empty
// filters map to nil so they are left out of the encoded query.
func (o SearchOptions) Params() map[string]any {
	limit := o.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	offset := max(o.Offset, 0)
	sort := o.Sort
	if sort == "" {
		sort = DefaultSearchSort
	}
	order := o.Order
	if order == "" {
		order = DefaultSearchOrder
	}

	return map[string]any{
		"folder_id": optional(o.FolderID),
		"mime_type": optional(o.MimeType),
		"search":    optional(o.Search),
		"limit":     limit,
		"offset":    offset,
		"sort":      sort,
		"order":     order,
	}
}

// Encode returns the list query string without a leading "?"
func (o SearchOptions) Encode() string {
	return strings.TrimPrefix(fileutil.BuildQuery(o.Params()), "?")
}

// Query returns the list query parameters, omitting empty filters
func (o SearchOptions) Query() url.Values {
	q, _ := url.ParseQuery(o.Encode())
	return q
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// TransformOptions controls server-side image transformation.
// Zero Fit and Quality select "cover" and 80.
type TransformOptions struct {
	Width     int
	Height    int
	Fit       string
	Format    string
	Quality   int
	Blur      int
	Grayscale bool
	Rotate    int
}

// QueryParam is a single ordered query parameter
type QueryParam struct {
	Key   string
	Value string
}

// QueryParams returns the canonical ordered encoding of the options
func (o TransformOptions) QueryParams() []QueryParam {
	fit := o.Fit
	if fit == "" {
		fit = DefaultTransformFit
	}
	quality := o.Quality
	if quality == 0 {
		quality = DefaultTransformQuality
	}

	var params []QueryParam
	if o.Width != 0 {
		params = append(params, QueryParam{"w", strconv.Itoa(o.Width)})
	}
	if o.Height != 0 {
		params = append(params, QueryParam{"h", strconv.Itoa(o.Height)})
	}
	params = append(params, QueryParam{"fit", fit})
	if o.Format != "" {
		params = append(params, QueryParam{"format", o.Format})
	}
	params = append(params, QueryParam{"quality", strconv.Itoa(quality)})
	if o.Blur != 0 {
		params = append(params, QueryParam{"blur", strconv.Itoa(o.Blur)})
	}
	if o.Grayscale {
		params = append(params, QueryParam{"grayscale", "true"})
	}
	if o.Rotate != 0 {
		params = append(params, QueryParam{"rotate", strconv.Itoa(o.Rotate)})
	}
	return params
}

// Encode returns the query string for the options without a leading "?"
func (o TransformOptions) Encode() string {
	params := o.QueryParams()
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(parts, "&")
}

// Validate checks the options against the values the transform endpoint accepts
func (o TransformOptions) Validate() error {
	if o.Fit != "" && !contains(FitOptions, o.Fit) {
		return fmt.Errorf("unsupported fit %q", o.Fit)
	}
	if o.Format != "" && !contains(SupportedFormats, strings.ToLower(o.Format)) {
		return fmt.Errorf("unsupported format %q", o.Format)
	}
	if o.Quality < 0 || o.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", o.Quality)
	}
	if o.Width < 0 || o.Height < 0 || o.Blur < 0 {
		return fmt.Errorf("width, height and blur must not be negative")
	}
	return nil
}

// IsSupportedFormat reports whether format is an accepted output format
func IsSupportedFormat(format string) bool {
	return contains(SupportedFormats, strings.ToLower(format))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
