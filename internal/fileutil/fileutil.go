// Package fileutil provides helpers for preparing local files for upload
package fileutil

import (
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/h2non/filetype"
)

// DefaultMIMEType is used when no type can be derived from a filename
const DefaultMIMEType = "application/octet-stream"

// ErrFileTooLarge is returned when a file exceeds the configured upload limit
var ErrFileTooLarge = errors.New("file too large")

var invalidFilenameChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// SanitizeFilename strips directory components and replaces characters
// the server rejects with "_"
func SanitizeFilename(name string) string {
	// Path separators of both flavours count, regardless of the host OS
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return invalidFilenameChars.Replace(name)
}

// GuessMIME derives a MIME type from the filename extension
func GuessMIME(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return DefaultMIMEType
	}

	if t := mime.TypeByExtension(ext); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
		return t
	}

	if t := filetype.GetType(strings.TrimPrefix(ext, ".")); t != filetype.Unknown && t.MIME.Value != "" {
		return t.MIME.Value
	}

	return DefaultMIMEType
}

// SniffMIME matches the leading bytes of a file against known signatures.
// It returns "" when nothing matches.
func SniffMIME(head []byte) string {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

// CheckFileSize stats path and returns its size, failing with ErrFileTooLarge
// when it exceeds max. A max of zero or less disables the check.
func CheckFileSize(path string, max int64) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}

	size := info.Size()
	if max > 0 && size > max {
		return size, fmt.Errorf("%w: %s is %s, limit is %s", ErrFileTooLarge, filepath.Base(path), FormatBytes(size), FormatBytes(max))
	}
	return size, nil
}

// FormatBytes renders a byte count as a human readable string such as "1.50 MB"
func FormatBytes(size int64) string {
	value := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if value < 1024 {
			return fmt.Sprintf("%.2f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.2f PB", value)
}

// BuildQuery encodes params as a query string with a leading "?".
// Nil values are skipped, booleans are lowercased and slices are joined with commas.
// Keys are emitted in sorted order. An empty result yields "".
func BuildQuery(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(formatValue(params[k])))
	}
	return "?" + strings.Join(parts, "&")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []string:
		return strings.Join(val, ",")
	case []int:
		items := make([]string, len(val))
		for i, n := range val {
			items[i] = strconv.Itoa(n)
		}
		return strings.Join(items, ",")
	case []any:
		items := make([]string, len(val))
		for i, item := range val {
			items[i] = formatValue(item)
		}
		return strings.Join(items, ",")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
