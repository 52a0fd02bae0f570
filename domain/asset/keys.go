package asset

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
)

// DefaultContentType is used when a source reports no content type.
const DefaultContentType = "application/octet-stream"

// DefaultName is used when no name can be derived from a URL.
const DefaultName = "asset"

var extensionByType = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"image/svg+xml":   "svg",
	"video/mp4":       "mp4",
	"application/pdf": "pdf",
}

// ExtensionFor picks the file extension for name and contentType: the
// name's own extension when it has one, else the mapped or subtype
// extension of contentType, else "bin".
func ExtensionFor(name, contentType string) string {
	if ext := strings.TrimPrefix(path.Ext(name), "."); ext != "" {
		return strings.ToLower(ext)
	}
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	if ext, ok := extensionByType[mediaType]; ok {
		return ext
	}
	if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
		return sub
	}
	return "bin"
}

// NameFromURL returns the last path segment of rawURL, or DefaultName.
func NameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultName
	}
	segment := path.Base(u.Path)
	if segment == "." || segment == "/" || segment == "" {
		return DefaultName
	}
	if unescaped, err := url.PathUnescape(segment); err == nil {
		segment = unescaped
	}
	return segment
}

// ObjectKey returns the permanent storage key "{tenant}/{id}.{ext}".
func ObjectKey(tenantID, id, ext string) string {
	return fmt.Sprintf("%s/%s.%s", tenantID, id, ext)
}

// TempKey returns the staging key "{tenant}/temp/{id}.{ext}".
func TempKey(tenantID, id, ext string) string {
	return fmt.Sprintf("%s/temp/%s.%s", tenantID, id, ext)
}

// IsTempKeyOf reports whether key is a staging key inside tenantID.
func IsTempKeyOf(key, tenantID string) bool {
	prefix := tenantID + "/temp/"
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	rest := strings.TrimPrefix(key, prefix)
	return rest != "" && !strings.Contains(rest, "/") && !strings.Contains(rest, "..")
}
