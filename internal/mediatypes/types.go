package mediatypes

import "strings"

// FileType represents the type of a media file.
type FileType string

const (
	// FileTypeImage represents an image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeOther represents an unrecognized file type.
	// Files of this type are never indexed.
	FileTypeOther FileType = "other"
)

// DefaultImageExtensions are the image formats indexed when no override
// is configured.
var DefaultImageExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}

// DefaultVideoExtensions are the video formats indexed when no override
// is configured.
var DefaultVideoExtensions = []string{"mp4", "webm", "mov"}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",

	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
}

// Registry holds the configured extension allow-lists. Extensions not in
// either list are not media files as far as the index is concerned.
type Registry struct {
	images map[string]bool
	videos map[string]bool
}

// NewRegistry builds a Registry from extension lists. Extensions are
// normalized to lowercase with a leading dot, so "JPG", "jpg" and ".jpg"
// are all accepted.
func NewRegistry(imageExts, videoExts []string) *Registry {
	return &Registry{
		images: normalizeExtensions(imageExts),
		videos: normalizeExtensions(videoExts),
	}
}

// DefaultRegistry returns a Registry with the default allow-lists.
func DefaultRegistry() *Registry {
	return NewRegistry(DefaultImageExtensions, DefaultVideoExtensions)
}

func normalizeExtensions(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m[ext] = true
	}
	return m
}

// FileType returns the FileType for a given file extension.
// The extension should include the leading dot (e.g., ".jpg"); case does
// not matter. Returns FileTypeOther if the extension is not recognized.
func (r *Registry) FileType(ext string) FileType {
	ext = strings.ToLower(ext)
	if r.images[ext] {
		return FileTypeImage
	}
	if r.videos[ext] {
		return FileTypeVideo
	}
	return FileTypeOther
}

// IsMediaFile returns true if the extension is on one of the allow-lists.
func (r *Registry) IsMediaFile(ext string) bool {
	return r.FileType(ext) != FileTypeOther
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}
