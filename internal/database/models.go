package database

import (
	"time"

	"github.com/talisker77/media-viewer/internal/metadata"
)

// Media entry types stored in the index.
const (
	TypeImage = "image"
	TypeVideo = "video"
)

// MediaEntry is one indexed media file.
type MediaEntry struct {
	Path      string             `json:"path"`
	Name      string             `json:"name"`
	Type      string             `json:"type"`
	Directory string             `json:"directory"`
	Size      int64              `json:"size"`
	Modified  time.Time          `json:"modified"`
	Created   time.Time          `json:"created"`
	Metadata  *metadata.Metadata `json:"metadata,omitempty"`
}

// QueryOptions filters and paginates index queries. Zero values mean
// "no filter"; Page and PageSize get defaults when out of range.
type QueryOptions struct {
	Page        int
	PageSize    int
	Search      string
	Type        string
	DateFrom    *time.Time
	DateTo      *time.Time
	HasLocation bool
}

// QueryResult is one page of query results plus pagination state.
type QueryResult struct {
	Items        []MediaEntry `json:"items"`
	TotalItems   int          `json:"totalItems"`
	TotalPages   int          `json:"totalPages"`
	CurrentPage  int          `json:"currentPage"`
	ItemsPerPage int          `json:"itemsPerPage"`
	HasMore      bool         `json:"hasMore"`
}

// IndexStats summarizes the index contents.
type IndexStats struct {
	TotalFiles   int       `json:"totalFiles"`
	TotalImages  int       `json:"totalImages"`
	TotalVideos  int       `json:"totalVideos"`
	WithLocation int       `json:"withLocation"`
	TotalSize    int64     `json:"totalSize"`
	LastIndexed  time.Time `json:"lastIndexed"`
}
