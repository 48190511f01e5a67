package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/talisker77/media-viewer/internal/database"
	"github.com/talisker77/media-viewer/internal/logging"
	"github.com/talisker77/media-viewer/internal/mediatypes"
	"github.com/talisker77/media-viewer/internal/metadata"
)

// BuildEntry turns a walked file into an index entry. The second return
// value is false for files that should not be indexed (non-media
// extensions). Sidecar read failures degrade to an entry without
// metadata rather than failing the scan.
func BuildEntry(path string, info os.FileInfo, types *mediatypes.Registry, resolver *metadata.Resolver) (*database.MediaEntry, bool) {
	ext := strings.ToLower(filepath.Ext(info.Name()))
	fileType := types.FileType(ext)
	if fileType == mediatypes.FileTypeOther {
		return nil, false
	}

	meta, err := resolver.Resolve(path)
	if err != nil {
		logging.Warn("Failed to read sidecar for %s: %v", path, err)
	}

	return &database.MediaEntry{
		Path:      path,
		Name:      info.Name(),
		Type:      string(fileType),
		Directory: filepath.Dir(path),
		Size:      info.Size(),
		Modified:  info.ModTime(),
		Created:   createdTime(info),
		Metadata:  meta,
	}, true
}

// createdTime extracts the inode change time where the platform exposes
// it, falling back to the modification time.
func createdTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}
	return info.ModTime()
}
