package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/talisker77/media-viewer/internal/logging"
	"github.com/talisker77/media-viewer/internal/metrics"
)

// Resolver locates and parses sidecar files for media paths.
type Resolver struct{}

// NewResolver creates a sidecar resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// SidecarPath returns the sidecar filename for a media path.
func (r *Resolver) SidecarPath(mediaPath string) string {
	return mediaPath + ".json"
}

// Resolve reads and parses the sidecar for mediaPath.
//
// A missing sidecar is not an error: entries without metadata are normal,
// so both the metadata and the error are nil. A sidecar that exists but
// does not parse is treated the same way, with a warning logged, so one
// corrupt export file cannot block indexing. Other I/O failures (permission,
// stale handle) are returned to the caller.
func (r *Resolver) Resolve(mediaPath string) (*Metadata, error) {
	sidecarPath := r.SidecarPath(mediaPath)

	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			metrics.MetadataSidecarsMissing.Inc()
			return nil, nil
		}
		metrics.MetadataSidecarErrors.Inc()
		return nil, fmt.Errorf("reading sidecar %s: %w", sidecarPath, err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		metrics.MetadataSidecarsInvalid.Inc()
		logging.Warn("Ignoring malformed sidecar %s: %v", sidecarPath, err)
		return nil, nil
	}

	metrics.MetadataSidecarsLoaded.Inc()
	return &meta, nil
}
