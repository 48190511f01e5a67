package metadata

import (
	"strconv"
	"time"
)

// TakenTime records when a photo or video was captured. Timestamp is a
// unix-seconds value encoded as a string, matching the sidecar schema.
type TakenTime struct {
	Timestamp string `json:"timestamp,omitempty"`
	Formatted string `json:"formatted,omitempty"`
}

// Time parses the Timestamp field. The second return value reports whether
// a valid time was present.
func (t *TakenTime) Time() (time.Time, bool) {
	if t == nil || t.Timestamp == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(t.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

// GeoData holds a capture location. Both coordinates must be present for
// the location to count.
type GeoData struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasLocation reports whether both coordinates are set.
func (g *GeoData) HasLocation() bool {
	return g != nil && g.Latitude != nil && g.Longitude != nil
}

// Metadata is the parsed content of a sidecar file. Every field is
// optional; absent fields stay nil and are omitted when re-serialized.
type Metadata struct {
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	PhotoTakenTime *TakenTime `json:"photoTakenTime,omitempty"`
	GeoData        *GeoData   `json:"geoData,omitempty"`
	DeviceType     *string    `json:"deviceType,omitempty"`
}

// TakenAt returns the capture time if the sidecar carried a parseable one.
func (m *Metadata) TakenAt() (time.Time, bool) {
	if m == nil {
		return time.Time{}, false
	}
	return m.PhotoTakenTime.Time()
}

// HasLocation reports whether the sidecar carried full geo coordinates.
func (m *Metadata) HasLocation() bool {
	return m != nil && m.GeoData.HasLocation()
}
