// Package metadata loads optional JSON sidecar files that accompany media
// files. A sidecar lives next to the media file it describes, named by
// appending ".json" to the full filename (photo.jpg -> photo.jpg.json).
// Sidecars follow the Google Takeout export schema: title, description,
// photo taken time, geo data, and device type, all optional.
package metadata
