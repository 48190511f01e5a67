// Package metrics defines all Prometheus metrics exported by the media
// viewer: HTTP, index store, scanner, watcher, metadata resolver, and
// streaming metric families.
package metrics
