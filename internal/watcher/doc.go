// Package watcher applies incremental index updates between scans. It
// subscribes to filesystem notifications on every directory under the
// media roots and feeds add/change/remove events through a single apply
// goroutine, so updates for the same path are always applied in the
// order they were observed.
package watcher
