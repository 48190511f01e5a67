// Package database provides the SQLite-backed media index.
//
// The index runs in WAL mode so readers operate on consistent snapshots
// without blocking writers. All writes are serialized through a single
// mutex held for the duration of each transaction; batch replacement is
// all-or-nothing so a failed scan never leaves a half-updated index.
package database
