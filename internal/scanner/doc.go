// Package scanner walks the configured media roots and keeps the index in
// sync with what is on disk. A scan buffers the full traversal, then
// replaces the index in a single transaction and drops entries for files
// that disappeared. A scan that fails partway leaves the index untouched.
package scanner
