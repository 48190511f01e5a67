// Package filesystem wraps stat and open with retry logic for stale file
// handle errors, which occur on NFS-backed media mounts when a file is
// replaced between lookup and access.
package filesystem
