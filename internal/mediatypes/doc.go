// Package mediatypes classifies files by extension into the media types the
// index understands and maps extensions to MIME types for serving.
package mediatypes
