// Package handlers contains the HTTP handlers for the media index API,
// file streaming, and health endpoints.
package handlers
