// Package streaming writes media bytes to HTTP responses with timeout
// protection. Slow or disconnected clients are detected and cut off so
// they cannot pin file handles and goroutines open indefinitely.
package streaming
