// Package middleware provides the HTTP middleware chain: request ID
// assignment, W3C Extended Log Format access logging, and Prometheus
// request metrics.
package middleware
