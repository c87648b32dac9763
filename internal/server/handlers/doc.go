// Package handlers provides the monitoring HTTP endpoints: health, server status and the
// Prometheus scrape handler.
package handlers
