// Package responses defines the JSON bodies served by the monitoring endpoints.
package responses

import "time"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    float64   `json:"uptime"`
	Connected int       `json:"connected_servers"`
}

// StatusResponse lists every preview server.
type StatusResponse struct {
	Timestamp time.Time      `json:"timestamp"`
	Servers   []ServerStatus `json:"servers"`
}

// ServerStatus describes one workspace's server pair.
type ServerStatus struct {
	Workspace string `json:"workspace"`
	State     string `json:"state"`
	HTTPURI   string `json:"http_uri,omitempty"`
	WSURI     string `json:"ws_uri,omitempty"`
	HTTPPort  int    `json:"http_port"`
	WSPort    int    `json:"ws_port"`
	Clients   int    `json:"clients"`
}
