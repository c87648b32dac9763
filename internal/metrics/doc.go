// Package metrics provides the observability hooks of the preview server.
//
// Components receive a Recorder through their constructors and default to NoopRecorder,
// so no call site needs a nil check. When metrics are enabled the CLI swaps in a
// PrometheusRecorder and mounts HTTPHandler on the configured admin address.
//
// The page-generation counter doubles as the usage telemetry hook: every synthesized
// directory listing, 404 page and "no server root" page is counted by kind.
package metrics
