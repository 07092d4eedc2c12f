// Package metrics collects Prometheus counters for encoding jobs and the
// codec runtime lifecycle.
//
// The CLI is short-lived, so nothing is served over HTTP. When
// metrics.textfile_path is configured the collector writes its registry in
// the node-exporter textfile format after each run.
package metrics
