// Package exporters provides HTTP and SSE exporters for metrics.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns the Prometheus scrape handler, served by the
// API at /metrics. All depthnode_* series register through promauto,
// so the default gatherer already has everything the pipeline, sink,
// and server record.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
