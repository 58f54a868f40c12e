// Package metrics exposes Prometheus metrics for a contract node.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	name string
	srv  *http.Server
}

// New creates a metrics server for the given component name. An empty addr
// disables the server; ListenAndServe and Shutdown become no-ops.
func New(name, addr string) (*MetricsServer, error) {
	if name == "" {
		return nil, fmt.Errorf("metrics component name is required")
	}

	m := &MetricsServer{name: name}
	if addr == "" {
		return m, nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	m.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return m, nil
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	if m.srv == nil {
		return nil
	}
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the scrape endpoint.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}

// Operation counters, labelled by outcome.

// IncOperation counts a completed contract operation.
func IncOperation(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`contract_operations_total{op=%q,outcome=%q}`, op, outcome)).Inc()
}

// IncCallback counts an oracle callback delivery.
func IncCallback(err error) {
	IncOperation("oracle-callback", err)
}

// ObserveRequestDuration records the handling latency of an operation.
func ObserveRequestDuration(op string, d time.Duration) {
	metrics.GetOrCreateSummary(fmt.Sprintf(`contract_operation_duration_seconds{op=%q}`, op)).Update(d.Seconds())
}
