// Package metrics exposes Prometheus-format counters for the phone-auth
// server on a dedicated listen address.
package metrics

import (
	"context"
	"net/http"
	"time"

	vmetrics "github.com/VictoriaMetrics/metrics"
)

// Flow counters, incremented by the HTTP handlers.
var (
	PreparesTotal          = vmetrics.NewCounter("phoneauth_prepares_total")
	PrepareErrorsTotal     = vmetrics.NewCounter("phoneauth_prepare_errors_total")
	ProcessesTotal         = vmetrics.NewCounter("phoneauth_processes_total")
	ProcessErrorsTotal     = vmetrics.NewCounter("phoneauth_process_errors_total")
	StatusPollsTotal       = vmetrics.NewCounter("phoneauth_status_polls_total")
	CompletionsTotal       = vmetrics.NewCounter("phoneauth_completions_total")
	BindingViolationsTotal = vmetrics.NewCounter("phoneauth_binding_violations_total")
)

// MetricsServer serves the /metrics endpoint.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr. The name is exported as a
// constant info metric so dashboards can tell deployments apart.
func New(name, addr string) (*MetricsServer, error) {
	vmetrics.GetOrCreateCounter(`service_info{service="` + name + `"}`).Set(1)

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		vmetrics.WritePrometheus(w, true)
	})

	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving metrics until Shutdown is called.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
