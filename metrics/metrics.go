// Package metrics exposes Prometheus metrics for the allowlist service on a
// dedicated listener.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves a Prometheus registry over HTTP on its own address.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	transactionsTotal *prometheus.CounterVec
	instructionsTotal *prometheus.CounterVec
	ledgerSlot        prometheus.Gauge
	snapshotsTotal    prometheus.Counter
}

// New creates a metrics server for the named service listening on addr.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &MetricsServer{
		registry: registry,
		transactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Count of submitted transaction batches by outcome.",
			},
			[]string{"outcome"},
		),
		instructionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instructions_total",
				Help:      "Count of processed registry instructions by opcode and outcome.",
			},
			[]string{"opcode", "outcome"},
		),
		ledgerSlot: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ledger_slot",
				Help:      "Slot of the last committed transaction batch.",
			},
		),
		snapshotsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_published_total",
				Help:      "Count of snapshots published to storage backends.",
			},
		),
	}
	registry.MustRegister(m.transactionsTotal, m.instructionsTotal, m.ledgerSlot, m.snapshotsTotal)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	m.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	return m, nil
}

// RecordTransaction counts one submitted batch.
func (m *MetricsServer) RecordTransaction(outcome string) {
	m.transactionsTotal.WithLabelValues(outcome).Inc()
}

// RecordInstruction counts one processed registry instruction.
func (m *MetricsServer) RecordInstruction(opcode, outcome string) {
	m.instructionsTotal.WithLabelValues(opcode, outcome).Inc()
}

// SetSlot records the latest committed slot.
func (m *MetricsServer) SetSlot(slot uint64) {
	m.ledgerSlot.Set(float64(slot))
}

// RecordSnapshot counts one published snapshot.
func (m *MetricsServer) RecordSnapshot() {
	m.snapshotsTotal.Inc()
}

// ListenAndServe starts the metrics listener. Blocks until Shutdown or error.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
