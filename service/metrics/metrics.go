package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Ledger RPC Metrics
	ledgerRPCCallsTotal   *prometheus.CounterVec
	ledgerRPCCallDuration *prometheus.HistogramVec
	confirmWaitDuration   *prometheus.HistogramVec

	// Signer Metrics
	signerCallsTotal   *prometheus.CounterVec
	signerCallDuration *prometheus.HistogramVec

	// Session Metrics
	sessionTransitionsTotal *prometheus.CounterVec
	transfersTotal          *prometheus.CounterVec
	transferLamports        prometheus.Counter
	balanceRefreshesTotal   *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		ledgerRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_rpc_calls_total",
				Help: "Total number of ledger RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		ledgerRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_rpc_call_duration_seconds",
				Help:    "Duration of ledger RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		confirmWaitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_confirm_wait_seconds",
				Help:    "Time spent waiting for a signature to reach the requested commitment",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),

		signerCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signer_calls_total",
				Help: "Total number of signer exchanges by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		signerCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signer_call_duration_seconds",
				Help:    "Duration of signer exchanges in seconds, including user interaction",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"method"},
		),

		sessionTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_transitions_total",
				Help: "Total number of wallet session state transitions",
			},
			[]string{"to", "reason"},
		),
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfers_total",
				Help: "Total number of transfer attempts by outcome",
			},
			[]string{"outcome"},
		),
		transferLamports: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "transfer_lamports_total",
				Help: "Total lamports sent in confirmed transfers",
			},
		),
		balanceRefreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balance_refreshes_total",
				Help: "Total number of balance refreshes by outcome",
			},
			[]string{"outcome"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"event_type"},
		),
	}
}

// Ledger RPC metric helpers

// RecordRPCCall records a ledger RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	if m == nil {
		return
	}
	m.ledgerRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.ledgerRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordConfirmWait records how long a confirmation wait took and how it ended.
func (m *Metrics) RecordConfirmWait(outcome string, duration float64) {
	if m == nil {
		return
	}
	m.confirmWaitDuration.WithLabelValues(outcome).Observe(duration)
}

// Signer metric helpers

// RecordSignerCall records one signer exchange.
func (m *Metrics) RecordSignerCall(method, outcome string, duration float64) {
	if m == nil {
		return
	}
	m.signerCallsTotal.WithLabelValues(method, outcome).Inc()
	m.signerCallDuration.WithLabelValues(method).Observe(duration)
}

// Session metric helpers

// RecordTransition records a session state transition.
func (m *Metrics) RecordTransition(to, reason string) {
	if m == nil {
		return
	}
	m.sessionTransitionsTotal.WithLabelValues(to, reason).Inc()
}

// RecordTransfer records the outcome of a transfer attempt.
// lamports is only added to the running total for confirmed transfers.
func (m *Metrics) RecordTransfer(outcome string, lamports uint64) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(outcome).Inc()
	if outcome == "confirmed" {
		m.transferLamports.Add(float64(lamports))
	}
}

// RecordBalanceRefresh records the outcome of a balance refresh.
func (m *Metrics) RecordBalanceRefresh(outcome string) {
	if m == nil {
		return
	}
	m.balanceRefreshesTotal.WithLabelValues(outcome).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	if m == nil {
		return
	}
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(eventType string) {
	if m == nil {
		return
	}
	m.sseEventsSent.WithLabelValues(eventType).Inc()
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
