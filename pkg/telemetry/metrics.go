package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for selection and booking.
type Metrics struct {
	config MetricsConfig

	// Selection metrics
	selections     *prometheus.CounterVec
	validations    *prometheus.CounterVec
	ruleRejections *prometheus.CounterVec

	// Operation metrics
	operationDuration *prometheus.HistogramVec
	errorsByCode      *prometheus.CounterVec

	// Reservation metrics
	reservations *prometheus.CounterVec

	// Rule set metrics
	rulesLoaded prometheus.Gauge
	ruleReloads *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector. A disabled configuration
// yields a collector whose methods do nothing.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "selections_total",
				Help:      "Selections computed, by operation and resolving rule kind",
			},
			[]string{"operation", "rule_kind"},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_total",
				Help:      "Selection validations by outcome",
			},
			[]string{"outcome"},
		),
		ruleRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_rejections_total",
				Help:      "Validations failed per rule",
			},
			[]string{"rule"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of booking service operations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Operation errors by class and code",
			},
			[]string{"class", "code"},
		),
		reservations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservations_total",
				Help:      "Reservation state changes by resulting status",
			},
			[]string{"status"},
		),
		rulesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rules_loaded",
				Help:      "Number of rules in the active engine",
			},
		),
		ruleReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_reloads_total",
				Help:      "Rule file reloads by outcome",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.selections,
		m.validations,
		m.ruleRejections,
		m.operationDuration,
		m.errorsByCode,
		m.reservations,
		m.rulesLoaded,
		m.ruleReloads,
	)

	return m, nil
}

// Enabled reports whether metrics are collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.registry != nil
}

// RecordSelection counts a computed selection. ruleKind is "none" when no
// rule applied.
func (m *Metrics) RecordSelection(operation, ruleKind string) {
	if !m.Enabled() {
		return
	}
	if ruleKind == "" {
		ruleKind = "none"
	}
	m.selections.WithLabelValues(operation, ruleKind).Inc()
}

// RecordValidation counts a validation and the rules that rejected it.
func (m *Metrics) RecordValidation(valid bool, rejectedBy []string) {
	if !m.Enabled() {
		return
	}
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	m.validations.WithLabelValues(outcome).Inc()
	for _, rule := range rejectedBy {
		m.ruleRejections.WithLabelValues(rule).Inc()
	}
}

// ObserveOperation records how long a service operation took.
func (m *Metrics) ObserveOperation(operation string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError counts an operation error by class and code.
func (m *Metrics) RecordError(class, code string) {
	if !m.Enabled() {
		return
	}
	m.errorsByCode.WithLabelValues(class, code).Inc()
}

// RecordReservation counts a reservation entering status.
func (m *Metrics) RecordReservation(status string) {
	if !m.Enabled() {
		return
	}
	m.reservations.WithLabelValues(status).Inc()
}

// RecordRuleReload records a reload attempt and, on success, the new rule
// count.
func (m *Metrics) RecordRuleReload(rules int, err error) {
	if !m.Enabled() {
		return
	}
	if err != nil {
		m.ruleReloads.WithLabelValues("failure").Inc()
		return
	}
	m.ruleReloads.WithLabelValues("success").Inc()
	m.rulesLoaded.Set(float64(rules))
}

// SetRulesLoaded sets the active rule count.
func (m *Metrics) SetRulesLoaded(rules int) {
	if !m.Enabled() {
		return
	}
	m.rulesLoaded.Set(float64(rules))
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics endpoint until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context) error {
	if !m.Enabled() {
		<-ctx.Done()
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
