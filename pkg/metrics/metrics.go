// Package metrics exposes billing decisions and gateway calls as Prometheus counters.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gallery_billing"

// Billing implements billing.Metrics.
type Billing struct {
	transitionsTotal *prometheus.CounterVec
	refundsTotal     *prometheus.CounterVec
	gatewayTotal     *prometheus.CounterVec
}

// New registers the billing collectors on registerer, reusing collectors that are
// already registered under the same name. A nil registerer means the default one.
func New(registerer prometheus.Registerer) *Billing {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Billing{
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "transitions_evaluated_total",
				Help:      "Lifecycle transition validations by action, result code and outcome",
			},
			[]string{"action", "code", "valid"},
		),
		refundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "refund",
				Name:      "eligibility_evaluated_total",
				Help:      "Refund eligibility evaluations by decision code",
			},
			[]string{"code", "eligible"},
		),
		gatewayTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "calls_total",
				Help:      "Payment gateway calls by operation and result",
			},
			[]string{"operation", "result"},
		),
	}

	m.transitionsTotal = registerCounterVec(registerer, m.transitionsTotal)
	m.refundsTotal = registerCounterVec(registerer, m.refundsTotal)
	m.gatewayTotal = registerCounterVec(registerer, m.gatewayTotal)

	return m
}

func registerCounterVec(registerer prometheus.Registerer, counter *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registerer.Register(counter); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return counter
}

func (m *Billing) TransitionEvaluated(action, code string, valid bool) {
	m.transitionsTotal.WithLabelValues(normalize(action), normalize(code), boolLabel(valid)).Inc()
}

func (m *Billing) RefundEvaluated(code string, eligible bool) {
	m.refundsTotal.WithLabelValues(normalize(code), boolLabel(eligible)).Inc()
}

func (m *Billing) GatewayCall(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.gatewayTotal.WithLabelValues(normalize(operation), result).Inc()
}

func normalize(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
