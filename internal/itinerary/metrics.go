package itinerary

import "github.com/prometheus/client_golang/prometheus"

// Metrics 每個步驟的嘗試次數與結果
type Metrics struct {
	attempts *prometheus.CounterVec
	units    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "travelplanner",
			Subsystem: "generation",
			Name:      "failed_attempts_total",
			Help:      "Rejected generation attempts by unit kind and error class.",
		}, []string{"unit", "class"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "travelplanner",
			Subsystem: "generation",
			Name:      "units_total",
			Help:      "Finished generation units by kind and outcome.",
		}, []string{"unit", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.units)
	}
	return m
}

func (m *Metrics) failedAttempt(kind string, class ErrorClass) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(kind, class.String()).Inc()
}

func (m *Metrics) unitDone(kind, outcome string) {
	if m == nil {
		return
	}
	m.units.WithLabelValues(kind, outcome).Inc()
}
