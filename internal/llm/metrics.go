package llm

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 文字生成呼叫的 Prometheus 指標
type Metrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "travelplanner",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Text generation calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "travelplanner",
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Latency of text generation calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}, []string{"provider"}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.latency)
	}
	return m
}

type instrumented struct {
	next    Client
	metrics *Metrics
}

// Instrument 包一層記錄呼叫次數與延遲
func Instrument(c Client, m *Metrics) Client {
	if m == nil {
		return c
	}
	return &instrumented{next: c, metrics: m}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	start := time.Now()
	out, err := i.next.Chat(ctx, messages, opts)
	i.metrics.latency.WithLabelValues(i.next.Name()).Observe(time.Since(start).Seconds())
	i.metrics.calls.WithLabelValues(i.next.Name(), outcome(err)).Inc()
	return out, err
}

func outcome(err error) string {
	var te *TransportError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	case errors.As(err, &te) && te.Timeout():
		return "timeout"
	case errors.As(err, &te):
		return "transport"
	default:
		return "error"
	}
}
