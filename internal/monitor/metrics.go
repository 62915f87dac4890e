package monitor

import (
	"streamloader/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the producer's Prometheus collectors.
type Metrics struct {
	cycles        prometheus.Counter
	generated     prometheus.Counter
	accepted      prometheus.Counter
	dropped       prometheus.Counter
	retryRounds   prometheus.Counter
	rejected      *prometheus.CounterVec
	sinkErrors    *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	quota         prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamloader_cycles_total",
			Help: "Production cycles completed.",
		}),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamloader_records_generated_total",
			Help: "Records pulled from the generator.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamloader_records_accepted_total",
			Help: "Records acknowledged by the sink.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamloader_records_dropped_total",
			Help: "Records abandoned after the retry policy gave up.",
		}),
		retryRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamloader_retry_rounds_total",
			Help: "Resends of failed record subsets.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamloader_records_rejected_total",
			Help: "Records the sink reported as failed, by first error code of the round.",
		}, []string{"code"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamloader_sink_errors_total",
			Help: "Failed sink rounds by kind: transport (call failed) or rejected (per-record failures).",
		}, []string{"kind"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamloader_cycle_duration_seconds",
			Help:    "Wall-clock time from batch pull to clean submission.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		quota: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamloader_cycle_quota",
			Help: "Records pulled per cycle.",
		}),
	}

	reg.MustRegister(m.cycles, m.generated, m.accepted, m.dropped, m.retryRounds,
		m.rejected, m.sinkErrors, m.cycleDuration, m.quota)
	return m
}

func (m *Metrics) RecordsRejected(n int, code string) {
	if code == "" {
		code = "unknown"
	}
	m.rejected.WithLabelValues(code).Add(float64(n))
	m.sinkErrors.WithLabelValues("rejected").Inc()
}

func (m *Metrics) TransportFailed() {
	m.sinkErrors.WithLabelValues("transport").Inc()
}

func (m *Metrics) RetryRound(int) {
	m.retryRounds.Inc()
}

func (m *Metrics) SetQuota(q int) {
	m.quota.Set(float64(q))
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(r model.CycleReport) {
	m.cycles.Inc()
	m.generated.Add(float64(r.Batch))
	m.accepted.Add(float64(r.Accepted))
	m.dropped.Add(float64(r.Outstanding))
	m.cycleDuration.Observe(r.Elapsed.Seconds())
}
