package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the domain Metrics port using Prometheus.
type Recorder struct {
	commands    *prometheus.CounterVec
	resolver    *prometheus.CounterVec
	evidence    *prometheus.CounterVec
	verdicts    *prometheus.CounterVec
	orders      *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the collectors on reg; nil means the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ncl", Name: "commands_total",
			Help: "Commands handled by intent and outcome",
		}, []string{"intent", "outcome"}),
		resolver: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ncl", Name: "resolver_parses_total",
			Help: "Parsed commands by resolver path",
		}, []string{"path"}),
		evidence: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ncl", Name: "evidence_records_total",
			Help: "Evidence records by source and whether the value is real or a tagged default",
		}, []string{"source", "origin"}),
		verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ncl", Name: "consensus_verdicts_total",
			Help: "Consensus verdicts by strategy",
		}, []string{"strategy"}),
		orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ncl", Name: "orders_published_total",
			Help: "Orders published to the bus",
		}, []string{"side"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ncl", Name: "errors_total",
			Help: "Errors by kind",
		}, []string{"kind"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ncl", Name: "operation_duration_seconds",
			Help:    "Duration of pipeline operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordCommand(intent, outcome string) {
	r.commands.WithLabelValues(intent, outcome).Inc()
}

func (r *Recorder) RecordResolver(path string) {
	r.resolver.WithLabelValues(path).Inc()
}

// RecordEvidence counts one evidence record; isDefault marks a fallback value.
func (r *Recorder) RecordEvidence(source string, isDefault bool) {
	origin := "real"
	if isDefault {
		origin = "default"
	}
	r.evidence.WithLabelValues(source, origin).Inc()
}

func (r *Recorder) RecordVerdict(strategy string) {
	r.verdicts.WithLabelValues(strategy).Inc()
}

func (r *Recorder) RecordOrder(side string) {
	r.orders.WithLabelValues(side).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, d time.Duration) {
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}
