package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements [Collector] backed by Prometheus.
//
// Metrics are created and registered lazily on first use, so constructing a
// collector that is never exercised leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	fetches       *prometheus.CounterVec
	fetchAttempts prometheus.Histogram
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	cycleFailures prometheus.Counter
	skippedTicks  prometheus.Counter
	cyclePanics   prometheus.Counter
	channelLive   *prometheus.GaugeVec
	announcements *prometheus.CounterVec
	notifyErrors  *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements Collector.
var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus creates a Prometheus-backed collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: metrics namespace (defaults to "livepulse" if empty)
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "livepulse"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.fetches = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "fetch",
			Name:      "total",
			Help:      "Completed channel status fetches by result kind.",
		}, []string{"kind"})

		p.fetchAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "fetch",
			Name:      "attempts",
			Help:      "HTTP attempts needed per channel fetch.",
			Buckets:   []float64{1, 2, 3, 5},
		})

		p.cycles = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "cycle",
			Name:      "total",
			Help:      "Completed poll cycles.",
		})

		p.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of poll cycles.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		})

		p.cycleFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "cycle",
			Name:      "channel_failures_total",
			Help:      "Channels whose fetch failed within a cycle.",
		})

		p.skippedTicks = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "skipped_ticks_total",
			Help:      "Ticks skipped because the previous cycle was still running.",
		})

		p.cyclePanics = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "cycle_panics_total",
			Help:      "Cycles aborted by a recovered panic.",
		})

		p.channelLive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      "channel_live",
			Help:      "Last known live state per channel (1 live, 0 offline).",
		}, []string{"channel_id"})

		p.announcements = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "announcements_total",
			Help:      "Offline-to-live transitions handed to notifiers.",
		}, []string{"channel_id"})

		p.notifyErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "notify",
			Name:      "errors_total",
			Help:      "Failed notifier calls by stage.",
		}, []string{"stage"})

		p.reg.MustRegister(p.fetches)
		p.reg.MustRegister(p.fetchAttempts)
		p.reg.MustRegister(p.cycles)
		p.reg.MustRegister(p.cycleDuration)
		p.reg.MustRegister(p.cycleFailures)
		p.reg.MustRegister(p.skippedTicks)
		p.reg.MustRegister(p.cyclePanics)
		p.reg.MustRegister(p.channelLive)
		p.reg.MustRegister(p.announcements)
		p.reg.MustRegister(p.notifyErrors)
	})
}

// RecordFetch implements Collector.
func (p *PrometheusCollector) RecordFetch(_ string, attempts int, kind string) {
	p.ensureRegistered()
	p.fetches.WithLabelValues(kind).Inc()
	p.fetchAttempts.Observe(float64(attempts))
}

// RecordCycle implements Collector.
func (p *PrometheusCollector) RecordCycle(seconds float64, failures, _ int) {
	p.ensureRegistered()
	p.cycles.Inc()
	p.cycleDuration.Observe(seconds)
	p.cycleFailures.Add(float64(failures))
}

// IncrementSkippedTick implements Collector.
func (p *PrometheusCollector) IncrementSkippedTick() {
	p.ensureRegistered()
	p.skippedTicks.Inc()
}

// IncrementCyclePanic implements Collector.
func (p *PrometheusCollector) IncrementCyclePanic() {
	p.ensureRegistered()
	p.cyclePanics.Inc()
}

// SetChannelLive implements Collector.
func (p *PrometheusCollector) SetChannelLive(channelID string, live bool) {
	p.ensureRegistered()
	v := 0.0
	if live {
		v = 1
	}
	p.channelLive.WithLabelValues(channelID).Set(v)
}

// IncrementAnnouncement implements Collector.
func (p *PrometheusCollector) IncrementAnnouncement(channelID string) {
	p.ensureRegistered()
	p.announcements.WithLabelValues(channelID).Inc()
}

// IncrementNotifyError implements Collector.
func (p *PrometheusCollector) IncrementNotifyError(stage string) {
	p.ensureRegistered()
	p.notifyErrors.WithLabelValues(stage).Inc()
}
