package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Engagement operation results
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics holds the Prometheus collectors for the catalog.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	EntriesCreated prometheus.Counter
	PayloadBytes   prometheus.Counter
	PayloadBinds   *prometheus.CounterVec
	Engagement     *prometheus.CounterVec
	info           *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer, service string) *Metrics {
	m := &Metrics{
		EntriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "entries_created_total",
			Help:      "Catalog entries created.",
		}),
		PayloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "payload_bytes_written_total",
			Help:      "Payload bytes persisted by successful binds.",
		}),
		PayloadBinds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "payload_binds_total",
			Help:      "Payload bind attempts by result.",
		}, []string{"result"}),
		Engagement: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "engagement_operations_total",
			Help:      "Like and unlike operations by result.",
		}, []string{"operation", "result"}),
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "catalog",
			Name:      "service_info",
			Help:      "Static service and host labels.",
		}, []string{"service", "hostname", "go_version", "container"}),
	}

	reg.MustRegister(m.EntriesCreated, m.PayloadBytes, m.PayloadBinds, m.Engagement, m.info)

	sys := captureSystemInfo()
	m.info.WithLabelValues(service, sys.Hostname, sys.GoVersion, strconv.FormatBool(sys.InContainer)).Set(1)

	return m
}

// EntryCreated counts a created entry
func (m *Metrics) EntryCreated() {
	if m == nil {
		return
	}
	m.EntriesCreated.Inc()
}

// PayloadBound records a bind attempt; size is only counted on success
func (m *Metrics) PayloadBound(result string, size int64) {
	if m == nil {
		return
	}
	m.PayloadBinds.WithLabelValues(result).Inc()
	if result == ResultOK {
		m.PayloadBytes.Add(float64(size))
	}
}

// EngagementOp records a like/unlike outcome
func (m *Metrics) EngagementOp(operation, result string) {
	if m == nil {
		return
	}
	m.Engagement.WithLabelValues(operation, result).Inc()
}
