package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "catalog")

	m.EntryCreated()
	m.EntryCreated()
	m.PayloadBound(ResultOK, 1024)
	m.PayloadBound(ResultError, 4096)
	m.EngagementOp("like", ResultOK)
	m.EngagementOp("like", ResultRejected)
	m.EngagementOp("like", ResultRejected)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EntriesCreated))
	assert.Equal(t, float64(1024), testutil.ToFloat64(m.PayloadBytes))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PayloadBinds.WithLabelValues(ResultError)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Engagement.WithLabelValues("like", ResultRejected)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EntryCreated()
		m.PayloadBound(ResultOK, 10)
		m.EngagementOp("unlike", ResultOK)
	})
}

func TestCaptureSystemInfo(t *testing.T) {
	info := captureSystemInfo()
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.GoVersion)
	assert.Positive(t, info.CPULogical)
}
