package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordDraftSave()
	m.RecordDraftSave()
	m.RecordHistoryWrite(2)
	m.RecordExport("pdf", true)
	m.RecordStorageFailure("set")
	m.RecordUpsell("currency")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.draftSaves))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.historyWrites))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.historyEvicted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues("pdf", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storageFailures.WithLabelValues("set")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upsellPrompts.WithLabelValues("currency")))
}

func TestMetricsReuseRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New(reg)
	require.NoError(t, err)
	second, err := New(reg)
	require.NoError(t, err)

	second.RecordQuotaDenied()
	assert.Equal(t, 1.0, testutil.ToFloat64(first.quotaDenied))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDraftSave()
		m.RecordDraftConflict()
		m.RecordHistoryWrite(1)
		m.RecordExport("pdf", false)
		m.RecordStorageFailure("get")
		m.RecordQuotaDenied()
		m.RecordUpsell("logo")
	})
}
