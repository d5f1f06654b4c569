package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes application-level instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	draftSaves      prometheus.Counter
	draftConflicts  prometheus.Counter
	historyWrites   prometheus.Counter
	historyEvicted  prometheus.Counter
	exports         *prometheus.CounterVec
	storageFailures *prometheus.CounterVec
	quotaDenied     prometheus.Counter
	upsellPrompts   *prometheus.CounterVec
}

// New registers the instruments on reg. Re-registration of an identical
// collector reuses the existing one.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		draftSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickinvoice_draft_saves_total",
			Help: "Draft autosaves written to the store.",
		}),
		draftConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickinvoice_draft_conflicts_total",
			Help: "Draft saves that overwrote a newer draft from another writer.",
		}),
		historyWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickinvoice_history_writes_total",
			Help: "Snapshots appended to history.",
		}),
		historyEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickinvoice_history_evicted_total",
			Help: "History entries evicted by the capacity bound.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickinvoice_exports_total",
			Help: "Documents exported, by format and watermark.",
		}, []string{"format", "watermark"}),
		storageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickinvoice_storage_failures_total",
			Help: "Persistence failures converted to soft errors.",
		}, []string{"op"}),
		quotaDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickinvoice_quota_denied_total",
			Help: "Rate-limited feature invocations refused by the daily quota.",
		}),
		upsellPrompts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickinvoice_upsell_prompts_total",
			Help: "Gated actions routed to an upsell prompt.",
		}, []string{"feature"}),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	m.draftSaves, err = register(reg, m.draftSaves)
	if err != nil {
		return nil, err
	}
	if m.draftConflicts, err = register(reg, m.draftConflicts); err != nil {
		return nil, err
	}
	if m.historyWrites, err = register(reg, m.historyWrites); err != nil {
		return nil, err
	}
	if m.historyEvicted, err = register(reg, m.historyEvicted); err != nil {
		return nil, err
	}
	if m.exports, err = register(reg, m.exports); err != nil {
		return nil, err
	}
	if m.storageFailures, err = register(reg, m.storageFailures); err != nil {
		return nil, err
	}
	if m.quotaDenied, err = register(reg, m.quotaDenied); err != nil {
		return nil, err
	}
	if m.upsellPrompts, err = register(reg, m.upsellPrompts); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) RecordDraftSave() {
	if m == nil {
		return
	}
	m.draftSaves.Inc()
}

func (m *Metrics) RecordDraftConflict() {
	if m == nil {
		return
	}
	m.draftConflicts.Inc()
}

func (m *Metrics) RecordHistoryWrite(evicted int) {
	if m == nil {
		return
	}
	m.historyWrites.Inc()
	if evicted > 0 {
		m.historyEvicted.Add(float64(evicted))
	}
}

func (m *Metrics) RecordExport(format string, watermark bool) {
	if m == nil {
		return
	}
	label := "false"
	if watermark {
		label = "true"
	}
	m.exports.WithLabelValues(format, label).Inc()
}

func (m *Metrics) RecordStorageFailure(op string) {
	if m == nil {
		return
	}
	m.storageFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordQuotaDenied() {
	if m == nil {
		return
	}
	m.quotaDenied.Inc()
}

func (m *Metrics) RecordUpsell(feature string) {
	if m == nil {
		return
	}
	m.upsellPrompts.WithLabelValues(feature).Inc()
}
