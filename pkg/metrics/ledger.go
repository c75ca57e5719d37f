package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics counts money movements, gateway events and FX lookups.
// A nil *LedgerMetrics is a valid no-op recorder.
type LedgerMetrics struct {
	settlements   *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	fxLookups     *prometheus.CounterVec
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_total",
		Help:      "Wallet money movements by operation and outcome.",
	}, []string{"operation", "outcome"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Verified gateway events by type and processing status.",
	}, []string{"type", "status"})
	fxLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fx_rate_lookups_total",
		Help:      "Exchange rate resolutions by source (live, cache, stale_cache, fallback).",
	}, []string{"source"})
	reg.MustRegister(settlements, webhookEvents, fxLookups)
	return &LedgerMetrics{
		settlements:   settlements,
		webhookEvents: webhookEvents,
		fxLookups:     fxLookups,
	}
}

// ObserveSettlement records one operation outcome ("ok", "insufficient_funds", "error" ...).
func (m *LedgerMetrics) ObserveSettlement(operation, outcome string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (m *LedgerMetrics) ObserveWebhookEvent(eventType, status string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(status)).Inc()
}

func (m *LedgerMetrics) ObserveFXLookup(source string) {
	if m == nil || m.fxLookups == nil {
		return
	}
	m.fxLookups.WithLabelValues(normalizeLabel(source)).Inc()
}
