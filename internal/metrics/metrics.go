package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "royalty"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	eventsPosted         *prometheus.CounterVec
	recoupedCents        prometheus.Counter
	creditedCents        prometheus.Counter
	payoutTransitions    *prometheus.CounterVec
	payoutRejections     *prometheus.CounterVec
	disbursementDuration prometheus.Histogram
	ingestDuration       prometheus.Histogram
	stuckPayouts         prometheus.Gauge
	webhookEvents        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Stream events handled by the posting service, by result.",
		}, []string{"result"}),
		recoupedCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recouped_cents_total",
			Help:      "Minor units applied against advances and costs.",
		}),
		creditedCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credited_cents_total",
			Help:      "Minor units credited to available balances.",
		}),
		payoutTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_transitions_total",
			Help:      "Payout status transitions, by target status.",
		}, []string{"status"}),
		payoutRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_rejections_total",
			Help:      "Payout requests rejected before creation, by reason.",
		}, []string{"reason"}),
		disbursementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "disbursement_request_seconds",
			Help:      "Latency of disbursement provider submissions.",
			Buckets:   prometheus.DefBuckets,
		}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_ingest_seconds",
			Help:      "Wall time to ingest one batch.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		stuckPayouts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "payouts_stuck_processing",
			Help:      "Payouts in processing longer than the configured threshold.",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Disbursement callbacks processed, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.eventsPosted, m.recoupedCents, m.creditedCents, m.payoutTransitions, m.payoutRejections,
		m.disbursementDuration, m.ingestDuration, m.stuckPayouts, m.webhookEvents,
	)
	return m
}

func (m *Metrics) EventPosted(result string) {
	if m == nil {
		return
	}
	m.eventsPosted.WithLabelValues(result).Inc()
}

func (m *Metrics) Recoupment(recouped, credited int64) {
	if m == nil {
		return
	}
	m.recoupedCents.Add(float64(recouped))
	m.creditedCents.Add(float64(credited))
}

func (m *Metrics) PayoutTransition(status string) {
	if m == nil {
		return
	}
	m.payoutTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) PayoutRejected(reason string) {
	if m == nil {
		return
	}
	m.payoutRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveDisbursement(d time.Duration) {
	if m == nil {
		return
	}
	m.disbursementDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveIngest(d time.Duration) {
	if m == nil {
		return
	}
	m.ingestDuration.Observe(d.Seconds())
}

func (m *Metrics) SetStuckPayouts(n int) {
	if m == nil {
		return
	}
	m.stuckPayouts.Set(float64(n))
}

func (m *Metrics) WebhookProcessed(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}
