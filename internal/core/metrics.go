// AngelaMos | 2026
// metrics.go

package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	SkipReasonNoEmail   = "no_email"
	SkipReasonQuota     = "quota"
	SkipReasonDuplicate = "duplicate"
	SkipReasonMailbox   = "mailbox_cap"
	SkipReasonPacing    = "pacing"
	SkipReasonReconnect = "reconnect_required"
	SkipReasonNoMailbox = "no_mailbox"
	SkipReasonLookup    = "lookup_error"
)

var (
	queueEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_queue_enqueued_total",
			Help: "Queue items created by enqueue and recovery",
		},
	)

	queueSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_queue_skipped_total",
			Help: "Creators or items skipped, by reason",
		},
		[]string{"reason"},
	)

	sendResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_send_total",
			Help: "Send attempts by result",
		},
		[]string{"result"},
	)

	discoveredCreators = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_discovery_creators_total",
			Help: "Creators returned by discovery, split into new and existing",
		},
		[]string{"kind"},
	)

	recoveryRequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_recovery_requeued_total",
			Help: "Queue items created by reconciliation",
		},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outreach_job_duration_seconds",
			Help:    "Duration of batch jobs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

func RecordEnqueued(n int) {
	queueEnqueued.Add(float64(n))
}

func RecordSkipped(reason string, n int) {
	if n > 0 {
		queueSkipped.WithLabelValues(reason).Add(float64(n))
	}
}

func RecordSend(result string) {
	sendResults.WithLabelValues(result).Inc()
}

func RecordDiscovered(netNew, existing int) {
	discoveredCreators.WithLabelValues("new").Add(float64(netNew))
	discoveredCreators.WithLabelValues("existing").Add(float64(existing))
}

func RecordRequeued(n int) {
	recoveryRequeued.Add(float64(n))
}

func ObserveJob(job string, seconds float64) {
	jobDuration.WithLabelValues(job).Observe(seconds)
}
