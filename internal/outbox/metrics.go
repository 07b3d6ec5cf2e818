package outbox

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// DLQ actions recorded on dlqEntriesCounter.
const (
	dlqActionProcessed   = "processed"
	dlqActionRequeued    = "requeued"
	dlqActionQuarantined = "quarantined"
	dlqActionRetry       = "retry_scheduled"
)

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activities",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Outbox events published to Kafka.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activities",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Outbox events that failed to publish and were routed to the DLQ.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "activities",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent fetching, delivering and marking one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activities",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Outbox events routed to the dead-letter queue, by topic.",
	}, []string{"topic"})

	dlqEntriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activities",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "DLQ entries handled by the DLQ manager, by topic, event type and action.",
	}, []string{"topic", "event_type", "action"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activities",
		Subsystem: "dlq",
		Name:      "backlog",
		Help:      "DLQ entries awaiting retry, excluding quarantined ones.",
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, batchDuration, dlqCounter, dlqEntriesCounter, dlqBacklogGauge)
}

func recordDLQ(entry dlqEntry, action string) {
	dlqEntriesCounter.WithLabelValues(entry.Topic, entry.EventType, action).Inc()
}

func refreshDLQBacklog(ctx context.Context, db DB) error {
	var count int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return err
	}
	dlqBacklogGauge.Set(float64(count))
	return nil
}
