package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activities",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity written to the store.",
	})

	mutationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activities",
		Subsystem: "persistence",
		Name:      "mutations_total",
		Help:      "Activity and favourite writes, labeled by operation and outcome.",
	}, []string{"op", "outcome"})

	rankingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "activities",
		Subsystem: "ranking",
		Name:      "duration_seconds",
		Help:      "Time spent ranking a listing, including geocoding lookups.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"outcome"})

	rankingLookups = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "activities",
		Subsystem: "ranking",
		Name:      "cities_resolved",
		Help:      "Distinct cities resolved per ranking call.",
		Buckets:   prometheus.LinearBuckets(1, 2, 10),
	})

	geocodeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activities",
		Subsystem: "geocoding",
		Name:      "lookups_total",
		Help:      "Geocoding lookups labeled by source (upstream, cache) and outcome.",
	}, []string{"source", "outcome"})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, mutationCounter, rankingDuration, rankingLookups, geocodeCounter)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordMutation counts a store write.
func RecordMutation(op string, err error) {
	mutationCounter.WithLabelValues(op, outcome(err)).Inc()
}

// RecordRanking observes a ranking call.
func RecordRanking(elapsed time.Duration, resolved int, err error) {
	rankingDuration.WithLabelValues(outcome(err)).Observe(elapsed.Seconds())
	if err == nil {
		rankingLookups.Observe(float64(resolved))
	}
}

// RecordGeocode counts a geocoding lookup. Outcome is "ok", "not_found" or "error".
func RecordGeocode(source, result string) {
	geocodeCounter.WithLabelValues(source, result).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
