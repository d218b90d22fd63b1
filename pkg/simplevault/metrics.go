package simplevault

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simplevault_uploads_total",
			Help: "Upload attempts by result (ok, invalid, failed).",
		},
		[]string{"result"},
	)

	uploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simplevault_upload_bytes",
			Help:    "Plaintext size of accepted uploads.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simplevault_events_published_total",
			Help: "Event publish attempts by channel, kind and result.",
		},
		[]string{"channel", "kind", "result"},
	)

	consistencyGaps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simplevault_consistency_gaps_total",
			Help: "Orphaned metadata rows and objects left for reconciliation.",
		},
		[]string{"kind"},
	)
)

// Consistency gap kinds.
const (
	gapOrphanedMetadata = "orphaned_metadata"
	gapOrphanedObject   = "orphaned_object"
	gapUnpublishedEvent = "unpublished_event"
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
