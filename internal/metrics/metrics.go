// Package metrics exposes Prometheus counters and gauges for vote
// admission, queue size, and playback state transitions.
//
// Grounded on ManuGH-xg2g's internal/metrics/admission.go: promauto-backed
// vectors declared as package vars, Record*/Set* wrapper functions instead
// of handing callers raw prometheus.Collector references, and bounded
// labels (admission reason, playback state); session and track ids never
// appear in a label. The one exception is QueueSize, labelled by event id,
// whose series DeleteQueueSize removes once the event ends.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesAdmittedTotal counts votes that passed C1 admission.
	VotesAdmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beatline_votes_admitted_total",
		Help: "Total number of votes admitted by C1.",
	})

	// VotesDeniedTotal counts votes rejected by C1, by denial reason.
	VotesDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beatline_votes_denied_total",
		Help: "Total number of votes denied by C1, by reason.",
	}, []string{"reason"})

	// QueueSize tracks the current unplayed-item count, by event id.
	QueueSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "beatline_queue_size",
		Help: "Current number of unplayed queue items, by event.",
	}, []string{"event_id"})

	// PlaybackTransitionsTotal counts playback state transitions, by
	// resulting state.
	PlaybackTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beatline_playback_transitions_total",
		Help: "Total number of playback state transitions, by resulting state.",
	}, []string{"state"})

	// ActiveEventsGauge tracks the number of events currently holding an
	// actor (admission ledger and/or playback machine).
	ActiveEventsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beatline_active_events",
		Help: "Current number of events with a live coordinator actor.",
	})
)

// RecordVoteAdmitted increments the admitted-vote counter.
func RecordVoteAdmitted() { VotesAdmittedTotal.Inc() }

// RecordVoteDenied increments the denied-vote counter for reason.
func RecordVoteDenied(reason string) { VotesDeniedTotal.WithLabelValues(reason).Inc() }

// SetQueueSize sets the current queue size gauge for eventID.
func SetQueueSize(eventID string, size int) {
	QueueSize.WithLabelValues(eventID).Set(float64(size))
}

// DeleteQueueSize removes eventID's queue size series, e.g. once its
// event ends and the series would otherwise report a stale value forever.
func DeleteQueueSize(eventID string) {
	QueueSize.DeleteLabelValues(eventID)
}

// RecordPlaybackTransition increments the transition counter for state.
func RecordPlaybackTransition(state string) { PlaybackTransitionsTotal.WithLabelValues(state).Inc() }

// SetActiveEvents sets the active-actor gauge.
func SetActiveEvents(count int) { ActiveEventsGauge.Set(float64(count)) }
