package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func TestRecordVoteAdmitted_IncrementsCounter(t *testing.T) {
	before := counterValue(t, VotesAdmittedTotal)
	RecordVoteAdmitted()
	require.Equal(t, before+1, counterValue(t, VotesAdmittedTotal))
}

func TestRecordVoteDenied_IncrementsByReason(t *testing.T) {
	before := counterValue(t, VotesDeniedTotal.WithLabelValues("cooldown"))
	RecordVoteDenied("cooldown")
	require.Equal(t, before+1, counterValue(t, VotesDeniedTotal.WithLabelValues("cooldown")))
}

func TestSetQueueSize_ThenDelete(t *testing.T) {
	SetQueueSize("event-1", 5)
	require.Equal(t, float64(5), gaugeValue(t, QueueSize.WithLabelValues("event-1")))

	DeleteQueueSize("event-1")
	require.Equal(t, float64(0), gaugeValue(t, QueueSize.WithLabelValues("event-1")))
}

func TestRecordPlaybackTransition_IncrementsByState(t *testing.T) {
	before := counterValue(t, PlaybackTransitionsTotal.WithLabelValues("playing"))
	RecordPlaybackTransition("playing")
	require.Equal(t, before+1, counterValue(t, PlaybackTransitionsTotal.WithLabelValues("playing")))
}

func TestSetActiveEvents_SetsGauge(t *testing.T) {
	SetActiveEvents(3)
	require.Equal(t, float64(3), gaugeValue(t, ActiveEventsGauge))
	SetActiveEvents(0)
	require.Equal(t, float64(0), gaugeValue(t, ActiveEventsGauge))
}
