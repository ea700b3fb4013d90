package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_Overlaps(t *testing.T) {
	base := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		a      Event
		b      Event
		expect bool
	}{
		{
			name:   "disjoint windows do not overlap",
			a:      Event{ScheduledStart: base, ScheduledEnd: base.Add(2 * time.Hour)},
			b:      Event{ScheduledStart: base.Add(3 * time.Hour), ScheduledEnd: base.Add(4 * time.Hour)},
			expect: false,
		},
		{
			name:   "abutting windows do not overlap",
			a:      Event{ScheduledStart: base, ScheduledEnd: base.Add(2 * time.Hour)},
			b:      Event{ScheduledStart: base.Add(2 * time.Hour), ScheduledEnd: base.Add(4 * time.Hour)},
			expect: false,
		},
		{
			name:   "overlapping windows overlap",
			a:      Event{ScheduledStart: base, ScheduledEnd: base.Add(2 * time.Hour)},
			b:      Event{ScheduledStart: base.Add(time.Hour), ScheduledEnd: base.Add(3 * time.Hour)},
			expect: true,
		},
		{
			name:   "fully contained window overlaps",
			a:      Event{ScheduledStart: base, ScheduledEnd: base.Add(4 * time.Hour)},
			b:      Event{ScheduledStart: base.Add(time.Hour), ScheduledEnd: base.Add(2 * time.Hour)},
			expect: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.expect, tt.b.Overlaps(tt.a))
		})
	}
}

func TestEvent_Validate(t *testing.T) {
	base := time.Now()

	t.Run("valid window", func(t *testing.T) {
		e := Event{ScheduledStart: base, ScheduledEnd: base.Add(time.Hour)}
		assert.NoError(t, e.Validate())
	})

	t.Run("end equal to start is rejected", func(t *testing.T) {
		e := Event{ScheduledStart: base, ScheduledEnd: base}
		assert.Error(t, e.Validate())
	})

	t.Run("end before start is rejected", func(t *testing.T) {
		e := Event{ScheduledStart: base, ScheduledEnd: base.Add(-time.Minute)}
		assert.Error(t, e.Validate())
	})
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusDraft.IsTerminal())
	assert.False(t, StatusScheduled.IsTerminal())
	assert.False(t, StatusActive.IsTerminal())
	assert.True(t, StatusEnded.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestVotingRules_IPHourlyCap(t *testing.T) {
	r := VotingRules{VotesPerHour: 3, IPHourlyMultiplier: 2}
	assert.Equal(t, 6, r.IPHourlyCap())
}
