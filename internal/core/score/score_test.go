package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/beatline/beatline/internal/domain/queueitem"
)

func TestCompute_FirstVoteEmptyHistory(t *testing.T) {
	now := time.Now()

	got := Compute(Input{
		VoteCount:   1,
		LastVotedAt: now,
		ArtistName:  "Artist A",
		TrackID:     "t1",
		RecentPlays: nil,
		Now:         now,
	})

	// base(10) + recency(30, delta=0) + diversity(5, empty history) - penalty(0) = 45
	assert.Equal(t, 45, got)
}

func TestCompute_RecencyBuckets(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		delta   time.Duration
		recency int
	}{
		{"within 5m", 4 * time.Minute, 30},
		{"within 15m", 14 * time.Minute, 20},
		{"within 30m", 29 * time.Minute, 10},
		{"beyond 30m", 31 * time.Minute, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(Input{
				VoteCount:   1,
				LastVotedAt: now.Add(-tt.delta),
				ArtistName:  "Artist A",
				TrackID:     "t1",
				Now:         now,
			})
			// base(10) + recency + diversity(5, empty history)
			assert.Equal(t, 10+tt.recency+5, got)
		})
	}
}

func TestCompute_DiversityBonusSuppressedByRecentArtist(t *testing.T) {
	now := time.Now()

	recent := []queueitem.RecentPlay{
		{ArtistName: "Artist A", TrackID: "other", PlayedAt: now.Add(-time.Hour)},
	}

	got := Compute(Input{
		VoteCount:   1,
		LastVotedAt: now,
		ArtistName:  "Artist A",
		TrackID:     "t1",
		RecentPlays: recent,
		Now:         now,
	})

	// base(10) + recency(30) + diversity(0, artist in last-5) - penalty(0, outside 30m window)
	assert.Equal(t, 40, got)
}

func TestCompute_SameTrackPenaltyOutweighsSameArtistPenalty(t *testing.T) {
	now := time.Now()

	recent := []queueitem.RecentPlay{
		{ArtistName: "Artist A", TrackID: "t1", PlayedAt: now.Add(-10 * time.Minute)},
	}

	got := Compute(Input{
		VoteCount:   1,
		LastVotedAt: now,
		ArtistName:  "Artist A",
		TrackID:     "t1",
		RecentPlays: recent,
		Now:         now,
	})

	// base(10) + recency(30) + diversity(0) - penalty(20, same track within 30m)
	assert.Equal(t, 20, got)
}

func TestCompute_SameArtistPenaltyWhenDifferentTrack(t *testing.T) {
	now := time.Now()

	recent := []queueitem.RecentPlay{
		{ArtistName: "Artist A", TrackID: "other-track", PlayedAt: now.Add(-10 * time.Minute)},
	}

	got := Compute(Input{
		VoteCount:   1,
		LastVotedAt: now,
		ArtistName:  "Artist A",
		TrackID:     "t1",
		RecentPlays: recent,
		Now:         now,
	})

	// base(10) + recency(30) + diversity(0, artist in last-5) - penalty(10, same artist within 30m)
	assert.Equal(t, 30, got)
}

func TestCompute_NeverNegative(t *testing.T) {
	now := time.Now()

	recent := []queueitem.RecentPlay{
		{ArtistName: "Artist A", TrackID: "t1", PlayedAt: now.Add(-time.Minute)},
	}

	got := Compute(Input{
		VoteCount:   0,
		LastVotedAt: now.Add(-time.Hour),
		ArtistName:  "Artist A",
		TrackID:     "t1",
		RecentPlays: recent,
		Now:         now,
	})

	assert.GreaterOrEqual(t, got, 0)
}

func TestCompute_Deterministic(t *testing.T) {
	now := time.Now()
	in := Input{
		VoteCount:   4,
		LastVotedAt: now.Add(-2 * time.Minute),
		ArtistName:  "Artist B",
		TrackID:     "t9",
		Now:         now,
	}

	first := Compute(in)
	second := Compute(in)
	assert.Equal(t, first, second)
}
