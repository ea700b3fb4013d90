// Package score implements C2, the pure queue-ranking function. It has no
// I/O and no dependency on any other core package.
package score

import (
	"time"

	"github.com/beatline/beatline/internal/domain/queueitem"
)

// Input bundles everything the score function needs for one row.
type Input struct {
	VoteCount   int
	LastVotedAt time.Time
	ArtistName  string
	TrackID     string
	// RecentPlays is the most-recent-first window of played tracks used
	// for both the diversity bonus (last 5 artists) and the
	// recently-played penalty (last 30 minutes), per spec.md §4.2.
	RecentPlays []queueitem.RecentPlay
	Now         time.Time
}

const (
	baseMultiplier = 10

	recencyWithin5m  = 30
	recencyWithin15m = 20
	recencyWithin30m = 10

	diversityBonus = 5

	sameTrackPenalty  = 20
	sameArtistPenalty = 10

	diversityWindow = 5
	penaltyWindow   = 30 * time.Minute
)

// Compute returns the deterministic score for one queue row. Pure,
// side-effect free: same Input always yields the same result.
func Compute(in Input) int {
	base := in.VoteCount * baseMultiplier
	recency := recencyBonus(in.Now.Sub(in.LastVotedAt))
	diversity := computeDiversityBonus(in.ArtistName, in.RecentPlays)
	penalty := recentlyPlayedPenalty(in.TrackID, in.ArtistName, in.RecentPlays, in.Now)

	total := base + recency + diversity - penalty
	if total < 0 {
		return 0
	}
	return total
}

func recencyBonus(delta time.Duration) int {
	switch {
	case delta <= 5*time.Minute:
		return recencyWithin5m
	case delta <= 15*time.Minute:
		return recencyWithin15m
	case delta <= 30*time.Minute:
		return recencyWithin30m
	default:
		return 0
	}
}

func computeDiversityBonus(artist string, recentPlays []queueitem.RecentPlay) int {
	n := diversityWindow
	if len(recentPlays) < n {
		n = len(recentPlays)
	}
	for i := 0; i < n; i++ {
		if recentPlays[i].ArtistName == artist {
			return 0
		}
	}
	return diversityBonus
}

func recentlyPlayedPenalty(trackID, artist string, recentPlays []queueitem.RecentPlay, now time.Time) int {
	sameArtist := false
	for _, p := range recentPlays {
		if now.Sub(p.PlayedAt) > penaltyWindow {
			continue
		}
		if p.TrackID == trackID {
			return sameTrackPenalty
		}
		if p.ArtistName == artist {
			sameArtist = true
		}
	}
	if sameArtist {
		return sameArtistPenalty
	}
	return 0
}
