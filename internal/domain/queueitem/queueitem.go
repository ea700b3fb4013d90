// Package queueitem defines the QueueItem aggregate owned by the queue
// manager (C3).
package queueitem

import "time"

// QueueItem is one track's position in an event's queue. Identified within
// an event by TrackID; (EventID, TrackID) is unique among unplayed rows.
type QueueItem struct {
	ID             string
	EventID        string
	TrackID        string
	TrackURI       string
	TrackName      string
	ArtistName     string
	AlbumName      string
	AlbumArt       string
	Duration       time.Duration
	VoteCount      int
	LastVotedAt    time.Time
	Score          int
	Position       int
	AddedAt        time.Time
	AddedBy        string
	IsPlayed       bool
	PlayedAt       *time.Time
	Skipped        bool
	SkippedReason  string
}

// RecentPlay is one entry of the recently-played window the score engine
// consults for the diversity bonus and recently-played penalty.
type RecentPlay struct {
	ArtistName string
	TrackID    string
	PlayedAt   time.Time
}

// AddVote is the input DTO for C3.addVote / C1.admit.
type AddVote struct {
	SessionID  string
	IPAddress  string
	TrackID    string
	TrackURI   string
	TrackName  string
	ArtistName string
	AlbumName  string
	AlbumArt   string
	Duration   time.Duration
}

// ByQueueOrder sorts unplayed rows by (score desc, addedAt asc), the tie
// break spec.md requires for deterministic, contiguous positions.
type ByQueueOrder []QueueItem

func (s ByQueueOrder) Len() int      { return len(s) }
func (s ByQueueOrder) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s ByQueueOrder) Less(i, j int) bool {
	if s[i].Score != s[j].Score {
		return s[i].Score > s[j].Score
	}
	return s[i].AddedAt.Before(s[j].AddedAt)
}
