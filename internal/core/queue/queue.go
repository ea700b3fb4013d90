// Package queue implements C3, the per-event queue manager: add/increment,
// remove, mark-played, reorder, and stats. It is the sole writer of queue
// rows through the repository port and the only caller of C2 (score).
//
// Grounded on internal/app/playback/controller.go's in-memory queue slice
// management (Enqueue/GetQueuedTracks/GetAllTracks) for the shape of the
// read operations, generalized to a persisted, multi-event store.
package queue

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/beatline/beatline/internal/coreerr"
	"github.com/beatline/beatline/internal/core/repository"
	"github.com/beatline/beatline/internal/core/score"
	"github.com/beatline/beatline/internal/domain/queueitem"
)

// Manager owns queue mutations for every event through the repository
// port. A single Manager instance is shared process-wide; per-event
// serialization is the caller's (coordinator's) responsibility, per
// spec.md §5.
type Manager struct {
	repo repository.Repository
}

// NewManager creates a queue manager backed by repo.
func NewManager(repo repository.Repository) *Manager {
	return &Manager{repo: repo}
}

// AddVote upserts a vote for a track, recomputes its score, reorders the
// queue, and returns the affected row. The caller must have already
// confirmed the event is ACTIVE and that C1 admitted the vote; AddVote
// itself performs no admission checks.
func (m *Manager) AddVote(ctx context.Context, eventID string, dto queueitem.AddVote, now time.Time) (*queueitem.QueueItem, error) {
	existing, err := m.repo.FindQueueItem(ctx, eventID, dto.TrackID, true)
	if err != nil {
		return nil, coreerr.Internal(err, "find queue item")
	}

	var row queueitem.QueueItem
	if existing != nil {
		row = *existing
		row.VoteCount++
		row.LastVotedAt = now
	} else {
		row = queueitem.QueueItem{
			ID:          uuid.New().String(),
			EventID:     eventID,
			TrackID:     dto.TrackID,
			TrackURI:    dto.TrackURI,
			TrackName:   dto.TrackName,
			ArtistName:  dto.ArtistName,
			AlbumName:   dto.AlbumName,
			AlbumArt:    dto.AlbumArt,
			Duration:    dto.Duration,
			VoteCount:   1,
			LastVotedAt: now,
			AddedAt:     now,
			AddedBy:     dto.SessionID,
		}
	}

	recentPlays, err := m.repo.ListRecentlyPlayed(ctx, eventID, 5, 30*time.Minute)
	if err != nil {
		return nil, coreerr.Internal(err, "list recently played")
	}

	row.Score = score.Compute(score.Input{
		VoteCount:   row.VoteCount,
		LastVotedAt: row.LastVotedAt,
		ArtistName:  row.ArtistName,
		TrackID:     row.TrackID,
		RecentPlays: recentPlays,
		Now:         now,
	})

	saved, err := m.repo.UpsertQueueItem(ctx, row)
	if err != nil {
		return nil, coreerr.Internal(err, "upsert queue item")
	}

	if err := m.reorder(ctx, eventID); err != nil {
		return nil, err
	}

	refreshed, err := m.repo.FindQueueItem(ctx, eventID, dto.TrackID, true)
	if err != nil {
		return nil, coreerr.Internal(err, "reload queue item after reorder")
	}
	if refreshed != nil {
		return refreshed, nil
	}
	return saved, nil
}

// GetQueue returns the unplayed rows of eventID, ordered by
// (score desc, addedAt asc).
func (m *Manager) GetQueue(ctx context.Context, eventID string) ([]queueitem.QueueItem, error) {
	rows, err := m.repo.ListQueueItems(ctx, eventID, true)
	if err != nil {
		return nil, coreerr.Internal(err, "list queue items")
	}
	sort.Stable(queueitem.ByQueueOrder(rows))
	return rows, nil
}

// Remove hard-deletes an unplayed row and reorders the remainder.
func (m *Manager) Remove(ctx context.Context, eventID, trackID string) error {
	row, err := m.repo.FindQueueItem(ctx, eventID, trackID, true)
	if err != nil {
		return coreerr.Internal(err, "find queue item")
	}
	if row == nil {
		return coreerr.NotFound("queue item %s not found in event %s", trackID, eventID)
	}
	if err := m.repo.DeleteQueueItem(ctx, row.ID); err != nil {
		return coreerr.Internal(err, "delete queue item")
	}
	return m.reorder(ctx, eventID)
}

// MarkPlayed marks a row played and reorders the remaining unplayed rows.
func (m *Manager) MarkPlayed(ctx context.Context, eventID, trackID string, now time.Time) error {
	return m.markPlayed(ctx, eventID, trackID, now, false, "")
}

// Skip marks a row played with the skipped flag set and an optional
// reason, per spec.md's "as markPlayed, plus skipped".
func (m *Manager) Skip(ctx context.Context, eventID, trackID, reason string, now time.Time) error {
	return m.markPlayed(ctx, eventID, trackID, now, true, reason)
}

func (m *Manager) markPlayed(ctx context.Context, eventID, trackID string, now time.Time, skipped bool, reason string) error {
	row, err := m.repo.FindQueueItem(ctx, eventID, trackID, true)
	if err != nil {
		return coreerr.Internal(err, "find queue item")
	}
	if row == nil {
		return coreerr.NotFound("queue item %s not found in event %s", trackID, eventID)
	}
	if err := m.repo.MarkQueueItem(ctx, row.ID, true, &now, skipped, reason); err != nil {
		return coreerr.Internal(err, "mark queue item played")
	}
	return m.reorder(ctx, eventID)
}

// NextTrack returns the head of the unplayed ordering, or nil if the
// queue is empty.
func (m *Manager) NextTrack(ctx context.Context, eventID string) (*queueitem.QueueItem, error) {
	rows, err := m.GetQueue(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Clear deletes every unplayed row for an event.
func (m *Manager) Clear(ctx context.Context, eventID string) error {
	if err := m.repo.DeleteUnplayedForEvent(ctx, eventID); err != nil {
		return coreerr.Internal(err, "clear queue")
	}
	return nil
}

// RecomputeAllScores recomputes every unplayed row's score against a
// single captured now, then reorders. A single now is used for the whole
// pass so late rows don't get an unfair recency bonus purely from sort
// order (spec.md §9).
func (m *Manager) RecomputeAllScores(ctx context.Context, eventID string, now time.Time) error {
	rows, err := m.repo.ListQueueItems(ctx, eventID, true)
	if err != nil {
		return coreerr.Internal(err, "list queue items")
	}

	recentPlays, err := m.repo.ListRecentlyPlayed(ctx, eventID, 5, 30*time.Minute)
	if err != nil {
		return coreerr.Internal(err, "list recently played")
	}

	for _, row := range rows {
		newScore := score.Compute(score.Input{
			VoteCount:   row.VoteCount,
			LastVotedAt: row.LastVotedAt,
			ArtistName:  row.ArtistName,
			TrackID:     row.TrackID,
			RecentPlays: recentPlays,
			Now:         now,
		})
		if err := m.repo.UpdateQueueScoreAndVote(ctx, row.ID, row.VoteCount, row.LastVotedAt, newScore); err != nil {
			return coreerr.Internal(err, "update queue score")
		}
	}

	return m.reorder(ctx, eventID)
}

// Stats returns the number of unplayed rows and the aggregate vote count
// for an event, per spec.md's queue.stats command.
func (m *Manager) Stats(ctx context.Context, eventID string) (size int, totalVotes int, err error) {
	rows, err := m.repo.ListQueueItems(ctx, eventID, true)
	if err != nil {
		return 0, 0, coreerr.Internal(err, "list queue items")
	}
	for _, r := range rows {
		totalVotes += r.VoteCount
	}
	return len(rows), totalVotes, nil
}

// reorder re-reads every unplayed row for eventID, sorts by
// (score desc, addedAt asc), and persists contiguous 1..N positions in a
// single atomic batch, per spec.md §4.3's reorder algorithm.
func (m *Manager) reorder(ctx context.Context, eventID string) error {
	rows, err := m.repo.ListQueueItems(ctx, eventID, true)
	if err != nil {
		return coreerr.Internal(err, "list queue items for reorder")
	}

	sort.Stable(queueitem.ByQueueOrder(rows))

	positions := make(map[string]int, len(rows))
	for i, row := range rows {
		positions[row.ID] = i + 1
	}

	if len(positions) == 0 {
		return nil
	}

	if err := m.repo.UpdatePositionsBatch(ctx, positions); err != nil {
		if errors.Is(err, context.Canceled) {
			zlog.Debug().Str("event_id", eventID).Msg("queue: reorder cancelled")
			return err
		}
		return coreerr.Internal(err, "update positions batch")
	}

	return nil
}
