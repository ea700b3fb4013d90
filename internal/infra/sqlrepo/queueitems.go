package sqlrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/beatline/beatline/internal/domain/queueitem"
)

const queueItemColumns = `id, event_id, track_id, track_uri, track_name, artist_name, album_name, album_art,
	duration_ms, vote_count, last_voted_at, score, position, added_at, added_by,
	is_played, played_at, skipped, skipped_reason`

func scanQueueItem(row rowScanner) (*queueitem.QueueItem, error) {
	var q queueitem.QueueItem
	var durationMs int64
	if err := row.Scan(
		&q.ID, &q.EventID, &q.TrackID, &q.TrackURI, &q.TrackName, &q.ArtistName, &q.AlbumName, &q.AlbumArt,
		&durationMs, &q.VoteCount, &q.LastVotedAt, &q.Score, &q.Position, &q.AddedAt, &q.AddedBy,
		&q.IsPlayed, &q.PlayedAt, &q.Skipped, &q.SkippedReason,
	); err != nil {
		return nil, err
	}
	q.Duration = time.Duration(durationMs) * time.Millisecond
	return &q, nil
}

func (s *Store) FindQueueItem(ctx context.Context, eventID, trackID string, unplayedOnly bool) (*queueitem.QueueItem, error) {
	query := `SELECT ` + queueItemColumns + ` FROM queue_items WHERE event_id = ? AND track_id = ?`
	args := []any{eventID, trackID}
	if unplayedOnly {
		query += ` AND is_played = 0`
	}
	query += ` LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	q, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find queue item")
	}
	return q, nil
}

func (s *Store) ListQueueItems(ctx context.Context, eventID string, unplayedOnly bool) ([]queueitem.QueueItem, error) {
	query := `SELECT ` + queueItemColumns + ` FROM queue_items WHERE event_id = ?`
	args := []any{eventID}
	if unplayedOnly {
		query += ` AND is_played = 0`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list queue items")
	}
	defer rows.Close()

	var out []queueitem.QueueItem
	for rows.Next() {
		q, err := scanQueueItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan queue item")
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// UpsertQueueItem inserts a new row or, when a row with the same ID
// already exists, updates that row's vote_count, last_voted_at and score
// in place, matching queue.Manager's read-modify-write on the same ID when
// a vote lands on an already-queued track. A new ID for an (eventID,
// trackID) that is already queued unplayed fails on the unique index.
func (s *Store) UpsertQueueItem(ctx context.Context, row queueitem.QueueItem) (*queueitem.QueueItem, error) {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_items (id, event_id, track_id, track_uri, track_name, artist_name, album_name, album_art,
			duration_ms, vote_count, last_voted_at, score, position, added_at, added_by,
			is_played, played_at, skipped, skipped_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vote_count = excluded.vote_count,
			last_voted_at = excluded.last_voted_at,
			score = excluded.score`,
		row.ID, row.EventID, row.TrackID, row.TrackURI, row.TrackName, row.ArtistName, row.AlbumName, row.AlbumArt,
		row.Duration.Milliseconds(), row.VoteCount, row.LastVotedAt, row.Score, row.Position, row.AddedAt, row.AddedBy,
		row.IsPlayed, row.PlayedAt, row.Skipped, row.SkippedReason,
	)
	if err != nil {
		return nil, errors.Wrap(err, "upsert queue item")
	}
	return &row, nil
}

func (s *Store) UpdateQueueScoreAndVote(ctx context.Context, id string, voteCount int, lastVotedAt time.Time, scoreVal int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE queue_items SET vote_count = ?, last_voted_at = ?, score = ? WHERE id = ?`,
		voteCount, lastVotedAt, scoreVal, id,
	)
	if err != nil {
		return errors.Wrap(err, "update queue score and vote")
	}
	return checkRowsAffected(result, "queue item", id)
}

// UpdatePositionsBatch persists every (id -> position) pair in one
// transaction, per spec.md §4.3's "atomic UpdatePositionsBatch".
func (s *Store) UpdatePositionsBatch(ctx context.Context, positions map[string]int) error {
	if len(positions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin positions batch")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE queue_items SET position = ? WHERE id = ?`)
	if err != nil {
		return errors.Wrap(err, "prepare positions batch")
	}
	defer stmt.Close()

	for id, pos := range positions {
		if _, err := stmt.ExecContext(ctx, pos, id); err != nil {
			return errors.Wrap(err, "update position")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit positions batch")
	}
	return nil
}

func (s *Store) MarkQueueItem(ctx context.Context, id string, isPlayed bool, playedAt *time.Time, skipped bool, reason string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE queue_items SET is_played = ?, played_at = ?, skipped = ?, skipped_reason = ? WHERE id = ?`,
		isPlayed, playedAt, skipped, reason, id,
	)
	if err != nil {
		return errors.Wrap(err, "mark queue item")
	}
	return checkRowsAffected(result, "queue item", id)
}

func (s *Store) DeleteQueueItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete queue item")
	}
	return checkRowsAffected(result, "queue item", id)
}

func (s *Store) DeleteUnplayedForEvent(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE event_id = ? AND is_played = 0`, eventID)
	if err != nil {
		return errors.Wrap(err, "delete unplayed for event")
	}
	return nil
}

func (s *Store) CountVotesForEvent(ctx context.Context, eventID string) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(vote_count), 0) FROM queue_items WHERE event_id = ?`, eventID,
	).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, "count votes for event")
	}
	return int(total.Int64), nil
}

// ListRecentlyPlayed returns the most recently played rows within since,
// most-recent first, capped at limit, for C2's diversity bonus and
// recently-played penalty.
func (s *Store) ListRecentlyPlayed(ctx context.Context, eventID string, limit int, since time.Duration) ([]queueitem.RecentPlay, error) {
	cutoff := time.Now().Add(-since)
	rows, err := s.db.QueryContext(ctx, `
		SELECT artist_name, track_id, played_at FROM queue_items
		WHERE event_id = ? AND is_played = 1 AND played_at IS NOT NULL AND played_at >= ?
		ORDER BY played_at DESC LIMIT ?`,
		eventID, cutoff, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list recently played")
	}
	defer rows.Close()

	var out []queueitem.RecentPlay
	for rows.Next() {
		var rp queueitem.RecentPlay
		if err := rows.Scan(&rp.ArtistName, &rp.TrackID, &rp.PlayedAt); err != nil {
			return nil, errors.Wrap(err, "scan recent play")
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}
