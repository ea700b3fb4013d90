package sqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/beatline/beatline/internal/domain/event"
)

const eventColumns = `id, venue_id, name, description, status, scheduled_start, scheduled_end,
	actual_start, actual_end, playlist_source, playlist_config,
	votes_per_hour, cooldown_seconds, same_track_cooldown_secs, ip_hourly_multiplier, max_queue_size,
	current_track_id, current_track_started_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*event.Event, error) {
	var e event.Event
	var playlistConfigJSON string
	if err := row.Scan(
		&e.ID, &e.VenueID, &e.Name, &e.Description, &e.Status, &e.ScheduledStart, &e.ScheduledEnd,
		&e.ActualStart, &e.ActualEnd, &e.PlaylistSource, &playlistConfigJSON,
		&e.VotingRules.VotesPerHour, &e.VotingRules.CooldownSeconds, &e.VotingRules.SameTrackCooldownSeconds,
		&e.VotingRules.IPHourlyMultiplier, &e.VotingRules.MaxQueueSize,
		&e.CurrentTrackID, &e.CurrentTrackStartedAt, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if playlistConfigJSON != "" {
		if err := json.Unmarshal([]byte(playlistConfigJSON), &e.PlaylistConfig); err != nil {
			return nil, errors.Wrap(err, "unmarshal playlist_config")
		}
	}
	return &e, nil
}

func (s *Store) FindEvent(ctx context.Context, id string) (*event.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find event")
	}
	return e, nil
}

func (s *Store) FindVenueActiveEvent(ctx context.Context, venueID string) (*event.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE venue_id = ? AND status = ? LIMIT 1`,
		venueID, event.StatusActive)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find venue active event")
	}
	return e, nil
}

func (s *Store) ListNonTerminalEventsForVenue(ctx context.Context, venueID string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE venue_id = ? AND status NOT IN (?, ?)`,
		venueID, event.StatusEnded, event.StatusCancelled)
	if err != nil {
		return nil, errors.Wrap(err, "list non-terminal events for venue")
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) CreateEvent(ctx context.Context, e event.Event) error {
	playlistConfigJSON, err := json.Marshal(e.PlaylistConfig)
	if err != nil {
		return errors.Wrap(err, "marshal playlist_config")
	}
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, venue_id, name, description, status, scheduled_start, scheduled_end,
			actual_start, actual_end, playlist_source, playlist_config,
			votes_per_hour, cooldown_seconds, same_track_cooldown_secs, ip_hourly_multiplier, max_queue_size,
			current_track_id, current_track_started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.VenueID, e.Name, e.Description, e.Status, e.ScheduledStart, e.ScheduledEnd,
		e.ActualStart, e.ActualEnd, e.PlaylistSource, string(playlistConfigJSON),
		e.VotingRules.VotesPerHour, e.VotingRules.CooldownSeconds, e.VotingRules.SameTrackCooldownSeconds,
		e.VotingRules.IPHourlyMultiplier, e.VotingRules.MaxQueueSize,
		e.CurrentTrackID, e.CurrentTrackStartedAt, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert event")
	}
	return nil
}

func (s *Store) UpdateEvent(ctx context.Context, e event.Event) error {
	playlistConfigJSON, err := json.Marshal(e.PlaylistConfig)
	if err != nil {
		return errors.Wrap(err, "marshal playlist_config")
	}
	e.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE events SET venue_id = ?, name = ?, description = ?, status = ?,
			scheduled_start = ?, scheduled_end = ?, actual_start = ?, actual_end = ?,
			playlist_source = ?, playlist_config = ?,
			votes_per_hour = ?, cooldown_seconds = ?, same_track_cooldown_secs = ?,
			ip_hourly_multiplier = ?, max_queue_size = ?,
			current_track_id = ?, current_track_started_at = ?, updated_at = ?
		WHERE id = ?`,
		e.VenueID, e.Name, e.Description, e.Status,
		e.ScheduledStart, e.ScheduledEnd, e.ActualStart, e.ActualEnd,
		e.PlaylistSource, string(playlistConfigJSON),
		e.VotingRules.VotesPerHour, e.VotingRules.CooldownSeconds, e.VotingRules.SameTrackCooldownSeconds,
		e.VotingRules.IPHourlyMultiplier, e.VotingRules.MaxQueueSize,
		e.CurrentTrackID, e.CurrentTrackStartedAt, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update event")
	}
	return checkRowsAffected(result, "event", e.ID)
}

func (s *Store) UpdateEventStatus(ctx context.Context, id string, status event.Status, actualStart, actualEnd *time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE events SET status = ?, actual_start = ?, actual_end = ?, updated_at = ? WHERE id = ?`,
		status, actualStart, actualEnd, time.Now(), id,
	)
	if err != nil {
		return errors.Wrap(err, "update event status")
	}
	return checkRowsAffected(result, "event", id)
}

func (s *Store) UpdateEventStats(ctx context.Context, id string, totalTracks int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE events SET total_tracks_played = ?, updated_at = ? WHERE id = ?`,
		totalTracks, time.Now(), id,
	)
	if err != nil {
		return errors.Wrap(err, "update event stats")
	}
	return checkRowsAffected(result, "event", id)
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete event")
	}
	return checkRowsAffected(result, "event", id)
}

func checkRowsAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Newf("%s %s not found", kind, id)
	}
	return nil
}
