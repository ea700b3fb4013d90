// Package sqlrepo is the concrete C7 repository.Repository backed by
// SQLite (modernc.org/sqlite, pure Go, no cgo). spec.md §6 names two
// persisted tables, events and queue_items; this package owns both.
//
// Grounded on darthnorse-streammon's internal/store package: a single
// *sql.DB wrapped in a Store, column-list constants + a scan helper per
// table, CREATE TABLE IF NOT EXISTS in place of darthnorse's separate
// migrations directory (two tables don't warrant a migration runner),
// and cockroachdb/errors wrapping in place of darthnorse's fmt.Errorf,
// matching the rest of this module's error handling.
package sqlrepo

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id                        TEXT PRIMARY KEY,
	venue_id                  TEXT NOT NULL,
	name                      TEXT NOT NULL,
	description               TEXT NOT NULL DEFAULT '',
	status                    TEXT NOT NULL,
	scheduled_start           DATETIME NOT NULL,
	scheduled_end             DATETIME NOT NULL,
	actual_start              DATETIME,
	actual_end                DATETIME,
	playlist_source           TEXT NOT NULL DEFAULT '',
	playlist_config           TEXT NOT NULL DEFAULT '{}',
	votes_per_hour            INTEGER NOT NULL,
	cooldown_seconds          INTEGER NOT NULL,
	same_track_cooldown_secs  INTEGER NOT NULL,
	ip_hourly_multiplier      INTEGER NOT NULL,
	max_queue_size            INTEGER NOT NULL,
	current_track_id          TEXT,
	current_track_started_at DATETIME,
	total_tracks_played       INTEGER NOT NULL DEFAULT 0,
	created_at                DATETIME NOT NULL,
	updated_at                DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_venue ON events(venue_id);
CREATE INDEX IF NOT EXISTS idx_events_venue_status ON events(venue_id, status);

CREATE TABLE IF NOT EXISTS queue_items (
	id              TEXT PRIMARY KEY,
	event_id        TEXT NOT NULL,
	track_id        TEXT NOT NULL,
	track_uri       TEXT NOT NULL,
	track_name      TEXT NOT NULL,
	artist_name     TEXT NOT NULL,
	album_name      TEXT NOT NULL DEFAULT '',
	album_art       TEXT NOT NULL DEFAULT '',
	duration_ms     INTEGER NOT NULL,
	vote_count      INTEGER NOT NULL DEFAULT 0,
	last_voted_at   DATETIME NOT NULL,
	score           INTEGER NOT NULL DEFAULT 0,
	position        INTEGER NOT NULL DEFAULT 0,
	added_at        DATETIME NOT NULL,
	added_by        TEXT NOT NULL DEFAULT '',
	is_played       INTEGER NOT NULL DEFAULT 0,
	played_at       DATETIME,
	skipped         INTEGER NOT NULL DEFAULT 0,
	skipped_reason  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_queue_event_unplayed ON queue_items(event_id, is_played);
CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_event_track_unplayed
	ON queue_items(event_id, track_id) WHERE is_played = 0;
`

// Store is a *sql.DB handle implementing repository.Repository.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at dsn and applies
// the schema. dsn is a plain file path or ":memory:"; busy_timeout and
// WAL are set so concurrent reads don't block the coordinator's writers.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping sqlite database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
