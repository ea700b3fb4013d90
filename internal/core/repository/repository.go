// Package repository defines C7, the narrow storage port the core depends
// on. Concrete implementations live outside core (see
// internal/infra/sqlrepo); core packages only ever import this interface.
package repository

import (
	"context"
	"time"

	"github.com/beatline/beatline/internal/domain/event"
	"github.com/beatline/beatline/internal/domain/queueitem"
)

// Repository is the full storage surface spec.md §4.7 names.
type Repository interface {
	// Events
	FindEvent(ctx context.Context, id string) (*event.Event, error)
	FindVenueActiveEvent(ctx context.Context, venueID string) (*event.Event, error)
	ListNonTerminalEventsForVenue(ctx context.Context, venueID string) ([]event.Event, error)
	CreateEvent(ctx context.Context, e event.Event) error
	UpdateEvent(ctx context.Context, e event.Event) error
	UpdateEventStatus(ctx context.Context, id string, status event.Status, actualStart, actualEnd *time.Time) error
	UpdateEventStats(ctx context.Context, id string, totalTracks int) error
	DeleteEvent(ctx context.Context, id string) error

	// Queue items
	FindQueueItem(ctx context.Context, eventID, trackID string, unplayedOnly bool) (*queueitem.QueueItem, error)
	ListQueueItems(ctx context.Context, eventID string, unplayedOnly bool) ([]queueitem.QueueItem, error)
	UpsertQueueItem(ctx context.Context, row queueitem.QueueItem) (*queueitem.QueueItem, error)
	UpdateQueueScoreAndVote(ctx context.Context, id string, voteCount int, lastVotedAt time.Time, score int) error
	UpdatePositionsBatch(ctx context.Context, positions map[string]int) error
	MarkQueueItem(ctx context.Context, id string, isPlayed bool, playedAt *time.Time, skipped bool, reason string) error
	DeleteQueueItem(ctx context.Context, id string) error
	DeleteUnplayedForEvent(ctx context.Context, eventID string) error
	CountVotesForEvent(ctx context.Context, eventID string) (int, error)
	ListRecentlyPlayed(ctx context.Context, eventID string, limit int, since time.Duration) ([]queueitem.RecentPlay, error)
}
