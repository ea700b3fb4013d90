package sqlrepo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatline/beatline/internal/domain/event"
	"github.com/beatline/beatline/internal/domain/queueitem"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mkEvent(id, venueID string, start time.Time) event.Event {
	return event.Event{
		ID:             id,
		VenueID:        venueID,
		Name:           "show",
		Status:         event.StatusDraft,
		ScheduledStart: start,
		ScheduledEnd:   start.Add(time.Hour),
		PlaylistConfig: map[string]string{"uri": "spotify:playlist:abc"},
		VotingRules: event.VotingRules{
			VotesPerHour:             3,
			CooldownSeconds:          30,
			SameTrackCooldownSeconds: 7200,
			IPHourlyMultiplier:       2,
			MaxQueueSize:             200,
		},
	}
}

func TestStore_PingAfterClose(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}

func TestStore_CreateAndFindEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	e := mkEvent("e1", "v1", now)

	require.NoError(t, s.CreateEvent(ctx, e))

	found, err := s.FindEvent(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "v1", found.VenueID)
	assert.Equal(t, event.StatusDraft, found.Status)
	assert.Equal(t, "spotify:playlist:abc", found.PlaylistConfig["uri"])
	assert.Equal(t, 3, found.VotingRules.VotesPerHour)
}

func TestStore_FindEvent_MissingReturnsNilNil(t *testing.T) {
	s := newTestStore(t)
	found, err := s.FindEvent(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestStore_FindVenueActiveEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	draft := mkEvent("e1", "v1", now)
	require.NoError(t, s.CreateEvent(ctx, draft))

	active := mkEvent("e2", "v1", now.Add(2*time.Hour))
	active.Status = event.StatusActive
	require.NoError(t, s.CreateEvent(ctx, active))

	found, err := s.FindVenueActiveEvent(ctx, "v1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "e2", found.ID)
}

func TestStore_ListNonTerminalEventsForVenue_ExcludesEndedAndCancelled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	draft := mkEvent("e1", "v1", now)
	require.NoError(t, s.CreateEvent(ctx, draft))

	ended := mkEvent("e2", "v1", now.Add(2*time.Hour))
	ended.Status = event.StatusEnded
	require.NoError(t, s.CreateEvent(ctx, ended))

	out, err := s.ListNonTerminalEventsForVenue(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "e1", out[0].ID)
}

func TestStore_UpdateEventStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	e := mkEvent("e1", "v1", now)
	require.NoError(t, s.CreateEvent(ctx, e))

	require.NoError(t, s.UpdateEventStatus(ctx, "e1", event.StatusActive, &now, nil))

	found, err := s.FindEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, event.StatusActive, found.Status)
	require.NotNil(t, found.ActualStart)
}

func TestStore_DeleteEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := mkEvent("e1", "v1", time.Now().UTC())
	require.NoError(t, s.CreateEvent(ctx, e))

	require.NoError(t, s.DeleteEvent(ctx, "e1"))

	found, err := s.FindEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestStore_DeleteEvent_MissingReturnsError(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.DeleteEvent(context.Background(), "missing"))
}

func mkQueueItem(eventID, trackID string, now time.Time) queueitem.QueueItem {
	return queueitem.QueueItem{
		ID:          uuid.New().String(),
		EventID:     eventID,
		TrackID:     trackID,
		TrackURI:    "spotify:track:" + trackID,
		TrackName:   "song",
		ArtistName:  "artist",
		Duration:    3 * time.Minute,
		VoteCount:   1,
		LastVotedAt: now,
		AddedAt:     now,
		AddedBy:     "s1",
	}
}

func TestStore_UpsertQueueItem_InsertThenUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	row := mkQueueItem("e1", "t1", now)

	saved, err := s.UpsertQueueItem(ctx, row)
	require.NoError(t, err)

	saved.VoteCount = 2
	saved.Score = 42
	_, err = s.UpsertQueueItem(ctx, *saved)
	require.NoError(t, err)

	found, err := s.FindQueueItem(ctx, "e1", "t1", true)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 2, found.VoteCount)
	assert.Equal(t, 42, found.Score)
	assert.Equal(t, 3*time.Minute, found.Duration)
}

func TestStore_ListQueueItems_FiltersPlayed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	unplayed := mkQueueItem("e1", "t1", now)
	played := mkQueueItem("e1", "t2", now)
	played.IsPlayed = true
	played.PlayedAt = &now

	_, err := s.UpsertQueueItem(ctx, unplayed)
	require.NoError(t, err)
	_, err = s.UpsertQueueItem(ctx, played)
	require.NoError(t, err)

	unplayedOnly, err := s.ListQueueItems(ctx, "e1", true)
	require.NoError(t, err)
	assert.Len(t, unplayedOnly, 1)

	all, err := s.ListQueueItems(ctx, "e1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_UpdatePositionsBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	a := mkQueueItem("e1", "t1", now)
	b := mkQueueItem("e1", "t2", now)
	require.NoError(t, mustUpsert(s, ctx, a))
	require.NoError(t, mustUpsert(s, ctx, b))

	require.NoError(t, s.UpdatePositionsBatch(ctx, map[string]int{a.ID: 2, b.ID: 1}))

	foundA, err := s.FindQueueItem(ctx, "e1", "t1", true)
	require.NoError(t, err)
	foundB, err := s.FindQueueItem(ctx, "e1", "t2", true)
	require.NoError(t, err)
	assert.Equal(t, 2, foundA.Position)
	assert.Equal(t, 1, foundB.Position)
}

func mustUpsert(s *Store, ctx context.Context, row queueitem.QueueItem) error {
	_, err := s.UpsertQueueItem(ctx, row)
	return err
}

func TestStore_MarkQueueItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	row := mkQueueItem("e1", "t1", now)
	require.NoError(t, mustUpsert(s, ctx, row))

	require.NoError(t, s.MarkQueueItem(ctx, row.ID, true, &now, true, "skipped by venue"))

	found, err := s.FindQueueItem(ctx, "e1", "t1", false)
	require.NoError(t, err)
	assert.True(t, found.IsPlayed)
	assert.True(t, found.Skipped)
	assert.Equal(t, "skipped by venue", found.SkippedReason)
}

func TestStore_CountVotesForEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	a := mkQueueItem("e1", "t1", now)
	a.VoteCount = 3
	b := mkQueueItem("e1", "t2", now)
	b.VoteCount = 5
	require.NoError(t, mustUpsert(s, ctx, a))
	require.NoError(t, mustUpsert(s, ctx, b))

	total, err := s.CountVotesForEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 8, total)
}

func TestStore_ListRecentlyPlayed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := mkQueueItem("e1", "t1", now)
	old.IsPlayed = true
	staleAt := now.Add(-time.Hour)
	old.PlayedAt = &staleAt

	recent := mkQueueItem("e1", "t2", now)
	recent.IsPlayed = true
	recentAt := now.Add(-time.Minute)
	recent.PlayedAt = &recentAt

	require.NoError(t, mustUpsert(s, ctx, old))
	require.NoError(t, mustUpsert(s, ctx, recent))

	plays, err := s.ListRecentlyPlayed(ctx, "e1", 5, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, plays, 1)
	assert.Equal(t, "t2", plays[0].TrackID)
}

func TestStore_DeleteUnplayedForEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	row := mkQueueItem("e1", "t1", now)
	require.NoError(t, mustUpsert(s, ctx, row))

	require.NoError(t, s.DeleteUnplayedForEvent(ctx, "e1"))

	items, err := s.ListQueueItems(ctx, "e1", false)
	require.NoError(t, err)
	assert.Empty(t, items)
}
